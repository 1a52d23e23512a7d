package dapclient

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JoshLWScott/fbdbg/internal/logging"
	"github.com/JoshLWScott/fbdbg/internal/session"
)

// fakeAdapter is a minimal in-memory stand-in for a real DAP adapter
// process, speaking the same Content-Length framing over a net.Pipe.
type fakeAdapter struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newFakeAdapter(t *testing.T) (*fakeAdapter, *Client) {
	t.Helper()
	clientConn, adapterConn := net.Pipe()
	client := New(clientConn, logging.NewNoOp())
	adapter := &fakeAdapter{conn: adapterConn, reader: bufio.NewReader(adapterConn)}
	t.Cleanup(func() {
		_ = client.Close()
		_ = adapter.conn.Close()
	})
	return adapter, client
}

func (a *fakeAdapter) readRequest(t *testing.T) envelope {
	t.Helper()
	raw, err := readMessageBytes(a.reader)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func (a *fakeAdapter) respond(t *testing.T, requestSeq int, command string, body any) {
	t.Helper()
	msg := map[string]any{
		"seq":         1,
		"type":        "response",
		"request_seq": requestSeq,
		"command":     command,
		"success":     true,
		"body":        body,
	}
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, writeMessageBytes(a.conn, payload))
}

func (a *fakeAdapter) pushEvent(t *testing.T, name string, body any) {
	t.Helper()
	msg := map[string]any{"seq": 1, "type": "event", "event": name, "body": body}
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, writeMessageBytes(a.conn, payload))
}

func TestInitializeRoundTrip(t *testing.T) {
	adapter, client := newFakeAdapter(t)

	resultCh := make(chan session.Capabilities, 1)
	errCh := make(chan error, 1)
	go func() {
		caps, err := client.Initialize(nil, "fbdbg-test")
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- caps
	}()

	req := adapter.readRequest(t)
	require.Equal(t, "initialize", req.Command)
	adapter.respond(t, req.Seq, "initialize", map[string]any{
		"supportsConfigurationDoneRequest": true,
		"supportsFunctionBreakpoints":      true,
		"supportsReadyForEvaluationsEvent": true,
	})

	select {
	case caps := <-resultCh:
		require.True(t, caps.SupportsConfigurationDoneRequest)
		require.True(t, caps.SupportsFunctionBreakpoints)
		require.True(t, caps.SupportsReadyForEvaluationsEvent)
	case err := <-errCh:
		t.Fatalf("initialize failed: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initialize response")
	}
}

func TestEventTranslationAndAdapterExit(t *testing.T) {
	adapter, client := newFakeAdapter(t)

	adapter.pushEvent(t, "stopped", map[string]any{
		"reason":            "breakpoint",
		"threadId":          3,
		"allThreadsStopped": true,
	})

	select {
	case ev := <-client.Events():
		require.Equal(t, session.EventStopped, ev.Kind)
		require.Equal(t, int64(3), ev.Stopped.ThreadID)
		require.True(t, ev.Stopped.AllThreadsStopped)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stopped event")
	}

	adapter.pushEvent(t, "readyForEvaluations", map[string]any{})
	select {
	case ev := <-client.Events():
		require.Equal(t, session.EventReadyForEvaluations, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for readyForEvaluations event")
	}

	_ = adapter.conn.Close()
	select {
	case ev := <-client.Events():
		require.Equal(t, session.EventAdapterExited, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for adapter-exited event")
	}
}

func TestSetBreakpointsRoundTrip(t *testing.T) {
	adapter, client := newFakeAdapter(t)

	resultCh := make(chan []session.BreakpointResult, 1)
	go func() {
		res, err := client.SetBreakpoints(nil, "/tmp/a.go", []uint32{10, 20})
		require.NoError(t, err)
		resultCh <- res
	}()

	req := adapter.readRequest(t)
	require.Equal(t, "setBreakpoints", req.Command)
	adapter.respond(t, req.Seq, "setBreakpoints", map[string]any{
		"breakpoints": []map[string]any{
			{"id": 1, "verified": true, "line": 10},
			{"verified": false, "message": "no code there"},
		},
	})

	res := <-resultCh
	require.Len(t, res, 2)
	require.NotNil(t, res[0].ID)
	require.Equal(t, 1, *res[0].ID)
	require.True(t, res[0].Verified)
	require.Nil(t, res[1].ID)
	require.False(t, res[1].Verified)
	require.Equal(t, "no code there", res[1].Message)
}

var _ = fmt.Sprintf // keep fmt import if helpers above are trimmed during edits
