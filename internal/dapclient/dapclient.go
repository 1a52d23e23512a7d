// Package dapclient implements session.DebugSession over a real DAP
// adapter process, using github.com/google/go-dap's request/argument/body
// types for the wire shapes teacher's (unavailable) DAPClient exercised:
// request arguments are go-dap argument structs, and response and event
// bodies are decoded into go-dap body types (dap.StoppedEventBody,
// dap.EvaluateResponseBody, and friends): events by a switch on the event
// name, responses by the request method that sent them.
//
// The Content-Length framing itself is read by hand rather than through
// go-dap's own dispatcher, because this repo's adapters may emit a custom
// "readyForEvaluations" event (spec.md §6) that isn't part of the DAP
// spec go-dap's message registry knows about; decoding the envelope
// first and only then unmarshaling known bodies into go-dap's structs
// lets an unrecognized event name become EventCustom instead of a fatal
// decode error.
package dapclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	dap "github.com/google/go-dap"

	"github.com/JoshLWScott/fbdbg/internal/logging"
	"github.com/JoshLWScott/fbdbg/internal/session"
	"github.com/JoshLWScott/fbdbg/internal/thread"
)

// envelope is the generic shape every DAP message shares before a request
// or event is resolved to a concrete go-dap type.
type envelope struct {
	Seq        int             `json:"seq"`
	Type       string          `json:"type"`
	Command    string          `json:"command,omitempty"`
	Event      string          `json:"event,omitempty"`
	RequestSeq int             `json:"request_seq,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Client is a session.DebugSession over one adapter connection (stdio pipe
// or TCP socket, per internal/adapterfactory).
type Client struct {
	rw      io.ReadWriteCloser
	reader  *bufio.Reader
	writeMu sync.Mutex
	seq     int64

	pendingMu sync.Mutex
	pending   map[int]chan envelope

	events chan session.Event
	log    logging.Logger

	closeOnce sync.Once
}

// New wraps rw and starts the background read loop. rw is already a live
// connection to the adapter (internal/adapterfactory's responsibility).
func New(rw io.ReadWriteCloser, log logging.Logger) *Client {
	c := &Client{
		rw:      rw,
		reader:  bufio.NewReader(rw),
		pending: map[int]chan envelope{},
		events:  make(chan session.Event, 64),
		log:     log,
	}
	go c.readLoop()
	return c
}

func readMessageBytes(r *bufio.Reader) ([]byte, error) {
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("dapclient: bad Content-Length header %q: %w", line, err)
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("dapclient: message missing Content-Length header")
	}
	buf := make([]byte, contentLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeMessageBytes(w io.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readLoop is the sole reader of rw, demultiplexing responses by
// request_seq and translating events onto the public Events() channel,
// the generalization of teacher's "loop reading until the response we
// want arrives, forwarding events along the way".
func (c *Client) readLoop() {
	for {
		raw, err := readMessageBytes(c.reader)
		if err != nil {
			c.pendingMu.Lock()
			for _, ch := range c.pending {
				close(ch)
			}
			c.pending = map[int]chan envelope{}
			c.pendingMu.Unlock()
			c.events <- session.Event{Kind: session.EventAdapterExited}
			close(c.events)
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warnf("dapclient: malformed message: %v", err)
			continue
		}

		switch env.Type {
		case "response":
			c.pendingMu.Lock()
			ch, ok := c.pending[env.RequestSeq]
			if ok {
				delete(c.pending, env.RequestSeq)
			}
			c.pendingMu.Unlock()
			if ok {
				ch <- env
			}
		case "event":
			if ev, ok := translateEvent(env); ok {
				c.events <- ev
			}
		}
	}
}

func (c *Client) send(command string, arguments any) (envelope, error) {
	seq := int(atomic.AddInt64(&c.seq, 1))
	req := map[string]any{"seq": seq, "type": "request", "command": command}
	if arguments != nil {
		req["arguments"] = arguments
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return envelope{}, err
	}

	ch := make(chan envelope, 1)
	c.pendingMu.Lock()
	c.pending[seq] = ch
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err = writeMessageBytes(c.rw, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
		return envelope{}, err
	}

	env, ok := <-ch
	if !ok {
		return envelope{}, fmt.Errorf("dapclient: connection closed before response to %s", command)
	}
	if !env.Success {
		return env, fmt.Errorf("%s: %s", command, env.Message)
	}
	return env, nil
}

func translateEvent(env envelope) (session.Event, bool) {
	switch env.Event {
	case "initialized":
		return session.Event{Kind: session.EventInitialized}, true
	case "stopped":
		var body dap.StoppedEventBody
		_ = json.Unmarshal(env.Body, &body)
		return session.Event{Kind: session.EventStopped, Stopped: &session.StoppedBody{
			Reason:            body.Reason,
			ThreadID:          int64(body.ThreadId),
			AllThreadsStopped: body.AllThreadsStopped,
		}}, true
	case "continued":
		var body dap.ContinuedEventBody
		_ = json.Unmarshal(env.Body, &body)
		return session.Event{Kind: session.EventContinued, Continued: &session.ContinuedBody{
			ThreadID:            int64(body.ThreadId),
			AllThreadsContinued: body.AllThreadsContinued,
		}}, true
	case "thread":
		var body dap.ThreadEventBody
		_ = json.Unmarshal(env.Body, &body)
		return session.Event{Kind: session.EventThread, Thread: &session.ThreadBody{
			Reason:   body.Reason,
			ThreadID: int64(body.ThreadId),
		}}, true
	case "output":
		var body dap.OutputEventBody
		_ = json.Unmarshal(env.Body, &body)
		return session.Event{Kind: session.EventOutput, Output: &session.OutputBody{
			Category: body.Category,
			Output:   body.Output,
		}}, true
	case "breakpoint":
		var body dap.BreakpointEventBody
		_ = json.Unmarshal(env.Body, &body)
		return session.Event{Kind: session.EventBreakpoint, Breakpoint: &session.BreakpointBody{
			Reason:   body.Reason,
			ID:       body.Breakpoint.Id,
			Verified: body.Breakpoint.Verified,
			Message:  body.Breakpoint.Message,
		}}, true
	case "exited":
		var body dap.ExitedEventBody
		_ = json.Unmarshal(env.Body, &body)
		return session.Event{Kind: session.EventExited, Exited: &session.ExitedBody{ExitCode: body.ExitCode}}, true
	case "terminated":
		return session.Event{Kind: session.EventTerminated}, true
	case "readyForEvaluations":
		return session.Event{Kind: session.EventReadyForEvaluations}, true
	default:
		return session.Event{Kind: session.EventCustom, Custom: &session.CustomBody{Name: env.Event}}, true
	}
}

func toBreakpointResults(bps []dap.Breakpoint) []session.BreakpointResult {
	out := make([]session.BreakpointResult, len(bps))
	for i, b := range bps {
		var id *int
		if b.Id != 0 {
			v := b.Id
			id = &v
		}
		var path string
		if b.Source != nil {
			path = b.Source.Path
		}
		out[i] = session.BreakpointResult{
			ID:       id,
			Verified: b.Verified,
			Message:  b.Message,
			Path:     path,
			Line:     uint32(b.Line),
		}
	}
	return out
}

// Initialize sends the initialize request and extracts both standard and
// the custom supportsReadyForEvaluationsEvent capability.
func (c *Client) Initialize(ctx context.Context, clientID string) (session.Capabilities, error) {
	args := dap.InitializeRequestArguments{
		ClientID:             clientID,
		AdapterID:            "fbdbg",
		LinesStartAt1:        true,
		ColumnsStartAt1:      true,
		PathFormat:           "path",
		SupportsVariableType: true,
	}
	env, err := c.send("initialize", args)
	if err != nil {
		return session.Capabilities{}, err
	}

	var caps dap.Capabilities
	_ = json.Unmarshal(env.Body, &caps)
	var extra struct {
		SupportsReadyForEvaluationsEvent bool `json:"supportsReadyForEvaluationsEvent"`
	}
	_ = json.Unmarshal(env.Body, &extra)

	return session.Capabilities{
		SupportsConfigurationDoneRequest: caps.SupportsConfigurationDoneRequest,
		SupportsFunctionBreakpoints:      caps.SupportsFunctionBreakpoints,
		SupportsReadyForEvaluationsEvent: extra.SupportsReadyForEvaluationsEvent,
	}, nil
}
