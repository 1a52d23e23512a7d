package console

import (
	"context"
	"strings"
	"testing"

	"github.com/JoshLWScott/fbdbg/internal/logging"
	"github.com/JoshLWScott/fbdbg/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCore(t *testing.T, console session.ConsoleIO) *session.Core {
	t.Helper()
	return session.New(nil, console, logging.NewNoOp(), "fbdbg")
}

func TestDispatcherUnknownCommand(t *testing.T) {
	var out strings.Builder
	term := NewTerminal(&out)
	d := NewDispatcher()
	RegisterBuiltins(d)

	err := d.Dispatch(context.Background(), newCore(t, term), term, "frobnicate")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "unknown command: frobnicate")
}

func TestDispatcherEmptyLineIsNoOp(t *testing.T) {
	var out strings.Builder
	term := NewTerminal(&out)
	d := NewDispatcher()
	RegisterBuiltins(d)

	err := d.Dispatch(context.Background(), newCore(t, term), term, "   ")
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestDispatcherAliasResolves(t *testing.T) {
	d := NewDispatcher()
	RegisterBuiltins(d)

	c1, ok1 := d.Lookup("continue")
	c2, ok2 := d.Lookup("c")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Same(t, c1, c2)
}

func TestDispatcherReportsCommandError(t *testing.T) {
	var out strings.Builder
	term := NewTerminal(&out)
	d := NewDispatcher()
	RegisterBuiltins(d)

	err := d.Dispatch(context.Background(), newCore(t, term), term, "pause notanumber")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "error:")
}

func TestDispatcherQuitPropagatesSentinelWithoutPrinting(t *testing.T) {
	var out strings.Builder
	term := NewTerminal(&out)
	d := NewDispatcher()
	RegisterBuiltins(d)

	err := d.Dispatch(context.Background(), newCore(t, term), term, "quit")
	require.Error(t, err)
	assert.True(t, IsQuit(err))
	assert.Empty(t, out.String())
}

func TestTerminalStartStopInputGatesWaitForInput(t *testing.T) {
	var out strings.Builder
	term := NewTerminal(&out)

	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { done <- term.WaitForInput(ctx) }()

	select {
	case <-done:
		t.Fatal("WaitForInput returned before StartInput")
	default:
	}

	term.StartInput()
	require.NoError(t, <-done)

	// Once enabled, a fresh call returns immediately.
	require.NoError(t, term.WaitForInput(context.Background()))

	term.StopInput()
	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	err := term.WaitForInput(ctx2)
	assert.Error(t, err)
}

func TestTerminalOutput(t *testing.T) {
	var out strings.Builder
	term := NewTerminal(&out)
	term.Output("a")
	term.OutputLine("b")
	assert.Equal(t, "ab\n", out.String())
}
