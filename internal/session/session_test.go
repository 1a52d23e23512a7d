package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/JoshLWScott/fbdbg/internal/logging"
	"github.com/JoshLWScott/fbdbg/internal/thread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession is a hand-rolled DebugSession double; no real adapter process
// is spawned. It records every call it receives and lets the test script
// push events onto the channel Core's pump goroutine reads.
type fakeSession struct {
	mu sync.Mutex

	caps          Capabilities
	events        chan Event
	closed        bool
	launchArgs    map[string]any
	attachArgs    map[string]any
	bpResults     map[string][]BreakpointResult
	funcBPResults []BreakpointResult
	threads       []thread.Thread
	frames        []StackFrame
	scopes        []Scope
	vars          map[int][]Variable

	continueCalls int
	pauseCalls    []int64
}

func newFakeSession(caps Capabilities) *fakeSession {
	return &fakeSession{
		caps:      caps,
		events:    make(chan Event, 16),
		bpResults: map[string][]BreakpointResult{},
		vars:      map[int][]Variable{},
	}
}

func (f *fakeSession) Initialize(ctx context.Context, clientID string) (Capabilities, error) {
	return f.caps, nil
}
func (f *fakeSession) Launch(ctx context.Context, args map[string]any) error {
	f.launchArgs = args
	return nil
}
func (f *fakeSession) Attach(ctx context.Context, args map[string]any) error {
	f.attachArgs = args
	return nil
}
func (f *fakeSession) Disconnect(ctx context.Context, terminateDebuggee bool) error { return nil }

func (f *fakeSession) SetBreakpoints(ctx context.Context, path string, lines []uint32) ([]BreakpointResult, error) {
	if r, ok := f.bpResults[path]; ok {
		return r, nil
	}
	out := make([]BreakpointResult, len(lines))
	for i := range lines {
		out[i] = BreakpointResult{Verified: true}
	}
	return out, nil
}
func (f *fakeSession) SetFunctionBreakpoints(ctx context.Context, names []string) ([]BreakpointResult, error) {
	if f.funcBPResults != nil {
		return f.funcBPResults, nil
	}
	out := make([]BreakpointResult, len(names))
	for i := range names {
		out[i] = BreakpointResult{Verified: true}
	}
	return out, nil
}
func (f *fakeSession) SetExceptionBreakpoints(ctx context.Context, filters []string) error { return nil }
func (f *fakeSession) ConfigurationDone(ctx context.Context) error                         { return nil }

func (f *fakeSession) Threads(ctx context.Context) ([]thread.Thread, error) { return f.threads, nil }
func (f *fakeSession) StackTrace(ctx context.Context, threadID int64, startFrame, levels int) ([]StackFrame, error) {
	if levels > len(f.frames) {
		return f.frames, nil
	}
	return f.frames[:levels], nil
}
func (f *fakeSession) Scopes(ctx context.Context, frameID int) ([]Scope, error) { return f.scopes, nil }
func (f *fakeSession) Variables(ctx context.Context, variablesReference int) ([]Variable, error) {
	return f.vars[variablesReference], nil
}
func (f *fakeSession) SetVariable(ctx context.Context, variablesReference int, name, value string) error {
	return nil
}

func (f *fakeSession) Continue(ctx context.Context, threadID int64) error {
	f.continueCalls++
	return nil
}
func (f *fakeSession) Next(ctx context.Context, threadID int64) error    { return nil }
func (f *fakeSession) StepIn(ctx context.Context, threadID int64) error  { return nil }
func (f *fakeSession) StepOut(ctx context.Context, threadID int64) error { return nil }
func (f *fakeSession) Pause(ctx context.Context, threadID int64) error {
	f.pauseCalls = append(f.pauseCalls, threadID)
	return nil
}

func (f *fakeSession) Evaluate(ctx context.Context, expr string, frameID *int, evalContext string) (EvaluateResult, error) {
	return EvaluateResult{Result: "42", Type: "int"}, nil
}
func (f *fakeSession) Source(ctx context.Context, path string, sourceReference int) (string, error) {
	return "line1\nline2\n", nil
}
func (f *fakeSession) Events() <-chan Event { return f.events }

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeSession) push(ev Event) { f.events <- ev }

// fakeFactory hands out pre-built fakeSessions in order.
type fakeFactory struct {
	sessions []*fakeSession
	i        int
}

func (f *fakeFactory) NewSession(ctx context.Context, descriptor AdapterDescriptor) (DebugSession, error) {
	s := f.sessions[f.i]
	if f.i < len(f.sessions)-1 {
		f.i++
	}
	return s, nil
}

// fakeConsole records StartInput/StopInput transitions and output lines.
type fakeConsole struct {
	mu      sync.Mutex
	inputOn bool
	lines   []string
}

func (c *fakeConsole) Output(text string)     { c.OutputLine(text) }
func (c *fakeConsole) OutputLine(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, text)
}
func (c *fakeConsole) StartInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputOn = true
}
func (c *fakeConsole) StopInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputOn = false
}
func (c *fakeConsole) inputEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputOn
}

func waitForState(t *testing.T, c *Core, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, want, c.State())
}

func newTestCore(sess *fakeSession) (*Core, *fakeConsole) {
	console := &fakeConsole{}
	core := New(&fakeFactory{sessions: []*fakeSession{sess}}, console, logging.NewNoOp(), "test")
	return core, console
}

func TestLaunchRunStopContinueExit(t *testing.T) {
	sess := newFakeSession(Capabilities{SupportsConfigurationDoneRequest: true})
	sess.threads = []thread.Thread{{ID: 1, Name: "main"}}
	sess.frames = []StackFrame{{ID: 10, Name: "main.main", Path: "/a.go", Line: 5}}

	core, console := newTestCore(sess)
	ctx := context.Background()

	_, err := core.AddSourceBreakpoint(ctx, "/a.go", 5)
	require.NoError(t, err)

	require.NoError(t, core.Launch(ctx, AdapterDescriptor{}))
	waitForState(t, core, StateInitializing)

	sess.push(Event{Kind: EventInitialized})
	waitForState(t, core, StateConfiguring)

	require.NoError(t, core.Run(ctx))
	waitForState(t, core, StateRunning)
	assert.False(t, console.inputEnabled())

	sess.push(Event{Kind: EventStopped, Stopped: &StoppedBody{ThreadID: 1, AllThreadsStopped: true}})
	waitForState(t, core, StateStopped)
	assert.True(t, console.inputEnabled())

	require.NoError(t, core.Continue(ctx, 1))
	assert.False(t, console.inputEnabled())
	assert.Equal(t, 1, sess.continueCalls)

	sess.push(Event{Kind: EventTerminated})
	waitForState(t, core, StateTerminated)

	select {
	case code := <-core.ExitSignal():
		assert.Equal(t, -1, code)
	case <-time.After(time.Second):
		t.Fatal("expected an exit signal on launch-mode termination")
	}
}

func TestAttachAsyncStopThread(t *testing.T) {
	stopThread := int64(7)
	sess := newFakeSession(Capabilities{SupportsConfigurationDoneRequest: true})
	sess.threads = []thread.Thread{{ID: 7, Name: "worker"}}

	core, _ := newTestCore(sess)
	ctx := context.Background()

	require.NoError(t, core.Attach(ctx, AdapterDescriptor{AsyncStopThread: &stopThread}))
	waitForState(t, core, StateInitializing)

	sess.push(Event{Kind: EventInitialized})
	waitForState(t, core, StateRunning)

	require.Eventually(t, func() bool {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return len(sess.pauseCalls) == 1 && sess.pauseCalls[0] == stopThread
	}, time.Second, time.Millisecond)
}

func TestBreakpointVerification(t *testing.T) {
	sess := newFakeSession(Capabilities{})
	id := 99
	sess.bpResults["/a.go"] = []BreakpointResult{{ID: &id, Verified: false, Message: "pending"}}

	core, _ := newTestCore(sess)
	ctx := context.Background()

	require.NoError(t, core.Launch(ctx, AdapterDescriptor{}))
	waitForState(t, core, StateInitializing)
	sess.push(Event{Kind: EventInitialized})
	waitForState(t, core, StateConfiguring)

	idx, err := core.AddSourceBreakpoint(ctx, "/a.go", 5)
	require.NoError(t, err)

	bp, err := core.breakpoints.GetByIndex(idx)
	require.NoError(t, err)
	assert.False(t, bp.Verified)
	assert.Equal(t, "pending", bp.Message)

	sess.push(Event{Kind: EventBreakpoint, Breakpoint: &BreakpointBody{ID: id, Verified: true}})
	require.Eventually(t, func() bool {
		bp, err := core.breakpoints.GetByIndex(idx)
		return err == nil && bp.Verified
	}, time.Second, time.Millisecond)
}

func TestFunctionBreakpointCapabilityNotSupported(t *testing.T) {
	sess := newFakeSession(Capabilities{SupportsFunctionBreakpoints: false})
	core, _ := newTestCore(sess)

	_, err := core.AddFunctionBreakpoint(context.Background(), "main.main")
	require.Error(t, err)
	var capErr *CapabilityNotSupported
	require.ErrorAs(t, err, &capErr)
}

func TestSelectedScopeNotPresent(t *testing.T) {
	sess := newFakeSession(Capabilities{SupportsConfigurationDoneRequest: true})
	sess.threads = []thread.Thread{{ID: 1}}
	sess.frames = []StackFrame{{ID: 10}}
	sess.scopes = []Scope{{Name: "Locals", VariablesReference: 1}}

	core, _ := newTestCore(sess)
	ctx := context.Background()

	require.NoError(t, core.Launch(ctx, AdapterDescriptor{}))
	waitForState(t, core, StateInitializing)
	sess.push(Event{Kind: EventInitialized})
	waitForState(t, core, StateConfiguring)
	require.NoError(t, core.Run(ctx))
	waitForState(t, core, StateRunning)
	sess.push(Event{Kind: EventStopped, Stopped: &StoppedBody{ThreadID: 1, AllThreadsStopped: true}})
	waitForState(t, core, StateStopped)

	missing := "Globals"
	_, err := core.GetVariablesByScope(ctx, &missing)
	require.Error(t, err)
	var scopeErr *NoSuchScope
	require.ErrorAs(t, err, &scopeErr)
}

func TestCloseSessionThenGetThreadsYieldsNoActiveSession(t *testing.T) {
	sess := newFakeSession(Capabilities{})
	core, _ := newTestCore(sess)
	ctx := context.Background()

	require.NoError(t, core.Launch(ctx, AdapterDescriptor{}))
	waitForState(t, core, StateInitializing)

	require.NoError(t, core.Close(ctx))

	_, err := core.Threads(ctx)
	require.Error(t, err)
	var noSession *NoActiveSession
	require.ErrorAs(t, err, &noSession)
}

func TestStateViolationDoesNotMutateState(t *testing.T) {
	sess := newFakeSession(Capabilities{})
	core, _ := newTestCore(sess)
	ctx := context.Background()

	before := core.State()
	err := core.Run(ctx) // illegal before any launch: still Idle
	require.Error(t, err)
	var stateErr *StateViolation
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, before, core.State())
}
