// Package session implements the Debugger Session Core from spec.md §4.4:
// the state machine coordinating the DAP handshake and configuration
// phase, the breakpoint reconciler, the thread/stack-frame model, and the
// command-facing API every console command ultimately calls into.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JoshLWScott/fbdbg/internal/breakpoint"
	"github.com/JoshLWScott/fbdbg/internal/logging"
	"github.com/JoshLWScott/fbdbg/internal/sourcecache"
	"github.com/JoshLWScott/fbdbg/internal/thread"
	"github.com/JoshLWScott/fbdbg/internal/util"
)

// relaunchMaxAttempts bounds the retry/backoff wrapped around
// createSession during relaunch (SPEC_FULL.md MODULE: SessionCore
// additions). Exhausting every attempt surfaces a FatalSessionError.
const relaunchMaxAttempts = 3

// ScopeView is one element of GetVariablesByScope's result: a scope plus
// its variables, in the adapter's original scopes order.
type ScopeView struct {
	ScopeName string
	Expensive bool
	Variables []Variable
}

// Core is the SessionCore of spec.md §4.4. It owns exactly one
// DebugSession at a time; BreakpointCollection outlives individual
// sessions, ThreadCollection and SourceFileCache are recreated per session
// (spec.md §3 Lifecycle).
//
// Every exported method locks mu for the duration of its state mutation
// and DAP round trip. Events arrive on a dedicated goroutine per session
// and take the same lock before touching any state - spec.md §5 notes an
// implementation on a preemptive runtime (which a Go binary always is)
// "must wrap SessionCore in a mutex or actor"; mu is that wrapper.
type Core struct {
	mu sync.Mutex

	state               State
	mode                Mode
	caps                Capabilities
	readyForEvaluations bool

	breakpoints *breakpoint.Collection
	threads     *thread.Collection
	sourceCache *sourcecache.Cache

	debugSession DebugSession
	factory      SessionFactory
	descriptor   AdapterDescriptor

	sessionCtx    context.Context
	cancelSession context.CancelFunc

	expectingAdapterExit bool

	// lastFrames/lastFramesThread cache the most recent stack trace fetch,
	// used by getVariablesByScope and evaluate to resolve "the currently
	// selected frame" without a round trip.
	lastFrames       []StackFrame
	lastFramesThread int64

	console  ConsoleIO
	log      logging.Logger
	clientID string

	exitCh chan int
}

// New returns an idle Core ready for Launch or Attach.
func New(factory SessionFactory, console ConsoleIO, log logging.Logger, clientID string) *Core {
	return &Core{
		state:       StateIdle,
		breakpoints: breakpoint.New(),
		factory:     factory,
		console:     console,
		log:         log,
		clientID:    clientID,
		exitCh:      make(chan int, 1),
	}
}

// State returns the current session state.
func (c *Core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Breakpoints exposes the breakpoint collection for read-only console
// queries ("list breakpoints"). Breakpoints outlive sessions so this is
// always safe to call.
func (c *Core) Breakpoints() *breakpoint.Collection {
	return c.breakpoints
}

// ExitSignal reports session terminations to the top-level driver: 0 when
// an attach-mode session terminates (spec.md §6 Exit codes), -1 on each
// launch-mode termination, which starts a relaunch instead of ending the
// process. The channel holds one pending value; a signal sent while one is
// still unread is dropped.
func (c *Core) ExitSignal() <-chan int {
	return c.exitCh
}

// refreshConsoleInputLocked implements the rule from spec.md §4.4 ordering
// rule 2. Must be called with mu held.
func (c *Core) refreshConsoleInputLocked() {
	enabled := c.state == StateStopped || (c.state == StateConfiguring && c.readyForEvaluations)
	if enabled {
		c.console.StartInput()
	} else {
		c.console.StopInput()
	}
}

// Launch starts a new launch-mode session. Launch resets breakpoints;
// relaunch (triggered automatically on termination) preserves them,
// per spec.md §4.4 table footnote.
func (c *Core) Launch(ctx context.Context, descriptor AdapterDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle && c.state != StateTerminated {
		return &StateViolation{CurrentState: c.state, Operation: "launch"}
	}

	descriptor.Action = "launch"
	c.descriptor = descriptor
	c.mode = ModeLaunch
	c.breakpoints.DeleteAll()

	return c.createSessionLocked(ctx)
}

// Attach starts a new attach-mode session.
func (c *Core) Attach(ctx context.Context, descriptor AdapterDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle && c.state != StateTerminated {
		return &StateViolation{CurrentState: c.state, Operation: "attach"}
	}

	descriptor.Action = "attach"
	c.descriptor = descriptor
	c.mode = ModeAttach
	c.breakpoints.DeleteAll()

	return c.createSessionLocked(ctx)
}

// createSessionLocked implements the "createSession must only be called
// when debugSession is null or after a successful closeSession" rule from
// spec.md §5. Must be called with mu held.
func (c *Core) createSessionLocked(ctx context.Context) error {
	sess, err := c.factory.NewSession(ctx, c.descriptor)
	if err != nil {
		c.state = StateTerminated
		return &FatalSessionError{Message: "failed to spawn adapter", Cause: err}
	}

	c.debugSession = sess
	c.state = StateInitializing
	c.threads = thread.New()
	c.sourceCache = sourcecache.New(c.makeFetcher())
	c.lastFrames = nil
	c.lastFramesThread = 0
	c.sessionCtx, c.cancelSession = context.WithCancel(context.Background())
	c.refreshConsoleInputLocked()

	go c.pumpEvents(sess)

	caps, err := sess.Initialize(ctx, c.clientID)
	if err != nil {
		c.state = StateTerminated
		return &FatalSessionError{Message: "initialize failed", Cause: err}
	}
	c.caps = caps
	c.readyForEvaluations = !caps.SupportsReadyForEvaluationsEvent

	var launchErr error
	if c.descriptor.Action == "attach" {
		args := c.descriptor.AttachArgs
		if c.descriptor.TransformAttachArguments != nil {
			args = c.descriptor.TransformAttachArguments(args)
		}
		launchErr = sess.Attach(ctx, args)
	} else {
		args := c.descriptor.LaunchArgs
		if c.descriptor.TransformLaunchArguments != nil {
			args = c.descriptor.TransformLaunchArguments(args)
		}
		launchErr = sess.Launch(ctx, args)
	}
	if launchErr != nil {
		c.state = StateTerminated
		return &FatalSessionError{Message: "failed to debug target", Cause: launchErr}
	}

	c.log.Infof("session initialized, mode=%v awaiting initialized event", c.mode)
	return nil
}

// makeFetcher installs the SourceFileCache's fetcher closure (spec.md §9:
// "model as the cache holding a fetcher closure, not a back-pointer").
func (c *Core) makeFetcher() sourcecache.Fetcher {
	return func(ref int) (string, error) {
		c.mu.Lock()
		sess := c.debugSession
		ctx := c.sessionCtx
		c.mu.Unlock()
		if sess == nil {
			return "", &NoActiveSession{}
		}
		return sess.Source(ctx, "", ref)
	}
}

// Run is the console **run** command: Configuring -> Running.
func (c *Core) Run(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConfiguring {
		return &StateViolation{CurrentState: c.state, Operation: "run"}
	}
	return c.doConfigurationDoneLocked(ctx)
}

// doConfigurationDoneLocked implements the Configuring->Running side
// effects from spec.md §4.4: _resetAllBreakpoints, empty
// setExceptionBreakpoints (sent last among the breakpoint calls - spec.md
// §9 design note - even when configurationDone isn't supported),
// configurationDone if supported, then _cacheThreads. Must be called with
// mu held.
func (c *Core) doConfigurationDoneLocked(ctx context.Context) error {
	if err := c.resetAllBreakpoints(ctx); err != nil {
		c.log.Errorf("breakpoint reconcile failed: %v", err)
	}

	if err := c.debugSession.SetExceptionBreakpoints(ctx, nil); err != nil {
		return &AdapterFailure{Message: "setExceptionBreakpoints failed: " + err.Error()}
	}

	if c.caps.SupportsConfigurationDoneRequest {
		if err := c.debugSession.ConfigurationDone(ctx); err != nil {
			return &AdapterFailure{Message: "configurationDone failed: " + err.Error()}
		}
	}

	if threads, err := c.debugSession.Threads(ctx); err == nil {
		c.threads.UpdateThreads(threads)
	}
	c.threads.MarkAllThreadsRunning()
	c.state = StateRunning
	c.refreshConsoleInputLocked()

	if c.mode == ModeAttach && c.descriptor.AsyncStopThread != nil {
		if err := c.debugSession.Pause(ctx, *c.descriptor.AsyncStopThread); err != nil {
			c.log.Warnf("async stop thread pause failed: %v", err)
		}
	}
	return nil
}

// requireStoppedLocked is the shared precondition for continue/next/
// stepIn/stepOut.
func (c *Core) requireStoppedLocked(op string) error {
	if c.debugSession == nil {
		return &NoActiveSession{}
	}
	if c.state != StateStopped {
		return &StateViolation{CurrentState: c.state, Operation: op}
	}
	return nil
}

// runResumeLocked implements ordering rule 3: disable console input before
// sending the request; re-enable it if the request itself fails.
func (c *Core) runResumeLocked(ctx context.Context, op string, send func() error) error {
	if err := c.requireStoppedLocked(op); err != nil {
		return err
	}
	c.console.StopInput()
	if err := send(); err != nil {
		c.refreshConsoleInputLocked()
		return &AdapterFailure{Message: op + " failed: " + err.Error()}
	}
	c.state = StateRunning
	return nil
}

// Continue resumes a thread (or all threads if threadID == 0).
func (c *Core) Continue(ctx context.Context, threadID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runResumeLocked(ctx, "continue", func() error {
		return c.debugSession.Continue(ctx, threadID)
	})
}

// Next steps over the current line.
func (c *Core) Next(ctx context.Context, threadID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runResumeLocked(ctx, "next", func() error {
		return c.debugSession.Next(ctx, threadID)
	})
}

// StepIn steps into a call.
func (c *Core) StepIn(ctx context.Context, threadID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runResumeLocked(ctx, "stepIn", func() error {
		return c.debugSession.StepIn(ctx, threadID)
	})
}

// StepOut steps out of the current call.
func (c *Core) StepOut(ctx context.Context, threadID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runResumeLocked(ctx, "stepOut", func() error {
		return c.debugSession.StepOut(ctx, threadID)
	})
}

// Pause requests the adapter halt a running thread.
func (c *Core) Pause(ctx context.Context, threadID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debugSession == nil {
		return &NoActiveSession{}
	}
	if c.state != StateRunning {
		return &StateViolation{CurrentState: c.state, Operation: "pause"}
	}
	if err := c.debugSession.Pause(ctx, threadID); err != nil {
		return &AdapterFailure{Message: "pause failed: " + err.Error()}
	}
	return nil
}

// hasActiveBreakpointTargetLocked reports whether the current state admits
// sending breakpoint requests to the adapter (spec.md §4.4 ordering rule
// 1: breakpoint-setting is explicitly allowed pre-launch, and remains
// legal once running).
func (c *Core) hasActiveBreakpointTargetLocked() bool {
	return c.debugSession != nil && c.state != StateTerminated && c.state != StateIdle
}

// AddSourceBreakpoint records a new enabled source breakpoint and, if a
// session is active, reconciles it immediately.
func (c *Core) AddSourceBreakpoint(ctx context.Context, path string, line uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.breakpoints.AddSource(path, line)
	if c.hasActiveBreakpointTargetLocked() {
		if err := c.reconcileOneSource(ctx, path); err != nil {
			return idx, err
		}
	}
	return idx, nil
}

// AddFunctionBreakpoint records a new enabled function breakpoint.
func (c *Core) AddFunctionBreakpoint(ctx context.Context, fn string) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.caps.SupportsFunctionBreakpoints {
		return 0, &CapabilityNotSupported{Feature: "function breakpoints"}
	}

	idx := c.breakpoints.AddFunction(fn)
	if c.hasActiveBreakpointTargetLocked() {
		if err := c.reconcileFunctions(ctx); err != nil {
			return idx, err
		}
	}
	return idx, nil
}

// DeleteBreakpoint removes a breakpoint and reconciles its source (or the
// function set).
func (c *Core) DeleteBreakpoint(ctx context.Context, index uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bp, err := c.breakpoints.GetByIndex(index)
	if err != nil {
		return err
	}
	if err := c.breakpoints.Delete(index); err != nil {
		return err
	}
	if !c.hasActiveBreakpointTargetLocked() {
		return nil
	}
	if bp.Kind == breakpoint.Source {
		return c.reconcileOneSource(ctx, bp.Path)
	}
	return c.reconcileFunctions(ctx)
}

// DeleteAllBreakpoints empties the collection and, if a session is active,
// sends an empty setBreakpoints for every previously-known path plus an
// empty setFunctionBreakpoints.
func (c *Core) DeleteAllBreakpoints(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := c.breakpoints.AllPaths()
	hadFunctions := len(c.breakpoints.AllEnabledFunction()) > 0
	c.breakpoints.DeleteAll()

	if !c.hasActiveBreakpointTargetLocked() {
		return nil
	}

	var firstErr error
	for path := range paths {
		if _, err := c.debugSession.SetBreakpoints(ctx, path, nil); err != nil && firstErr == nil {
			firstErr = &AdapterFailure{Message: "setBreakpoints failed for " + path + ": " + err.Error()}
		}
	}
	if hadFunctions && c.caps.SupportsFunctionBreakpoints {
		if _, err := c.debugSession.SetFunctionBreakpoints(ctx, nil); err != nil && firstErr == nil {
			firstErr = &AdapterFailure{Message: "setFunctionBreakpoints failed: " + err.Error()}
		}
	}
	return firstErr
}

// SetBreakpointEnabled enables or disables a breakpoint and reconciles it.
func (c *Core) SetBreakpointEnabled(ctx context.Context, index uint32, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bp, err := c.breakpoints.GetByIndex(index)
	if err != nil {
		return err
	}
	if err := c.breakpoints.SetEnabled(index, enabled); err != nil {
		return err
	}
	if !c.hasActiveBreakpointTargetLocked() {
		return nil
	}
	if bp.Kind == breakpoint.Source {
		return c.reconcileOneSource(ctx, bp.Path)
	}
	return c.reconcileFunctions(ctx)
}

// Threads returns the live thread set. Spec.md §8: after closeSession
// returns, a subsequent getThreads yields NoActiveSession.
func (c *Core) Threads(ctx context.Context) ([]thread.Thread, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debugSession == nil {
		return nil, &NoActiveSession{}
	}
	return c.threads.All(), nil
}

// SetFocusThread changes which thread's frames/variables console commands
// default to.
func (c *Core) SetFocusThread(threadID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debugSession == nil {
		return &NoActiveSession{}
	}
	return c.threads.SetFocusThread(threadID)
}

// GetStackTrace returns the adapter's stack frames verbatim.
func (c *Core) GetStackTrace(ctx context.Context, threadID int64, levels int) ([]StackFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debugSession == nil {
		return nil, &NoActiveSession{}
	}
	frames, err := c.debugSession.StackTrace(ctx, threadID, 0, levels)
	if err != nil {
		return nil, &AdapterFailure{Message: "stackTrace failed: " + err.Error()}
	}
	return frames, nil
}

// SetSelectedStackFrame fetches index+1 levels and selects index (0-based)
// for the named thread, caching the frames for getVariablesByScope and
// evaluate.
func (c *Core) SetSelectedStackFrame(ctx context.Context, threadID int64, index uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setSelectedStackFrameLocked(ctx, threadID, index)
}

func (c *Core) setSelectedStackFrameLocked(ctx context.Context, threadID int64, index uint32) error {
	if c.debugSession == nil {
		return &NoActiveSession{}
	}
	frames, err := c.debugSession.StackTrace(ctx, threadID, 0, int(index+1))
	if err != nil {
		return &AdapterFailure{Message: "stackTrace failed: " + err.Error()}
	}
	if uint32(len(frames)) <= index {
		return &NoSuchFrame{ThreadID: threadID, Index: index}
	}
	if err := c.threads.SetSelectedFrame(threadID, index); err != nil {
		return err
	}
	c.lastFrames = frames
	c.lastFramesThread = threadID
	return nil
}

// currentFrameIDLocked resolves the DAP frame id behind "the currently
// selected frame", or false if none is cached for the focus thread.
func (c *Core) currentFrameIDLocked() (int, bool) {
	focus, ok := c.threads.FocusThread()
	if !ok || focus != c.lastFramesThread {
		return 0, false
	}
	th, err := c.threads.Get(focus)
	if err != nil || int(th.SelectedFrame) >= len(c.lastFrames) {
		return 0, false
	}
	return c.lastFrames[th.SelectedFrame].ID, true
}

// GetVariablesByScope implements spec.md §4.6: filter by exact scope name
// if given (failing with NoSuchScope if absent), otherwise drop expensive
// scopes; variables for each retained scope are conceptually fetched in
// parallel, returned mirroring the adapter's scopes order.
func (c *Core) GetVariablesByScope(ctx context.Context, scopeName *string) ([]ScopeView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debugSession == nil {
		return nil, &NoActiveSession{}
	}
	frameID, ok := c.currentFrameIDLocked()
	if !ok {
		return nil, &NoSuchFrame{ThreadID: c.lastFramesThread}
	}

	scopes, err := c.debugSession.Scopes(ctx, frameID)
	if err != nil {
		return nil, &AdapterFailure{Message: "scopes failed: " + err.Error()}
	}

	var retained []Scope
	if scopeName != nil {
		found := false
		for _, s := range scopes {
			if s.Name == *scopeName {
				retained = []Scope{s}
				found = true
				break
			}
		}
		if !found {
			return nil, &NoSuchScope{Name: *scopeName}
		}
	} else {
		for _, s := range scopes {
			if !s.Expensive {
				retained = append(retained, s)
			}
		}
	}

	type result struct {
		idx  int
		view ScopeView
		err  error
	}
	resultsCh := make(chan result, len(retained))
	for i, s := range retained {
		i, s := i, s
		go func() {
			vars, err := c.debugSession.Variables(ctx, s.VariablesReference)
			resultsCh <- result{idx: i, view: ScopeView{ScopeName: s.Name, Expensive: s.Expensive, Variables: vars}, err: err}
		}()
	}
	views := make([]ScopeView, len(retained))
	var firstErr error
	for range retained {
		r := <-resultsCh
		if r.err != nil && firstErr == nil {
			firstErr = &AdapterFailure{Message: "variables failed: " + r.err.Error()}
			continue
		}
		views[r.idx] = r.view
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return views, nil
}

// Evaluate runs an expression in context "repl". Per spec.md §9's
// open-question resolution, the current frame id is attached only when
// Stopped (a stack frame only exists while stopped).
func (c *Core) Evaluate(ctx context.Context, expr string) (EvaluateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debugSession == nil {
		return EvaluateResult{}, &NoActiveSession{}
	}
	if c.state != StateRunning && c.state != StateStopped {
		return EvaluateResult{}, &StateViolation{CurrentState: c.state, Operation: "evaluate"}
	}

	var frameID *int
	if c.state == StateStopped {
		if id, ok := c.currentFrameIDLocked(); ok {
			frameID = &id
		}
	}

	res, err := c.debugSession.Evaluate(ctx, expr, frameID, "repl")
	if err != nil {
		return EvaluateResult{}, &AdapterFailure{Message: "evaluate failed: " + err.Error()}
	}
	return res, nil
}

// SetVariable modifies a variable in place.
func (c *Core) SetVariable(ctx context.Context, variablesReference int, name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debugSession == nil {
		return &NoActiveSession{}
	}
	if err := c.debugSession.SetVariable(ctx, variablesReference, name, value); err != nil {
		return &AdapterFailure{Message: "setVariable failed: " + err.Error()}
	}
	return nil
}

// GetSourceLines implements spec.md §4.7's source-listing rule.
func (c *Core) GetSourceLines(sourceReference int, path string, start, length int) []string {
	c.mu.Lock()
	cache := c.sourceCache
	c.mu.Unlock()
	if cache == nil {
		return nil
	}
	var lines []string
	if sourceReference > 0 {
		lines = cache.GetBySourceReference(sourceReference)
	} else if path != "" {
		lines = cache.GetByPath(path)
	}
	return sourcecache.Slice(lines, start, length)
}

// Close implements closeSession from spec.md §5: disconnects, nulls the
// DebugSession reference, and flushes the source cache.
func (c *Core) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeSessionLocked(ctx)
}

func (c *Core) closeSessionLocked(ctx context.Context) error {
	if c.debugSession == nil {
		return nil
	}
	var err error
	if derr := c.debugSession.Disconnect(ctx, true); derr != nil {
		err = derr
	}
	if cerr := c.debugSession.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if c.cancelSession != nil {
		c.cancelSession()
	}
	c.debugSession = nil
	if c.sourceCache != nil {
		c.sourceCache.Flush()
	}
	return err
}

// Restart is the console **restart** command.
func (c *Core) Restart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.relaunchLocked(ctx)
}

// relaunchLocked implements spec.md §5's ordering: closeSession ->
// createSession -> attach/launch -> await initialized -> configurationDone
// / pauseAfterAttach. Breakpoints are preserved (not cleared), unlike an
// explicit Launch/Attach call. createSession is retried with backoff up to
// relaunchMaxAttempts before giving up (SPEC_FULL.md MODULE: SessionCore
// additions); scenario 1 in spec.md §8 succeeds on the first attempt, so
// the bound is never exercised there.
func (c *Core) relaunchLocked(ctx context.Context) error {
	c.expectingAdapterExit = true
	_ = c.closeSessionLocked(ctx)
	c.expectingAdapterExit = false

	var lastErr error
	for attempt := 0; attempt < relaunchMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := util.Backoff(float64(100*time.Millisecond), float64(2*time.Second), 0.1, 2, attempt)
			c.log.Warnf("relaunch attempt %d failed, retrying in %s: %v", attempt, delay, lastErr)
			time.Sleep(delay)
		}
		if err := c.createSessionLocked(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return &FatalSessionError{Message: "relaunch exhausted retries", Cause: lastErr}
}

// pumpEvents is the sole reader of one session's event stream; it
// dispatches every event back through Core under mu, per the single
// cooperative-scheduling model in spec.md §5.
func (c *Core) pumpEvents(sess DebugSession) {
	for ev := range sess.Events() {
		c.mu.Lock()
		if c.debugSession != sess {
			c.mu.Unlock()
			return
		}
		c.handleEventLocked(ev)
		c.mu.Unlock()
	}
}

func (c *Core) handleEventLocked(ev Event) {
	switch ev.Kind {
	case EventInitialized:
		c.handleInitializedLocked()
	case EventStopped:
		c.handleStoppedLocked(ev.Stopped)
	case EventContinued:
		c.handleContinuedLocked(ev.Continued)
	case EventThread:
		c.handleThreadLocked(ev.Thread)
	case EventOutput:
		if ev.Output != nil {
			c.console.Output(ev.Output.Output)
		}
	case EventBreakpoint:
		c.handleBreakpointLocked(ev.Breakpoint)
	case EventExited:
		c.handleTerminalLocked()
	case EventTerminated:
		c.handleTerminalLocked()
	case EventAdapterExited:
		if c.expectingAdapterExit {
			c.log.Debugf("adapter-exited ignored during relaunch teardown")
			return
		}
		c.handleTerminalLocked()
	case EventReadyForEvaluations:
		c.readyForEvaluations = true
		c.refreshConsoleInputLocked()
	case EventCustom:
		name := "unknown"
		if ev.Custom != nil {
			name = ev.Custom.Name
		}
		c.log.Debugf("ignoring unrecognized adapter event %q", name)
	}
}

func (c *Core) handleInitializedLocked() {
	if c.state != StateInitializing {
		c.log.Warnf("unexpected initialized event in state %s", c.state)
		return
	}
	c.state = StateConfiguring
	c.refreshConsoleInputLocked()

	if c.mode == ModeAttach {
		if err := c.doConfigurationDoneLocked(c.sessionCtx); err != nil {
			c.log.Errorf("attach configuration failed: %v", err)
		}
	}
}

func (c *Core) handleStoppedLocked(body *StoppedBody) {
	if body == nil {
		return
	}
	if body.AllThreadsStopped {
		c.threads.MarkAllThreadsStopped()
	} else if body.ThreadID != 0 {
		_ = c.threads.MarkThreadStopped(body.ThreadID)
	}

	focusID := body.ThreadID
	if focusID == 0 {
		if t, ok := c.threads.FirstStoppedThread(); ok {
			focusID = t.ID
		}
	}
	if focusID != 0 {
		_ = c.threads.SetFocusThread(focusID)
	}

	c.state = StateStopped
	c.refreshConsoleInputLocked()

	if focusID != 0 {
		if err := c.setSelectedStackFrameLocked(c.sessionCtx, focusID, 0); err == nil && len(c.lastFrames) > 0 {
			top := c.lastFrames[0]
			c.console.OutputLine(fmt.Sprintf("%s at %s:%d", top.Name, top.Path, top.Line))
		}
	}
}

func (c *Core) handleContinuedLocked(body *ContinuedBody) {
	if body == nil {
		c.threads.MarkAllThreadsRunning()
	} else if body.AllThreadsContinued {
		c.threads.MarkAllThreadsRunning()
	} else if body.ThreadID != 0 {
		_ = c.threads.MarkThreadRunning(body.ThreadID)
	}
	c.state = StateRunning
	c.refreshConsoleInputLocked()
}

func (c *Core) handleThreadLocked(body *ThreadBody) {
	if body == nil {
		return
	}
	switch body.Reason {
	case "started":
		c.threads.AddThread(thread.Thread{ID: body.ThreadID, Running: true})
	case "exited":
		c.threads.RemoveThread(body.ThreadID)
	}
}

func (c *Core) handleBreakpointLocked(body *BreakpointBody) {
	if body == nil {
		return
	}
	bp, err := c.breakpoints.GetByID(body.ID)
	if err != nil {
		return
	}
	_ = c.breakpoints.SetVerified(bp.Index, body.Verified)
	if body.Message != "" {
		_ = c.breakpoints.SetMessage(bp.Index, body.Message)
	}
}

// handleTerminalLocked implements the terminated/exited/unexpected
// adapter-exited row from spec.md §4.4, de-duplicated so it only fires
// once per session.
func (c *Core) handleTerminalLocked() {
	if c.state == StateTerminated {
		return
	}
	c.state = StateTerminated
	c.refreshConsoleInputLocked()

	if c.mode == ModeLaunch {
		c.console.OutputLine("Process terminated.")
		select {
		case c.exitCh <- -1: // relaunch pending; no process exit
		default:
		}
		go func() {
			ctx := context.Background()
			c.mu.Lock()
			defer c.mu.Unlock()
			if err := c.relaunchLocked(ctx); err != nil {
				c.log.Errorf("relaunch failed: %v", err)
			}
		}()
		return
	}

	c.console.OutputLine("Debuggee exited; attach session ended.")
	select {
	case c.exitCh <- 0:
	default:
	}
}
