package session

import (
	"context"

	"github.com/JoshLWScott/fbdbg/internal/thread"
)

// Capabilities is a record copied from the adapter's initialize response
// (spec.md §3). Unknown fields the adapter may send are dropped; this is a
// fixed set of the fields SessionCore actually consults.
type Capabilities struct {
	SupportsConfigurationDoneRequest bool
	SupportsFunctionBreakpoints      bool
	// SupportsReadyForEvaluationsEvent is a custom, non-standard extension
	// to the protocol (spec.md §6).
	SupportsReadyForEvaluationsEvent bool
}

// BreakpointResult is the adapter's per-breakpoint reply to a
// setBreakpoints/setFunctionBreakpoints request.
type BreakpointResult struct {
	ID       *int
	Verified bool
	Message  string
	// Path/Line are populated for function breakpoints the adapter
	// resolved to a concrete source location.
	Path string
	Line uint32
}

// StackFrame is the adapter's view of one call-stack entry, returned
// verbatim by StackTrace (spec.md §4.6).
type StackFrame struct {
	ID               int
	Name             string
	Path             string
	SourceReference  int
	Line             uint32
	PresentationHint string
}

// Scope is one variable scope attached to a stack frame.
type Scope struct {
	Name               string
	VariablesReference int
	Expensive          bool
}

// Variable is a single named value within a scope.
type Variable struct {
	Name  string
	Value string
	Type  string
}

// EvaluateResult is the outcome of an `evaluate` request.
type EvaluateResult struct {
	Result string
	Type   string
}

// EventKind tags the variant carried by Event.
type EventKind int

const (
	EventInitialized EventKind = iota
	EventStopped
	EventContinued
	EventThread
	EventOutput
	EventBreakpoint
	EventExited
	EventTerminated
	EventAdapterExited
	EventReadyForEvaluations
	EventCustom
)

func (k EventKind) String() string {
	switch k {
	case EventInitialized:
		return "initialized"
	case EventStopped:
		return "stopped"
	case EventContinued:
		return "continued"
	case EventThread:
		return "thread"
	case EventOutput:
		return "output"
	case EventBreakpoint:
		return "breakpoint"
	case EventExited:
		return "exited"
	case EventTerminated:
		return "terminated"
	case EventAdapterExited:
		return "adapter-exited"
	case EventReadyForEvaluations:
		return "readyForEvaluations"
	default:
		return "custom"
	}
}

// StoppedBody carries the fields SessionCore consults from a stopped event.
type StoppedBody struct {
	Reason            string
	ThreadID          int64
	AllThreadsStopped bool
}

// ContinuedBody carries the fields SessionCore consults from a continued
// event.
type ContinuedBody struct {
	ThreadID            int64
	AllThreadsContinued bool
}

// ThreadBody carries the fields SessionCore consults from a thread event.
type ThreadBody struct {
	Reason   string
	ThreadID int64
}

// OutputBody carries the fields SessionCore consults from an output event.
type OutputBody struct {
	Category string
	Output   string
}

// BreakpointBody carries the fields SessionCore consults from a breakpoint
// event (adapter-initiated verification change).
type BreakpointBody struct {
	Reason   string
	ID       int
	Verified bool
	Message  string
}

// CustomBody carries the raw event name for an event the adapter sent that
// is not one of the DAP event types listed above (spec.md §6 allows an
// adapter to emit vendor-specific events; fbdbg logs them rather than
// failing the connection).
type CustomBody struct {
	Name string
}

// ExitedBody carries the fields SessionCore consults from an exited event.
type ExitedBody struct {
	ExitCode int
}

// Event is a tagged union over every DAP event SessionCore handles (spec.md
// §9: "re-express as subscriber callbacks on a typed event channel; each
// event variant is a tagged case").
type Event struct {
	Kind       EventKind
	Stopped    *StoppedBody
	Continued  *ContinuedBody
	Thread     *ThreadBody
	Output     *OutputBody
	Breakpoint *BreakpointBody
	Exited     *ExitedBody
	Custom     *CustomBody
}

// DebugSession is the transport to the adapter: spec.md §2 lists it as an
// external collaborator (request/response methods + observable event
// streams). internal/dapclient provides the concrete implementation over
// github.com/google/go-dap.
type DebugSession interface {
	Initialize(ctx context.Context, clientID string) (Capabilities, error)
	Launch(ctx context.Context, args map[string]any) error
	Attach(ctx context.Context, args map[string]any) error
	Disconnect(ctx context.Context, terminateDebuggee bool) error

	SetBreakpoints(ctx context.Context, path string, lines []uint32) ([]BreakpointResult, error)
	SetFunctionBreakpoints(ctx context.Context, names []string) ([]BreakpointResult, error)
	SetExceptionBreakpoints(ctx context.Context, filters []string) error
	ConfigurationDone(ctx context.Context) error

	Threads(ctx context.Context) ([]thread.Thread, error)
	StackTrace(ctx context.Context, threadID int64, startFrame, levels int) ([]StackFrame, error)
	Scopes(ctx context.Context, frameID int) ([]Scope, error)
	Variables(ctx context.Context, variablesReference int) ([]Variable, error)
	SetVariable(ctx context.Context, variablesReference int, name, value string) error

	Continue(ctx context.Context, threadID int64) error
	Next(ctx context.Context, threadID int64) error
	StepIn(ctx context.Context, threadID int64) error
	StepOut(ctx context.Context, threadID int64) error
	Pause(ctx context.Context, threadID int64) error

	Evaluate(ctx context.Context, expr string, frameID *int, evalContext string) (EvaluateResult, error)
	Source(ctx context.Context, path string, sourceReference int) (string, error)

	// Events delivers DAP events in arrival order. The channel is closed
	// when the transport shuts down.
	Events() <-chan Event

	Close() error
}

// AdapterDescriptor describes how to launch or attach to one debuggee,
// spec.md §6.
type AdapterDescriptor struct {
	Type       string
	Action     string // "launch" | "attach"
	LaunchArgs map[string]any
	AttachArgs map[string]any

	TransformLaunchArguments func(map[string]any) map[string]any
	TransformAttachArguments func(map[string]any) map[string]any

	// AsyncStopThread, when set, is paused immediately after
	// configurationDone completes in attach mode (spec.md §8 scenario 2).
	AsyncStopThread *int64
}

// SessionFactory spawns a fresh DebugSession for a descriptor. Implemented
// by internal/adapterfactory.
type SessionFactory interface {
	NewSession(ctx context.Context, descriptor AdapterDescriptor) (DebugSession, error)
}
