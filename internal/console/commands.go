package console

import (
	"context"
	"fmt"
	"strconv"

	"github.com/JoshLWScott/fbdbg/internal/breakpoint"
	"github.com/JoshLWScott/fbdbg/internal/session"
)

// funcCommand adapts a plain function to the Command interface so each
// built-in command can be a short closure instead of its own named type.
type funcCommand struct {
	help string
	run  func(ctx context.Context, core *session.Core, console *Terminal, args []string) error
}

func (f funcCommand) Run(ctx context.Context, core *session.Core, console *Terminal, args []string) error {
	return f.run(ctx, core, console, args)
}
func (f funcCommand) Help() string { return f.help }

// NewFuncCommand builds a Command from a closure. The returned Command is a
// pointer, so a name and its aliases registered with it share one value.
func NewFuncCommand(help string, run func(ctx context.Context, core *session.Core, console *Terminal, args []string) error) Command {
	return &funcCommand{help: help, run: run}
}

// RegisterBuiltins installs every command spec.md §6 names that needs
// nothing beyond the SessionCore itself. launch and attach are not console
// commands: cmd/fbdbg exposes them as the "launch" and "attach" cobra
// subcommands that start the session.
func RegisterBuiltins(d *Dispatcher) {
	d.Register("run", NewFuncCommand("run: leave configuring and start the debuggee", cmdRun))
	d.Register("continue", NewFuncCommand("continue [threadId]: resume execution", cmdContinue), "c")
	d.Register("next", NewFuncCommand("next [threadId]: step over", cmdNext), "n")
	d.Register("stepin", NewFuncCommand("stepin [threadId]: step into", cmdStepIn), "s")
	d.Register("stepout", NewFuncCommand("stepout [threadId]: step out", cmdStepOut))
	d.Register("pause", NewFuncCommand("pause <threadId>: halt a running thread", cmdPause))

	d.Register("break", NewFuncCommand("break <path> <line>: set a source breakpoint", cmdBreak), "b")
	d.Register("breakfunc", NewFuncCommand("breakfunc <name>: set a function breakpoint", cmdBreakFunc))
	d.Register("delete", NewFuncCommand("delete <index> | delete all: remove breakpoint(s)", cmdDelete))
	d.Register("enable", NewFuncCommand("enable <index>: enable a breakpoint", cmdEnable))
	d.Register("disable", NewFuncCommand("disable <index>: disable a breakpoint", cmdDisable))
	d.Register("breakpoints", NewFuncCommand("breakpoints: list all breakpoints", cmdListBreakpoints))

	d.Register("threads", NewFuncCommand("threads: list live threads", cmdThreads))
	d.Register("thread", NewFuncCommand("thread <id>: set the focus thread", cmdThread))
	d.Register("frame", NewFuncCommand("frame <threadId> <index>: select a stack frame on a thread", cmdFrame))
	d.Register("bt", NewFuncCommand("bt [threadId] [levels]: print a stack trace", cmdStackTrace), "backtrace")
	d.Register("list", NewFuncCommand("list <path|ref> <start> [length]: print source lines", cmdList), "l")
	d.Register("print", NewFuncCommand("print <expr>: evaluate an expression", cmdPrint), "p")
	d.Register("locals", NewFuncCommand("locals [scope]: print variables in scope", cmdLocals), "vars")

	d.Register("restart", NewFuncCommand("restart: relaunch/reattach, preserving breakpoints", cmdRestart))
	d.Register("quit", NewFuncCommand("quit: disconnect and exit", cmdQuit), "q")
	d.Register("help", NewFuncCommand("help: list commands", makeHelp(d)))
}

func makeHelp(d *Dispatcher) func(context.Context, *session.Core, *Terminal, []string) error {
	return func(_ context.Context, _ *session.Core, console *Terminal, _ []string) error {
		for _, name := range d.Names() {
			cmd, _ := d.Lookup(name)
			console.OutputLine(cmd.Help())
		}
		return nil
	}
}

func cmdRun(ctx context.Context, core *session.Core, _ *Terminal, _ []string) error {
	return core.Run(ctx)
}

func parseThreadID(args []string, fallback func() int64) int64 {
	if len(args) == 0 {
		return fallback()
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fallback()
	}
	return id
}

func focusOrZero(core *session.Core) func() int64 {
	return func() int64 {
		th, err := core.Threads(context.Background())
		if err != nil || len(th) == 0 {
			return 0
		}
		return th[0].ID
	}
}

func cmdContinue(ctx context.Context, core *session.Core, _ *Terminal, args []string) error {
	return core.Continue(ctx, parseThreadID(args, focusOrZero(core)))
}

func cmdNext(ctx context.Context, core *session.Core, _ *Terminal, args []string) error {
	return core.Next(ctx, parseThreadID(args, focusOrZero(core)))
}

func cmdStepIn(ctx context.Context, core *session.Core, _ *Terminal, args []string) error {
	return core.StepIn(ctx, parseThreadID(args, focusOrZero(core)))
}

func cmdStepOut(ctx context.Context, core *session.Core, _ *Terminal, args []string) error {
	return core.StepOut(ctx, parseThreadID(args, focusOrZero(core)))
}

func cmdPause(ctx context.Context, core *session.Core, _ *Terminal, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: pause <threadId>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("pause: invalid threadId %q", args[0])
	}
	return core.Pause(ctx, id)
}

func cmdBreak(ctx context.Context, core *session.Core, console *Terminal, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: break <path> <line>")
	}
	line, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("break: invalid line %q", args[1])
	}
	idx, err := core.AddSourceBreakpoint(ctx, args[0], uint32(line))
	if err != nil {
		return err
	}
	console.OutputLine(fmt.Sprintf("breakpoint %d set at %s:%d", idx, args[0], line))
	return nil
}

func cmdBreakFunc(ctx context.Context, core *session.Core, console *Terminal, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: breakfunc <name>")
	}
	idx, err := core.AddFunctionBreakpoint(ctx, args[0])
	if err != nil {
		return err
	}
	console.OutputLine(fmt.Sprintf("breakpoint %d set on function %s", idx, args[0]))
	return nil
}

func cmdDelete(ctx context.Context, core *session.Core, _ *Terminal, args []string) error {
	if len(args) == 1 && args[0] == "all" {
		return core.DeleteAllBreakpoints(ctx)
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <index> | delete all")
	}
	idx, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("delete: invalid index %q", args[0])
	}
	return core.DeleteBreakpoint(ctx, uint32(idx))
}

func setEnabled(ctx context.Context, core *session.Core, args []string, enabled bool) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: enable|disable <index>")
	}
	idx, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid index %q", args[0])
	}
	return core.SetBreakpointEnabled(ctx, uint32(idx), enabled)
}

func cmdEnable(ctx context.Context, core *session.Core, _ *Terminal, args []string) error {
	return setEnabled(ctx, core, args, true)
}

func cmdDisable(ctx context.Context, core *session.Core, _ *Terminal, args []string) error {
	return setEnabled(ctx, core, args, false)
}

func cmdListBreakpoints(_ context.Context, core *session.Core, console *Terminal, _ []string) error {
	for _, bp := range core.Breakpoints().All() {
		console.OutputLine(formatBreakpoint(bp))
	}
	return nil
}

func formatBreakpoint(bp breakpoint.Breakpoint) string {
	status := "unverified"
	if bp.Verified {
		status = "verified"
	}
	enabled := "enabled"
	if !bp.Enabled {
		enabled = "disabled"
	}
	loc := fmt.Sprintf("%s:%d", bp.Path, bp.Line)
	if bp.Kind == breakpoint.Function {
		loc = bp.Func
		if bp.ResolvedPath != "" {
			loc = fmt.Sprintf("%s (%s:%d)", bp.Func, bp.ResolvedPath, bp.ResolvedLine)
		}
	}
	line := fmt.Sprintf("%d: %s [%s, %s]", bp.Index, loc, enabled, status)
	if bp.Message != "" {
		line += ": " + bp.Message
	}
	return line
}

func cmdThreads(ctx context.Context, core *session.Core, console *Terminal, _ []string) error {
	threads, err := core.Threads(ctx)
	if err != nil {
		return err
	}
	for _, t := range threads {
		state := "running"
		if !t.Running {
			state = "stopped"
		}
		console.OutputLine(fmt.Sprintf("thread %d: %s (%s)", t.ID, t.Name, state))
	}
	return nil
}

func cmdThread(_ context.Context, core *session.Core, _ *Terminal, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: thread <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("thread: invalid id %q", args[0])
	}
	return core.SetFocusThread(id)
}

func cmdFrame(ctx context.Context, core *session.Core, _ *Terminal, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: frame <threadId> <index>")
	}
	threadID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("frame: invalid threadId %q", args[0])
	}
	idx, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("frame: invalid index %q", args[1])
	}
	return core.SetSelectedStackFrame(ctx, threadID, uint32(idx))
}

func cmdStackTrace(ctx context.Context, core *session.Core, console *Terminal, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: bt <threadId> [levels]")
	}
	threadID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bt: invalid threadId %q", args[0])
	}
	levels := 20
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			levels = n
		}
	}
	frames, err := core.GetStackTrace(ctx, threadID, levels)
	if err != nil {
		return err
	}
	for i, f := range frames {
		console.OutputLine(fmt.Sprintf("#%d %s at %s:%d", i, f.Name, f.Path, f.Line))
	}
	return nil
}

func cmdList(_ context.Context, core *session.Core, console *Terminal, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: list <path> <start> [length]")
	}
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("list: invalid start %q", args[1])
	}
	length := 10
	if len(args) > 2 {
		if n, err := strconv.Atoi(args[2]); err == nil {
			length = n
		}
	}

	var sourceRef int
	path := args[0]
	if ref, err := strconv.Atoi(args[0]); err == nil {
		sourceRef = ref
		path = ""
	}
	for _, line := range core.GetSourceLines(sourceRef, path, start, length) {
		console.OutputLine(line)
	}
	return nil
}

func cmdPrint(ctx context.Context, core *session.Core, console *Terminal, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: print <expr>")
	}
	expr := args[0]
	for _, a := range args[1:] {
		expr += " " + a
	}
	res, err := core.Evaluate(ctx, expr)
	if err != nil {
		return err
	}
	console.OutputLine(fmt.Sprintf("%s = %s", expr, res.Result))
	return nil
}

func cmdLocals(ctx context.Context, core *session.Core, console *Terminal, args []string) error {
	var scope *string
	if len(args) > 0 {
		scope = &args[0]
	}
	views, err := core.GetVariablesByScope(ctx, scope)
	if err != nil {
		return err
	}
	for _, v := range views {
		console.OutputLine(fmt.Sprintf("-- %s --", v.ScopeName))
		for _, variable := range v.Variables {
			console.OutputLine(fmt.Sprintf("  %s = %s (%s)", variable.Name, variable.Value, variable.Type))
		}
	}
	return nil
}

func cmdRestart(ctx context.Context, core *session.Core, _ *Terminal, _ []string) error {
	return core.Restart(ctx)
}

func cmdQuit(ctx context.Context, core *session.Core, _ *Terminal, _ []string) error {
	if err := core.Close(ctx); err != nil {
		return err
	}
	return errQuit{}
}

// errQuit signals RunLoop to stop reading input and return cleanly; it is
// not printed as an "error: ..." line by Dispatch, which hands it back to
// RunLoop, and RunLoop checks for it with IsQuit.
type errQuit struct{}

func (errQuit) Error() string { return "quit" }

// IsQuit reports whether err is the quit sentinel, for RunLoop.
func IsQuit(err error) bool {
	_, ok := err.(errQuit)
	return ok
}
