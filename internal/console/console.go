// Package console supplies the two out-of-scope collaborators spec.md §1
// declares as external interfaces only: ConsoleIO (line output, input
// on/off gating) and CommandDispatcher (parses a line into a Command and
// invokes it against the SessionCore). Its dispatcher shape - a map keyed
// by command name/alias, each entry a small struct invoked with parsed
// args - is grounded on open-policy-agent-opa/repl's REPL loop.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/JoshLWScott/fbdbg/internal/session"
)

// Terminal is the concrete session.ConsoleIO: it writes output straight to
// an io.Writer and gates, behind an internal gate channel, whether the
// prompt goroutine (RunLoop, which does the reading) may read its next
// line - the generalization of teacher's synchronous
// request/then-read-loop style.
type Terminal struct {
	out io.Writer

	mu      sync.Mutex
	enabled bool
	gate    chan struct{}
}

// NewTerminal returns a Terminal writing prompts/output to out. Input
// starts disabled; SessionCore enables it once a session reaches a state
// where console input is legal (spec.md §4.4 ordering rule 2).
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out, gate: make(chan struct{})}
}

func (t *Terminal) Output(text string) {
	fmt.Fprint(t.out, text)
}

func (t *Terminal) OutputLine(text string) {
	fmt.Fprintln(t.out, text)
}

// StartInput opens the gate so the next WaitForInput call returns
// immediately. Idempotent.
func (t *Terminal) StartInput() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled {
		return
	}
	t.enabled = true
	close(t.gate)
}

// StopInput closes the gate; a goroutine blocked in WaitForInput will not
// be released until the next StartInput. Idempotent.
func (t *Terminal) StopInput() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.enabled = false
	t.gate = make(chan struct{})
}

// WaitForInput blocks until input is enabled, or ctx is cancelled.
func (t *Terminal) WaitForInput(ctx context.Context) error {
	t.mu.Lock()
	gate := t.gate
	enabled := t.enabled
	t.mu.Unlock()
	if enabled {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Command is a console command: a thin adapter from parsed input to
// SessionCore calls, spec.md §6's "Command" collaborator.
type Command interface {
	// Run executes the command. args excludes the command name/alias
	// itself.
	Run(ctx context.Context, core *session.Core, console *Terminal, args []string) error
	// Help is a one-line usage summary shown by the built-in "help"
	// command.
	Help() string
}

// Dispatcher holds a registry of commands keyed by name, with aliases
// resolved to the same Command, mirroring the REPL's "leading token names
// a handler" shape.
type Dispatcher struct {
	commands map[string]Command
	order    []string
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{commands: map[string]Command{}}
}

// Register adds a command under name and every alias.
func (d *Dispatcher) Register(name string, cmd Command, aliases ...string) {
	if _, exists := d.commands[name]; !exists {
		d.order = append(d.order, name)
	}
	d.commands[name] = cmd
	for _, a := range aliases {
		d.commands[a] = cmd
	}
}

// Dispatch parses the leading whitespace-separated token of line as a
// command name and invokes its handler with the remaining tokens. An
// empty line is a no-op; an unrecognized command name is reported through
// console rather than returned as an error (so the dispatcher loop stays
// alive per spec.md §7's propagation policy). The only error Dispatch
// itself returns is the quit sentinel (IsQuit), which RunLoop uses to
// leave the loop without printing an "error: quit" line.
func (d *Dispatcher) Dispatch(ctx context.Context, core *session.Core, console *Terminal, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	cmd, ok := d.commands[name]
	if !ok {
		console.OutputLine(fmt.Sprintf("unknown command: %s (try \"help\")", name))
		return nil
	}
	err := cmd.Run(ctx, core, console, args)
	switch {
	case err == nil:
		return nil
	case IsQuit(err):
		return err
	default:
		console.OutputLine(fmt.Sprintf("error: %v", err))
		return nil
	}
}

// Names returns every registered top-level command name (not aliases),
// sorted, for the built-in help listing.
func (d *Dispatcher) Names() []string {
	out := append([]string(nil), d.order...)
	sort.Strings(out)
	return out
}

func (d *Dispatcher) Lookup(name string) (Command, bool) {
	c, ok := d.commands[name]
	return c, ok
}

// RunLoop reads lines from in and dispatches them until in is exhausted or
// ctx is cancelled. Each line's dispatch runs to completion before the
// next is read - spec.md §4.5's "single cooperative scheduling" - because
// Dispatch itself blocks on Command.Run, which blocks on Core's mutex and
// any DAP round trip.
func RunLoop(ctx context.Context, in io.Reader, console *Terminal, core *session.Core, dispatcher *Dispatcher, prompt string) error {
	scanner := bufio.NewScanner(in)
	for {
		if err := console.WaitForInput(ctx); err != nil {
			return err
		}
		console.Output(prompt)
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := dispatcher.Dispatch(ctx, core, console, scanner.Text()); err != nil && IsQuit(err) {
			return nil
		}
	}
}
