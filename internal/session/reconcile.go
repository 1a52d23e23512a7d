package session

import (
	"context"
	"sync"

	"github.com/JoshLWScott/fbdbg/internal/breakpoint"
)

// sourceFetchResult carries one path's setBreakpoints round trip back to
// the caller that applies it. Only the transport call happens on a
// goroutine; the breakpoint collection itself is touched exactly once,
// serially, after every fetch has returned (see resetAllBreakpoints).
type sourceFetchResult struct {
	path    string
	bps     []breakpoint.Breakpoint
	results []BreakpointResult
	err     error
}

// resetAllBreakpoints is spec.md §4.5 `_resetAllBreakpoints`: one
// setBreakpoints per path present in the enabled source set, plus one
// setFunctionBreakpoints if supported and non-empty, all awaited together.
// Failure of any single request surfaces as a session-fatal error for that
// reconcile but does not disable console input.
//
// The per-path and function requests run concurrently, but
// breakpoint.Collection is not safe for concurrent access (spec.md §5): its
// byID map and *Breakpoint fields are mutated by ApplyVerification/
// SetPathAndLine, so two goroutines applying results at the same time would
// race. Only the DAP round trip is fanned out here; every result is applied
// back to the collection serially, on this goroutine, after wg.Wait() - the
// same fan-out-the-transport-only, apply-serially shape GetVariablesByScope
// uses for its own parallel fetch.
func (c *Core) resetAllBreakpoints(ctx context.Context) error {
	grouped := c.breakpoints.AllEnabledBySource()

	var wg sync.WaitGroup
	sourceCh := make(chan sourceFetchResult, len(grouped))

	for path, bps := range grouped {
		path, bps := path, bps
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := c.sendSourceBreakpoints(ctx, path, bps)
			sourceCh <- sourceFetchResult{path: path, bps: bps, results: results, err: err}
		}()
	}

	var functionFetch sourceFetchResult
	haveFunctionFetch := c.caps.SupportsFunctionBreakpoints
	var fns []breakpoint.Breakpoint
	if haveFunctionFetch {
		fns = c.breakpoints.AllEnabledFunction()
		haveFunctionFetch = len(fns) > 0
	}
	if haveFunctionFetch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := c.sendFunctionBreakpoints(ctx, fns)
			functionFetch = sourceFetchResult{bps: fns, results: results, err: err}
		}()
	}

	wg.Wait()
	close(sourceCh)

	var first error
	for res := range sourceCh {
		if res.err != nil {
			if first == nil {
				first = res.err
			}
			continue
		}
		c.applySourceBreakpoints(res.bps, res.results)
	}

	if haveFunctionFetch {
		if functionFetch.err != nil {
			if first == nil {
				first = functionFetch.err
			}
		} else {
			c.applyFunctionBreakpoints(functionFetch.bps, functionFetch.results)
		}
	}

	return first
}

// sendSourceBreakpoints issues the setBreakpoints request for one path's
// already-gathered breakpoints. Transport only - does not touch
// breakpoints.Collection, so it is safe to call from a goroutine.
func (c *Core) sendSourceBreakpoints(ctx context.Context, path string, bps []breakpoint.Breakpoint) ([]BreakpointResult, error) {
	lines := make([]uint32, len(bps))
	for i, bp := range bps {
		lines[i] = bp.Line
	}
	results, err := c.debugSession.SetBreakpoints(ctx, path, lines)
	if err != nil {
		return nil, &AdapterFailure{Message: "setBreakpoints failed for " + path + ": " + err.Error()}
	}
	return results, nil
}

// applySourceBreakpoints pairs a setBreakpoints response positionally with
// the request array (spec.md §4.5) and writes the result into
// breakpoints.Collection. Must be called serially, never from more than
// one goroutine at a time.
func (c *Core) applySourceBreakpoints(bps []breakpoint.Breakpoint, results []BreakpointResult) {
	for i, bp := range bps {
		if i >= len(results) {
			break
		}
		r := results[i]
		_ = c.breakpoints.ApplyVerification(bp.Index, r.ID, r.Verified, r.Message)
	}
}

// sendFunctionBreakpoints issues the setFunctionBreakpoints request for
// the given breakpoints. Transport only, safe to call from a goroutine.
func (c *Core) sendFunctionBreakpoints(ctx context.Context, fns []breakpoint.Breakpoint) ([]BreakpointResult, error) {
	names := make([]string, len(fns))
	for i, bp := range fns {
		names[i] = bp.Func
	}
	results, err := c.debugSession.SetFunctionBreakpoints(ctx, names)
	if err != nil {
		return nil, &AdapterFailure{Message: "setFunctionBreakpoints failed: " + err.Error()}
	}
	return results, nil
}

// applyFunctionBreakpoints is applySourceBreakpoints's function-breakpoint
// counterpart; must also be called serially.
func (c *Core) applyFunctionBreakpoints(fns []breakpoint.Breakpoint, results []BreakpointResult) {
	for i, bp := range fns {
		if i >= len(results) {
			break
		}
		r := results[i]
		_ = c.breakpoints.ApplyVerification(bp.Index, r.ID, r.Verified, r.Message)
		if r.Path != "" {
			_ = c.breakpoints.SetPathAndLine(bp.Index, r.Path, r.Line)
		}
	}
}

// reconcileSource rebuilds and re-sends the full breakpoint list for one
// source path, then applies the result. Called from a single goroutine
// (an individual add/delete/enable/disable), so fetch-then-apply in one
// step is safe here - it is only resetAllBreakpoints' multi-path fan-out
// that needs the split fetch/apply above.
func (c *Core) reconcileSource(ctx context.Context, path string) error {
	grouped := c.breakpoints.AllEnabledBySource()
	bps := grouped[path]

	results, err := c.sendSourceBreakpoints(ctx, path, bps)
	if err != nil {
		return err
	}
	c.applySourceBreakpoints(bps, results)
	return nil
}

// reconcileFunctions rebuilds and re-sends the entire function-breakpoint
// set.
func (c *Core) reconcileFunctions(ctx context.Context) error {
	fns := c.breakpoints.AllEnabledFunction()

	results, err := c.sendFunctionBreakpoints(ctx, fns)
	if err != nil {
		return err
	}
	c.applyFunctionBreakpoints(fns, results)
	return nil
}

// reconcileOneSource is used by single-breakpoint mutations (add/delete/
// enable/disable a source breakpoint) so only the affected path's
// setBreakpoints call is re-sent, not every path.
func (c *Core) reconcileOneSource(ctx context.Context, path string) error {
	return c.reconcileSource(ctx, path)
}
