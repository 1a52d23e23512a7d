package dapclient

import (
	"context"
	"encoding/json"

	dap "github.com/google/go-dap"

	"github.com/JoshLWScott/fbdbg/internal/session"
	"github.com/JoshLWScott/fbdbg/internal/thread"
)

func (c *Client) Launch(ctx context.Context, args map[string]any) error {
	_, err := c.send("launch", args)
	return err
}

func (c *Client) Attach(ctx context.Context, args map[string]any) error {
	_, err := c.send("attach", args)
	return err
}

func (c *Client) Disconnect(ctx context.Context, terminateDebuggee bool) error {
	_, err := c.send("disconnect", dap.DisconnectArguments{TerminateDebuggee: terminateDebuggee})
	return err
}

func (c *Client) SetBreakpoints(ctx context.Context, path string, lines []uint32) ([]session.BreakpointResult, error) {
	bps := make([]dap.SourceBreakpoint, len(lines))
	for i, l := range lines {
		bps[i] = dap.SourceBreakpoint{Line: int(l)}
	}
	args := dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: path},
		Breakpoints: bps,
	}
	env, err := c.send("setBreakpoints", args)
	if err != nil {
		return nil, err
	}
	var body dap.SetBreakpointsResponseBody
	_ = json.Unmarshal(env.Body, &body)
	return toBreakpointResults(body.Breakpoints), nil
}

func (c *Client) SetFunctionBreakpoints(ctx context.Context, names []string) ([]session.BreakpointResult, error) {
	bps := make([]dap.FunctionBreakpoint, len(names))
	for i, n := range names {
		bps[i] = dap.FunctionBreakpoint{Name: n}
	}
	env, err := c.send("setFunctionBreakpoints", dap.SetFunctionBreakpointsArguments{Breakpoints: bps})
	if err != nil {
		return nil, err
	}
	var body dap.SetFunctionBreakpointsResponseBody
	_ = json.Unmarshal(env.Body, &body)
	return toBreakpointResults(body.Breakpoints), nil
}

func (c *Client) SetExceptionBreakpoints(ctx context.Context, filters []string) error {
	if filters == nil {
		filters = []string{}
	}
	_, err := c.send("setExceptionBreakpoints", dap.SetExceptionBreakpointsArguments{Filters: filters})
	return err
}

func (c *Client) ConfigurationDone(ctx context.Context) error {
	_, err := c.send("configurationDone", nil)
	return err
}

func (c *Client) Threads(ctx context.Context) ([]thread.Thread, error) {
	env, err := c.send("threads", nil)
	if err != nil {
		return nil, err
	}
	var body dap.ThreadsResponseBody
	_ = json.Unmarshal(env.Body, &body)
	out := make([]thread.Thread, len(body.Threads))
	for i, t := range body.Threads {
		out[i] = thread.Thread{ID: int64(t.Id), Name: t.Name}
	}
	return out, nil
}

func (c *Client) StackTrace(ctx context.Context, threadID int64, startFrame, levels int) ([]session.StackFrame, error) {
	env, err := c.send("stackTrace", dap.StackTraceArguments{
		ThreadId:   int(threadID),
		StartFrame: startFrame,
		Levels:     levels,
	})
	if err != nil {
		return nil, err
	}
	var body dap.StackTraceResponseBody
	_ = json.Unmarshal(env.Body, &body)
	out := make([]session.StackFrame, len(body.StackFrames))
	for i, f := range body.StackFrames {
		out[i] = session.StackFrame{
			ID:               f.Id,
			Name:             f.Name,
			Path:             f.Source.Path,
			SourceReference:  f.Source.SourceReference,
			Line:             uint32(f.Line),
			PresentationHint: f.PresentationHint,
		}
	}
	return out, nil
}

func (c *Client) Scopes(ctx context.Context, frameID int) ([]session.Scope, error) {
	env, err := c.send("scopes", dap.ScopesArguments{FrameId: frameID})
	if err != nil {
		return nil, err
	}
	var body dap.ScopesResponseBody
	_ = json.Unmarshal(env.Body, &body)
	out := make([]session.Scope, len(body.Scopes))
	for i, s := range body.Scopes {
		out[i] = session.Scope{Name: s.Name, VariablesReference: s.VariablesReference, Expensive: s.Expensive}
	}
	return out, nil
}

func (c *Client) Variables(ctx context.Context, variablesReference int) ([]session.Variable, error) {
	env, err := c.send("variables", dap.VariablesArguments{VariablesReference: variablesReference})
	if err != nil {
		return nil, err
	}
	var body dap.VariablesResponseBody
	_ = json.Unmarshal(env.Body, &body)
	out := make([]session.Variable, len(body.Variables))
	for i, v := range body.Variables {
		out[i] = session.Variable{Name: v.Name, Value: v.Value, Type: v.Type}
	}
	return out, nil
}

func (c *Client) SetVariable(ctx context.Context, variablesReference int, name, value string) error {
	_, err := c.send("setVariable", dap.SetVariableArguments{
		VariablesReference: variablesReference,
		Name:               name,
		Value:              value,
	})
	return err
}

func (c *Client) Continue(ctx context.Context, threadID int64) error {
	_, err := c.send("continue", dap.ContinueArguments{ThreadId: int(threadID)})
	return err
}

func (c *Client) Next(ctx context.Context, threadID int64) error {
	_, err := c.send("next", dap.NextArguments{ThreadId: int(threadID)})
	return err
}

func (c *Client) StepIn(ctx context.Context, threadID int64) error {
	_, err := c.send("stepIn", dap.StepInArguments{ThreadId: int(threadID)})
	return err
}

func (c *Client) StepOut(ctx context.Context, threadID int64) error {
	_, err := c.send("stepOut", dap.StepOutArguments{ThreadId: int(threadID)})
	return err
}

func (c *Client) Pause(ctx context.Context, threadID int64) error {
	_, err := c.send("pause", dap.PauseArguments{ThreadId: int(threadID)})
	return err
}

func (c *Client) Evaluate(ctx context.Context, expr string, frameID *int, evalContext string) (session.EvaluateResult, error) {
	args := dap.EvaluateArguments{Expression: expr, Context: evalContext}
	if frameID != nil {
		args.FrameId = *frameID
	}
	env, err := c.send("evaluate", args)
	if err != nil {
		return session.EvaluateResult{}, err
	}
	var body dap.EvaluateResponseBody
	_ = json.Unmarshal(env.Body, &body)
	return session.EvaluateResult{Result: body.Result, Type: body.Type}, nil
}

func (c *Client) Source(ctx context.Context, path string, sourceReference int) (string, error) {
	args := dap.SourceArguments{SourceReference: sourceReference}
	if path != "" {
		args.Source = &dap.Source{Path: path}
	}
	env, err := c.send("source", args)
	if err != nil {
		return "", err
	}
	var body dap.SourceResponseBody
	_ = json.Unmarshal(env.Body, &body)
	return body.Content, nil
}

func (c *Client) Events() <-chan session.Event { return c.events }

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.rw.Close() })
	return err
}
