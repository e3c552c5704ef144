package agent

import (
	"context"
	"fmt"
)

// DefaultRecursionLimit bounds the model/tool loop of one run.
const DefaultRecursionLimit = 1000

// ModelFunc produces the next assistant message, and optionally a tool call
// to execute before the model is consulted again.
type ModelFunc func(ctx context.Context, cfg RunConfig, state *State) (Message, *ToolCall, error)

// Run drives the model/tool loop through the middleware pipeline: before-model
// hooks, the model call, after-model hooks, tool execution (wrapped by every
// middleware), and finally the after-run hooks exactly once.
func (a *Agent) Run(ctx context.Context, cfg RunConfig, model ModelFunc, tools map[string]ToolHandler, state *State) error {
	defer func() {
		for _, mw := range a.Middleware {
			if err := mw.AfterRun(context.WithoutCancel(ctx), cfg, state); err != nil {
				// After-run stages report their own failures.
				_ = err
			}
		}
	}()

	for step := 0; step < DefaultRecursionLimit; step++ {
		for _, mw := range a.Middleware {
			if err := mw.BeforeModel(ctx, cfg, state); err != nil {
				return err
			}
		}

		msg, call, err := model(ctx, cfg, state)
		if err != nil {
			return err
		}
		state.Append(msg)

		for _, mw := range a.Middleware {
			if err := mw.AfterModel(ctx, cfg, state); err != nil {
				return err
			}
		}

		if call == nil {
			return nil
		}

		result, err := a.executeTool(ctx, cfg, *call, tools)
		if err != nil {
			return err
		}
		state.Append(result)
	}
	return fmt.Errorf("run exceeded %d steps", DefaultRecursionLimit)
}

// executeTool runs one tool call with every middleware's WrapToolCall
// layered around the base handler, outermost middleware first.
func (a *Agent) executeTool(ctx context.Context, cfg RunConfig, call ToolCall, tools map[string]ToolHandler) (Message, error) {
	handler := tools[call.Name]
	if handler == nil {
		handler = func(_ context.Context, call ToolCall) (Message, error) {
			return Message{}, fmt.Errorf("unknown tool %q", call.Name)
		}
	}

	for i := len(a.Middleware) - 1; i >= 0; i-- {
		mw := a.Middleware[i]
		next := handler
		handler = func(ctx context.Context, call ToolCall) (Message, error) {
			return mw.WrapToolCall(ctx, cfg, call, next)
		}
	}
	return handler(ctx, call)
}
