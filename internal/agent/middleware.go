package agent

import "context"

// ToolCall is a request to execute one tool.
type ToolCall struct {
	Name  string
	Input map[string]any
}

// ToolHandler executes a tool call and returns its result message.
type ToolHandler func(ctx context.Context, call ToolCall) (Message, error)

// Middleware hooks into the run lifecycle. Implementations embed NopMiddleware
// and override what they need.
type Middleware interface {
	// BeforeModel runs before each model call and may mutate state.
	BeforeModel(ctx context.Context, cfg RunConfig, state *State) error
	// AfterModel runs after each model call.
	AfterModel(ctx context.Context, cfg RunConfig, state *State) error
	// AfterRun runs once when the agent loop finishes.
	AfterRun(ctx context.Context, cfg RunConfig, state *State) error
	// WrapToolCall surrounds tool execution.
	WrapToolCall(ctx context.Context, cfg RunConfig, call ToolCall, handler ToolHandler) (Message, error)
}

// NopMiddleware implements Middleware with no-ops.
type NopMiddleware struct{}

func (NopMiddleware) BeforeModel(context.Context, RunConfig, *State) error { return nil }

func (NopMiddleware) AfterModel(context.Context, RunConfig, *State) error { return nil }

func (NopMiddleware) AfterRun(context.Context, RunConfig, *State) error { return nil }

func (NopMiddleware) WrapToolCall(ctx context.Context, _ RunConfig, call ToolCall, handler ToolHandler) (Message, error) {
	return handler(ctx, call)
}
