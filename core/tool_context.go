package core

import (
	"context"

	"github.com/hupe1980/roma/logging"
)

// ToolContext is handed to a tool for one invocation. It carries the call's
// context for cancellation, the originating function call id and read-only
// execution values.
type ToolContext struct {
	ctx            context.Context
	functionCallID string
	values         map[string]any

	*loggerAdapter
}

// NewToolContext binds a tool invocation to ctx. values is copied.
func NewToolContext(ctx context.Context, functionCallID string, logger logging.Logger, values map[string]any) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	cp := make(map[string]any, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &ToolContext{
		ctx:            ctx,
		functionCallID: functionCallID,
		values:         cp,
		loggerAdapter:  newLoggerAdapter(logger),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// Value returns an execution value by key.
func (tc *ToolContext) Value(key string) (any, bool) {
	v, ok := tc.values[key]
	return v, ok
}
