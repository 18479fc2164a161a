package executor

import (
	"context"

	"github.com/hupe1980/roma/tool"
)

// ToolProvider supplies execution-scoped tools, queried once per AForward.
type ToolProvider interface {
	ExecutionTools(ctx context.Context) (tool.Set, error)
}

// ToolProviderFunc adapts a function to ToolProvider.
type ToolProviderFunc func(ctx context.Context) (tool.Set, error)

// ExecutionTools calls f(ctx).
func (f ToolProviderFunc) ExecutionTools(ctx context.Context) (tool.Set, error) { return f(ctx) }

type toolsKey struct{}

// WithExecutionTools attaches execution-scoped tools to ctx.
func WithExecutionTools(ctx context.Context, tools ...tool.Tool) context.Context {
	return context.WithValue(ctx, toolsKey{}, tool.NewSet(tools...))
}

// ContextToolProvider reads the tools attached with WithExecutionTools. A
// context without tools yields an empty set.
type ContextToolProvider struct{}

// ExecutionTools implements ToolProvider.
func (ContextToolProvider) ExecutionTools(ctx context.Context) (tool.Set, error) {
	set, _ := ctx.Value(toolsKey{}).(tool.Set)
	return set, nil
}
