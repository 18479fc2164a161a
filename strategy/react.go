package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/model"
	"github.com/hupe1980/roma/tool"
)

const reactInstructions = `Work towards the goal by calling the available tools.
Call a tool whenever you need information you do not have. When you can
answer, reply with the final answer and no tool calls.`

var (
	reactForwardParams  = NewParamSet("tools", "max_iters", "instructions", "config")
	reactAForwardParams = NewParamSet("max_iters", "instructions", "config")
)

// ReAct runs a native tool-calling loop: the model either requests tools,
// whose results are fed back, or answers. Forward uses a "tools" parameter
// when given. AForward takes no tools parameter and reads the internal slot
// only, so callers must BindTools first.
type ReAct struct {
	base
}

// Parameters implements Strategy.
func (r *ReAct) Parameters(entry EntryPoint) ParamSet {
	if entry == EntryAForward {
		return reactAForwardParams
	}
	return reactForwardParams
}

// BindTools implements ToolBinder.
func (r *ReAct) BindTools(tools tool.Set) Strategy {
	cp := *r
	cp.tools = tools
	return &cp
}

// Forward implements Strategy.
func (r *ReAct) Forward(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any) (*Prediction, error) {
	return r.loop(ctx, ec, in, params, r.callTools(ec, params))
}

// AForward implements AsyncForwarder.
func (r *ReAct) AForward(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any) (<-chan *Prediction, <-chan error) {
	tools := r.tools
	return Go(func() (*Prediction, error) { return r.loop(ctx, ec, in, params, tools) })
}

func (r *ReAct) loop(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any, tools tool.Set) (*Prediction, error) {
	lm, err := r.lm(ec)
	if err != nil {
		return nil, err
	}
	instructions, err := r.instructions(ec, in, params, reactInstructions)
	if err != nil {
		return nil, err
	}

	pred := &Prediction{Kind: r.kind}
	contents := []core.Content{userTurn(in)}
	limiter := core.NewModelLimiter(r.maxIters(params))
	runner := &toolRunner{tools: tools, maxParallel: r.opts.MaxParallelTools, logger: r.opts.Logger, values: values(ec)}
	defs := model.ToolDefinitions(tools.List())

	for {
		if err := limiter.Increment(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMaxIterations, err)
		}

		resp, err := r.generate(ctx, lm, model.Request{Instructions: instructions, Contents: contents, Tools: defs}, &pred.Usage)
		if err != nil {
			return nil, err
		}

		assistant := withCallIDs(resp.Content)
		calls := assistant.FunctionCalls()
		if len(calls) == 0 {
			pred.Output = strings.TrimSpace(assistant.Text())
			return pred, nil
		}

		responses := runner.run(ctx, calls)
		for i, fr := range responses {
			pred.Trajectory = append(pred.Trajectory, Step{
				Tool:        fr.Name,
				Arguments:   calls[i].Arguments,
				Observation: model.ResponseText(core.FunctionResponse{Response: fr.Response}),
				Error:       fr.Error,
			})
		}
		contents = append(contents, assistant, toolTurn(responses))
	}
}

// withCallIDs fills in missing function call ids so tool responses can be
// matched to their calls.
func withCallIDs(c core.Content) core.Content {
	parts := make([]core.Part, len(c.Parts))
	for i, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok && fc.FunctionCall.ID == "" {
			fc.FunctionCall.ID = core.NewID()
			p = fc
		}
		parts[i] = p
	}
	return core.Content{Role: c.Role, Parts: parts}
}

func values(ec *ExecutionContext) map[string]any {
	if ec == nil {
		return nil
	}
	return ec.Values
}
