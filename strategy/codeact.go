package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/roma/code"
	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/model"
	"github.com/hupe1980/roma/tool"
)

const codeActInstructions = "Solve the goal by writing code.\n" +
	"Put code in fenced blocks (```python ... ```); it is executed and the output is returned to you.\n" +
	"Tools may also be called directly. When you know the answer, reply with it and no code."

var codeActParams = NewParamSet("tools", "max_iters", "instructions", "config")

// CodeAct lets the model act through code: every fenced block in a reply is
// run by the configured code.Executor and its output fed back, until a reply
// carries neither code nor tool calls.
type CodeAct struct {
	base
}

// Parameters implements Strategy.
func (c *CodeAct) Parameters(EntryPoint) ParamSet { return codeActParams }

// BindTools implements ToolBinder.
func (c *CodeAct) BindTools(tools tool.Set) Strategy {
	cp := *c
	cp.tools = tools
	return &cp
}

// Forward implements Strategy.
func (c *CodeAct) Forward(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any) (*Prediction, error) {
	return c.loop(ctx, ec, in, params, c.callTools(ec, params))
}

// Call implements RawCaller.
func (c *CodeAct) Call(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any) (<-chan *Prediction, <-chan error) {
	return Go(func() (*Prediction, error) { return c.Forward(ctx, ec, in, params) })
}

func (c *CodeAct) loop(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any, tools tool.Set) (*Prediction, error) {
	lm, err := c.lm(ec)
	if err != nil {
		return nil, err
	}
	instructions, err := c.instructions(ec, in, params, codeActInstructions)
	if err != nil {
		return nil, err
	}

	pred := &Prediction{Kind: c.kind}
	contents := []core.Content{userTurn(in)}
	limiter := core.NewModelLimiter(c.maxIters(params))
	runner := &toolRunner{tools: tools, maxParallel: c.opts.MaxParallelTools, logger: c.opts.Logger, values: values(ec)}
	defs := model.ToolDefinitions(tools.List())

	for {
		if err := limiter.Increment(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMaxIterations, err)
		}

		resp, err := c.generate(ctx, lm, model.Request{Instructions: instructions, Contents: contents, Tools: defs}, &pred.Usage)
		if err != nil {
			return nil, err
		}

		assistant := withCallIDs(resp.Content)
		if calls := assistant.FunctionCalls(); len(calls) > 0 {
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
			continue
		}

		text := assistant.Text()
		blocks := code.ExtractBlocks(text)
		if len(blocks) == 0 {
			pred.Output = strings.TrimSpace(text)
			return pred, nil
		}

		var obs strings.Builder
		for i, block := range blocks {
			step := c.execute(block)
			pred.Trajectory = append(pred.Trajectory, step)
			fmt.Fprintf(&obs, "Output of block %d:\n", i+1)
			if step.Error != "" {
				fmt.Fprintf(&obs, "error: %s\n", step.Error)
			}
			obs.WriteString(step.Observation)
			obs.WriteString("\n")
		}
		contents = append(contents, assistant, core.NewTextContent("user", obs.String()))
	}
}

// execute runs one snippet; executor panics are reported as errors.
func (c *CodeAct) execute(snippet string) (step Step) {
	step.Code = snippet
	defer func() {
		if rec := recover(); rec != nil {
			step.Error = fmt.Sprintf("code executor panicked: %v", rec)
		}
	}()
	out, err := c.opts.CodeExecutor.Execute(snippet)
	step.Observation = out
	if err != nil {
		step.Error = err.Error()
		c.opts.Logger.Debug("strategy.code.error", "error", err.Error())
	}
	return step
}
