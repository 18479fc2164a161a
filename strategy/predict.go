package strategy

import (
	"context"
	"strings"

	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/model"
)

const predictInstructions = "Complete the goal. Reply with the final answer only."

const chainOfThoughtInstructions = `Think the goal through step by step before answering.
Reply in exactly this format:

Reasoning: <your step by step reasoning>
Answer: <the final answer>`

var singleCallParams = NewParamSet("instructions", "config")

// Predict answers with a single model call. It has no native non-blocking
// entry point.
type Predict struct {
	base
}

// Parameters implements Strategy.
func (p *Predict) Parameters(EntryPoint) ParamSet { return singleCallParams }

// Forward implements Strategy.
func (p *Predict) Forward(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any) (*Prediction, error) {
	pred := &Prediction{Kind: p.kind}
	resp, err := p.single(ctx, ec, in, params, predictInstructions, &pred.Usage)
	if err != nil {
		return nil, err
	}
	pred.Output = strings.TrimSpace(resp.Content.Text())
	return pred, nil
}

func (b *base) single(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any, fallback string, usage *model.TokenUsage) (model.Response, error) {
	lm, err := b.lm(ec)
	if err != nil {
		return model.Response{}, err
	}
	instructions, err := b.instructions(ec, in, params, fallback)
	if err != nil {
		return model.Response{}, err
	}
	return b.generate(ctx, lm, model.Request{
		Instructions: instructions,
		Contents:     []core.Content{userTurn(in)},
	}, usage)
}

// ChainOfThought asks for reasoning before the answer and splits the two.
type ChainOfThought struct {
	base
}

// Parameters implements Strategy.
func (c *ChainOfThought) Parameters(EntryPoint) ParamSet { return singleCallParams }

// Forward implements Strategy.
func (c *ChainOfThought) Forward(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any) (*Prediction, error) {
	pred := &Prediction{Kind: c.kind}
	resp, err := c.single(ctx, ec, in, params, chainOfThoughtInstructions, &pred.Usage)
	if err != nil {
		return nil, err
	}
	pred.Reasoning, pred.Output = splitReasoning(resp.Content.Text())
	return pred, nil
}

// AForward implements AsyncForwarder.
func (c *ChainOfThought) AForward(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any) (<-chan *Prediction, <-chan error) {
	return Go(func() (*Prediction, error) { return c.Forward(ctx, ec, in, params) })
}

// splitReasoning separates "Reasoning:" and "Answer:" sections. Text without
// an answer marker is returned whole as the answer.
func splitReasoning(text string) (reasoning, answer string) {
	lower := strings.ToLower(text)
	idx := strings.LastIndex(lower, "answer:")
	if idx < 0 {
		return "", strings.TrimSpace(text)
	}
	answer = strings.TrimSpace(text[idx+len("answer:"):])
	reasoning = strings.TrimSpace(text[:idx])
	if r := strings.Index(strings.ToLower(reasoning), "reasoning:"); r >= 0 {
		reasoning = strings.TrimSpace(reasoning[r+len("reasoning:"):])
	}
	return reasoning, answer
}
