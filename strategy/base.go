package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/hupe1980/roma/code"
	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/internal/util"
	"github.com/hupe1980/roma/logging"
	"github.com/hupe1980/roma/model"
	"github.com/hupe1980/roma/tool"
)

// Options configure a strategy built by New.
type Options struct {
	// Instructions is a text/template rendered with goal, context, config
	// and the execution values. Empty selects the variant's default.
	Instructions string
	// Tools populate the internal tool slot of loop strategies.
	Tools []tool.Tool
	// MaxIters bounds model calls of loop strategies (default 10).
	MaxIters int
	// MaxParallelTools bounds concurrent tool calls within one model turn
	// (default 4).
	MaxParallelTools int
	// CodeExecutor runs snippets for code_act.
	CodeExecutor code.Executor
	Logger       logging.Logger
}

func defaultOptions() Options {
	return Options{MaxIters: 10, MaxParallelTools: 4}
}

// New builds the strategy tagged kind.
func New(kind Kind, optFns ...func(o *Options)) (Strategy, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.MaxIters <= 0 {
		opts.MaxIters = 10
	}
	if opts.MaxParallelTools <= 0 {
		opts.MaxParallelTools = 4
	}

	b := base{kind: kind, opts: opts, tools: tool.NewSet(opts.Tools...)}
	switch kind {
	case KindPredict:
		return &Predict{base: b}, nil
	case KindChainOfThought:
		return &ChainOfThought{base: b}, nil
	case KindReAct:
		return &ReAct{base: b}, nil
	case KindCodeAct:
		if opts.CodeExecutor == nil {
			return nil, ErrNoCodeExecutor
		}
		return &CodeAct{base: b}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// base carries what every variant shares.
type base struct {
	kind  Kind
	opts  Options
	tools tool.Set // internal slot
}

// Kind returns the variant tag.
func (b *base) Kind() Kind { return b.kind }

// BoundTools returns the internal tool slot.
func (b *base) BoundTools() tool.Set { return b.tools }

func (b *base) lm(ec *ExecutionContext) (model.Model, error) {
	if ec == nil || ec.LM == nil {
		return nil, ErrNoModel
	}
	return ec.LM, nil
}

// instructions renders the system prompt for one call. A per-call
// "instructions" parameter replaces the configured template.
func (b *base) instructions(ec *ExecutionContext, in Inputs, params map[string]any, fallback string) (string, error) {
	text := b.opts.Instructions
	if v, ok := params["instructions"]; ok {
		text = cast.ToString(v)
	}
	if strings.TrimSpace(text) == "" {
		text = fallback
	}

	state := map[string]any{}
	if ec != nil {
		for k, v := range ec.Values {
			state[k] = v
		}
	}
	state["goal"] = in.Goal
	state["context"] = in.Context
	if cfg, ok := params["config"]; ok {
		state["config"] = cfg
	}
	return util.RenderTemplate(text, state)
}

func userTurn(in Inputs) core.Content {
	var sb strings.Builder
	sb.WriteString("Goal: ")
	sb.WriteString(in.Goal)
	if in.Context != "" {
		sb.WriteString("\n\nContext:\n")
		sb.WriteString(in.Context)
	}
	return core.NewTextContent("user", sb.String())
}

// generate performs one model call and returns its final response. Model
// errors are returned unchanged.
func (b *base) generate(ctx context.Context, lm model.Model, req model.Request, usage *model.TokenUsage) (model.Response, error) {
	start := time.Now()
	respCh, errCh := lm.Generate(ctx, req)
	resp, err := model.Final(ctx, respCh, errCh)
	if err != nil {
		b.opts.Logger.Warn("strategy.llm.error", "strategy", string(b.kind), "model", lm.Info().Name, "error", err.Error())
		return model.Response{}, err
	}
	usage.Add(resp.Usage)
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	b.opts.Logger.Debug("strategy.llm.completed", "strategy", string(b.kind), "model", lm.Info().Name, "tokens", tokens, "duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// resolveTools returns the tool set named by a "tools" parameter, or
// fallback when the parameter is absent or of an unsupported type.
func resolveTools(params map[string]any, fallback tool.Set) tool.Set {
	switch v := params["tools"].(type) {
	case tool.Set:
		return v
	case []tool.Tool:
		return tool.NewSet(v...)
	default:
		return fallback
	}
}

// callTools resolves the tools of a blocking call: the "tools" parameter,
// else the execution context's tools when non-empty, else the internal slot.
// The execution context's set is already merged by the caller and is used
// as is.
func (b *base) callTools(ec *ExecutionContext, params map[string]any) tool.Set {
	fallback := b.tools
	if ec != nil && ec.Tools.Len() > 0 {
		fallback = ec.Tools
	}
	return resolveTools(params, fallback)
}

// maxIters reads a "max_iters" parameter, falling back to the configured
// bound.
func (b *base) maxIters(params map[string]any) int {
	if v, ok := params["max_iters"]; ok {
		if n, err := cast.ToIntE(v); err == nil && n > 0 {
			return n
		}
	}
	return b.opts.MaxIters
}
