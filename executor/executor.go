package executor

import (
	"context"
	"errors"

	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/logging"
	"github.com/hupe1980/roma/model"
	"github.com/hupe1980/roma/strategy"
	"github.com/hupe1980/roma/tool"
)

// ContextKeyLM is the CallContext key that may carry a model.Model binding.
const ContextKeyLM = "lm"

// Options holds the defaults passed to New.
type Options struct {
	// Tools are the instance default tools.
	Tools []tool.Tool
	// LM is the default model binding.
	LM model.Model
	// ContextDefaults are the default execution values.
	ContextDefaults map[string]any
	// ToolProvider supplies execution-scoped tools to AForward.
	ToolProvider ToolProvider
	// MergePolicy decides how override tools combine with defaults.
	MergePolicy tool.MergePolicy
	Logger      logging.Logger
}

// CallOptions are the per-call overrides of Forward and AForward.
type CallOptions struct {
	// Context is optional context text handed to the strategy with the goal.
	Context string
	// Tools override default tools for this call.
	Tools []tool.Tool
	// CallContext values overlay the default execution values. The "lm" key
	// may hold a model.Model.
	CallContext map[string]any
	// LM is an explicit model binding for this call.
	LM model.Model
	// CallParams are extra strategy parameters.
	CallParams map[string]any
	// Kwargs are merged over CallParams.
	Kwargs map[string]any
	// Config is forwarded as the "config" parameter.
	Config map[string]any
}

// Executor dispatches calls to a strategy. It is safe for concurrent use.
type Executor struct {
	strategy        strategy.Strategy
	tools           tool.Set
	lm              model.Model
	contextDefaults map[string]any
	toolProvider    ToolProvider
	policy          tool.MergePolicy
	logger          logging.Logger
}

// New creates an Executor for strat.
func New(strat strategy.Strategy, optFns ...func(o *Options)) *Executor {
	opts := Options{MergePolicy: tool.MergeByKey}
	for _, fn := range optFns {
		fn(&opts)
	}

	defaults := make(map[string]any, len(opts.ContextDefaults))
	for k, v := range opts.ContextDefaults {
		defaults[k] = v
	}

	return &Executor{
		strategy:        strat,
		tools:           tool.NewSet(opts.Tools...),
		lm:              opts.LM,
		contextDefaults: defaults,
		toolProvider:    opts.ToolProvider,
		policy:          opts.MergePolicy,
		logger:          logging.OrNoOp(opts.Logger),
	}
}

// Strategy returns the strategy the executor dispatches to.
func (e *Executor) Strategy() strategy.Strategy { return e.strategy }

// Forward runs the strategy's blocking entry point and returns its result
// unchanged. The merged tool set is passed as the "tools" parameter and as
// the execution context's tools. Strategy errors are returned as is.
func (e *Executor) Forward(ctx context.Context, goal string, optFns ...func(o *CallOptions)) (*strategy.Prediction, error) {
	call := e.callOptions(optFns)
	callID := core.NewID()

	tools := tool.Merge(e.tools, tool.NewSet(call.Tools...), e.policy)
	ec := e.executionContext(call, tools)
	params := e.filter(callID, strategy.EntryForward, e.strategy.Parameters(strategy.EntryForward), e.extraParams(call, map[string]any{"tools": tools}))

	e.logger.Debug("executor.forward.start", "call_id", callID, "strategy", string(e.strategy.Kind()), "tools", tools.Len())

	pred, err := e.strategy.Forward(strategy.WithExecutionContext(ctx, ec), ec, strategy.Inputs{Goal: goal, Context: call.Context}, params)
	if err != nil {
		e.logger.Debug("executor.forward.error", "call_id", callID, "error", err.Error())
		return nil, err
	}

	e.logger.Debug("executor.forward.done", "call_id", callID, "tokens", pred.Usage.TotalTokens)

	return pred, nil
}

// AForward runs the strategy without blocking. Tools resolve as per-call
// override > execution-scoped tools from the ToolProvider > defaults. The
// resolved set is passed as the "tools" parameter and bound into a
// call-local copy of strategies implementing strategy.ToolBinder.
//
// The entry point is RawCaller.Call when implemented, else
// AsyncForwarder.AForward, else Forward run in a goroutine. Parameters are
// filtered against the chosen entry point.
func (e *Executor) AForward(ctx context.Context, goal string, optFns ...func(o *CallOptions)) (<-chan *strategy.Prediction, <-chan error) {
	call := e.callOptions(optFns)
	callID := core.NewID()

	tools := tool.Merge(e.tools, e.executionTools(ctx, callID), e.policy)
	tools = tool.Merge(tools, tool.NewSet(call.Tools...), e.policy)

	strat := e.strategy
	if binder, ok := strat.(strategy.ToolBinder); ok {
		strat = binder.BindTools(tools)
	}

	ec := e.executionContext(call, tools)
	ctx = strategy.WithExecutionContext(ctx, ec)
	in := strategy.Inputs{Goal: goal, Context: call.Context}
	extra := e.extraParams(call, map[string]any{"tools": tools})

	var entry strategy.EntryPoint
	var run func(params map[string]any) (<-chan *strategy.Prediction, <-chan error)

	switch s := strat.(type) {
	case strategy.RawCaller:
		entry = strategy.EntryCall
		run = func(params map[string]any) (<-chan *strategy.Prediction, <-chan error) {
			return s.Call(ctx, ec, in, params)
		}
	case strategy.AsyncForwarder:
		entry = strategy.EntryAForward
		run = func(params map[string]any) (<-chan *strategy.Prediction, <-chan error) {
			return s.AForward(ctx, ec, in, params)
		}
	default:
		entry = strategy.EntryForward
		run = func(params map[string]any) (<-chan *strategy.Prediction, <-chan error) {
			return strategy.Go(func() (*strategy.Prediction, error) {
				return strat.Forward(ctx, ec, in, params)
			})
		}
	}

	params := e.filter(callID, entry, strat.Parameters(entry), extra)

	e.logger.Debug("executor.aforward.start", "call_id", callID, "strategy", string(strat.Kind()), "entry", entry.String(), "tools", tools.Len())

	return run(params)
}

func (e *Executor) callOptions(optFns []func(o *CallOptions)) CallOptions {
	var call CallOptions
	for _, fn := range optFns {
		fn(&call)
	}
	return call
}

// executionTools fetches the execution-scoped tools once. Provider errors
// resolve to an empty set.
func (e *Executor) executionTools(ctx context.Context, callID string) tool.Set {
	if e.toolProvider == nil {
		return tool.Set{}
	}
	set, err := e.toolProvider.ExecutionTools(ctx)
	if err != nil {
		e.logger.Warn("executor.tool_provider.error", "call_id", callID, "error", err.Error())
		return tool.Set{}
	}
	return set
}

// executionContext builds the call-local binding. The model resolves as the
// explicit CallOptions.LM, then a model.Model under CallContext["lm"], then
// the instance default.
func (e *Executor) executionContext(call CallOptions, tools tool.Set) *strategy.ExecutionContext {
	values := make(map[string]any, len(e.contextDefaults)+len(call.CallContext))
	for k, v := range e.contextDefaults {
		values[k] = v
	}
	for k, v := range call.CallContext {
		values[k] = v
	}

	lm := call.LM
	if lm == nil {
		if m, ok := values[ContextKeyLM].(model.Model); ok {
			lm = m
		}
	}
	if lm == nil {
		lm = e.lm
	}
	delete(values, ContextKeyLM)

	return &strategy.ExecutionContext{LM: lm, Tools: tools, Values: values}
}

// extraParams merges base, CallParams, Kwargs and Config; later sources win.
func (e *Executor) extraParams(call CallOptions, base map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(call.CallParams)+len(call.Kwargs)+1)
	for k, v := range base {
		out[k] = v
	}
	for k, v := range call.CallParams {
		out[k] = v
	}
	for k, v := range call.Kwargs {
		out[k] = v
	}
	if call.Config != nil {
		out["config"] = call.Config
	}
	return out
}

func (e *Executor) filter(callID string, entry strategy.EntryPoint, accepted strategy.ParamSet, extra map[string]any) map[string]any {
	kept, dropped := accepted.Filter(extra)
	if len(dropped) > 0 {
		e.logger.Debug("executor.params.dropped", "call_id", callID, "entry", entry.String(), "params", dropped)
	}
	return kept
}

// Await blocks until the channel pair of AForward yields an outcome.
func Await(ctx context.Context, predCh <-chan *strategy.Prediction, errCh <-chan error) (*strategy.Prediction, error) {
	var pred *strategy.Prediction
	for predCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case p, ok := <-predCh:
			if !ok {
				predCh = nil
				continue
			}
			pred = p
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		}
	}
	if pred == nil {
		return nil, errNoPrediction
	}
	return pred, nil
}

var errNoPrediction = errors.New("strategy returned no prediction")
