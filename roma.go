// Package roma wires a configuration tree into a runnable executor. Most
// applications:
//  1. Load a config.Tree (config.Load) and optionally an overlay
//  2. Build a Runtime via New, which binds the executor slot's model,
//     prediction strategy and toolkits
//  3. Run goals blocking (Execute) or non-blocking (ExecuteAsync)
//
// Toolkit classes resolve through a toolkit.Registry; the default registry
// knows PolymarketToolkit.
package roma

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/hupe1980/roma/code"
	"github.com/hupe1980/roma/config"
	"github.com/hupe1980/roma/executor"
	"github.com/hupe1980/roma/logging"
	"github.com/hupe1980/roma/model"
	"github.com/hupe1980/roma/model/provider"
	"github.com/hupe1980/roma/strategy"
	"github.com/hupe1980/roma/tool"
	"github.com/hupe1980/roma/toolkit"
	"github.com/hupe1980/roma/toolkit/polymarket"
)

// ErrNoAgent is returned when the requested role has no agent slot.
var ErrNoAgent = errors.New("agent slot not configured")

// Options configures a Runtime.
type Options struct {
	// Role selects the agent slot to run (default executor).
	Role string
	// Overlay, when set, is patched onto the tree before anything is built.
	Overlay *config.Overlay
	// Registry resolves toolkit classes (defaults to DefaultRegistry()).
	Registry *toolkit.Registry
	// Tools are added to the toolkit tools as instance defaults.
	Tools []tool.Tool
	// ToolProvider supplies execution-scoped tools to ExecuteAsync.
	ToolProvider executor.ToolProvider
	// MergePolicy decides how per-call tools combine with defaults.
	MergePolicy tool.MergePolicy
	// CodeExecutor is required by the code_act strategy.
	CodeExecutor code.Executor
	// LM replaces the model built from the slot's LMConfig.
	LM model.Model
	// ProviderOptions tune model construction.
	ProviderOptions []func(o *provider.Options)
	// Logger (defaults to the tree's runtime logging settings).
	Logger logging.Logger
}

// DefaultRegistry returns a registry with the built-in toolkit classes.
func DefaultRegistry() *toolkit.Registry {
	r := toolkit.NewRegistry()
	r.Register(polymarket.Class, polymarket.Factory)
	return r
}

// Runtime is a configured executor plus the toolkits it owns.
type Runtime struct {
	tree     *config.Tree
	role     string
	exec     *executor.Executor
	toolkits []toolkit.Toolkit
	params   map[string]any
	logger   logging.Logger
}

// New builds a Runtime from tree. tree is not modified.
func New(tree *config.Tree, optFns ...func(o *Options)) (*Runtime, error) {
	opts := Options{Role: config.RoleExecutor, MergePolicy: tool.MergeByKey}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Overlay != nil {
		tree = config.Patch(*opts.Overlay, tree)
	} else {
		tree = tree.Clone()
	}
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := opts.Logger
	if logger == nil && tree.Runtime.EnableLogging {
		logger = logging.NewSlogLogger(logging.ParseLevel(tree.Runtime.LogLevel), "json", false).WithComponent("roma")
	}
	logger = logging.OrNoOp(logger)

	slot := tree.Agents.Slot(opts.Role)
	if slot == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoAgent, opts.Role)
	}

	lm := opts.LM
	if lm == nil {
		m, err := provider.FromConfig(slot.LLM, opts.ProviderOptions...)
		if err != nil {
			return nil, fmt.Errorf("build %s model: %w", opts.Role, err)
		}
		lm = m
	}

	kind, err := strategy.ParseKind(slot.PredictionStrategy)
	if err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}

	rt := &Runtime{tree: tree, role: opts.Role, params: slot.StrategyParams, logger: logger}

	tools := append([]tool.Tool(nil), opts.Tools...)
	for _, tc := range slot.Toolkits {
		if !tc.Enabled {
			logger.Debug("roma.toolkit.skipped", "class", tc.Class)
			continue
		}
		kit, err := registry.Build(tc, logger)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("build toolkit %q: %w", tc.Class, err)
		}
		rt.toolkits = append(rt.toolkits, kit)
		tools = append(tools, kit.Tools()...)
		logger.Info("roma.toolkit.ready", "class", tc.Class, "name", kit.Name())
	}

	strat, err := strategy.New(kind, func(o *strategy.Options) {
		o.Instructions = slot.SignatureInstructions
		o.Tools = tools
		o.CodeExecutor = opts.CodeExecutor
		o.Logger = logger
		if v, ok := slot.StrategyParams["max_iters"]; ok {
			o.MaxIters = cast.ToInt(v)
		}
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.exec = executor.New(strat, func(o *executor.Options) {
		o.Tools = tools
		o.LM = lm
		o.ToolProvider = opts.ToolProvider
		o.MergePolicy = opts.MergePolicy
		o.Logger = logger
		if tree.Project != "" {
			o.ContextDefaults = map[string]any{"project": tree.Project}
		}
	})

	logger.Info("roma.runtime.ready", "role", opts.Role, "strategy", string(kind), "model", lm.Info().Name, "toolkits", len(rt.toolkits))
	return rt, nil
}

// Config returns a copy of the effective configuration tree.
func (r *Runtime) Config() *config.Tree { return r.tree.Clone() }

// Role returns the agent slot the runtime runs.
func (r *Runtime) Role() string { return r.role }

// Executor returns the underlying dispatcher.
func (r *Runtime) Executor() *executor.Executor { return r.exec }

// Execute runs goal through the blocking path. The runtime timeout, when
// configured, bounds the call.
func (r *Runtime) Execute(ctx context.Context, goal string, optFns ...func(o *executor.CallOptions)) (*strategy.Prediction, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.exec.Forward(ctx, goal, r.callOptions(optFns)...)
}

// ExecuteAsync runs goal through the non-blocking path. Both channels are
// closed when the call ends.
func (r *Runtime) ExecuteAsync(ctx context.Context, goal string, optFns ...func(o *executor.CallOptions)) (<-chan *strategy.Prediction, <-chan error) {
	ctx, cancel := r.withTimeout(ctx)
	predCh, errCh := r.exec.AForward(ctx, goal, r.callOptions(optFns)...)

	out := make(chan *strategy.Prediction, 1)
	outErr := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(outErr)
		defer cancel()
		pred, err := executor.Await(ctx, predCh, errCh)
		if err != nil {
			outErr <- err
			return
		}
		out <- pred
	}()
	return out, outErr
}

// ExecuteSync drives ExecuteAsync to completion.
func (r *Runtime) ExecuteSync(ctx context.Context, goal string, optFns ...func(o *executor.CallOptions)) (*strategy.Prediction, error) {
	predCh, errCh := r.ExecuteAsync(ctx, goal, optFns...)
	return executor.Await(ctx, predCh, errCh)
}

// Close releases every toolkit the runtime built.
func (r *Runtime) Close() error {
	var errs []error
	for _, kit := range r.toolkits {
		if err := kit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", kit.Name(), err))
		}
	}
	r.logger.Debug("roma.runtime.closed", "toolkits", len(r.toolkits), "errors", len(errs))
	return errors.Join(errs...)
}

func (r *Runtime) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.tree.Runtime.Timeout > 0 {
		return context.WithTimeout(ctx, r.tree.Runtime.Timeout)
	}
	return context.WithCancel(ctx)
}

// callOptions layers the slot's strategy params under the caller's
// CallParams.
func (r *Runtime) callOptions(optFns []func(o *executor.CallOptions)) []func(o *executor.CallOptions) {
	if len(r.params) == 0 {
		return optFns
	}
	out := append([]func(o *executor.CallOptions){}, optFns...)
	return append(out, func(o *executor.CallOptions) {
		merged := make(map[string]any, len(r.params)+len(o.CallParams))
		for k, v := range r.params {
			merged[k] = v
		}
		for k, v := range o.CallParams {
			merged[k] = v
		}
		o.CallParams = merged
	})
}
