package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/internal/testutil"
	"github.com/hupe1980/roma/model"
	"github.com/hupe1980/roma/strategy"
	"github.com/hupe1980/roma/tool"
)

func namedTool(name, desc string) tool.Tool {
	return tool.NewFunctionTool(name, desc, nil, func(*core.ToolContext, map[string]any) (any, error) {
		return desc, nil
	})
}

type seen struct {
	entry  strategy.EntryPoint
	ec     *strategy.ExecutionContext
	params map[string]any
	in     strategy.Inputs
	bound  tool.Set
}

// callLog is shared by a strategy and its bound copies.
type callLog struct {
	mu    sync.Mutex
	calls []seen
}

func (l *callLog) last() seen {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[len(l.calls)-1]
}

func (l *callLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

// recordingStrategy records what it is invoked with. It only has Forward.
type recordingStrategy struct {
	*callLog
	accepts map[strategy.EntryPoint]strategy.ParamSet
	bound   tool.Set
	err     error
}

func newRecording(accepts strategy.ParamSet) *recordingStrategy {
	return &recordingStrategy{
		callLog: &callLog{},
		accepts: map[strategy.EntryPoint]strategy.ParamSet{
			strategy.EntryForward:  accepts,
			strategy.EntryAForward: accepts,
			strategy.EntryCall:     accepts,
		},
	}
}

func (r *recordingStrategy) Kind() strategy.Kind { return "recording" }

func (r *recordingStrategy) Parameters(entry strategy.EntryPoint) strategy.ParamSet {
	return r.accepts[entry]
}

func (r *recordingStrategy) record(entry strategy.EntryPoint, ec *strategy.ExecutionContext, in strategy.Inputs, params map[string]any) (*strategy.Prediction, error) {
	r.mu.Lock()
	r.calls = append(r.calls, seen{entry: entry, ec: ec, params: params, in: in, bound: r.bound})
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &strategy.Prediction{Kind: r.Kind(), Output: in.Goal, Usage: model.TokenUsage{TotalTokens: 7}}, nil
}

func (r *recordingStrategy) Forward(_ context.Context, ec *strategy.ExecutionContext, in strategy.Inputs, params map[string]any) (*strategy.Prediction, error) {
	return r.record(strategy.EntryForward, ec, in, params)
}

func (r *recordingStrategy) bind(tools tool.Set) *recordingStrategy {
	cp := *r
	cp.bound = tools
	return &cp
}

// asyncStrategy adds AForward and tool binding.
type asyncStrategy struct{ *recordingStrategy }

func (a asyncStrategy) AForward(_ context.Context, ec *strategy.ExecutionContext, in strategy.Inputs, params map[string]any) (<-chan *strategy.Prediction, <-chan error) {
	return strategy.Go(func() (*strategy.Prediction, error) {
		return a.record(strategy.EntryAForward, ec, in, params)
	})
}

func (a asyncStrategy) BindTools(tools tool.Set) strategy.Strategy {
	return asyncStrategy{a.bind(tools)}
}

// rawStrategy adds Call on top of asyncStrategy.
type rawStrategy struct{ asyncStrategy }

func (r rawStrategy) Call(_ context.Context, ec *strategy.ExecutionContext, in strategy.Inputs, params map[string]any) (<-chan *strategy.Prediction, <-chan error) {
	return strategy.Go(func() (*strategy.Prediction, error) {
		return r.record(strategy.EntryCall, ec, in, params)
	})
}

func (r rawStrategy) BindTools(tools tool.Set) strategy.Strategy {
	return rawStrategy{asyncStrategy{r.bind(tools)}}
}

func await(t *testing.T, ctx context.Context, predCh <-chan *strategy.Prediction, errCh <-chan error) (*strategy.Prediction, error) {
	t.Helper()
	return Await(ctx, predCh, errCh)
}

func TestForwardFiltersParameters(t *testing.T) {
	strat := newRecording(strategy.NewParamSet("a", "b"))
	exec := New(strat)

	_, err := exec.Forward(context.Background(), "goal", func(o *CallOptions) {
		o.CallParams = map[string]any{"a": 1, "b": 2, "c": 3}
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, strat.last().params)
}

func TestForwardKwargsOverrideCallParams(t *testing.T) {
	strat := newRecording(strategy.NewParamSet("a", "config"))
	exec := New(strat)

	_, err := exec.Forward(context.Background(), "goal", func(o *CallOptions) {
		o.CallParams = map[string]any{"a": 1}
		o.Kwargs = map[string]any{"a": 2}
		o.Config = map[string]any{"k": "v"}
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 2, "config": map[string]any{"k": "v"}}, strat.last().params)
}

func TestForwardMergesToolsByKey(t *testing.T) {
	strat := newRecording(strategy.NewParamSet())
	exec := New(strat, func(o *Options) {
		o.Tools = []tool.Tool{namedTool("t2", "default"), namedTool("t3", "default")}
	})

	_, err := exec.Forward(context.Background(), "goal", func(o *CallOptions) {
		o.Tools = []tool.Tool{namedTool("t2", "override")}
	})
	require.NoError(t, err)

	tools := strat.last().ec.Tools
	assert.Equal(t, []string{"t2", "t3"}, tools.Names())
	t2, _ := tools.Get("t2")
	assert.Equal(t, "override", t2.Description())
}

func TestForwardMergeReplaceAll(t *testing.T) {
	strat := newRecording(strategy.NewParamSet())
	exec := New(strat, func(o *Options) {
		o.Tools = []tool.Tool{namedTool("t2", "default"), namedTool("t3", "default")}
		o.MergePolicy = tool.MergeReplaceAll
	})

	_, err := exec.Forward(context.Background(), "goal", func(o *CallOptions) {
		o.Tools = []tool.Tool{namedTool("t1", "override")}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, strat.last().ec.Tools.Names())

	_, err = exec.Forward(context.Background(), "goal")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t3"}, strat.last().ec.Tools.Names())
}

func TestForwardReplaceAllWithReAct(t *testing.T) {
	defaults := []tool.Tool{namedTool("t2", "default"), namedTool("t3", "default")}
	strat, err := strategy.New(strategy.KindReAct, func(o *strategy.Options) { o.Tools = defaults })
	require.NoError(t, err)

	lm := testutil.NewScriptedModel("m", testutil.Text("done"), testutil.Text("done"))
	exec := New(strat, func(o *Options) {
		o.Tools = defaults
		o.LM = lm
		o.MergePolicy = tool.MergeReplaceAll
	})
	override := func(o *CallOptions) { o.Tools = []tool.Tool{namedTool("t1", "override")} }

	pred, err := exec.Forward(context.Background(), "goal", override)
	require.NoError(t, err)
	assert.Equal(t, "done", pred.Output)

	predCh, errCh := exec.AForward(context.Background(), "goal", override)
	_, err = await(t, context.Background(), predCh, errCh)
	require.NoError(t, err)

	reqs := lm.Requests()
	require.Len(t, reqs, 2)
	for _, req := range reqs {
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "t1", req.Tools[0].Function.Name)
	}
}

func TestForwardResolvesModel(t *testing.T) {
	def := model.NewMockModel("default", "mock")
	fromCtx := model.NewMockModel("ctx", "mock")
	explicit := model.NewMockModel("explicit", "mock")

	strat := newRecording(strategy.NewParamSet())
	exec := New(strat, func(o *Options) {
		o.LM = def
		o.ContextDefaults = map[string]any{"region": "eu"}
	})

	_, err := exec.Forward(context.Background(), "goal")
	require.NoError(t, err)
	assert.Same(t, def, strat.last().ec.LM)
	assert.Equal(t, "eu", strat.last().ec.Values["region"])

	_, err = exec.Forward(context.Background(), "goal", func(o *CallOptions) {
		o.CallContext = map[string]any{"lm": fromCtx, "region": "us"}
	})
	require.NoError(t, err)
	assert.Same(t, fromCtx, strat.last().ec.LM)
	assert.Equal(t, "us", strat.last().ec.Values["region"])
	assert.NotContains(t, strat.last().ec.Values, "lm")

	_, err = exec.Forward(context.Background(), "goal", func(o *CallOptions) {
		o.CallContext = map[string]any{"lm": fromCtx}
		o.LM = explicit
	})
	require.NoError(t, err)
	assert.Same(t, explicit, strat.last().ec.LM)

	// defaults stay untouched by call overlays
	assert.Equal(t, map[string]any{"region": "eu"}, exec.contextDefaults)
}

func TestForwardReturnsResultAndErrorsUnchanged(t *testing.T) {
	strat := newRecording(strategy.NewParamSet())
	exec := New(strat)

	pred, err := exec.Forward(context.Background(), "goal", func(o *CallOptions) { o.Context = "ctx" })
	require.NoError(t, err)
	assert.Equal(t, "goal", pred.Output)
	assert.Equal(t, 7, pred.Usage.TotalTokens)
	assert.Equal(t, "ctx", strat.last().in.Context)

	boom := fmt.Errorf("backend unreachable")
	strat.err = boom
	_, err = exec.Forward(context.Background(), "goal")
	assert.Same(t, boom, err)
}

func TestForwardConcurrentCallsDoNotLeak(t *testing.T) {
	strat := newRecording(strategy.NewParamSet("n"))
	exec := New(strat, func(o *Options) { o.ContextDefaults = map[string]any{"shared": true} })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := exec.Forward(context.Background(), fmt.Sprint(i), func(o *CallOptions) {
				o.CallContext = map[string]any{"n": i}
				o.CallParams = map[string]any{"n": i}
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 50, strat.len())
	strat.mu.Lock()
	defer strat.mu.Unlock()
	for _, c := range strat.calls {
		assert.Equal(t, c.in.Goal, fmt.Sprint(c.ec.Values["n"]))
		assert.Equal(t, c.ec.Values["n"], c.params["n"])
	}
}

func TestAForwardEntryPreference(t *testing.T) {
	cases := []struct {
		name  string
		strat func(*recordingStrategy) strategy.Strategy
		want  strategy.EntryPoint
	}{
		{"raw call", func(r *recordingStrategy) strategy.Strategy { return rawStrategy{asyncStrategy{r}} }, strategy.EntryCall},
		{"aforward", func(r *recordingStrategy) strategy.Strategy { return asyncStrategy{r} }, strategy.EntryAForward},
		{"forward", func(r *recordingStrategy) strategy.Strategy { return r }, strategy.EntryForward},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := newRecording(strategy.NewParamSet("a"))
			exec := New(tc.strat(rec))

			predCh, errCh := exec.AForward(context.Background(), "goal", func(o *CallOptions) {
				o.CallParams = map[string]any{"a": 1, "b": 2}
			})
			pred, err := await(t, context.Background(), predCh, errCh)
			require.NoError(t, err)
			assert.Equal(t, "goal", pred.Output)

			require.Equal(t, 1, rec.len())
			last := rec.last()
			assert.Equal(t, tc.want, last.entry)
			assert.Equal(t, map[string]any{"a": 1}, last.params)
		})
	}
}

func TestAForwardFiltersWithEntryParameters(t *testing.T) {
	rec := newRecording(strategy.NewParamSet("tools"))
	rec.accepts[strategy.EntryAForward] = strategy.NewParamSet("max_iters")
	exec := New(asyncStrategy{rec})

	predCh, errCh := exec.AForward(context.Background(), "goal", func(o *CallOptions) {
		o.CallParams = map[string]any{"max_iters": 3, "tools": "ignored"}
	})
	_, err := await(t, context.Background(), predCh, errCh)
	require.NoError(t, err)

	last := rec.last()
	assert.Equal(t, strategy.EntryAForward, last.entry)
	assert.Equal(t, map[string]any{"max_iters": 3}, last.params)
}

func TestAForwardToolPrecedence(t *testing.T) {
	rec := newRecording(strategy.NewParamSet("tools"))
	exec := New(asyncStrategy{rec}, func(o *Options) {
		o.Tools = []tool.Tool{namedTool("a", "default"), namedTool("b", "default"), namedTool("c", "default")}
		o.ToolProvider = ContextToolProvider{}
	})

	ctx := WithExecutionTools(context.Background(), namedTool("b", "scoped"), namedTool("c", "scoped"), namedTool("d", "scoped"))
	predCh, errCh := exec.AForward(ctx, "goal", func(o *CallOptions) {
		o.Tools = []tool.Tool{namedTool("c", "override")}
	})
	_, err := await(t, ctx, predCh, errCh)
	require.NoError(t, err)

	last := rec.last()
	params, ok := last.params["tools"].(tool.Set)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c", "d"}, params.Names())
	assert.Equal(t, params.Names(), last.bound.Names())

	want := map[string]string{"a": "default", "b": "scoped", "c": "override", "d": "scoped"}
	for name, desc := range want {
		got, _ := last.bound.Get(name)
		assert.Equal(t, desc, got.Description(), name)
	}

	// the original strategy slot stays untouched
	assert.Equal(t, 0, rec.bound.Len())
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) ExecutionTools(ctx context.Context) (tool.Set, error) {
	args := m.Called(ctx)
	return args.Get(0).(tool.Set), args.Error(1)
}

func TestAForwardProviderQueriedOncePerCall(t *testing.T) {
	provider := &mockProvider{}
	provider.On("ExecutionTools", mock.Anything).Return(tool.NewSet(namedTool("scoped", "scoped")), nil).Times(3)

	rec := newRecording(strategy.NewParamSet())
	exec := New(rec, func(o *Options) { o.ToolProvider = provider })

	for i := 0; i < 3; i++ {
		predCh, errCh := exec.AForward(context.Background(), "goal")
		_, err := await(t, context.Background(), predCh, errCh)
		require.NoError(t, err)
	}

	_, err := exec.Forward(context.Background(), "goal")
	require.NoError(t, err)

	// the blocking path does not consult the provider
	provider.AssertNumberOfCalls(t, "ExecutionTools", 3)
	provider.AssertExpectations(t)
}

func TestAForwardReplaceAllPolicy(t *testing.T) {
	rec := newRecording(strategy.NewParamSet("tools"))
	exec := New(rec, func(o *Options) {
		o.Tools = []tool.Tool{namedTool("a", "default")}
		o.MergePolicy = tool.MergeReplaceAll
		o.ToolProvider = ContextToolProvider{}
	})

	ctx := WithExecutionTools(context.Background(), namedTool("b", "scoped"))
	predCh, errCh := exec.AForward(ctx, "goal")
	_, err := await(t, ctx, predCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, rec.last().params["tools"].(tool.Set).Names())

	predCh, errCh = exec.AForward(ctx, "goal", func(o *CallOptions) {
		o.Tools = []tool.Tool{namedTool("c", "override")}
	})
	_, err = await(t, ctx, predCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, rec.last().ec.Tools.Names())
}

func TestAForwardProviderErrorIsEmpty(t *testing.T) {
	rec := newRecording(strategy.NewParamSet("tools"))
	exec := New(rec, func(o *Options) {
		o.Tools = []tool.Tool{namedTool("a", "default")}
		o.ToolProvider = ToolProviderFunc(func(context.Context) (tool.Set, error) {
			return tool.Set{}, errors.New("provider down")
		})
	})

	predCh, errCh := exec.AForward(context.Background(), "goal")
	_, err := await(t, context.Background(), predCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rec.last().ec.Tools.Names())
}

func TestAForwardPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	rec := newRecording(strategy.NewParamSet())
	rec.err = boom
	exec := New(asyncStrategy{rec})

	predCh, errCh := exec.AForward(context.Background(), "goal")
	_, err := await(t, context.Background(), predCh, errCh)
	assert.Same(t, boom, err)
}

func TestAForwardWithReAct(t *testing.T) {
	strat, err := strategy.New(strategy.KindReAct)
	require.NoError(t, err)

	lm := testutil.NewScriptedModel("m",
		testutil.Calls(core.FunctionCall{Name: "scoped"}),
		testutil.Text("done"),
	)
	exec := New(strat, func(o *Options) {
		o.LM = lm
		o.ToolProvider = ContextToolProvider{}
	})

	ctx := WithExecutionTools(context.Background(), namedTool("scoped", "scoped result"))
	predCh, errCh := exec.AForward(ctx, "goal")
	pred, err := await(t, ctx, predCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, "done", pred.Output)
	require.Len(t, pred.Trajectory, 1)
	assert.Empty(t, pred.Trajectory[0].Error)
	assert.Contains(t, pred.Trajectory[0].Observation, "scoped result")
}

func TestAwaitContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Await(ctx, make(chan *strategy.Prediction), make(chan error))
	assert.ErrorIs(t, err, context.Canceled)
}
