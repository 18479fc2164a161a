// Package strategy defines the pluggable execution units the dispatcher runs
// a task through, and the variants shipped with the runtime:
//
//   - predict: one model call
//   - chain_of_thought: one model call with separated reasoning and answer
//   - react: native tool-calling loop
//   - code_act: model-authored code executed through a code.Executor
//
// Every variant declares, per entry point, the parameter names it accepts
// (ParamSet). Callers filter their parameters against that set instead of
// inspecting function signatures.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/roma/model"
	"github.com/hupe1980/roma/tool"
)

var (
	// ErrUnknownKind is returned for an unrecognised strategy tag.
	ErrUnknownKind = errors.New("unknown prediction strategy")
	// ErrNoModel is returned when a call resolves no model binding.
	ErrNoModel = errors.New("no language model bound")
	// ErrMaxIterations is returned when a tool loop runs out of model calls.
	ErrMaxIterations = errors.New("max iterations reached")
	// ErrNoCodeExecutor is returned when code_act is built without an executor.
	ErrNoCodeExecutor = errors.New("code executor required")
)

// Kind tags a strategy variant.
type Kind string

// Known strategy kinds.
const (
	KindPredict        Kind = "predict"
	KindChainOfThought Kind = "chain_of_thought"
	KindReAct          Kind = "react"
	KindCodeAct        Kind = "code_act"
)

// ParseKind maps a configuration tag onto a Kind. Matching ignores case,
// dashes and underscores; an empty tag selects chain_of_thought.
func ParseKind(s string) (Kind, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "predict":
		return KindPredict, nil
	case "", "chainofthought", "cot":
		return KindChainOfThought, nil
	case "react":
		return KindReAct, nil
	case "codeact":
		return KindCodeAct, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// EntryPoint names one way of invoking a strategy.
type EntryPoint int

const (
	// EntryForward is the blocking Forward method.
	EntryForward EntryPoint = iota
	// EntryAForward is AsyncForwarder.AForward.
	EntryAForward
	// EntryCall is RawCaller.Call.
	EntryCall
)

// String returns the entry point name.
func (e EntryPoint) String() string {
	switch e {
	case EntryForward:
		return "forward"
	case EntryAForward:
		return "aforward"
	case EntryCall:
		return "call"
	default:
		return "unknown"
	}
}

// ParamSet is the set of extra parameter names an entry point accepts.
type ParamSet struct {
	names map[string]struct{}
}

// NewParamSet builds a set from names.
func NewParamSet(names ...string) ParamSet {
	ps := ParamSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		ps.names[n] = struct{}{}
	}
	return ps
}

// Accepts reports whether name is in the set.
func (ps ParamSet) Accepts(name string) bool {
	_, ok := ps.names[name]
	return ok
}

// Names returns the accepted names, sorted.
func (ps ParamSet) Names() []string {
	out := make([]string, 0, len(ps.names))
	for n := range ps.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Filter returns the subset of params the set accepts, plus the sorted names
// that were dropped. params is not modified.
func (ps ParamSet) Filter(params map[string]any) (map[string]any, []string) {
	kept := make(map[string]any, len(params))
	var dropped []string
	for k, v := range params {
		if ps.Accepts(k) {
			kept[k] = v
			continue
		}
		dropped = append(dropped, k)
	}
	sort.Strings(dropped)
	return kept, dropped
}

// Inputs is the task handed to a strategy.
type Inputs struct {
	Goal    string
	Context string
}

// Step records one tool or code round of a loop strategy.
type Step struct {
	Tool        string `json:"tool,omitempty"`
	Arguments   string `json:"arguments,omitempty"`
	Code        string `json:"code,omitempty"`
	Observation string `json:"observation,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Prediction is the result of one strategy invocation.
type Prediction struct {
	Kind       Kind             `json:"kind"`
	Output     string           `json:"output"`
	Reasoning  string           `json:"reasoning,omitempty"`
	Trajectory []Step           `json:"trajectory,omitempty"`
	Usage      model.TokenUsage `json:"usage"`
}

// Strategy is the blocking contract every variant implements.
type Strategy interface {
	Kind() Kind
	// Parameters returns the extra parameter names accepted by entry.
	Parameters(entry EntryPoint) ParamSet
	Forward(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any) (*Prediction, error)
}

// AsyncForwarder is implemented by strategies with a native non-blocking
// entry point. Both channels are closed when the call ends.
type AsyncForwarder interface {
	AForward(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any) (<-chan *Prediction, <-chan error)
}

// RawCaller is implemented by strategies exposing a raw call entry point,
// preferred over AForward by the dispatcher.
type RawCaller interface {
	Call(ctx context.Context, ec *ExecutionContext, in Inputs, params map[string]any) (<-chan *Prediction, <-chan error)
}

// ToolBinder is implemented by strategies that keep an internal tool slot.
// BindTools returns a copy bound to tools; the receiver is not modified.
type ToolBinder interface {
	BindTools(tools tool.Set) Strategy
}

// ExecutionContext is the per-call binding a strategy runs under.
type ExecutionContext struct {
	LM     model.Model
	Tools  tool.Set
	Values map[string]any
}

// Clone returns a copy whose Values map is independent of ec's.
func (ec *ExecutionContext) Clone() *ExecutionContext {
	if ec == nil {
		return &ExecutionContext{Values: map[string]any{}}
	}
	values := make(map[string]any, len(ec.Values))
	for k, v := range ec.Values {
		values[k] = v
	}
	return &ExecutionContext{LM: ec.LM, Tools: ec.Tools, Values: values}
}

type ctxKey struct{}

// WithExecutionContext attaches ec to ctx.
func WithExecutionContext(ctx context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, ec)
}

// FromContext returns the execution context attached to ctx.
func FromContext(ctx context.Context) (*ExecutionContext, bool) {
	ec, ok := ctx.Value(ctxKey{}).(*ExecutionContext)
	return ec, ok && ec != nil
}

// Go runs fn in a goroutine and exposes its outcome as a channel pair.
func Go(fn func() (*Prediction, error)) (<-chan *Prediction, <-chan error) {
	out := make(chan *Prediction, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		pred, err := fn()
		if err != nil {
			errCh <- err
			return
		}
		out <- pred
	}()
	return out, errCh
}
