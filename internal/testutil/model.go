package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/model"
)

// ErrScriptExhausted is returned once a ScriptedModel has no turns left.
var ErrScriptExhausted = errors.New("scripted model: no turns left")

// Turn is one scripted model reply. Err, when set, is sent instead of a
// response.
type Turn struct {
	Content core.Content
	Usage   *model.TokenUsage
	Err     error
}

// Text returns a turn replying with plain assistant text.
func Text(text string) Turn {
	return Turn{Content: core.NewTextContent("assistant", text), Usage: &model.TokenUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}}
}

// Calls returns a turn requesting the given function calls.
func Calls(calls ...core.FunctionCall) Turn {
	parts := make([]core.Part, len(calls))
	for i, fc := range calls {
		parts[i] = core.FunctionCallPart{FunctionCall: fc}
	}
	return Turn{Content: core.Content{Role: "assistant", Parts: parts}, Usage: &model.TokenUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}}
}

// Fail returns a turn failing with err.
func Fail(err error) Turn { return Turn{Err: err} }

// ScriptedModel replays turns in order and records every request.
// It is safe for concurrent use.
type ScriptedModel struct {
	mu       sync.Mutex
	name     string
	turns    []Turn
	requests []model.Request
}

// NewScriptedModel builds a model replaying turns.
func NewScriptedModel(name string, turns ...Turn) *ScriptedModel {
	return &ScriptedModel{name: name, turns: turns}
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(_ context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		turn Turn
		ok   bool
	)
	if len(m.turns) > 0 {
		turn, ok = m.turns[0], true
		m.turns = m.turns[1:]
	}
	m.mu.Unlock()

	switch {
	case !ok:
		errCh <- ErrScriptExhausted
	case turn.Err != nil:
		errCh <- turn.Err
	default:
		respCh <- model.Response{ID: core.NewID(), Content: turn.Content, FinishReason: "stop", Usage: turn.Usage}
	}
	close(respCh)
	close(errCh)
	return respCh, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "scripted", SupportsTools: true}
}

// Requests returns a copy of the requests received so far.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// CallCount returns how many times Generate ran.
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
