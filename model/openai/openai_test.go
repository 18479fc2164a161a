package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/model"
)

type bodyLog struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (l *bodyLog) add(b map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bodies = append(l.bodies, b)
}

func (l *bodyLog) all() []map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]map[string]any(nil), l.bodies...)
}

// chatServer serves /chat/completions with handler and records the decoded
// request bodies.
func chatServer(t *testing.T, handler func(w http.ResponseWriter)) (*httptest.Server, *bodyLog) {
	t.Helper()
	rec := &bodyLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rec.add(body)
		handler(w)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func userRequest(text string) model.Request {
	return model.Request{
		Instructions: "Answer briefly.",
		Contents:     []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: text}}}},
	}
}

func TestGenerateSendsInstructionsAndMapsUsage(t *testing.T) {
	srv, bodies := chatServer(t, func(w http.ResponseWriter) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "hello"},
			}},
			"usage": map[string]any{"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10},
		})
	})
	m := NewCompatibleModel(srv.URL, "test-key", func(o *Options) {
		o.Model = "gpt-4o-mini"
		o.Provider = "gateway"
	})

	respCh, errCh := m.Generate(context.Background(), userRequest("hi"))
	resp, err := model.Final(context.Background(), respCh, errCh)
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "hello", resp.Content.Text())
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, model.TokenUsage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10}, *resp.Usage)

	require.Len(t, bodies.all(), 1)
	body := bodies.all()[0]
	assert.Equal(t, "gpt-4o-mini", body["model"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, map[string]any{"role": "system", "content": "Answer briefly."}, messages[0])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	assert.Equal(t, model.Info{Name: "gpt-4o-mini", Provider: "gateway", SupportsTools: true}, m.Info())
}

func TestGenerateToolCalls(t *testing.T) {
	srv, bodies := chatServer(t, func(w http.ResponseWriter) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "chatcmpl-2",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "tool_calls",
				"message": map[string]any{
					"role":    "assistant",
					"content": "",
					"tool_calls": []any{map[string]any{
						"id":       "call_1",
						"type":     "function",
						"function": map[string]any{"name": "lookup", "arguments": `{"q":"x"}`},
					}},
				},
			}},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	})
	m := NewCompatibleModel(srv.URL, "test-key")

	req := userRequest("find x")
	req.Tools = []model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "lookup",
			Description: "looks things up",
			Parameters:  map[string]any{"type": "object"},
		},
	}}
	respCh, errCh := m.Generate(context.Background(), req)
	resp, err := model.Final(context.Background(), respCh, errCh)
	require.NoError(t, err)

	assert.Equal(t, []core.FunctionCall{{ID: "call_1", Name: "lookup", Arguments: `{"q":"x"}`}}, resp.Content.FunctionCalls())
	assert.Equal(t, "tool_calls", resp.FinishReason)

	tools := bodies.all()[0]["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "lookup", fn["name"])
	assert.Equal(t, "looks things up", fn["description"])
}

func TestGenerateStreamingIncludesUsage(t *testing.T) {
	chunks := []string{
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"role":"assistant","content":"hel"}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
	}
	srv, bodies := chatServer(t, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	m := NewCompatibleModel(srv.URL, "test-key")

	req := userRequest("hi")
	req.Stream = true
	respCh, errCh := m.Generate(context.Background(), req)

	var partials []string
	var final model.Response
	for r := range respCh {
		if r.Partial {
			partials = append(partials, r.Content.Text())
			continue
		}
		final = r
	}
	require.NoError(t, <-errCh)

	assert.Equal(t, []string{"hel", "lo"}, partials)
	assert.Equal(t, "hello", final.Content.Text())
	assert.Equal(t, "stop", final.FinishReason)
	require.NotNil(t, final.Usage)
	assert.Equal(t, 7, final.Usage.TotalTokens)

	body := bodies.all()[0]
	assert.Equal(t, true, body["stream"])
	assert.Equal(t, map[string]any{"include_usage": true}, body["stream_options"])
}

func TestGenerateAPIError(t *testing.T) {
	srv, _ := chatServer(t, func(w http.ResponseWriter) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"message": "bad model", "type": "invalid_request_error"},
		})
	})
	m := NewCompatibleModel(srv.URL, "test-key")

	respCh, errCh := m.Generate(context.Background(), userRequest("hi"))
	_, err := model.Final(context.Background(), respCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai api error")
}
