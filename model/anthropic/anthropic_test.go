package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/model"
)

type messagesServer struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []map[string]any
}

func (s *messagesServer) last() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bodies) == 0 {
		return nil
	}
	return s.bodies[len(s.bodies)-1]
}

// newMessagesServer answers /v1/messages with reply and records the decoded
// request bodies.
func newMessagesServer(t *testing.T, code int, reply map[string]any) *messagesServer {
	t.Helper()
	s := &messagesServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		s.mu.Lock()
		s.bodies = append(s.bodies, body)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestModel(srv *messagesServer) *Model {
	return NewModel(func(o *Options) {
		o.BaseURL = srv.URL
		o.APIKey = "test-key"
		o.MaxTokens = 256
	})
}

func TestGenerateSendsSystemAndMapsUsage(t *testing.T) {
	srv := newMessagesServer(t, http.StatusOK, map[string]any{
		"id":            "msg_1",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-3-5-sonnet-20241022",
		"content":       []any{map[string]any{"type": "text", "text": "hello"}},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 11, "output_tokens": 4},
	})
	m := newTestModel(srv)

	respCh, errCh := m.Generate(context.Background(), model.Request{
		Instructions: "Answer briefly.",
		Contents: []core.Content{
			{Role: "system", Parts: []core.Part{core.TextPart{Text: "Stay factual."}}},
			{Role: "user", Parts: []core.Part{core.TextPart{Text: "hi"}}},
		},
	})
	resp, err := model.Final(context.Background(), respCh, errCh)
	require.NoError(t, err)

	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, "hello", resp.Content.Text())
	assert.Equal(t, "end_turn", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, model.TokenUsage{PromptTokens: 11, CompletionTokens: 4, TotalTokens: 15}, *resp.Usage)

	body := srv.last()
	require.NotNil(t, body)
	assert.EqualValues(t, 256, body["max_tokens"])
	system := body["system"].([]any)
	require.Len(t, system, 2)
	assert.Equal(t, "Answer briefly.", system[0].(map[string]any)["text"])
	assert.Equal(t, "Stay factual.", system[1].(map[string]any)["text"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 1, "system contents travel in the system field")
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
}

func TestGenerateToolUse(t *testing.T) {
	srv := newMessagesServer(t, http.StatusOK, map[string]any{
		"id":    "msg_2",
		"type":  "message",
		"role":  "assistant",
		"model": "claude-3-5-sonnet-20241022",
		"content": []any{
			map[string]any{"type": "text", "text": "Looking it up."},
			map[string]any{"type": "tool_use", "id": "tu_1", "name": "lookup", "input": map[string]any{"q": "x"}},
		},
		"stop_reason":   "tool_use",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 3, "output_tokens": 2},
	})
	m := newTestModel(srv)

	respCh, errCh := m.Generate(context.Background(), model.Request{
		Contents: []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: "find x"}}}},
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "lookup",
				Description: "looks things up",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"q": map[string]any{"type": "string"}},
					"required":   []any{"q"},
				},
			},
		}},
	})
	resp, err := model.Final(context.Background(), respCh, errCh)
	require.NoError(t, err)

	assert.Equal(t, "Looking it up.", resp.Content.Text())
	assert.Equal(t, []core.FunctionCall{{ID: "tu_1", Name: "lookup", Arguments: `{"q":"x"}`}}, resp.Content.FunctionCalls())
	assert.Equal(t, "tool_use", resp.FinishReason)

	tools := srv.last()["tools"].([]any)
	require.Len(t, tools, 1)
	def := tools[0].(map[string]any)
	assert.Equal(t, "lookup", def["name"])
	assert.Equal(t, "looks things up", def["description"])
	assert.Equal(t, []any{"q"}, def["input_schema"].(map[string]any)["required"])
}

func TestGenerateAPIError(t *testing.T) {
	srv := newMessagesServer(t, http.StatusBadRequest, map[string]any{
		"type":  "error",
		"error": map[string]any{"type": "invalid_request_error", "message": "bad request"},
	})
	m := newTestModel(srv)

	respCh, errCh := m.Generate(context.Background(), model.Request{
		Contents: []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: "hi"}}}},
	})
	_, err := model.Final(context.Background(), respCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic api error")
	assert.Equal(t, model.Info{Name: "claude-3-5-sonnet-20241022", Provider: "anthropic", SupportsTools: true}, m.Info())
}
