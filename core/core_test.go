package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelLimiter(t *testing.T) {
	ml := NewModelLimiter(2)
	require.NoError(t, ml.Increment())
	require.NoError(t, ml.Increment())
	assert.Equal(t, 0, ml.Remaining())

	err := ml.Increment()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLimitExceeded))
	assert.Equal(t, 3, ml.Count())

	unlimited := NewModelLimiter(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = unlimited.Increment()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, unlimited.Count())
	assert.Equal(t, -1, unlimited.Remaining())
}

func TestContentHelpers(t *testing.T) {
	c := Content{Role: "assistant", Parts: []Part{
		TextPart{Text: "hello "},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "1", Name: "search_markets"}},
		TextPart{Text: "world"},
	}}
	assert.Equal(t, "hello world", c.Text())
	calls := c.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "search_markets", calls[0].Name)

	assert.Equal(t, "x", NewTextContent("user", "x").Text())
}

func TestToolContext(t *testing.T) {
	vals := map[string]any{"goal": "g"}
	tc := NewToolContext(nil, "fc-1", nil, vals)
	vals["goal"] = "changed"

	assert.Equal(t, context.Background(), tc.Context())
	assert.Equal(t, "fc-1", tc.FunctionCallID())
	v, ok := tc.Value("goal")
	assert.True(t, ok)
	assert.Equal(t, "g", v)
	assert.NotNil(t, tc.Logger())
	tc.LogInfo("tool.test")
}

func TestNewID(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
