package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Goal: {{.goal}} ({{default \"none\" .context}})", map[string]any{"goal": "a < b"})
	require.NoError(t, err)
	assert.Equal(t, "Goal: a < b (none)", out)

	out, err = RenderTemplate("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = RenderTemplate(`{{join ", " .tools}}`, map[string]any{"tools": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "a, b", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}

type searchArgs struct {
	Query string `json:"query" description:"search text"`
	Limit int    `json:"limit,omitempty"`
}

func TestCreateSchemaAndValidate(t *testing.T) {
	schema := CreateSchema(searchArgs{})
	assert.Equal(t, []string{"query"}, schema["required"])

	err := ValidateParameters(map[string]any{"limit": float64(3)}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "query", vErr.Field)

	assert.NoError(t, ValidateParameters(map[string]any{"query": "btc", "limit": float64(3)}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"query": "btc", "limit": 2.5}, schema))

	decoded := map[string]any{"required": []any{"query"}, "properties": map[string]any{}}
	assert.Error(t, ValidateParameters(map[string]any{}, decoded))
}
