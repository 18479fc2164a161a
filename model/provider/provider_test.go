package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roma/config"
	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/model"
)

func env(vals map[string]string) func(o *Options) {
	return func(o *Options) {
		o.LookupEnv = func(k string) (string, bool) {
			v, ok := vals[k]
			return v, ok
		}
	}
}

func TestSplit(t *testing.T) {
	p, n := Split("openrouter/anthropic/claude-sonnet-4.5")
	assert.Equal(t, "openrouter", p)
	assert.Equal(t, "anthropic/claude-sonnet-4.5", n)

	p, n = Split("gpt-4o")
	assert.Equal(t, "openai", p)
	assert.Equal(t, "gpt-4o", n)
}

func TestFromConfig_Routing(t *testing.T) {
	keys := env(map[string]string{
		"OPENROUTER_API_KEY": "or",
		"FIREWORKS_API_KEY":  "fw",
		"GEMINI_API_KEY":     "gm",
		"ANTHROPIC_API_KEY":  "an",
		"OPENAI_API_KEY":     "oa",
	})

	cases := []struct {
		id       string
		provider string
		name     string
	}{
		{"openai/gpt-4o-mini", "openai", "gpt-4o-mini"},
		{"gpt-4o", "openai", "gpt-4o"},
		{"anthropic/claude-3-5-sonnet-20241022", "anthropic", "claude-3-5-sonnet-20241022"},
		{"openrouter/anthropic/claude-sonnet-4.5", "openrouter", "anthropic/claude-sonnet-4.5"},
		{"fireworks_ai/accounts/fireworks/models/gpt-oss-120b", "fireworks_ai", "accounts/fireworks/models/gpt-oss-120b"},
		{"gemini/gemini-2.5-flash", "gemini", "gemini-2.5-flash"},
		{"mock/echo", "mock", "echo"},
	}
	for _, tc := range cases {
		t.Run(tc.id, func(t *testing.T) {
			m, err := FromConfig(config.LMConfig{Model: tc.id}, keys)
			require.NoError(t, err)
			assert.Equal(t, tc.provider, m.Info().Provider)
			assert.Equal(t, tc.name, m.Info().Name)
		})
	}
}

func TestFromConfig_Errors(t *testing.T) {
	_, err := FromConfig(config.LMConfig{Model: ""})
	assert.Error(t, err)

	_, err = FromConfig(config.LMConfig{Model: "nope/x"}, env(nil))
	assert.ErrorContains(t, err, "unknown model provider")

	_, err = FromConfig(config.LMConfig{Model: "openrouter/x"}, env(nil))
	assert.ErrorContains(t, err, "OPENROUTER_API_KEY")
}

func TestFromConfig_Wrappers(t *testing.T) {
	m, err := FromConfig(config.LMConfig{Model: "mock/echo", Timeout: time.Second, Cache: true})
	require.NoError(t, err)

	cached, ok := m.(*model.CachedModel)
	require.True(t, ok)

	req := model.Request{Contents: []core.Content{core.NewTextContent("user", "hi")}}
	for i := 0; i < 2; i++ {
		respCh, errCh := m.Generate(context.Background(), req)
		resp, err := model.Final(context.Background(), respCh, errCh)
		require.NoError(t, err)
		assert.Equal(t, "Mock response to: hi", resp.Content.Text())
	}
	assert.Equal(t, 1, cached.Len())

	plain, err := FromConfig(config.LMConfig{Model: "mock/echo"})
	require.NoError(t, err)
	_, isMock := plain.(*model.MockModel)
	assert.True(t, isMock)
}
