package config

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseTree() *Tree {
	return &Tree{
		Project: "markets",
		Agents: AgentsConfig{
			Atomizer: &AgentConfig{
				LLM:                   LMConfig{Model: "openai/gpt-4o-mini", Temperature: 0.1, MaxTokens: 1000, Timeout: time.Minute, Adapter: "json"},
				SignatureInstructions: "old atomizer",
			},
			Planner: &AgentConfig{
				LLM: LMConfig{Model: "openai/gpt-4o-mini"},
			},
			Executor: &AgentConfig{
				LLM:                   LMConfig{Model: "openai/gpt-4o", BaseURL: "http://proxy"},
				PredictionStrategy:    "react",
				SignatureInstructions: "executor instructions",
				Toolkits: []ToolkitConfig{{
					Class:        "polymarket",
					Enabled:      true,
					IncludeTools: []string{"search_markets"},
					Config:       map[string]any{"cache_ttl": 300, "nested": map[string]any{"a": []any{1, 2}}},
				}},
				StrategyParams: map[string]any{"max_iters": 5},
			},
			Aggregator: &AgentConfig{LLM: LMConfig{Model: "openai/gpt-4o-mini"}},
		},
		Runtime: RuntimeConfig{MaxDepth: 3, EnableLogging: false, LogLevel: "debug"},
	}
}

func TestPatch_AppliesRoleSettings(t *testing.T) {
	ov := DefaultOverlay()
	ov.Atomizer.Model = "X"
	ov.MaxDepth = 7

	base := baseTree()
	out := Patch(ov, base)

	assert.Equal(t, "X", out.Agents.Atomizer.LLM.Model)
	assert.Equal(t, "openai/gpt-4o-mini", base.Agents.Atomizer.LLM.Model)
	assert.Equal(t, 7, out.Runtime.MaxDepth)
	assert.True(t, out.Runtime.EnableLogging)

	assert.Equal(t, 0.6, out.Agents.Atomizer.LLM.Temperature)
	assert.Equal(t, 120000, out.Agents.Atomizer.LLM.MaxTokens)
	assert.Equal(t, 120*time.Second, out.Agents.Atomizer.LLM.Timeout)
	assert.Equal(t, "json", out.Agents.Atomizer.LLM.Adapter, "adapter belongs to the slot")

	assert.Equal(t, AtomizerPrompt, out.Agents.Atomizer.SignatureInstructions)
	assert.Equal(t, PlannerPrompt, out.Agents.Planner.SignatureInstructions)
	assert.Equal(t, AggregatorPrompt, out.Agents.Aggregator.SignatureInstructions)
	assert.Equal(t, "executor instructions", out.Agents.Executor.SignatureInstructions)
	assert.Equal(t, ov.Executor.Model, out.Agents.Executor.LLM.Model)
	assert.Equal(t, "http://proxy", out.Agents.Executor.LLM.BaseURL)
	assert.Equal(t, "debug", out.Runtime.LogLevel)
}

func TestPatch_DoesNotMutateOrAliasBase(t *testing.T) {
	base := baseTree()
	snapshot := baseTree()

	out := Patch(DefaultOverlay(), base)
	assert.Equal(t, snapshot, base)

	assert.NotSame(t, base.Agents.Atomizer, out.Agents.Atomizer)
	assert.NotSame(t, base.Agents.Executor, out.Agents.Executor)

	out.Agents.Executor.Toolkits[0].IncludeTools[0] = "mutated"
	out.Agents.Executor.Toolkits[0].Config["cache_ttl"] = 1
	out.Agents.Executor.Toolkits[0].Config["nested"].(map[string]any)["a"].([]any)[0] = 99
	out.Agents.Executor.StrategyParams["max_iters"] = 1

	assert.Equal(t, snapshot, base)
}

func TestPatch_Idempotent(t *testing.T) {
	ov := DefaultOverlay()
	once := Patch(ov, baseTree())
	twice := Patch(ov, once)
	assert.Equal(t, once, twice)
}

func TestPatch_MissingPlannerSlot(t *testing.T) {
	base := baseTree()
	base.Agents.Planner = nil

	ov := DefaultOverlay()
	ov.MaxDepth = 2
	out := Patch(ov, base)

	assert.Nil(t, out.Agents.Planner)
	assert.Equal(t, ov.Atomizer.Model, out.Agents.Atomizer.LLM.Model)
	assert.Equal(t, ov.Aggregator.Model, out.Agents.Aggregator.LLM.Model)
	assert.Equal(t, 2, out.Runtime.MaxDepth)
}

func TestPatch_NilBase(t *testing.T) {
	out := Patch(DefaultOverlay(), nil)
	require.NotNil(t, out)
	assert.Nil(t, out.Agents.Atomizer)
	assert.Equal(t, 1, out.Runtime.MaxDepth)
}

func TestPatch_Deterministic(t *testing.T) {
	ov := DefaultOverlay()
	base := baseTree()

	var wg sync.WaitGroup
	results := make([]*Tree, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Patch(ov, base)
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
}

func TestDefaultOverlay(t *testing.T) {
	ov := DefaultOverlay()
	assert.Equal(t, "gemini/gemini-2.5-flash", ov.Atomizer.Model)
	assert.Equal(t, "fireworks_ai/accounts/fireworks/models/gpt-oss-120b", ov.Executor.Model)
	assert.Equal(t, 1.0, ov.Judge.Temperature)
	assert.Equal(t, 64000, ov.Reflection.MaxTokens)
	assert.Equal(t, 32, ov.TrainSize)
	assert.Equal(t, 1, ov.MaxDepth)
	assert.True(t, ov.EnableLogging)
}

func TestTreeValidate(t *testing.T) {
	assert.NoError(t, baseTree().Validate())

	bad := baseTree()
	bad.Runtime.MaxDepth = -1
	bad.Agents.Planner.LLM.Model = ""
	bad.Agents.Executor.LLM.Timeout = -time.Second

	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime.max_depth")
	assert.Contains(t, err.Error(), "agents.planner.llm.model")
	assert.Contains(t, err.Error(), "agents.executor.llm.timeout")
}
