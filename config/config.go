package config

import (
	"errors"
	"fmt"
	"time"
)

// LMConfig is the model binding of one agent role.
type LMConfig struct {
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Cache       bool          `mapstructure:"cache" yaml:"cache"`
	Adapter     string        `mapstructure:"adapter" yaml:"adapter,omitempty"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// DefaultLMConfig returns the baseline binding for model.
func DefaultLMConfig(model string) LMConfig {
	return LMConfig{
		Model:       model,
		Temperature: 0.6,
		MaxTokens:   120000,
		Timeout:     120 * time.Second,
		Adapter:     "chat",
	}
}

// ToolkitConfig enables one toolkit for an agent.
type ToolkitConfig struct {
	Class        string         `mapstructure:"class" yaml:"class"`
	Enabled      bool           `mapstructure:"enabled" yaml:"enabled"`
	IncludeTools []string       `mapstructure:"include_tools" yaml:"include_tools,omitempty"`
	ExcludeTools []string       `mapstructure:"exclude_tools" yaml:"exclude_tools,omitempty"`
	Config       map[string]any `mapstructure:"config" yaml:"config,omitempty"`
}

// AgentConfig is one agent slot of the tree.
type AgentConfig struct {
	LLM                   LMConfig        `mapstructure:"llm" yaml:"llm"`
	PredictionStrategy    string          `mapstructure:"prediction_strategy" yaml:"prediction_strategy,omitempty"`
	SignatureInstructions string          `mapstructure:"signature_instructions" yaml:"signature_instructions,omitempty"`
	Toolkits              []ToolkitConfig `mapstructure:"toolkits" yaml:"toolkits,omitempty"`
	StrategyParams        map[string]any  `mapstructure:"strategy_params" yaml:"strategy_params,omitempty"`
}

// AgentsConfig holds the optional agent slots. A nil slot is absent.
type AgentsConfig struct {
	Atomizer   *AgentConfig `mapstructure:"atomizer" yaml:"atomizer,omitempty"`
	Planner    *AgentConfig `mapstructure:"planner" yaml:"planner,omitempty"`
	Executor   *AgentConfig `mapstructure:"executor" yaml:"executor,omitempty"`
	Aggregator *AgentConfig `mapstructure:"aggregator" yaml:"aggregator,omitempty"`
}

// RuntimeConfig groups the runtime knobs.
type RuntimeConfig struct {
	MaxDepth      int           `mapstructure:"max_depth" yaml:"max_depth"`
	EnableLogging bool          `mapstructure:"enable_logging" yaml:"enable_logging"`
	LogLevel      string        `mapstructure:"log_level" yaml:"log_level,omitempty"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// Tree is the configuration consumed when building a runtime.
type Tree struct {
	Project string        `mapstructure:"project" yaml:"project,omitempty"`
	Agents  AgentsConfig  `mapstructure:"agents" yaml:"agents"`
	Runtime RuntimeConfig `mapstructure:"runtime" yaml:"runtime"`
}

// Slot names in the order the overlay visits them.
const (
	RoleAtomizer   = "atomizer"
	RolePlanner    = "planner"
	RoleExecutor   = "executor"
	RoleAggregator = "aggregator"
)

// Slot returns the agent slot for role, or nil when absent or unknown.
func (a *AgentsConfig) Slot(role string) *AgentConfig {
	switch role {
	case RoleAtomizer:
		return a.Atomizer
	case RolePlanner:
		return a.Planner
	case RoleExecutor:
		return a.Executor
	case RoleAggregator:
		return a.Aggregator
	default:
		return nil
	}
}

// Clone returns a deep copy of t. A nil tree clones to an empty one.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return &Tree{}
	}
	return &Tree{
		Project: t.Project,
		Agents: AgentsConfig{
			Atomizer:   t.Agents.Atomizer.Clone(),
			Planner:    t.Agents.Planner.Clone(),
			Executor:   t.Agents.Executor.Clone(),
			Aggregator: t.Agents.Aggregator.Clone(),
		},
		Runtime: t.Runtime,
	}
}

// Clone returns a deep copy of a, or nil.
func (a *AgentConfig) Clone() *AgentConfig {
	if a == nil {
		return nil
	}
	c := *a
	c.StrategyParams = cloneMap(a.StrategyParams)
	if a.Toolkits != nil {
		c.Toolkits = make([]ToolkitConfig, len(a.Toolkits))
		for i, tk := range a.Toolkits {
			c.Toolkits[i] = tk.Clone()
		}
	}
	return &c
}

// Clone returns a deep copy of tk.
func (tk ToolkitConfig) Clone() ToolkitConfig {
	c := tk
	c.IncludeTools = cloneStrings(tk.IncludeTools)
	c.ExcludeTools = cloneStrings(tk.ExcludeTools)
	c.Config = cloneMap(tk.Config)
	return c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return cloneStrings(x)
	default:
		return v
	}
}

// Validate reports every structural problem found in t.
func (t *Tree) Validate() error {
	var errs []error
	if t.Runtime.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("runtime.max_depth must be >= 0, got %d", t.Runtime.MaxDepth))
	}
	for _, role := range []string{RoleAtomizer, RolePlanner, RoleExecutor, RoleAggregator} {
		slot := t.Agents.Slot(role)
		if slot == nil {
			continue
		}
		if slot.LLM.Model == "" {
			errs = append(errs, fmt.Errorf("agents.%s.llm.model is required", role))
		}
		if slot.LLM.MaxTokens < 0 {
			errs = append(errs, fmt.Errorf("agents.%s.llm.max_tokens must be >= 0", role))
		}
		if slot.LLM.Timeout < 0 {
			errs = append(errs, fmt.Errorf("agents.%s.llm.timeout must be >= 0", role))
		}
	}
	return errors.Join(errs...)
}
