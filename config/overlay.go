package config

// Overlay carries role-specific model settings and run knobs that are applied
// on top of a base Tree. Patch never mutates it.
type Overlay struct {
	Atomizer   LMConfig `mapstructure:"atomizer_lm" yaml:"atomizer_lm"`
	Planner    LMConfig `mapstructure:"planner_lm" yaml:"planner_lm"`
	Executor   LMConfig `mapstructure:"executor_lm" yaml:"executor_lm"`
	Aggregator LMConfig `mapstructure:"aggregator_lm" yaml:"aggregator_lm"`
	Judge      LMConfig `mapstructure:"judge_lm" yaml:"judge_lm"`
	Reflection LMConfig `mapstructure:"reflection_lm" yaml:"reflection_lm"`

	TrainSize   int   `mapstructure:"train_size" yaml:"train_size"`
	ValSize     int   `mapstructure:"val_size" yaml:"val_size"`
	TestSize    int   `mapstructure:"test_size" yaml:"test_size"`
	DatasetSeed int64 `mapstructure:"dataset_seed" yaml:"dataset_seed"`

	MaxParallel int `mapstructure:"max_parallel" yaml:"max_parallel"`
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`

	MaxMetricCalls          int `mapstructure:"max_metric_calls" yaml:"max_metric_calls"`
	NumThreads              int `mapstructure:"num_threads" yaml:"num_threads"`
	ReflectionMinibatchSize int `mapstructure:"reflection_minibatch_size" yaml:"reflection_minibatch_size"`

	MaxDepth      int  `mapstructure:"max_depth" yaml:"max_depth"`
	EnableLogging bool `mapstructure:"enable_logging" yaml:"enable_logging"`

	OutputPath string `mapstructure:"output_path" yaml:"output_path,omitempty"`
}

const (
	fireworksGPTOSS = "fireworks_ai/accounts/fireworks/models/gpt-oss-120b"
	geminiFlash     = "gemini/gemini-2.5-flash"
	sonnetJudge     = "openrouter/anthropic/claude-sonnet-4.5"
)

// DefaultOverlay returns the stock overlay.
func DefaultOverlay() Overlay {
	judge := DefaultLMConfig(sonnetJudge)
	judge.Temperature = 1.0
	judge.MaxTokens = 64000

	return Overlay{
		Atomizer:   DefaultLMConfig(geminiFlash),
		Planner:    DefaultLMConfig(geminiFlash),
		Executor:   DefaultLMConfig(fireworksGPTOSS),
		Aggregator: DefaultLMConfig(fireworksGPTOSS),
		Judge:      judge,
		Reflection: judge,

		TrainSize:   32,
		ValSize:     8,
		TestSize:    8,
		DatasetSeed: 0,

		MaxParallel: 4,
		Concurrency: 4,

		MaxMetricCalls:          10,
		NumThreads:              4,
		ReflectionMinibatchSize: 8,

		MaxDepth:      1,
		EnableLogging: true,
	}
}

// Patch returns a deep copy of base with the overlay's role model settings
// and runtime knobs applied. base is never modified and the result shares no
// mutable state with it. Absent agent slots stay absent; a nil base patches an
// empty tree.
//
// Atomizer, planner and aggregator slots also get their fixed instruction
// template. The executor keeps its own instructions.
func Patch(overlay Overlay, base *Tree) *Tree {
	cfg := base.Clone()

	applyAgentLM(cfg.Agents.Atomizer, overlay.Atomizer, AtomizerPrompt)
	applyAgentLM(cfg.Agents.Planner, overlay.Planner, PlannerPrompt)
	applyAgentLM(cfg.Agents.Executor, overlay.Executor, "")
	applyAgentLM(cfg.Agents.Aggregator, overlay.Aggregator, AggregatorPrompt)

	cfg.Runtime.MaxDepth = overlay.MaxDepth
	cfg.Runtime.EnableLogging = overlay.EnableLogging

	return cfg
}

// applyAgentLM copies the model binding fields onto slot. Adapter and base URL
// belong to the slot and are left alone.
func applyAgentLM(slot *AgentConfig, lm LMConfig, instructions string) {
	if slot == nil {
		return
	}
	slot.LLM.Model = lm.Model
	slot.LLM.Temperature = lm.Temperature
	slot.LLM.MaxTokens = lm.MaxTokens
	slot.LLM.Timeout = lm.Timeout
	slot.LLM.Cache = lm.Cache
	if instructions != "" {
		slot.SignatureInstructions = instructions
	}
}
