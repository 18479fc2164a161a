// Package provider builds a model.Model from a role's config.LMConfig.
//
// Model identifiers take the form "<provider>/<model>":
//
//	openai/gpt-4o-mini                       OpenAI
//	anthropic/claude-3-5-sonnet-20241022     Anthropic
//	openrouter/anthropic/claude-sonnet-4.5   OpenRouter (OpenAI-compatible)
//	fireworks_ai/accounts/fireworks/models/x Fireworks (OpenAI-compatible)
//	gemini/gemini-2.5-flash                  Gemini OpenAI compatibility endpoint
//	mock/anything                            model.MockModel
//
// An identifier without a known prefix is sent to OpenAI unchanged.
package provider

import (
	"fmt"
	"os"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/roma/config"
	"github.com/hupe1980/roma/model"
	"github.com/hupe1980/roma/model/anthropic"
	"github.com/hupe1980/roma/model/openai"
)

// Gateway describes an OpenAI-compatible endpoint.
type Gateway struct {
	BaseURL   string
	APIKeyEnv string
}

// Gateways maps provider prefixes onto OpenAI-compatible endpoints.
var Gateways = map[string]Gateway{
	"openrouter":   {BaseURL: "https://openrouter.ai/api/v1", APIKeyEnv: "OPENROUTER_API_KEY"},
	"fireworks_ai": {BaseURL: "https://api.fireworks.ai/inference/v1", APIKeyEnv: "FIREWORKS_API_KEY"},
	"gemini":       {BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/", APIKeyEnv: "GEMINI_API_KEY"},
}

// Options tune model construction.
type Options struct {
	// LookupEnv resolves API keys; defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
	// CacheSize bounds the response cache when LMConfig.Cache is set.
	CacheSize int
}

// Split separates "<provider>/<model>". Identifiers without a slash belong
// to OpenAI.
func Split(id string) (prov, name string) {
	prov, name, ok := strings.Cut(id, "/")
	if !ok {
		return "openai", id
	}
	return prov, name
}

// FromConfig builds the model bound by cfg. The result honours cfg.Timeout
// and, when cfg.Cache is set, answers repeated identical requests from an
// in-memory cache.
func FromConfig(cfg config.LMConfig, optFns ...func(o *Options)) (model.Model, error) {
	opts := Options{LookupEnv: os.LookupEnv}
	for _, fn := range optFns {
		fn(&opts)
	}

	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model identifier is required")
	}

	m, err := build(cfg, opts)
	if err != nil {
		return nil, err
	}

	m = model.WithTimeout(m, cfg.Timeout)
	if cfg.Cache {
		m = model.NewCachedModel(m, opts.CacheSize)
	}
	return m, nil
}

func build(cfg config.LMConfig, opts Options) (model.Model, error) {
	prov, name := Split(cfg.Model)

	switch prov {
	case "mock":
		return model.NewMockModel(name, "mock"), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(name)
			o.Temperature = cfg.Temperature
			o.MaxTokens = int64(cfg.MaxTokens)
			o.BaseURL = cfg.BaseURL
			if key, ok := opts.LookupEnv("ANTHROPIC_API_KEY"); ok {
				o.APIKey = key
			}
		}), nil
	case "openai":
		openaiOpts := func(o *openai.Options) {
			o.Model = name
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
		}
		if cfg.BaseURL != "" {
			key, _ := opts.LookupEnv("OPENAI_API_KEY")
			return openai.NewCompatibleModel(cfg.BaseURL, key, openaiOpts), nil
		}
		return openai.NewModel(openaiOpts), nil
	}

	gw, ok := Gateways[prov]
	if !ok {
		return nil, fmt.Errorf("unknown model provider %q in %q", prov, cfg.Model)
	}
	key, ok := opts.LookupEnv(gw.APIKeyEnv)
	if !ok || key == "" {
		return nil, fmt.Errorf("%s is not set for provider %q", gw.APIKeyEnv, prov)
	}
	baseURL := gw.BaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	return openai.NewCompatibleModel(baseURL, key, func(o *openai.Options) {
		o.Model = name
		o.Temperature = cfg.Temperature
		o.MaxCompletionTokens = int64(cfg.MaxTokens)
		o.Provider = prov
	}), nil
}
