// Package model defines the provider-agnostic abstractions and concrete
// helpers for talking to language models.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Report token usage per response so callers can account for it
//   - Build a provider from a role's config.LMConfig (FromConfig), including
//     OpenAI-compatible gateways, a per-request timeout and a response cache
//
// Providers (model/openai, model/anthropic) implement Model so strategies stay
// decoupled from vendor SDKs.
package model
