// Package logging provides a minimal logging interface and adapters for the
// runtime.
//
// The Logger interface defines the four leveled methods (Debug, Info, Warn,
// Error) that the executor, strategies and toolkits use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter and RuntimeLogger over Go's structured logging
//   - ZerologAdapter for hosts already running zerolog
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	exec := executor.New(strat, func(o *executor.Options) { o.Logger = logger })
//
// Messages use dotted event names ("executor.forward.start") with key/value
// attributes.
package logging
