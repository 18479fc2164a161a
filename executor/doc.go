// Package executor dispatches task invocations to a strategy.
//
// An Executor owns read-only defaults (tools, model binding, context values)
// and a strategy. Every call resolves its own strategy.ExecutionContext from
// those defaults and the per-call overrides, filters extra parameters to the
// set the invoked entry point accepts, and hands the strategy's result or
// error back unchanged. Nothing is stored on the Executor during a call, so
// concurrent calls never observe each other's bindings.
//
// Forward is the blocking path. AForward is the non-blocking path; it also
// consults a ToolProvider once per call and binds the resolved tools into a
// call-local copy of the strategy:
//
//	exec := executor.New(strat, func(o *executor.Options) {
//		o.LM = lm
//		o.Tools = kit.Tools()
//		o.ToolProvider = executor.ContextToolProvider{}
//	})
//	predCh, errCh := exec.AForward(ctx, "Which markets close this week?")
//	pred, err := executor.Await(ctx, predCh, errCh)
package executor
