package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/logging"
	"github.com/hupe1980/roma/tool"
)

// toolRunner executes the function calls of one model turn, in parallel up
// to maxParallel, and returns one response per call in call order. It never
// panics; tool panics become error responses.
type toolRunner struct {
	tools       tool.Set
	maxParallel int
	logger      logging.Logger
	values      map[string]any
}

func (r *toolRunner) run(ctx context.Context, calls []core.FunctionCall) []core.FunctionResponse {
	out := make([]core.FunctionResponse, len(calls))

	maxPar := r.maxParallel
	if maxPar <= 0 || maxPar > len(calls) {
		maxPar = len(calls)
	}

	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	for i, fc := range calls {
		if fc.ID == "" {
			fc.ID = core.NewID()
		}
		if ctx.Err() != nil {
			out[i] = core.FunctionResponse{ID: fc.ID, Name: fc.Name, Error: ctx.Err().Error()}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			out[idx] = r.runOne(ctx, fc)
		}(i, fc)
	}

	wg.Wait()
	return out
}

func (r *toolRunner) runOne(ctx context.Context, fc core.FunctionCall) (resp core.FunctionResponse) {
	resp = core.FunctionResponse{ID: fc.ID, Name: fc.Name}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("strategy.tool.panic", "tool", fc.Name, "recover", fmt.Sprint(rec))
			resp.Response = nil
			resp.Error = fmt.Sprintf("tool %s panicked: %v", fc.Name, rec)
		}
	}()

	result, err := r.execute(ctx, fc)
	r.logger.Info("strategy.tool.executed", "tool", fc.Name, "duration_ms", time.Since(start).Milliseconds(), "error", err != nil)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Response = result
	return resp
}

func (r *toolRunner) execute(ctx context.Context, fc core.FunctionCall) (any, error) {
	impl, ok := r.tools.Get(fc.Name)
	if !ok {
		return nil, tool.NewToolError(fc.Name, "tool not found", tool.CodeNotFound)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return impl.Call(core.NewToolContext(ctx, fc.ID, r.logger, r.values), args)
}

func toolTurn(responses []core.FunctionResponse) core.Content {
	parts := make([]core.Part, len(responses))
	for i, fr := range responses {
		parts[i] = core.FunctionResponsePart{FunctionResponse: fr}
	}
	return core.Content{Role: "tool", Parts: parts}
}
