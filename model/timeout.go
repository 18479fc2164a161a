package model

import (
	"context"
	"time"
)

// TimeoutModel bounds every generation of the wrapped model by a deadline.
type TimeoutModel struct {
	next    Model
	timeout time.Duration
}

// WithTimeout wraps next so each Generate call is cancelled after d. A
// non-positive d returns next unchanged.
func WithTimeout(next Model, d time.Duration) Model {
	if d <= 0 {
		return next
	}
	return &TimeoutModel{next: next, timeout: d}
}

// Info reports the wrapped model.
func (t *TimeoutModel) Info() Info { return t.next.Info() }

// Generate implements Model. The deadline is released once both upstream
// channels are drained.
func (t *TimeoutModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	respCh, errCh := t.next.Generate(ctx, req)

	out := make(chan Response, cap(respCh))
	outErr := make(chan error, 1)

	go func() {
		defer cancel()
		defer close(out)
		defer close(outErr)

		var firstErr error
		for respCh != nil || errCh != nil {
			select {
			case r, ok := <-respCh:
				if !ok {
					respCh = nil
					continue
				}
				out <- r
			case err, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				if err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
		if firstErr != nil {
			outErr <- firstErr
		}
	}()

	return out, outErr
}
