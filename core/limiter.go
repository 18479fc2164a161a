package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrLimitExceeded is returned once a ModelLimiter runs out of calls.
var ErrLimitExceeded = errors.New("exceeded max model calls")

// ModelLimiter enforces a maximum number of model calls per invocation.
type ModelLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewModelLimiter creates a limiter. A max of 0 allows unlimited calls.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: max}
}

// Increment counts one call and fails once the limit is exceeded.
func (ml *ModelLimiter) Increment() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.count++
	if ml.max > 0 && ml.count > ml.max {
		return fmt.Errorf("%w: %d", ErrLimitExceeded, ml.max)
	}

	return nil
}

// Count returns the number of calls made so far.
func (ml *ModelLimiter) Count() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	return ml.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.max == 0 {
		return -1
	}

	return ml.max - ml.count
}
