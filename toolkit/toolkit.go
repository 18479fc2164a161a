// Package toolkit groups related tools behind one lifecycle. A Toolkit owns
// whatever clients its tools need and exposes the tools its configuration
// enables.
package toolkit

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/roma/config"
	"github.com/hupe1980/roma/logging"
	"github.com/hupe1980/roma/tool"
)

// ErrUnknownClass is returned by a Registry for an unregistered class.
var ErrUnknownClass = errors.New("unknown toolkit class")

// Toolkit is a closable collection of tools.
type Toolkit interface {
	// Name returns the toolkit class.
	Name() string
	// Tools returns the enabled tools.
	Tools() []tool.Tool
	// Close releases the toolkit's clients. A closed toolkit is not reused.
	Close() error
}

// Base implements enable / include / exclude filtering. Exclusion wins over
// inclusion; an empty include list includes everything.
type Base struct {
	enabled bool
	include map[string]struct{}
	exclude map[string]struct{}
}

// NewBase builds a filter.
func NewBase(enabled bool, include, exclude []string) Base {
	return Base{enabled: enabled, include: set(include), exclude: set(exclude)}
}

func set(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

// Enabled reports whether the toolkit exposes any tools.
func (b Base) Enabled() bool { return b.enabled }

// Allows reports whether the tool called name passes the filter.
func (b Base) Allows(name string) bool {
	if !b.enabled {
		return false
	}
	if _, ok := b.exclude[name]; ok {
		return false
	}
	if b.include == nil {
		return true
	}
	_, ok := b.include[name]
	return ok
}

// Filter returns the tools that pass the filter, in order.
func (b Base) Filter(tools []tool.Tool) []tool.Tool {
	out := make([]tool.Tool, 0, len(tools))
	for _, t := range tools {
		if b.Allows(t.Name()) {
			out = append(out, t)
		}
	}
	return out
}

// Factory builds a toolkit from its configuration entry.
type Factory func(cfg config.ToolkitConfig, logger logging.Logger) (Toolkit, error)

// Registry maps toolkit classes onto factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register binds class to f, replacing any earlier binding.
func (r *Registry) Register(class string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[class] = f
}

// Classes returns the registered classes, sorted.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for c := range r.factories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Build creates the toolkit configured by cfg.
func (r *Registry) Build(cfg config.ToolkitConfig, logger logging.Logger) (Toolkit, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Class]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, cfg.Class)
	}
	return f(cfg, logger)
}
