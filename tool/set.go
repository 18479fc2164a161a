package tool

// Set is an ordered collection of tools keyed by Name. The zero value is an
// empty set. A Set is immutable once built; every operation returns a new one.
type Set struct {
	order []string
	byKey map[string]Tool
}

// NewSet builds a set from tools. A later tool replaces an earlier one with
// the same key, keeping the earlier position. Nil tools are skipped.
func NewSet(tools ...Tool) Set {
	s := Set{byKey: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		s.put(t)
	}
	return s
}

func (s *Set) put(t Tool) {
	if t == nil {
		return
	}
	if s.byKey == nil {
		s.byKey = map[string]Tool{}
	}
	name := t.Name()
	if _, ok := s.byKey[name]; !ok {
		s.order = append(s.order, name)
	}
	s.byKey[name] = t
}

// Len returns the number of tools.
func (s Set) Len() int { return len(s.order) }

// Get returns the tool registered under name.
func (s Set) Get(name string) (Tool, bool) {
	t, ok := s.byKey[name]
	return t, ok
}

// Names returns the keys in order.
func (s Set) Names() []string {
	return append([]string(nil), s.order...)
}

// List returns the tools in order.
func (s Set) List() []Tool {
	out := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byKey[name])
	}
	return out
}

// MergePolicy decides how an override set combines with a base set.
type MergePolicy int

const (
	// MergeByKey unions both sets; override entries replace base entries that
	// share a key, in place, and new keys are appended.
	MergeByKey MergePolicy = iota
	// MergeReplaceAll uses a non-empty override as the whole result. An empty
	// override leaves base untouched.
	MergeReplaceAll
)

// String returns the policy name.
func (p MergePolicy) String() string {
	switch p {
	case MergeByKey:
		return "by_key"
	case MergeReplaceAll:
		return "replace_all"
	default:
		return "unknown"
	}
}

// Merge combines base and override under policy. Neither input is modified.
func Merge(base, override Set, policy MergePolicy) Set {
	if policy == MergeReplaceAll && override.Len() > 0 {
		return NewSet(override.List()...)
	}
	out := NewSet(base.List()...)
	for _, t := range override.List() {
		out.put(t)
	}
	return out
}
