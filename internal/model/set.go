package model

// Set is an immutable set. The zero value is an empty set. Toggle returns a
// new set and never modifies the receiver, so a Set can be shared freely
// between goroutines.
type Set[K comparable] struct {
	m map[K]struct{}
}

func NewSet[K comparable](items ...K) Set[K] {
	m := make(map[K]struct{}, len(items))
	for _, k := range items {
		m[k] = struct{}{}
	}
	return Set[K]{m: m}
}

func (s Set[K]) Contains(k K) bool {
	_, ok := s.m[k]
	return ok
}

func (s Set[K]) Len() int {
	return len(s.m)
}

// Toggle returns a copy with k added if absent, or removed if present.
func (s Set[K]) Toggle(k K) Set[K] {
	next := make(map[K]struct{}, len(s.m)+1)
	for e := range s.m {
		next[e] = struct{}{}
	}
	if _, ok := next[k]; ok {
		delete(next, k)
	} else {
		next[k] = struct{}{}
	}
	return Set[K]{m: next}
}

// Items returns the members in no particular order.
func (s Set[K]) Items() []K {
	out := make([]K, 0, len(s.m))
	for k := range s.m {
		out = append(out, k)
	}
	return out
}
