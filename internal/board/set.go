package board

import (
	"slices"
	"strings"
)

// IDSet is a set of row, stage or entity ids.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids, ignoring blanks.
func NewIDSet(ids ...string) IDSet {
	out := make(IDSet, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}

// Has reports membership. A nil set contains nothing.
func (s IDSet) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s[id]
	return ok
}

// With returns a copy of s that also holds id.
func (s IDSet) With(id string) IDSet {
	out := make(IDSet, len(s)+1)
	for k := range s {
		out[k] = struct{}{}
	}
	out[id] = struct{}{}
	return out
}

// Without returns a copy of s without id.
func (s IDSet) Without(id string) IDSet {
	out := make(IDSet, len(s))
	for k := range s {
		if k != id {
			out[k] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
