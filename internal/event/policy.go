package event

import "sort"

// Set is the allow-list of event kinds that trigger a deploy.
type Set map[Kind]struct{}

// NewSet builds a Set from kinds.
func NewSet(kinds ...Kind) Set {
	s := make(Set, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

// Contains reports whether k is in the set.
func (s Set) Contains(k Kind) bool {
	_, ok := s[k]
	return ok
}

// Kinds returns the members in lexical order.
func (s Set) Kinds() []Kind {
	kinds := make([]Kind, 0, len(s))
	for k := range s {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Matches reports whether ev's kind is allowed. Only the tag is inspected.
func Matches(ev Event, allowed Set) bool {
	if ev == nil {
		return false
	}
	return allowed.Contains(ev.Kind())
}
