package impact

import "sort"

// ExpandedSet records which nodes are expanded in the viewer. It is view state only:
// it's never sent to the API and never persisted.
type ExpandedSet map[NodeID]struct{}

// NewExpandedSet returns a set containing the given ids
func NewExpandedSet(ids ...NodeID) ExpandedSet {
	s := make(ExpandedSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether the node is expanded
func (s ExpandedSet) Has(id NodeID) bool {
	_, ok := s[id]
	return ok
}

// Toggle adds id to the set if absent, or removes it if present, and reports whether
// the node is expanded afterwards
func (s ExpandedSet) Toggle(id NodeID) bool {
	if s.Has(id) {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// IDs returns the members of the set in sorted order
func (s ExpandedSet) IDs() []NodeID {
	ids := make([]NodeID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns an independent copy of the set
func (s ExpandedSet) Clone() ExpandedSet {
	c := make(ExpandedSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}
