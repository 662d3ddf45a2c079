package roi

import "slices"

// Set owns the live ROIs of an editing session in insertion order. It is not
// safe for concurrent use; hand Snapshot copies to background work instead.
type Set struct {
	order []string
	items map[string]*Model
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{items: make(map[string]*Model)}
}

// Add inserts m, assigning an id when it has none, and returns the live
// instance. Adding an existing id replaces the stored geometry.
func (s *Set) Add(m Model) *Model {
	if m.ID == "" {
		m.ID = NewID()
	}
	if cur, ok := s.items[m.ID]; ok {
		*cur = m
		return cur
	}
	p := &m
	s.items[m.ID] = p
	s.order = append(s.order, m.ID)
	return p
}

// Get returns the live ROI with the given id.
func (s *Set) Get(id string) (*Model, bool) {
	m, ok := s.items[id]
	return m, ok
}

// Snapshot returns a detached copy of the ROI with the given id.
func (s *Set) Snapshot(id string) (Model, bool) {
	m, ok := s.items[id]
	if !ok {
		return Model{}, false
	}
	return m.Clone(), true
}

// Remove deletes the ROI with the given id.
func (s *Set) Remove(id string) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return true
}

// Len returns the number of ROIs.
func (s *Set) Len() int { return len(s.order) }

// ByRole returns snapshots of all ROIs with the given role, in order.
func (s *Set) ByRole(role Role) []Model {
	var out []Model
	for _, id := range s.order {
		if m := s.items[id]; m.Role == role {
			out = append(out, m.Clone())
		}
	}
	return out
}

// Snapshots returns copies of every ROI in insertion order.
func (s *Set) Snapshots() []Model {
	out := make([]Model, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out
}
