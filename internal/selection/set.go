// Package selection tracks selected layers and implements the transform
// operations applied to them: alignment, distribution, duplication,
// z-order changes, deletion and pointer-driven move/resize/rotate.
//
// Operations are pure: they take the current layer list and return a new
// one, leaving history bookkeeping to the caller.
package selection

// Set is an ordered set of selected layer ids. The first id is the primary
// selection.
type Set struct {
	ids []string
}

// NewSet returns a set holding ids in order, without duplicates.
func NewSet(ids ...string) *Set {
	s := &Set{}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

func (s *Set) add(id string) {
	if !s.Contains(id) {
		s.ids = append(s.ids, id)
	}
}

// Select replaces the selection with id.
func (s *Set) Select(id string) {
	s.ids = []string{id}
}

// SetIDs replaces the selection with ids.
func (s *Set) SetIDs(ids []string) {
	s.ids = nil
	for _, id := range ids {
		s.add(id)
	}
}

// Toggle adds id when absent and removes it when present (modifier-click).
func (s *Set) Toggle(id string) {
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i:i], s.ids[i+1:]...)
			return
		}
	}
	s.ids = append(s.ids, id)
}

// Clear deselects everything.
func (s *Set) Clear() {
	s.ids = nil
}

// Contains reports whether id is selected.
func (s *Set) Contains(id string) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

// IDs returns the selected ids in selection order.
func (s *Set) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Len returns the number of selected ids.
func (s *Set) Len() int {
	return len(s.ids)
}

// Primary returns the first selected id.
func (s *Set) Primary() (string, bool) {
	if len(s.ids) == 0 {
		return "", false
	}
	return s.ids[0], true
}

// Retain drops ids for which keep returns false, e.g. after an undo removed
// a layer.
func (s *Set) Retain(keep func(id string) bool) {
	out := s.ids[:0]
	for _, id := range s.ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	s.ids = out
}
