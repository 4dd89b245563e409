package workflow

// selection is the set of result ids currently chosen. Pure set semantics;
// consumers that need a reproducible order iterate the history instead.
// Only the Controller mutates it.
type selection struct {
	ids map[string]struct{}
}

func newSelection() *selection {
	return &selection{ids: make(map[string]struct{})}
}

// toggle adds the id if absent and removes it if present.
func (s *selection) toggle(id string) {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return
	}
	s.ids[id] = struct{}{}
}

// clear empties the set.
func (s *selection) clear() {
	s.ids = make(map[string]struct{})
}

// has reports whether the id is selected.
func (s *selection) has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// size returns the number of selected ids.
func (s *selection) size() int {
	return len(s.ids)
}
