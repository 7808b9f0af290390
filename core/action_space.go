// core/action_space.go
package core

import "fmt"

// ActionSpace is the dense bijection between concrete actions and
// integer indices. It is append-only: an index, once issued, keeps its
// meaning for the rest of the episode.
type ActionSpace struct {
	actions []ConcreteAction
	index   map[ConcreteAction]int
}

// NewActionSpace returns an empty space.
func NewActionSpace() *ActionSpace {
	return &ActionSpace{index: make(map[ConcreteAction]int)}
}

// Size returns the current number of issued indices.
func (s *ActionSpace) Size() int { return len(s.actions) }

// Append issues the next index for the action.
func (s *ActionSpace) Append(a ConcreteAction) (int, error) {
	if _, exists := s.index[a]; exists {
		return 0, fmt.Errorf("append %v: %w", a, ErrDuplicateAction)
	}
	idx := len(s.actions)
	s.actions = append(s.actions, a)
	s.index[a] = idx
	return idx, nil
}

// At resolves an index to its action. ok is false for indices outside
// the issued range; that is a boundary condition, not a crash.
func (s *ActionSpace) At(i int) (ConcreteAction, bool) {
	if i < 0 || i >= len(s.actions) {
		return ConcreteAction{}, false
	}
	return s.actions[i], true
}

// IndexOf resolves an action to its index.
func (s *ActionSpace) IndexOf(a ConcreteAction) (int, bool) {
	idx, ok := s.index[a]
	return idx, ok
}
