package querystrategy

import "fmt"

// #region state

// State is the serializable memory of a strategy between rounds. Combiners
// keep their children's states in Children, in (qs1, qs2) order.
type State struct {
	Previous         []float64 `json:"previous,omitempty"`
	Pending          *int      `json:"pending,omitempty"`
	Recorded         bool      `json:"recorded,omitempty"`
	InitialUnlabeled int       `json:"initial_unlabeled,omitempty"`
	RNG              []byte    `json:"rng,omitempty"` // seeded generator position
	Children         []State   `json:"children,omitempty"`
}

// IsZero reports whether the state carries nothing.
func (s State) IsZero() bool {
	if len(s.Previous) > 0 || s.Pending != nil || s.Recorded || s.InitialUnlabeled != 0 || len(s.RNG) > 0 {
		return false
	}
	for _, c := range s.Children {
		if !c.IsZero() {
			return false
		}
	}
	return true
}

// Stateful is implemented by strategies that remember earlier rounds.
type Stateful interface {
	Snapshot() State
	Restore(State) error
}

// #endregion state

// #region helpers

// SnapshotOf returns s's state, or the zero State for stateless strategies.
func SnapshotOf(s Strategy) State {
	if st, ok := s.(Stateful); ok {
		return st.Snapshot()
	}
	return State{}
}

// RestoreInto loads st into s. A non-empty state for a stateless strategy is
// rejected.
func RestoreInto(s Strategy, st State) error {
	if sf, ok := s.(Stateful); ok {
		return sf.Restore(st)
	}
	if !st.IsZero() {
		return fmt.Errorf("restore %s: stateless strategy given state: %w", s.Name(), ErrInvalidArgument)
	}
	return nil
}

// #endregion helpers
