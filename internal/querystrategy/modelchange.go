package querystrategy

import (
	"context"
	"fmt"
)

type scoreFunc func(ctx context.Context, args Args) ([]float64, error)

// #region model-change

// ModelChange corrects a base score by how much it moved since the last
// round: s' = s - s_prev/|L|. The retained vector loses the row the loop
// moved out of U, so it stays aligned with the current U.
type ModelChange struct {
	base     scoreFunc
	previous []float64
	pending  *int
	recorded bool
}

// NewModelChange wraps base.
func NewModelChange(base scoreFunc) *ModelChange {
	return &ModelChange{base: base}
}

// Score computes the corrected scores and retains them for the next round.
// The retained vector is zeros until a choice has been recorded.
func (m *ModelChange) Score(ctx context.Context, args Args) ([]float64, error) {
	scores, err := m.base(ctx, args)
	if err != nil {
		return nil, err
	}
	n := args.L.Len()
	if n == 0 {
		return nil, fmt.Errorf("model change weight 1/|L| with empty labeled set: %w", ErrDivisionUndefined)
	}
	prev, err := m.aligned(len(scores))
	if err != nil {
		return nil, err
	}

	w := 1 / float64(n)
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = s - w*prev[i]
	}

	m.previous = append([]float64(nil), out...)
	m.pending = nil
	return out, nil
}

// RecordChoice marks index for deletion from the retained vector. It is
// consumed by the next Score.
func (m *ModelChange) RecordChoice(index int) {
	m.pending = &index
	m.recorded = true
}

// aligned returns the retained vector with the pending index removed, without
// changing m.
func (m *ModelChange) aligned(n int) ([]float64, error) {
	if !m.recorded {
		return make([]float64, n), nil
	}
	prev := m.previous
	if m.pending != nil {
		i := *m.pending
		if i < 0 || i >= len(prev) {
			return nil, fmt.Errorf("chosen index %d outside retained scores of length %d: %w", i, len(prev), ErrMisaligned)
		}
		trimmed := make([]float64, 0, len(prev)-1)
		trimmed = append(trimmed, prev[:i]...)
		prev = append(trimmed, prev[i+1:]...)
	}
	if len(prev) != n {
		return nil, fmt.Errorf("retained %d scores for %d examples: %w", len(prev), n, ErrMisaligned)
	}
	return prev, nil
}

func (m *ModelChange) snapshot(st *State) {
	st.Previous = append([]float64(nil), m.previous...)
	if m.pending != nil {
		p := *m.pending
		st.Pending = &p
	}
	st.Recorded = m.recorded
}

func (m *ModelChange) restore(st State) {
	m.previous = append([]float64(nil), st.Previous...)
	m.pending = nil
	if st.Pending != nil {
		p := *st.Pending
		m.pending = &p
	}
	m.recorded = st.Recorded
}

// #endregion model-change
