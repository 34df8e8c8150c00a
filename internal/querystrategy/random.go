package querystrategy

import (
	"context"
	"fmt"
	"math/rand/v2"
)

// Random scores every row by its position and chooses one position uniformly.
type Random struct {
	Base
	src *rand.PCG // nil when unseeded
	rng *rand.Rand
}

// NewRandom creates a Random strategy. WithSeed fixes the draw sequence, and
// the generator position is then carried in Snapshot so a restored instance
// continues the sequence instead of starting it over.
func NewRandom(opts ...Option) *Random {
	o := collect(opts)
	r := &Random{}
	if o.seed != nil {
		r.src = rand.NewPCG(*o.seed, *o.seed)
		r.rng = rand.New(r.src)
	}
	return r
}

func (r *Random) Name() string { return "Random Sampler" }

// Score returns [0, 1, ..., |U|-1].
func (r *Random) Score(_ context.Context, args Args) ([]float64, error) {
	if err := requireUnlabeled(args); err != nil {
		return nil, err
	}
	scores := make([]float64, args.U.Len())
	for i := range scores {
		scores[i] = float64(i)
	}
	return scores, nil
}

// Choose draws one element of scores uniformly and returns it as an index.
func (r *Random) Choose(scores []float64) (int, error) {
	if len(scores) == 0 {
		return -1, ErrEmptyScores
	}
	var i int
	if r.rng != nil {
		i = r.rng.IntN(len(scores))
	} else {
		i = rand.IntN(len(scores))
	}
	return int(scores[i]), nil
}

// #region state

// Snapshot returns the seeded generator's position. Unseeded instances have
// no state.
func (r *Random) Snapshot() State {
	if r.src == nil {
		return State{}
	}
	b, err := r.src.MarshalBinary()
	if err != nil {
		return State{}
	}
	return State{RNG: b}
}

func (r *Random) Restore(st State) error {
	if len(st.Previous) > 0 || st.Pending != nil || st.Recorded || st.InitialUnlabeled != 0 || len(st.Children) > 0 {
		return fmt.Errorf("restore %s: unexpected state fields: %w", r.Name(), ErrInvalidArgument)
	}
	if len(st.RNG) == 0 {
		return nil
	}
	if r.src == nil {
		return fmt.Errorf("restore %s: generator state for an unseeded sampler: %w", r.Name(), ErrInvalidArgument)
	}
	if err := r.src.UnmarshalBinary(st.RNG); err != nil {
		return fmt.Errorf("restore %s: %w: %w", r.Name(), ErrInvalidArgument, err)
	}
	return nil
}

// #endregion state
