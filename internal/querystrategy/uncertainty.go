package querystrategy

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// probaFloor replaces zero probabilities before taking logs.
const probaFloor = 1e-16

// #region sampler

// UncertaintySampler scores rows by how unsure the classifier is about them
// and chooses the most uncertain one. The concrete formula is fixed by the
// constructor; WithModelChange wraps it in a ModelChange corrector.
type UncertaintySampler struct {
	Base
	name      string
	score     scoreFunc
	corrector *ModelChange
	bias      *dynamicBias
}

func newUncertainty(name string, base scoreFunc, bias *dynamicBias, opts []Option) *UncertaintySampler {
	o := collect(opts)
	u := &UncertaintySampler{name: name, score: base, bias: bias}
	if o.modelChange {
		u.corrector = NewModelChange(base)
		u.score = u.corrector.Score
		u.name += " + Model Change"
	}
	return u
}

func (u *UncertaintySampler) Name() string { return u.name }

func (u *UncertaintySampler) Score(ctx context.Context, args Args) ([]float64, error) {
	return u.score(ctx, args)
}

func (u *UncertaintySampler) Choose(scores []float64) (int, error) { return Argmax(scores) }

func (u *UncertaintySampler) RecordChoice(index int) {
	if u.corrector != nil {
		u.corrector.RecordChoice(index)
	}
}

// Snapshot captures the corrector's retained scores and the latched initial
// unlabeled size.
func (u *UncertaintySampler) Snapshot() State {
	var st State
	if u.corrector != nil {
		u.corrector.snapshot(&st)
	}
	if u.bias != nil {
		st.InitialUnlabeled = u.bias.initial
	}
	return st
}

func (u *UncertaintySampler) Restore(st State) error {
	if len(st.Children) > 0 || len(st.RNG) > 0 {
		return fmt.Errorf("restore %s: unexpected child or generator state: %w", u.name, ErrInvalidArgument)
	}
	hasCorrection := len(st.Previous) > 0 || st.Pending != nil || st.Recorded
	switch {
	case u.corrector != nil:
		u.corrector.restore(st)
	case hasCorrection:
		return fmt.Errorf("restore %s: model change state without a corrector: %w", u.name, ErrInvalidArgument)
	}
	switch {
	case u.bias != nil:
		u.bias.initial = st.InitialUnlabeled
	case st.InitialUnlabeled != 0:
		return fmt.Errorf("restore %s: initial unlabeled size without dynamic bias: %w", u.name, ErrInvalidArgument)
	}
	return nil
}

// #endregion sampler

// #region constructors

// NewEntropy scores -sum(p log2 p).
func NewEntropy(opts ...Option) *UncertaintySampler {
	return newUncertainty("Entropy Sampler", entropyScores, nil, opts)
}

// NewLeastConfidence scores 1 - max p.
func NewLeastConfidence(opts ...Option) *UncertaintySampler {
	return newUncertainty("Least Confidence", leastConfidenceScores, nil, opts)
}

// NewLeastConfidenceBias shifts the least-confidence boundary toward the
// labeled class balance.
func NewLeastConfidenceBias(opts ...Option) *UncertaintySampler {
	return newUncertainty("Least Confidence with Bias", leastConfidenceBiasScores, nil, opts)
}

// NewLeastConfidenceDynamicBias moves the boundary from the class balance
// toward 0.5 as L grows relative to the initial unlabeled size. It scores the
// class-1 probability, so the classifier must report at least two classes.
func NewLeastConfidenceDynamicBias(opts ...Option) *UncertaintySampler {
	b := &dynamicBias{}
	return newUncertainty("Least Confidence with Dynamic Bias", b.score, b, opts)
}

// #endregion constructors

// #region formulas

func entropyScores(ctx context.Context, args Args) ([]float64, error) {
	p, err := predictProba(ctx, args)
	if err != nil {
		return nil, err
	}
	r, c := p.Dims()
	scores := make([]float64, r)
	for i := 0; i < r; i++ {
		var h float64
		for j := 0; j < c; j++ {
			v := p.At(i, j)
			if v == 0 {
				v = probaFloor
			}
			h -= v * math.Log2(v)
		}
		scores[i] = h
	}
	return scores, nil
}

func leastConfidenceScores(ctx context.Context, args Args) ([]float64, error) {
	p, err := predictProba(ctx, args)
	if err != nil {
		return nil, err
	}
	top := rowMax(p)
	for i, v := range top {
		top[i] = 1 - v
	}
	return top, nil
}

func leastConfidenceBiasScores(ctx context.Context, args Args) ([]float64, error) {
	pp, err := positiveFraction(args)
	if err != nil {
		return nil, err
	}
	pMax := (0.5 + (1 - pp)) / 2
	p, err := predictProba(ctx, args)
	if err != nil {
		return nil, err
	}
	return biased(rowMax(p), pMax), nil
}

// dynamicBias latches the unlabeled size seen on its first call.
type dynamicBias struct {
	initial int
}

func (b *dynamicBias) score(ctx context.Context, args Args) ([]float64, error) {
	if err := requireUnlabeled(args); err != nil {
		return nil, err
	}
	if b.initial == 0 {
		b.initial = args.U.Len()
	}
	pp, err := positiveFraction(args)
	if err != nil {
		return nil, err
	}
	wu := float64(args.L.Len()) / float64(b.initial)
	wb := 1 - wu
	pMax := wb*(1-pp) + wu*0.5
	if pMax == 0 {
		return nil, fmt.Errorf("dynamic bias p_max is zero: %w", ErrDivisionUndefined)
	}

	p, err := predictProba(ctx, args)
	if err != nil {
		return nil, err
	}
	r, c := p.Dims()
	if c < 2 {
		return nil, fmt.Errorf("dynamic bias reads the class-1 column, got %d columns: %w", c, ErrUnsupported)
	}
	positive := make([]float64, r)
	for i := range positive {
		positive[i] = p.At(i, 1)
	}
	return biased(positive, pMax), nil
}

// biased maps p to p/pMax below pMax and (1-p)/pMax otherwise.
func biased(probs []float64, pMax float64) []float64 {
	out := make([]float64, len(probs))
	for i, p := range probs {
		if p < pMax {
			out[i] = p / pMax
		} else {
			out[i] = (1 - p) / pMax
		}
	}
	return out
}

func positiveFraction(args Args) (float64, error) {
	pp, err := args.L.PositiveFraction()
	if err != nil {
		return 0, fmt.Errorf("class balance of labeled set: %w: %w", ErrDivisionUndefined, err)
	}
	return pp, nil
}

func rowMax(m *mat.Dense) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = floats.Max(m.RawRowView(i))
	}
	return out
}

// #endregion formulas
