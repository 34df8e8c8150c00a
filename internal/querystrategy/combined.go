package querystrategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// distDivBase is the base a of the dynamic lambda curve (a^r - 1)/(a - 1).
const distDivBase = 20000.0

// #region mixing

// Mixing is a combiner weight: either a fixed value or "dynamic", derived
// from the set sizes on every call.
type Mixing struct {
	dynamic bool
	value   float64
}

// FixedMixing returns a constant weight.
func FixedMixing(v float64) Mixing { return Mixing{value: v} }

// DynamicMixing returns a weight recomputed from |U| and |L| each round.
func DynamicMixing() Mixing { return Mixing{dynamic: true} }

// ParseMixing accepts "dynamic" or a finite number.
func ParseMixing(s string) (Mixing, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "dynamic") {
		return DynamicMixing(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Mixing{}, fmt.Errorf("mixing %q: %w", s, ErrInvalidArgument)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Mixing{}, fmt.Errorf("mixing %q is not finite: %w", s, ErrInvalidArgument)
	}
	return FixedMixing(v), nil
}

func (m Mixing) IsDynamic() bool { return m.dynamic }

// Value returns the fixed weight. It is meaningless for dynamic mixing.
func (m Mixing) Value() float64 { return m.value }

func (m Mixing) String() string {
	if m.dynamic {
		return "dynamic"
	}
	return strconv.FormatFloat(m.value, 'g', -1, 64)
}

// #endregion mixing

// #region pair

// pair holds the two children of a combiner and the shared plumbing. When
// both children are one instance it is scored and told about choices once.
type pair struct {
	qs1, qs2 Strategy
	shared   bool
	selector Selector
}

func newPair(qs1, qs2 Strategy, opts []Option) (pair, error) {
	if qs1 == nil || qs2 == nil {
		return pair{}, ErrMissingChild
	}
	return pair{qs1: qs1, qs2: qs2, shared: sameInstance(qs1, qs2), selector: collect(opts).selector}, nil
}

// sameInstance reports whether a and b are the same strategy value.
func sameInstance(a, b Strategy) bool {
	ta := reflect.TypeOf(a)
	return ta == reflect.TypeOf(b) && ta.Comparable() && a == b
}

// normalized scores both children and min-max normalizes each vector. On
// failure both children are put back to their state before the call.
func (p pair) normalized(ctx context.Context, args Args) ([]float64, []float64, error) {
	before := p.Snapshot()

	s1, err := p.qs1.Score(ctx, args)
	if err != nil {
		return nil, nil, p.rollback(before, fmt.Errorf("qs1 %s: %w", p.qs1.Name(), err))
	}
	if p.shared {
		n := Normalize(s1)
		return n, n, nil
	}
	s2, err := p.qs2.Score(ctx, args)
	if err != nil {
		return nil, nil, p.rollback(before, fmt.Errorf("qs2 %s: %w", p.qs2.Name(), err))
	}
	if len(s1) != len(s2) {
		return nil, nil, p.rollback(before, fmt.Errorf("qs1 returned %d scores, qs2 %d: %w", len(s1), len(s2), ErrMisaligned))
	}
	return Normalize(s1), Normalize(s2), nil
}

func (p pair) rollback(before State, err error) error {
	if rerr := p.Restore(before); rerr != nil {
		return errors.Join(err, fmt.Errorf("restore children: %w", rerr))
	}
	return err
}

func (p pair) Choose(scores []float64) (int, error) { return p.selector(scores) }

// RecordChoice forwards the choice to both children.
func (p pair) RecordChoice(index int) {
	p.qs1.RecordChoice(index)
	if !p.shared {
		p.qs2.RecordChoice(index)
	}
}

func (p pair) Snapshot() State {
	return State{Children: []State{SnapshotOf(p.qs1), SnapshotOf(p.qs2)}}
}

func (p pair) Restore(st State) error {
	if len(st.Previous) > 0 || st.Pending != nil || st.Recorded || st.InitialUnlabeled != 0 || len(st.RNG) > 0 {
		return fmt.Errorf("restore combiner: state fields set on the combiner itself: %w", ErrInvalidArgument)
	}
	switch len(st.Children) {
	case 0:
		return nil
	case 2:
	default:
		return fmt.Errorf("restore combiner: %d child states, want 2: %w", len(st.Children), ErrInvalidArgument)
	}
	if err := RestoreInto(p.qs1, st.Children[0]); err != nil {
		return fmt.Errorf("qs1: %w", err)
	}
	if p.shared {
		return nil
	}
	if err := RestoreInto(p.qs2, st.Children[1]); err != nil {
		return fmt.Errorf("qs2: %w", err)
	}
	return nil
}

// #endregion pair

// #region combined-sampler

// CombinedSampler weights qs1 by qs2: norm(s1) * norm(s2)^beta.
type CombinedSampler struct {
	Base
	pair
	beta Mixing
}

// NewCombinedSampler needs both children. Dynamic beta is 2|U|/|L|.
func NewCombinedSampler(qs1, qs2 Strategy, beta Mixing, opts ...Option) (*CombinedSampler, error) {
	p, err := newPair(qs1, qs2, opts)
	if err != nil {
		return nil, fmt.Errorf("combined sampler: %w", err)
	}
	if !beta.dynamic && (math.IsNaN(beta.value) || math.IsInf(beta.value, 0)) {
		return nil, fmt.Errorf("combined sampler beta %v: %w", beta.value, ErrInvalidArgument)
	}
	return &CombinedSampler{pair: p, beta: beta}, nil
}

func (c *CombinedSampler) Name() string {
	return fmt.Sprintf("Combined Sampler: qs1: %s; qs2 %s; beta=%s", c.qs1.Name(), c.qs2.Name(), c.beta)
}

func (c *CombinedSampler) Beta() Mixing { return c.beta }

func (c *CombinedSampler) Score(ctx context.Context, args Args) ([]float64, error) {
	beta := c.beta.value
	if c.beta.dynamic {
		if args.L.Len() == 0 {
			return nil, fmt.Errorf("dynamic beta 2|U|/|L| with empty labeled set: %w", ErrDivisionUndefined)
		}
		beta = 2 * float64(args.U.Len()) / float64(args.L.Len())
		slog.Debug("dynamic beta", "beta", beta, "unlabeled", args.U.Len(), "labeled", args.L.Len())
	}

	n1, n2, err := c.normalized(ctx, args)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(n1))
	for i := range n1 {
		scores[i] = n1[i] * math.Pow(n2[i], beta)
	}
	return scores, nil
}

func (c *CombinedSampler) Choose(scores []float64) (int, error) { return c.pair.Choose(scores) }

func (c *CombinedSampler) RecordChoice(index int) { c.pair.RecordChoice(index) }

// #endregion combined-sampler

// #region distdiv-sampler

// DistDivSampler blends qs1 and qs2: lambda*norm(s1) + (1-lambda)*norm(s2).
type DistDivSampler struct {
	Base
	pair
	lambda Mixing
}

// NewDistDivSampler needs both children. A fixed lambda must lie in [0, 1].
// Dynamic lambda is (a^r - 1)/(a - 1) with r = |L|/(|L|+|U|), a = 20000.
func NewDistDivSampler(qs1, qs2 Strategy, lambda Mixing, opts ...Option) (*DistDivSampler, error) {
	p, err := newPair(qs1, qs2, opts)
	if err != nil {
		return nil, fmt.Errorf("distdiv sampler: %w", err)
	}
	if !lambda.dynamic && !(lambda.value >= 0 && lambda.value <= 1) {
		return nil, fmt.Errorf("distdiv sampler lambda %v outside [0, 1]: %w", lambda.value, ErrInvalidArgument)
	}
	return &DistDivSampler{pair: p, lambda: lambda}, nil
}

func (d *DistDivSampler) Name() string {
	return fmt.Sprintf("DistDiv Sampler: qs1=%s; qs2=%s; lambda=%s", d.qs1.Name(), d.qs2.Name(), d.lambda)
}

func (d *DistDivSampler) Lambda() Mixing { return d.lambda }

func (d *DistDivSampler) Score(ctx context.Context, args Args) ([]float64, error) {
	lambda := d.lambda.value
	if d.lambda.dynamic {
		total := args.L.Len() + args.U.Len()
		if total == 0 {
			return nil, fmt.Errorf("dynamic lambda with no examples: %w", ErrDivisionUndefined)
		}
		r := float64(args.L.Len()) / float64(total)
		lambda = (math.Pow(distDivBase, r) - 1) / (distDivBase - 1)
		slog.Debug("dynamic lambda", "lambda", lambda, "unlabeled", args.U.Len(), "labeled", args.L.Len())
	}

	n1, n2, err := d.normalized(ctx, args)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(n1))
	for i := range n1 {
		scores[i] = lambda*n1[i] + (1-lambda)*n2[i]
	}
	return scores, nil
}

func (d *DistDivSampler) Choose(scores []float64) (int, error) { return d.pair.Choose(scores) }

func (d *DistDivSampler) RecordChoice(index int) { d.pair.RecordChoice(index) }

// #endregion distdiv-sampler
