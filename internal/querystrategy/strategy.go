package querystrategy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/danielpatrickdp/active-query/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// #region interface

// Strategy maps (U, L, classifier) to one score per unlabeled row and picks
// one row from those scores.
type Strategy interface {
	Name() string
	Score(ctx context.Context, args Args) ([]float64, error)
	Choose(scores []float64) (int, error)
	// RecordChoice tells the strategy which row the loop is about to move out
	// of U. Stateless strategies ignore it.
	RecordChoice(index int)
}

// Base is embedded by concrete strategies. Its Score and Choose fail with
// ErrNotImplemented.
type Base struct{}

func (Base) Name() string { return "Query Strategy" }

func (Base) Score(context.Context, Args) ([]float64, error) { return nil, ErrNotImplemented }

func (Base) Choose([]float64) (int, error) { return -1, ErrNotImplemented }

func (Base) RecordChoice(int) {}

// #endregion interface

// #region query

// Query runs one round: Score, Choose, then RecordChoice with the result.
func Query(ctx context.Context, s Strategy, args Args) (int, error) {
	idx, _, err := QueryWithScores(ctx, s, args)
	return idx, err
}

// QueryWithScores is Query that also returns the score vector the index was
// chosen from.
func QueryWithScores(ctx context.Context, s Strategy, args Args) (int, []float64, error) {
	name := s.Name()
	ctx, span := telemetry.Tracer.Start(ctx, "querystrategy.Query",
		trace.WithAttributes(
			attribute.String("strategy", name),
			attribute.Int("unlabeled", args.U.Len()),
			attribute.Int("labeled", args.L.Len()),
		))
	defer span.End()

	start := time.Now()
	scores, err := s.Score(ctx, args)
	telemetry.ObserveScore(name, time.Since(start))
	if err != nil {
		telemetry.RecordError(name, "score")
		span.RecordError(err)
		span.SetStatus(codes.Error, "score failed")
		return -1, nil, fmt.Errorf("score %s: %w", name, err)
	}

	idx, err := s.Choose(scores)
	if err != nil {
		telemetry.RecordError(name, "choose")
		span.RecordError(err)
		span.SetStatus(codes.Error, "choose failed")
		return -1, nil, fmt.Errorf("choose %s: %w", name, err)
	}

	s.RecordChoice(idx)
	telemetry.RecordQuery(name, args.U.Len())
	span.SetAttributes(attribute.Int("chosen_index", idx))
	slog.Debug("query chosen", "strategy", name, "index", idx, "unlabeled", args.U.Len())
	return idx, scores, nil
}

// #endregion query

// #region selectors

// Selector picks one index from a score vector.
type Selector func(scores []float64) (int, error)

// Argmax returns the index of the largest score. Ties go to the first index;
// a NaN wins at its first position.
func Argmax(scores []float64) (int, error) {
	return pick(scores, func(a, b float64) bool { return a > b })
}

// Argmin returns the index of the smallest score, with the same tie and NaN
// rules as Argmax.
func Argmin(scores []float64) (int, error) {
	return pick(scores, func(a, b float64) bool { return a < b })
}

func pick(scores []float64, better func(a, b float64) bool) (int, error) {
	if len(scores) == 0 {
		return -1, ErrEmptyScores
	}
	best := 0
	for i, s := range scores {
		if math.IsNaN(s) {
			return i, nil
		}
		if better(s, scores[best]) {
			best = i
		}
	}
	return best, nil
}

// SelectorByName resolves "argmax" (the default for "") or "argmin".
func SelectorByName(name string) (Selector, error) {
	switch name {
	case "", "argmax":
		return Argmax, nil
	case "argmin":
		return Argmin, nil
	}
	return nil, fmt.Errorf("selector %q: %w", name, ErrInvalidArgument)
}

// #endregion selectors

// #region options

type options struct {
	modelChange bool
	seed        *uint64
	selector    Selector
}

// Option configures a strategy at construction. Options a constructor has no
// use for are ignored.
type Option func(*options)

// WithModelChange wraps an uncertainty strategy's scores in the model-change
// corrector.
func WithModelChange() Option {
	return func(o *options) { o.modelChange = true }
}

// WithSeed makes Random reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = &seed }
}

// WithSelector replaces a combiner's choice function.
func WithSelector(sel Selector) Option {
	return func(o *options) { o.selector = sel }
}

func collect(opts []Option) options {
	o := options{selector: Argmax}
	for _, opt := range opts {
		opt(&o)
	}
	if o.selector == nil {
		o.selector = Argmax
	}
	return o
}

// #endregion options
