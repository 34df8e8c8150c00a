package config

import (
	"errors"
	"fmt"
	"sort"

	qs "github.com/danielpatrickdp/active-query/internal/querystrategy"
)

// ErrUnknownStrategy is returned for a strategy name with no builder.
var ErrUnknownStrategy = errors.New("unknown strategy")

// #region builders

type kind int

const (
	kindPlain kind = iota
	kindUncertainty
	kindGeometric
	kindCombiner
)

type builder struct {
	kind  kind
	build func(spec StrategySpec) (qs.Strategy, error)
}

// builders is filled in init because combiner builders recurse through Build.
var builders map[string]builder

func init() {
	builders = map[string]builder{
		"random": {kindPlain, func(s StrategySpec) (qs.Strategy, error) {
			var opts []qs.Option
			if s.Seed != nil {
				opts = append(opts, qs.WithSeed(*s.Seed))
			}
			return qs.NewRandom(opts...), nil
		}},
		"simple_margin": {kindPlain, func(StrategySpec) (qs.Strategy, error) { return qs.NewSimpleMargin(), nil }},
		"margin":        {kindPlain, func(StrategySpec) (qs.Strategy, error) { return qs.NewMargin(), nil }},

		"entropy": {kindUncertainty, func(s StrategySpec) (qs.Strategy, error) {
			return qs.NewEntropy(uncertaintyOpts(s)...), nil
		}},
		"least_confidence": {kindUncertainty, func(s StrategySpec) (qs.Strategy, error) {
			return qs.NewLeastConfidence(uncertaintyOpts(s)...), nil
		}},
		"least_confidence_bias": {kindUncertainty, func(s StrategySpec) (qs.Strategy, error) {
			return qs.NewLeastConfidenceBias(uncertaintyOpts(s)...), nil
		}},
		"least_confidence_dynamic_bias": {kindUncertainty, func(s StrategySpec) (qs.Strategy, error) {
			return qs.NewLeastConfidenceDynamicBias(uncertaintyOpts(s)...), nil
		}},

		"distance_to_center": {kindGeometric, func(s StrategySpec) (qs.Strategy, error) { return qs.NewDistanceToCenter(s.Metric) }},
		"density":            {kindGeometric, func(s StrategySpec) (qs.Strategy, error) { return qs.NewDensity(s.Metric) }},
		"min_max":            {kindGeometric, func(s StrategySpec) (qs.Strategy, error) { return qs.NewMinMax(s.Metric) }},

		"combined": {kindCombiner, func(s StrategySpec) (qs.Strategy, error) {
			qs1, qs2, opts, err := children(s)
			if err != nil {
				return nil, err
			}
			beta, err := mixing(s.Beta, "1")
			if err != nil {
				return nil, fmt.Errorf("beta: %w", err)
			}
			return qs.NewCombinedSampler(qs1, qs2, beta, opts...)
		}},
		"distdiv": {kindCombiner, func(s StrategySpec) (qs.Strategy, error) {
			qs1, qs2, opts, err := children(s)
			if err != nil {
				return nil, err
			}
			lambda, err := mixing(s.Lambda, "0.5")
			if err != nil {
				return nil, fmt.Errorf("lambda: %w", err)
			}
			return qs.NewDistDivSampler(qs1, qs2, lambda, opts...)
		}},
	}
}

// #endregion builders

// #region build

// Build constructs the strategy a spec describes, validating names, metrics
// and mixing values.
func Build(spec StrategySpec) (qs.Strategy, error) {
	b, ok := builders[spec.Name]
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w", spec.Name, ErrUnknownStrategy)
	}
	if err := checkFields(spec, b.kind); err != nil {
		return nil, err
	}
	s, err := b.build(spec)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", spec.Name, err)
	}
	return s, nil
}

// Names lists every buildable strategy name, sorted.
func Names() []string {
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func checkFields(s StrategySpec, k kind) error {
	bad := func(field string) error {
		return fmt.Errorf("strategy %q does not take %s: %w", s.Name, field, ErrInvalidSpec)
	}
	if s.ModelChange && k != kindUncertainty {
		return bad("model_change")
	}
	if s.Metric != "" && k != kindGeometric {
		return bad("metric")
	}
	if k != kindCombiner {
		switch {
		case s.QS1 != nil || s.QS2 != nil:
			return bad("qs1/qs2")
		case s.Beta != "":
			return bad("beta")
		case s.Lambda != "":
			return bad("lambda")
		case s.Choice != "":
			return bad("choice")
		}
	}
	if s.Name == "combined" && s.Lambda != "" {
		return bad("lambda")
	}
	if s.Name == "distdiv" && s.Beta != "" {
		return bad("beta")
	}
	if s.Seed != nil && s.Name != "random" {
		return bad("seed")
	}
	return nil
}

func uncertaintyOpts(s StrategySpec) []qs.Option {
	if s.ModelChange {
		return []qs.Option{qs.WithModelChange()}
	}
	return nil
}

func children(s StrategySpec) (qs.Strategy, qs.Strategy, []qs.Option, error) {
	if s.QS1 == nil || s.QS2 == nil {
		return nil, nil, nil, qs.ErrMissingChild
	}
	qs1, err := Build(*s.QS1)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("qs1: %w", err)
	}
	qs2, err := Build(*s.QS2)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("qs2: %w", err)
	}
	sel, err := qs.SelectorByName(s.Choice)
	if err != nil {
		return nil, nil, nil, err
	}
	return qs1, qs2, []qs.Option{qs.WithSelector(sel)}, nil
}

func mixing(v, fallback string) (qs.Mixing, error) {
	if v == "" {
		v = fallback
	}
	return qs.ParseMixing(v)
}

// #endregion build
