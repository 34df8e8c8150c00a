package querystrategy

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/active-query/internal/classifier"
	"github.com/danielpatrickdp/active-query/internal/dataset"
	"gonum.org/v1/gonum/mat"
)

// #region args

// Args is the fixed triple every strategy scores against. U and L must share a
// column count. Clf may be nil for strategies that never consult a model.
type Args struct {
	U   *dataset.Dataset
	L   *dataset.Dataset
	Clf classifier.Classifier
}

// NewArgs builds an Args from exactly three positional values: the unlabeled
// set, the labeled set, and the classifier (or nil).
func NewArgs(vals ...any) (Args, error) {
	if len(vals) != 3 {
		return Args{}, fmt.Errorf("got %d values: %w", len(vals), ErrInvalidArity)
	}
	u, ok := vals[0].(*dataset.Dataset)
	if !ok || u == nil {
		return Args{}, fmt.Errorf("unlabeled set is %T: %w", vals[0], ErrInvalidArgument)
	}
	l, ok := vals[1].(*dataset.Dataset)
	if !ok || l == nil {
		return Args{}, fmt.Errorf("labeled set is %T: %w", vals[1], ErrInvalidArgument)
	}
	var clf classifier.Classifier
	if vals[2] != nil {
		clf, ok = vals[2].(classifier.Classifier)
		if !ok {
			return Args{}, fmt.Errorf("classifier is %T: %w", vals[2], ErrInvalidArgument)
		}
	}
	return Args{U: u, L: l, Clf: clf}, nil
}

// #endregion args

// #region classifier-calls

func requireUnlabeled(args Args) error {
	if args.U == nil || args.U.Len() == 0 {
		return fmt.Errorf("empty unlabeled set: %w", ErrDegenerateInput)
	}
	return nil
}

func requireClassifier(args Args) error {
	if err := requireUnlabeled(args); err != nil {
		return err
	}
	if args.Clf == nil {
		return fmt.Errorf("no classifier: %w", ErrInvalidArgument)
	}
	return nil
}

// predictProba returns class probabilities for every row of U.
func predictProba(ctx context.Context, args Args) (*mat.Dense, error) {
	if err := requireClassifier(args); err != nil {
		return nil, err
	}
	p, err := args.Clf.PredictProba(ctx, args.U.X())
	if err != nil {
		return nil, fmt.Errorf("predict proba: %w", err)
	}
	if r, _ := p.Dims(); r != args.U.Len() {
		return nil, fmt.Errorf("predict proba returned %d rows for %d examples: %w", r, args.U.Len(), ErrMisaligned)
	}
	return p, nil
}

// decisionFunction returns decision values for every row of U.
func decisionFunction(ctx context.Context, args Args) (*mat.Dense, error) {
	if err := requireClassifier(args); err != nil {
		return nil, err
	}
	d, err := args.Clf.DecisionFunction(ctx, args.U.X())
	if err != nil {
		return nil, fmt.Errorf("decision function: %w", err)
	}
	if r, _ := d.Dims(); r != args.U.Len() {
		return nil, fmt.Errorf("decision function returned %d rows for %d examples: %w", r, args.U.Len(), ErrMisaligned)
	}
	return d, nil
}

// #endregion classifier-calls
