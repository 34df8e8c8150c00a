package classifier

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrUnsupported is returned by a classifier that lacks a capability.
var ErrUnsupported = errors.New("classifier capability not supported")

// #region interfaces

// Classifier is the read-only capability contract query strategies rely on.
// Rows of every returned matrix align with rows of X.
type Classifier interface {
	// PredictProba returns per-class probabilities, one column per class.
	PredictProba(ctx context.Context, X mat.Matrix) (*mat.Dense, error)
	// DecisionFunction returns signed distances to the separating
	// hyperplane(s): one column for binary problems, one per class otherwise.
	DecisionFunction(ctx context.Context, X mat.Matrix) (*mat.Dense, error)
}

// #endregion interfaces
