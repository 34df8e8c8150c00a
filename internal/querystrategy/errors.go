package querystrategy

import (
	"errors"

	"github.com/danielpatrickdp/active-query/internal/classifier"
)

var (
	ErrInvalidArity      = errors.New("argument bundle needs exactly three values (unlabeled, labeled, classifier)")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotImplemented    = errors.New("strategy does not implement this operation")
	ErrMissingChild      = errors.New("combiner needs two child strategies")
	ErrDivisionUndefined = errors.New("division undefined")
	ErrDegenerateInput   = errors.New("degenerate input")
	ErrEmptyScores       = errors.New("empty score vector")
	ErrMisaligned        = errors.New("retained scores do not align with the unlabeled set")

	// ErrUnsupported is returned when the classifier lacks a capability the strategy needs.
	ErrUnsupported = classifier.ErrUnsupported
)
