package querystrategy

import (
	"github.com/danielpatrickdp/active-query/internal/telemetry"
	"gonum.org/v1/gonum/floats"
)

// Normalize rescales scores into [0, 1] by min-max. A constant vector has no
// range: values below 1 come back unchanged, anything else is replaced by its
// reciprocal. The result is always a new slice.
func Normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	if constant(scores) {
		telemetry.RecordTiedNormalization()
		if scores[0] < 1 {
			copy(out, scores)
			return out
		}
		for i, s := range scores {
			out[i] = 1 / s
		}
		return out
	}

	lo, hi := floats.Min(scores), floats.Max(scores)
	span := hi - lo
	for i, s := range scores {
		out[i] = (s - lo) / span
	}
	return out
}

func constant(scores []float64) bool {
	for _, s := range scores[1:] {
		if s != scores[0] {
			return false
		}
	}
	// NaN != NaN, so a vector of NaNs is not constant.
	return scores[0] == scores[0]
}
