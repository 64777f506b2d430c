package outlier

import (
	"github.com/narumiruna/go-iforest/pkg/iforest"
)

// DefaultQuantile drops the most anomalous 2% of training rows. Days around
// splits, halts, or bad provider ticks produce extreme return and
// volatility values that otherwise dominate the fit.
const DefaultQuantile = 0.98

// Screen flags anomalous feature vectors with an isolation forest.
type Screen struct {
	quantile float64
}

func NewScreen(quantile float64) *Screen {
	if quantile <= 0 || quantile >= 1 {
		quantile = DefaultQuantile
	}
	return &Screen{quantile: quantile}
}

// Keep returns a mask over samples: true means the row survives the screen.
// Small datasets are returned untouched; the forest needs enough rows to
// say anything meaningful about isolation depth.
func (s *Screen) Keep(samples [][]float64) []bool {
	keep := make([]bool, len(samples))
	for i := range keep {
		keep[i] = true
	}
	if len(samples) < 50 {
		return keep
	}

	forest := iforest.New()
	forest.Fit(samples)
	scores := forest.Score(samples)
	if len(scores) != len(samples) {
		return keep
	}

	cutoff := quantileOf(scores, s.quantile)
	for i, sc := range scores {
		if sc > cutoff {
			keep[i] = false
		}
	}
	return keep
}

func quantileOf(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
