package common

import "stockmood/internal/domain"

// ModelKeyRise3D is the single registry key for the 3-day-rise classifier.
// Training inserts one version per candidate algorithm under this key and
// activates the best, so inference resolves exactly one model.
const ModelKeyRise3D = "rise3d"

// Artifact formats tell the loader which decoder a stored blob needs.
const (
	ArtifactFormatLogReg = "json/logreg-v1"
	ArtifactFormatGBT    = "json/boo-gbt-v1"
)

// FeatureNames is the canonical model input order. Artifacts record it so a
// stored model rejects mismatched feature sets at load time.
var FeatureNames = []string{
	"sentiment_avg",
	"sentiment_rolling_mean_3d",
	"return_1d",
	"volatility_5d",
}

// Vector extracts the model input from a feature row. Optional features that
// are still undefined (first-day return, short volatility window) enter as
// zero, the same fill the trainer uses.
func Vector(row domain.DailyFeatureRow) []float64 {
	return []float64{
		row.SentimentAvg,
		row.SentimentRollingMean3D,
		deref(row.Return1D),
		deref(row.Volatility5D),
	}
}

// Label returns the binary target and whether the row is labeled at all.
func Label(row domain.DailyFeatureRow) (float64, bool) {
	if row.Future3DPositive == nil {
		return 0, false
	}
	if *row.Future3DPositive {
		return 1, true
	}
	return 0, true
}

// Clamp01 bounds a probability, mapping NaN to the uninformative 0.5.
func Clamp01(v float64) float64 {
	if v != v {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
