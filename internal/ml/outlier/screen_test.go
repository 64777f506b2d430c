package outlier

import (
	"math/rand"
	"testing"
)

func TestKeepSmallDatasetUntouched(t *testing.T) {
	t.Parallel()

	samples := [][]float64{{1, 2}, {2, 3}, {3, 4}}
	keep := NewScreen(0).Keep(samples)
	for i, k := range keep {
		if !k {
			t.Fatalf("small dataset row %d was dropped", i)
		}
	}
}

func TestKeepFlagsExtremeRows(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	samples := make([][]float64, 0, 204)
	for i := 0; i < 200; i++ {
		samples = append(samples, []float64{rng.NormFloat64() * 0.01, rng.NormFloat64() * 0.01})
	}
	// Far outliers, an order of magnitude beyond the cluster.
	for i := 0; i < 4; i++ {
		samples = append(samples, []float64{5 + float64(i), -5 - float64(i)})
	}

	keep := NewScreen(DefaultQuantile).Keep(samples)
	if len(keep) != len(samples) {
		t.Fatalf("mask length mismatch: %d vs %d", len(keep), len(samples))
	}

	dropped := 0
	droppedOutlier := 0
	for i, k := range keep {
		if !k {
			dropped++
			if i >= 200 {
				droppedOutlier++
			}
		}
	}
	if dropped == 0 {
		t.Fatal("expected the screen to drop some rows")
	}
	if droppedOutlier == 0 {
		t.Fatal("expected at least one planted outlier to be dropped")
	}
	// The screen must stay conservative: most inliers survive.
	if dropped > 20 {
		t.Fatalf("screen dropped too many rows: %d", dropped)
	}
}

func TestQuantileOf(t *testing.T) {
	t.Parallel()

	values := []float64{4, 1, 3, 2, 5}
	if got := quantileOf(values, 0.5); got != 3 {
		t.Fatalf("expected median 3, got %f", got)
	}
	if got := quantileOf(values, 1.0); got != 5 {
		t.Fatalf("expected max 5, got %f", got)
	}
}
