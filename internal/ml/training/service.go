package training

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"stockmood/internal/domain"
	"stockmood/internal/ml/common"
	"stockmood/internal/ml/features"
	"stockmood/internal/ml/models/boost"
	"stockmood/internal/ml/models/logreg"

	"go.opentelemetry.io/otel/trace"
)

// ModelKey aliases the shared registry key for the 3-day-rise classifier.
const ModelKey = common.ModelKeyRise3D

const (
	candidateLogReg = "logreg"
	candidateGBT    = "gbt"
)

type FeatureRowStore interface {
	ListLabeledRows(ctx context.Context, from, to time.Time) ([]domain.DailyFeatureRow, error)
}

type ModelRegistry interface {
	NextVersion(ctx context.Context, modelKey string) (int, error)
	InsertModelVersion(ctx context.Context, model domain.ModelVersion) (*domain.ModelVersion, error)
	ActivateModel(ctx context.Context, modelKey string, version int) error
}

type OutlierScreen interface {
	Keep(samples [][]float64) []bool
}

type Config struct {
	TestFraction    float64
	MinTrainSamples int
	LabelThreshold  float64
}

type Service struct {
	tracer   trace.Tracer
	features FeatureRowStore
	registry ModelRegistry
	screen   OutlierScreen
	cfg      Config
}

type CandidateResult struct {
	Name    string              `json:"name"`
	Version int                 `json:"version"`
	Metrics domain.ModelMetrics `json:"metrics"`
}

type Result struct {
	ModelKey     string            `json:"model_key"`
	Activated    CandidateResult   `json:"activated"`
	Candidates   []CandidateResult `json:"candidates"`
	TrainSamples int               `json:"train_samples"`
	TestSamples  int               `json:"test_samples"`
}

func NewService(tracer trace.Tracer, featureStore FeatureRowStore, registry ModelRegistry, screen OutlierScreen, cfg Config) *Service {
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.2
	}
	if cfg.MinTrainSamples <= 0 {
		cfg.MinTrainSamples = 100
	}
	return &Service{tracer: tracer, features: featureStore, registry: registry, screen: screen, cfg: cfg}
}

// Train fits the candidate classifiers on labeled rows in [from, to],
// evaluates them on the chronological tail, persists every candidate, and
// activates the one with the best test ROC-AUC. A model that barely beats
// the baseline is still persisted and activated; refusing to train is
// reserved for datasets too small to evaluate at all.
func (s *Service) Train(ctx context.Context, from, to time.Time) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "training.train")
	defer span.End()

	rows, err := s.features.ListLabeledRows(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(rows) < s.cfg.MinTrainSamples {
		return nil, fmt.Errorf("labeled rows %d below minimum %d: %w",
			len(rows), s.cfg.MinTrainSamples, domain.ErrDataInsufficient)
	}

	trainRows, testRows := chronologicalSplit(rows, s.cfg.TestFraction)
	if len(trainRows) == 0 || len(testRows) == 0 {
		return nil, fmt.Errorf("split produced empty partition: %w", domain.ErrDataInsufficient)
	}

	trainX, trainY := buildDataset(trainRows)
	testX, testY := buildDataset(testRows)

	if s.screen != nil {
		trainX, trainY = applyScreen(s.screen, trainX, trainY)
		if len(trainX) == 0 {
			return nil, fmt.Errorf("outlier screen removed all rows: %w", domain.ErrDataInsufficient)
		}
	}

	bounds := splitBounds(trainRows, testRows)

	result := &Result{
		ModelKey:     ModelKey,
		TrainSamples: len(trainX),
		TestSamples:  len(testY),
	}

	lrOpts := logreg.DefaultTrainOptions()
	lrModel, err := logreg.Train(trainX, trainY, common.FeatureNames, lrOpts)
	if err != nil {
		return nil, fmt.Errorf("train logistic regression: %w", err)
	}
	lrBlob, err := lrModel.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal logistic regression: %w", err)
	}
	lrMetrics := evaluate(testY, lrModel.PredictBatch(testX), bounds, len(trainX))
	lrCandidate, err := s.persist(ctx, candidateLogReg, common.ArtifactFormatLogReg, lrBlob, lrMetrics, bounds, map[string]any{
		"learning_rate":    lrOpts.LearningRate,
		"epochs":           lrOpts.Epochs,
		"l2":               lrOpts.L2,
		"pos_class_weight": "auto",
	})
	if err != nil {
		return nil, err
	}
	result.Candidates = append(result.Candidates, lrCandidate)

	// The boosted candidate needs both classes; a one-sided market window
	// falls back to logistic regression alone.
	gbtOpts := boost.DefaultTrainOptions()
	gbtModel, err := boost.Train(trainX, trainY, common.FeatureNames, gbtOpts)
	if err != nil {
		log.Printf("boosted candidate skipped: %v", err)
	} else {
		gbtBlob, err := gbtModel.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal boosted model: %w", err)
		}
		gbtMetrics := evaluate(testY, gbtModel.PredictBatch(testX), bounds, len(trainX))
		gbtCandidate, err := s.persist(ctx, candidateGBT, common.ArtifactFormatGBT, gbtBlob, gbtMetrics, bounds, map[string]any{
			"rounds":        gbtOpts.Rounds,
			"learning_rate": gbtOpts.LearningRate,
			"max_depth":     gbtOpts.MaxDepth,
		})
		if err != nil {
			return nil, err
		}
		result.Candidates = append(result.Candidates, gbtCandidate)
	}

	best := result.Candidates[0]
	for _, c := range result.Candidates[1:] {
		if c.Metrics.ROCAUC > best.Metrics.ROCAUC {
			best = c
		}
	}
	if err := s.registry.ActivateModel(ctx, ModelKey, best.Version); err != nil {
		return nil, fmt.Errorf("activate version %d: %w", best.Version, err)
	}
	result.Activated = best
	return result, nil
}

func (s *Service) persist(
	ctx context.Context,
	candidate string,
	artifactFormat string,
	blob []byte,
	metrics domain.ModelMetrics,
	bounds splitBoundsInfo,
	hyperparams map[string]any,
) (CandidateResult, error) {
	version, err := s.registry.NextVersion(ctx, ModelKey)
	if err != nil {
		return CandidateResult{}, err
	}
	hyperparams["candidate"] = candidate
	hyperJSON, _ := json.Marshal(hyperparams)
	metricJSON, _ := json.Marshal(metrics)

	inserted, err := s.registry.InsertModelVersion(ctx, domain.ModelVersion{
		ModelKey:          ModelKey,
		Version:           version,
		FeatureSetVersion: features.FeatureSpecVersion(),
		TrainedFrom:       bounds.trainStart,
		TrainedTo:         bounds.testEnd,
		HyperparamsJSON:   string(hyperJSON),
		MetricsJSON:       string(metricJSON),
		ArtifactFormat:    artifactFormat,
		ArtifactBlob:      blob,
		IsActive:          false,
	})
	if err != nil {
		return CandidateResult{}, err
	}
	return CandidateResult{Name: candidate, Version: inserted.Version, Metrics: metrics}, nil
}

// chronologicalSplit cuts the date-ordered rows so that every training date
// strictly precedes every test date. The cut lands at the configured test
// fraction, then advances to the next date boundary so one calendar day
// never straddles both partitions.
func chronologicalSplit(rows []domain.DailyFeatureRow, testFraction float64) ([]domain.DailyFeatureRow, []domain.DailyFeatureRow) {
	ordered := append([]domain.DailyFeatureRow(nil), rows...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	n := len(ordered)
	idx := int(float64(n) * (1 - testFraction))
	if idx <= 0 {
		idx = 1
	}
	if idx >= n {
		idx = n - 1
	}
	for idx < n && ordered[idx].Date.Equal(ordered[idx-1].Date) {
		idx++
	}
	if idx >= n {
		return ordered, nil
	}
	return ordered[:idx], ordered[idx:]
}

type splitBoundsInfo struct {
	trainStart, trainEnd time.Time
	testStart, testEnd   time.Time
}

func splitBounds(trainRows, testRows []domain.DailyFeatureRow) splitBoundsInfo {
	return splitBoundsInfo{
		trainStart: trainRows[0].Date,
		trainEnd:   trainRows[len(trainRows)-1].Date,
		testStart:  testRows[0].Date,
		testEnd:    testRows[len(testRows)-1].Date,
	}
}

func buildDataset(rows []domain.DailyFeatureRow) ([][]float64, []float64) {
	x := make([][]float64, 0, len(rows))
	y := make([]float64, 0, len(rows))
	for i := range rows {
		label, ok := common.Label(rows[i])
		if !ok {
			continue
		}
		x = append(x, common.Vector(rows[i]))
		y = append(y, label)
	}
	return x, y
}

func applyScreen(screen OutlierScreen, x [][]float64, y []float64) ([][]float64, []float64) {
	keep := screen.Keep(x)
	if len(keep) != len(x) {
		return x, y
	}
	outX := make([][]float64, 0, len(x))
	outY := make([]float64, 0, len(y))
	for i := range x {
		if keep[i] {
			outX = append(outX, x[i])
			outY = append(outY, y[i])
		}
	}
	return outX, outY
}

// evaluate scores probabilities against the held-out labels. The baseline is
// the majority-class frequency of the test set, the accuracy a constant
// predictor would get.
func evaluate(labels, probs []float64, bounds splitBoundsInfo, trainCount int) domain.ModelMetrics {
	m := domain.ModelMetrics{
		TrainStart:   bounds.trainStart,
		TrainEnd:     bounds.trainEnd,
		TestStart:    bounds.testStart,
		TestEnd:      bounds.testEnd,
		TrainSamples: trainCount,
		TestSamples:  len(labels),
		FeatureNames: append([]string(nil), common.FeatureNames...),
	}
	n := len(labels)
	if n == 0 || len(probs) != n {
		m.ROCAUC = 0.5
		return m
	}

	var cm domain.ConfusionMatrix
	pos := 0
	for i := 0; i < n; i++ {
		y := labels[i] >= 0.5
		pred := common.Clamp01(probs[i]) >= 0.5
		if y {
			pos++
		}
		switch {
		case pred && y:
			cm.TP++
		case pred && !y:
			cm.FP++
		case !pred && !y:
			cm.TN++
		default:
			cm.FN++
		}
	}

	m.Confusion = cm
	m.Accuracy = float64(cm.TP+cm.TN) / float64(n)
	posFrac := float64(pos) / float64(n)
	m.BaselineAccuracy = math.Max(posFrac, 1-posFrac)
	if cm.TP+cm.FP > 0 {
		m.PrecisionPos = float64(cm.TP) / float64(cm.TP+cm.FP)
	}
	if cm.TP+cm.FN > 0 {
		m.RecallPos = float64(cm.TP) / float64(cm.TP+cm.FN)
	}
	if cm.TN+cm.FN > 0 {
		m.PrecisionNeg = float64(cm.TN) / float64(cm.TN+cm.FN)
	}
	if cm.TN+cm.FP > 0 {
		m.RecallNeg = float64(cm.TN) / float64(cm.TN+cm.FP)
	}
	m.ROCAUC = computeAUC(labels, probs)
	return m
}

// computeAUC is the rank-based Mann-Whitney estimator with tie handling.
// A single-class test set has no ranking to measure and reports 0.5.
func computeAUC(labels []float64, probs []float64) float64 {
	type pair struct {
		p float64
		y float64
	}
	pairs := make([]pair, len(labels))
	pos := 0.0
	neg := 0.0
	for i := range labels {
		pairs[i] = pair{p: common.Clamp01(probs[i]), y: labels[i]}
		if labels[i] >= 0.5 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].p < pairs[j].p })

	sumRankPos := 0.0
	rank := 1.0
	for i := 0; i < len(pairs); {
		j := i + 1
		for j < len(pairs) && math.Abs(pairs[j].p-pairs[i].p) < 1e-12 {
			j++
		}
		avgRank := (rank + float64(j)) / 2
		for k := i; k < j; k++ {
			if pairs[k].y >= 0.5 {
				sumRankPos += avgRank
			}
		}
		rank = float64(j + 1)
		i = j
	}
	auc := (sumRankPos - (pos*(pos+1))/2) / (pos * neg)
	if math.IsNaN(auc) || math.IsInf(auc, 0) {
		return 0.5
	}
	return auc
}
