package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"stockmood/internal/domain"
	"stockmood/internal/ml/common"
	"stockmood/internal/ml/models/boost"
	"stockmood/internal/ml/models/logreg"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const predictionCacheTTL = 15 * time.Minute

type FeatureReader interface {
	LatestRow(ctx context.Context, symbol string, asOf time.Time) (*domain.DailyFeatureRow, error)
}

type ModelRegistry interface {
	GetActiveModel(ctx context.Context, modelKey string) (*domain.ModelVersion, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Service scores one ticker at a time against the active model. The feature
// row it reads is built from data dated at or before asOf, so a score never
// peeks past the requested date.
type Service struct {
	tracer   trace.Tracer
	features FeatureReader
	registry ModelRegistry
	redis    RedisClient
	cacheTTL time.Duration
}

func NewService(
	tracer trace.Tracer,
	features FeatureReader,
	registry ModelRegistry,
	redisClient RedisClient,
) *Service {
	return &Service{
		tracer:   tracer,
		features: features,
		registry: registry,
		redis:    redisClient,
		cacheTTL: predictionCacheTTL,
	}
}

// Score predicts the probability of a positive 3-day forward return for one
// ticker as of a date. Returns ErrModelUnavailable when no version has been
// activated and ErrDataInsufficient when no feature row exists at or before
// asOf.
func (s *Service) Score(ctx context.Context, symbol string, asOf time.Time) (*domain.Prediction, error) {
	_, span := s.tracer.Start(ctx, "inference.score")
	defer span.End()

	if s.features == nil || s.registry == nil {
		return nil, fmt.Errorf("inference service is not fully initialized")
	}

	active, err := s.registry.GetActiveModel(ctx, common.ModelKeyRise3D)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active model: %w", err)
	}
	if active == nil {
		return nil, domain.ErrModelUnavailable
	}

	asOfDay := domain.Day(asOf)
	if s.redis != nil {
		if cached, err := s.getCached(ctx, symbol, asOfDay, active.Version); err != nil {
			log.Printf("redis cache read error: %v", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	row, err := s.features.LatestRow(ctx, symbol, asOfDay)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("no feature row for %s at or before %s: %w",
			symbol, asOfDay.Format("2006-01-02"), domain.ErrDataInsufficient)
	}

	predict, err := loadPredictor(active)
	if err != nil {
		return nil, fmt.Errorf("active model artifact is unusable: %w", domain.ErrModelUnavailable)
	}

	prediction := &domain.Prediction{
		TickerSymbol: symbol,
		AsOf:         row.Date,
		Probability:  common.Clamp01(predict(common.Vector(*row))),
		BaselineRate: baselineRate(active.MetricsJSON),
		ModelKey:     active.ModelKey,
		ModelVersion: active.Version,
	}

	if s.redis != nil {
		if err := s.setCached(ctx, symbol, asOfDay, active.Version, prediction); err != nil {
			log.Printf("redis cache write error for %s: %v", symbol, err)
		}
	}
	return prediction, nil
}

// loadPredictor decodes the stored artifact with the codec its format names.
func loadPredictor(model *domain.ModelVersion) (func([]float64) float64, error) {
	switch model.ArtifactFormat {
	case common.ArtifactFormatLogReg:
		m, err := logreg.UnmarshalBinary(model.ArtifactBlob)
		if err != nil {
			return nil, err
		}
		return m.PredictProb, nil
	case common.ArtifactFormatGBT:
		m, err := boost.UnmarshalBinary(model.ArtifactBlob)
		if err != nil {
			return nil, err
		}
		return m.PredictProb, nil
	default:
		return nil, fmt.Errorf("unknown artifact format %q", model.ArtifactFormat)
	}
}

// baselineRate is the positive-class frequency observed on the model's test
// partition, the honest reference point for the returned probability. Falls
// back to the uninformative 0.5 when the stored metrics cannot be parsed.
func baselineRate(metricsJSON string) float64 {
	var m domain.ModelMetrics
	if err := json.Unmarshal([]byte(metricsJSON), &m); err != nil || m.TestSamples == 0 {
		return 0.5
	}
	positives := m.Confusion.TP + m.Confusion.FN
	return float64(positives) / float64(m.TestSamples)
}

func cacheKey(symbol string, asOf time.Time, version int) string {
	return fmt.Sprintf("prediction:%s:%s:v%d", symbol, asOf.Format("2006-01-02"), version)
}

func (s *Service) getCached(ctx context.Context, symbol string, asOf time.Time, version int) (*domain.Prediction, error) {
	data, err := s.redis.Get(ctx, cacheKey(symbol, asOf, version)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var prediction domain.Prediction
	if err := json.Unmarshal(data, &prediction); err != nil {
		return nil, err
	}
	return &prediction, nil
}

func (s *Service) setCached(ctx context.Context, symbol string, asOf time.Time, version int, prediction *domain.Prediction) error {
	data, err := json.Marshal(prediction)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, cacheKey(symbol, asOf, version), data, s.cacheTTL).Err()
}
