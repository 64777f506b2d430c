package service

import (
	"context"
	"time"

	"stockmood/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// labelHorizonSlack extends the price fetch past the requested end so the
// 3-trading-day forward label can materialize for rows near the boundary.
const labelHorizonSlack = 7

type DataEnsurer interface {
	EnsurePriceData(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error)
	EnsureNewsData(ctx context.Context, symbol string, start, end time.Time) ([]domain.NewsArticle, error)
}

type FeatureEngine interface {
	BuildRows(bars []domain.PriceBar, articles []domain.NewsArticle) []domain.DailyFeatureRow
}

type FeatureStore interface {
	ReplaceRows(ctx context.Context, symbol string, rows []domain.DailyFeatureRow) error
	ListRows(ctx context.Context, symbol string, from, to time.Time) ([]domain.DailyFeatureRow, error)
}

// FeatureService rebuilds the derived feature table from cached bars and
// articles. A rebuild is deterministic for a given cache state, so it always
// replaces a ticker's rows instead of merging into them.
type FeatureService struct {
	tracer trace.Tracer
	data   DataEnsurer
	engine FeatureEngine
	store  FeatureStore
}

func NewFeatureService(tracer trace.Tracer, data DataEnsurer, engine FeatureEngine, store FeatureStore) *FeatureService {
	return &FeatureService{
		tracer: tracer,
		data:   data,
		engine: engine,
		store:  store,
	}
}

// Rebuild ensures source data for [start, end], derives feature rows, and
// replaces the ticker's stored rows with them. Returns how many rows were
// written. Bars are fetched slightly past end so in-range rows can be
// labeled; rows after end are discarded.
func (s *FeatureService) Rebuild(ctx context.Context, symbol string, start, end time.Time) (int, error) {
	ctx, span := s.tracer.Start(ctx, "feature-service.rebuild")
	defer span.End()

	bars, err := s.data.EnsurePriceData(ctx, symbol, start, end.AddDate(0, 0, labelHorizonSlack))
	if err != nil {
		return 0, err
	}
	articles, err := s.data.EnsureNewsData(ctx, symbol, start, end)
	if err != nil {
		return 0, err
	}

	endDay := domain.Day(end)
	rows := s.engine.BuildRows(bars, articles)
	kept := rows[:0]
	for _, row := range rows {
		if !row.Date.After(endDay) {
			kept = append(kept, row)
		}
	}

	if err := s.store.ReplaceRows(ctx, symbol, kept); err != nil {
		return 0, err
	}
	return len(kept), nil
}

// List returns stored feature rows for a ticker in [from, to].
func (s *FeatureService) List(ctx context.Context, symbol string, from, to time.Time) ([]domain.DailyFeatureRow, error) {
	ctx, span := s.tracer.Start(ctx, "feature-service.list")
	defer span.End()

	return s.store.ListRows(ctx, symbol, domain.Day(from), domain.Day(to))
}
