package features

import (
	"context"
	"time"

	"stockmood/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

// ReplaceRows rewrites the feature rows for one ticker wholesale. Feature
// building is deterministic from cached inputs, so a rebuild replaces rather
// than merges; stale rows from a previous vocabulary never survive.
func (r *Repository) ReplaceRows(ctx context.Context, symbol string, rows []domain.DailyFeatureRow) error {
	_, span := r.tracer.Start(ctx, "feature-repo.replace-rows")
	defer span.End()

	if _, err := r.pool.Exec(ctx, `DELETE FROM daily_features WHERE ticker_symbol = $1`, symbol); err != nil {
		return err
	}

	for i := range rows {
		row := rows[i]
		_, err := r.pool.Exec(ctx, `
INSERT INTO daily_features (
    ticker_symbol, date,
    sentiment_avg, sentiment_rolling_mean_3d,
    return_1d, volatility_5d,
    future_3d_return, future_3d_return_positive, updated_at
) VALUES (
    $1, $2,
    $3, $4,
    $5, $6,
    $7, $8, NOW()
)
ON CONFLICT (ticker_symbol, date) DO UPDATE SET
    sentiment_avg = EXCLUDED.sentiment_avg,
    sentiment_rolling_mean_3d = EXCLUDED.sentiment_rolling_mean_3d,
    return_1d = EXCLUDED.return_1d,
    volatility_5d = EXCLUDED.volatility_5d,
    future_3d_return = EXCLUDED.future_3d_return,
    future_3d_return_positive = EXCLUDED.future_3d_return_positive,
    updated_at = NOW()`,
			row.TickerSymbol,
			domain.Day(row.Date),
			row.SentimentAvg,
			row.SentimentRollingMean3D,
			row.Return1D,
			row.Volatility5D,
			row.FutureReturn3D,
			row.Future3DPositive,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListLabeledRows returns rows with a non-nil label inside [from, to] across
// all tickers, ascending by date. Training reads through here.
func (r *Repository) ListLabeledRows(ctx context.Context, from, to time.Time) ([]domain.DailyFeatureRow, error) {
	_, span := r.tracer.Start(ctx, "feature-repo.list-labeled")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT ticker_symbol, date,
       sentiment_avg, sentiment_rolling_mean_3d,
       return_1d, volatility_5d,
       future_3d_return, future_3d_return_positive, created_at, updated_at
FROM daily_features
WHERE date >= $1
  AND date <= $2
  AND future_3d_return_positive IS NOT NULL
ORDER BY date ASC, ticker_symbol ASC`, domain.Day(from), domain.Day(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// ListRows returns all rows for one ticker inside [from, to], ascending.
func (r *Repository) ListRows(ctx context.Context, symbol string, from, to time.Time) ([]domain.DailyFeatureRow, error) {
	_, span := r.tracer.Start(ctx, "feature-repo.list")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT ticker_symbol, date,
       sentiment_avg, sentiment_rolling_mean_3d,
       return_1d, volatility_5d,
       future_3d_return, future_3d_return_positive, created_at, updated_at
FROM daily_features
WHERE ticker_symbol = $1
  AND date >= $2
  AND date <= $3
ORDER BY date ASC`, symbol, domain.Day(from), domain.Day(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// LatestRow returns the most recent feature row for a ticker dated on or
// before asOf, or nil when none exists.
func (r *Repository) LatestRow(ctx context.Context, symbol string, asOf time.Time) (*domain.DailyFeatureRow, error) {
	_, span := r.tracer.Start(ctx, "feature-repo.latest-row")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT ticker_symbol, date,
       sentiment_avg, sentiment_rolling_mean_3d,
       return_1d, volatility_5d,
       future_3d_return, future_3d_return_positive, created_at, updated_at
FROM daily_features
WHERE ticker_symbol = $1 AND date <= $2
ORDER BY date DESC
LIMIT 1`, symbol, domain.Day(asOf))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanFeatureRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func scanFeatureRows(rows pgx.Rows) ([]domain.DailyFeatureRow, error) {
	result := make([]domain.DailyFeatureRow, 0)
	for rows.Next() {
		var row domain.DailyFeatureRow
		var ret1d pgtype.Float8
		var vol5d pgtype.Float8
		var futureRet pgtype.Float8
		var label pgtype.Bool
		if err := rows.Scan(
			&row.TickerSymbol,
			&row.Date,
			&row.SentimentAvg,
			&row.SentimentRollingMean3D,
			&ret1d,
			&vol5d,
			&futureRet,
			&label,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		row.Date = row.Date.UTC()
		row.CreatedAt = row.CreatedAt.UTC()
		row.UpdatedAt = row.UpdatedAt.UTC()
		if ret1d.Valid {
			v := ret1d.Float64
			row.Return1D = &v
		}
		if vol5d.Valid {
			v := vol5d.Float64
			row.Volatility5D = &v
		}
		if futureRet.Valid {
			v := futureRet.Float64
			row.FutureReturn3D = &v
		}
		if label.Valid {
			v := label.Bool
			row.Future3DPositive = &v
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
