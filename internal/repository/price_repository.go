package repository

import (
	"context"
	"time"

	"stockmood/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PriceRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPriceRepository(pool PgxPool, tracer trace.Tracer) *PriceRepository {
	return &PriceRepository{pool: pool, tracer: tracer}
}

// UpsertBars writes daily bars idempotently; re-ingesting the same range
// leaves row counts unchanged.
func (r *PriceRepository) UpsertBars(ctx context.Context, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "price-repo.upsert-bars")
	defer span.End()

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(
			`INSERT INTO daily_prices (ticker_symbol, date, open, high, low, close, volume)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (ticker_symbol, date) DO UPDATE SET
			     open = EXCLUDED.open,
			     high = EXCLUDED.high,
			     low = EXCLUDED.low,
			     close = EXCLUDED.close,
			     volume = EXCLUDED.volume`,
			b.TickerSymbol, domain.Day(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range bars {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetBarsInRange returns bars for [from, to] in ascending date order.
func (r *PriceRepository) GetBarsInRange(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	_, span := r.tracer.Start(ctx, "price-repo.get-bars-in-range")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT ticker_symbol, date, open, high, low, close, volume
		 FROM daily_prices
		 WHERE ticker_symbol = $1 AND date >= $2 AND date <= $3
		 ORDER BY date ASC`,
		symbol, domain.Day(from), domain.Day(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		if err := rows.Scan(&b.TickerSymbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Date = b.Date.UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// CachedDates returns the set of dates already stored for a symbol inside
// [from, to]. The freshness pass diffs this against the expected calendar to
// find gaps worth fetching.
func (r *PriceRepository) CachedDates(ctx context.Context, symbol string, from, to time.Time) (map[time.Time]struct{}, error) {
	_, span := r.tracer.Start(ctx, "price-repo.cached-dates")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT date FROM daily_prices
		 WHERE ticker_symbol = $1 AND date >= $2 AND date <= $3`,
		symbol, domain.Day(from), domain.Day(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[time.Time]struct{})
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out[domain.Day(d)] = struct{}{}
	}
	return out, rows.Err()
}

// LatestDate returns the most recent cached bar date for a symbol, or the
// zero time when nothing is cached.
func (r *PriceRepository) LatestDate(ctx context.Context, symbol string) (time.Time, error) {
	_, span := r.tracer.Start(ctx, "price-repo.latest-date")
	defer span.End()

	var d time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(date), 'epoch'::timestamptz) FROM daily_prices WHERE ticker_symbol = $1`,
		symbol,
	).Scan(&d)
	if err != nil {
		return time.Time{}, err
	}
	if d.Unix() == 0 {
		return time.Time{}, nil
	}
	return domain.Day(d), nil
}
