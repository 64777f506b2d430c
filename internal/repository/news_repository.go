package repository

import (
	"context"
	"time"

	"stockmood/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type NewsRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewNewsRepository(pool PgxPool, tracer trace.Tracer) *NewsRepository {
	return &NewsRepository{pool: pool, tracer: tracer}
}

// UpsertArticles writes articles keyed by (ticker_symbol, published_at, url).
// Provider sentiment only fills missing values; an existing enricher score is
// never overwritten by a re-ingest. Relevance fields are always refreshed so
// a vocabulary change propagates on the next ingest.
func (r *NewsRepository) UpsertArticles(ctx context.Context, articles []domain.NewsArticle) ([]domain.NewsArticle, error) {
	if len(articles) == 0 {
		return nil, nil
	}
	_, span := r.tracer.Start(ctx, "news-repo.upsert-articles")
	defer span.End()

	batch := &pgx.Batch{}
	for _, a := range articles {
		batch.Queue(`
INSERT INTO news_articles (
    ticker_symbol, published_at, headline, source, url, raw_text,
    sentiment_score, sentiment_label, is_relevant, relevance_score, scored_at
) VALUES (
    $1, $2, $3, $4, $5, $6,
    $7, $8, $9, $10, $11
)
ON CONFLICT (ticker_symbol, published_at, url) DO UPDATE SET
    headline = EXCLUDED.headline,
    source = EXCLUDED.source,
    raw_text = EXCLUDED.raw_text,
    sentiment_score = COALESCE(news_articles.sentiment_score, EXCLUDED.sentiment_score),
    sentiment_label = COALESCE(NULLIF(news_articles.sentiment_label, ''), EXCLUDED.sentiment_label),
    is_relevant = EXCLUDED.is_relevant,
    relevance_score = EXCLUDED.relevance_score,
    scored_at = COALESCE(news_articles.scored_at, EXCLUDED.scored_at)
RETURNING id, ticker_symbol, published_at, headline, source, url, raw_text,
          sentiment_score, sentiment_label, is_relevant, relevance_score, scored_at, created_at`,
			a.TickerSymbol,
			a.PublishedAt.UTC(),
			a.Headline,
			a.Source,
			a.URL,
			a.RawText,
			nullFloat(a.SentimentScore),
			a.SentimentLabel,
			a.IsRelevant,
			a.RelevanceScore,
			nullTime(a.ScoredAt),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	out := make([]domain.NewsArticle, 0, len(articles))
	for range articles {
		article, err := scanArticleRow(br.QueryRow())
		if err != nil {
			return nil, err
		}
		out = append(out, article)
	}
	return out, nil
}

// ListRelevant returns relevant articles for a symbol published in [from, to],
// ascending by publication time.
func (r *NewsRepository) ListRelevant(ctx context.Context, symbol string, from, to time.Time) ([]domain.NewsArticle, error) {
	_, span := r.tracer.Start(ctx, "news-repo.list-relevant")
	defer span.End()

	rows, err := r.pool.Query(ctx, articleSelect+`
WHERE ticker_symbol = $1 AND is_relevant AND published_at >= $2 AND published_at <= $3
ORDER BY published_at ASC`,
		symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArticles(rows)
}

// ListUnscored returns relevant articles that still have no sentiment score,
// oldest first, for the enrichment pass.
func (r *NewsRepository) ListUnscored(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error) {
	_, span := r.tracer.Start(ctx, "news-repo.list-unscored")
	defer span.End()

	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, articleSelect+`
WHERE ticker_symbol = $1 AND is_relevant AND sentiment_score IS NULL
ORDER BY published_at ASC
LIMIT $2`,
		symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArticles(rows)
}

// UpdateSentiment stores an enricher result for one article.
func (r *NewsRepository) UpdateSentiment(ctx context.Context, articleID int64, score float64, label string, scoredAt time.Time) error {
	_, span := r.tracer.Start(ctx, "news-repo.update-sentiment")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
UPDATE news_articles
SET sentiment_score = $2, sentiment_label = $3, scored_at = $4
WHERE id = $1`, articleID, score, label, scoredAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateRelevance rewrites the relevance verdict for one article. Used by the
// re-scoring pass after a term vocabulary change.
func (r *NewsRepository) UpdateRelevance(ctx context.Context, articleID int64, relevant bool, score float64) error {
	_, span := r.tracer.Start(ctx, "news-repo.update-relevance")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
UPDATE news_articles
SET is_relevant = $2, relevance_score = $3
WHERE id = $1`, articleID, relevant, score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListAll returns every stored article for a symbol, ascending by publication
// time. The relevance re-pass walks this set.
func (r *NewsRepository) ListAll(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error) {
	_, span := r.tracer.Start(ctx, "news-repo.list-all")
	defer span.End()

	if limit <= 0 {
		limit = 5000
	}
	rows, err := r.pool.Query(ctx, articleSelect+`
WHERE ticker_symbol = $1
ORDER BY published_at ASC
LIMIT $2`,
		symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArticles(rows)
}

// CoveredDates returns the days inside [from, to] whose news has already
// been fetched for a symbol. Article dates alone cannot prove coverage
// because a quiet day legitimately has zero articles.
func (r *NewsRepository) CoveredDates(ctx context.Context, symbol string, from, to time.Time) (map[time.Time]struct{}, error) {
	_, span := r.tracer.Start(ctx, "news-repo.covered-dates")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT date FROM news_coverage
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

// MarkCovered records that news for the given days has been fetched.
func (r *NewsRepository) MarkCovered(ctx context.Context, symbol string, dates []time.Time) error {
	if len(dates) == 0 {
		return nil
	}
	_, span := r.tracer.Start(ctx, "news-repo.mark-covered")
	defer span.End()

	batch := &pgx.Batch{}
	for _, d := range dates {
		batch.Queue(`
INSERT INTO news_coverage (ticker_symbol, date)
VALUES ($1, $2)
ON CONFLICT (ticker_symbol, date) DO NOTHING`, symbol, domain.Day(d))
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range dates {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

const articleSelect = `
SELECT id, ticker_symbol, published_at, headline, source, url, raw_text,
       sentiment_score, sentiment_label, is_relevant, relevance_score, scored_at, created_at
FROM news_articles`

func collectArticles(rows pgx.Rows) ([]domain.NewsArticle, error) {
	var out []domain.NewsArticle
	for rows.Next() {
		article, err := scanArticleRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, article)
	}
	return out, rows.Err()
}

func scanArticleRow(s interface{ Scan(dest ...any) error }) (domain.NewsArticle, error) {
	var out domain.NewsArticle
	var score pgtype.Float8
	var label pgtype.Text
	var scored pgtype.Timestamptz

	if err := s.Scan(
		&out.ID,
		&out.TickerSymbol,
		&out.PublishedAt,
		&out.Headline,
		&out.Source,
		&out.URL,
		&out.RawText,
		&score,
		&label,
		&out.IsRelevant,
		&out.RelevanceScore,
		&scored,
		&out.CreatedAt,
	); err != nil {
		return domain.NewsArticle{}, err
	}

	out.PublishedAt = out.PublishedAt.UTC()
	out.CreatedAt = out.CreatedAt.UTC()
	if score.Valid {
		v := score.Float64
		out.SentimentScore = &v
	}
	if label.Valid {
		out.SentimentLabel = label.String
	}
	if scored.Valid {
		v := scored.Time.UTC()
		out.ScoredAt = &v
	}
	return out, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil || v.IsZero() {
		return nil
	}
	return v.UTC()
}
