package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"stockmood/internal/domain"
	"stockmood/internal/provider"
	"stockmood/internal/relevance"
	"stockmood/internal/sentiment"

	"go.opentelemetry.io/otel/trace"
)

type PriceProvider interface {
	FetchDailyPrices(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error)
}

type NewsProvider interface {
	FetchTickerNews(ctx context.Context, symbol string, start, end time.Time) ([]provider.NewsItem, error)
}

type PriceRepository interface {
	UpsertBars(ctx context.Context, bars []domain.PriceBar) error
	GetBarsInRange(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error)
	CachedDates(ctx context.Context, symbol string, from, to time.Time) (map[time.Time]struct{}, error)
}

type NewsRepository interface {
	UpsertArticles(ctx context.Context, articles []domain.NewsArticle) ([]domain.NewsArticle, error)
	ListRelevant(ctx context.Context, symbol string, from, to time.Time) ([]domain.NewsArticle, error)
	ListUnscored(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error)
	ListAll(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error)
	UpdateSentiment(ctx context.Context, articleID int64, score float64, label string, scoredAt time.Time) error
	UpdateRelevance(ctx context.Context, articleID int64, relevant bool, score float64) error
	CoveredDates(ctx context.Context, symbol string, from, to time.Time) (map[time.Time]struct{}, error)
	MarkCovered(ctx context.Context, symbol string, dates []time.Time) error
}

type ArticleScorer interface {
	Score(ctx context.Context, articles []domain.NewsArticle) ([]sentiment.ArticleScore, error)
}

// RefreshService keeps the local cache fresh on demand. Reads always come
// from the cache; providers are called only for date gaps, and never for
// dates past the injected clock's today.
type RefreshService struct {
	tracer    trace.Tracer
	prices    PriceProvider
	news      NewsProvider
	priceRepo PriceRepository
	newsRepo  NewsRepository
	now       func() time.Time
}

func NewRefreshService(
	tracer trace.Tracer,
	prices PriceProvider,
	news NewsProvider,
	priceRepo PriceRepository,
	newsRepo NewsRepository,
	now func() time.Time,
) *RefreshService {
	if now == nil {
		now = time.Now
	}
	return &RefreshService{
		tracer:    tracer,
		prices:    prices,
		news:      news,
		priceRepo: priceRepo,
		newsRepo:  newsRepo,
		now:       now,
	}
}

// EnsurePriceData returns cached daily bars for [start, end], fetching only
// the missing weekday runs first. Provider failures are absorbed: the cached
// subset is still served and the gap is retried on the next call.
func (s *RefreshService) EnsurePriceData(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	ctx, span := s.tracer.Start(ctx, "refresh-service.ensure-price-data")
	defer span.End()

	start, end, err := s.clampRange(start, end)
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		return nil, nil
	}

	cached, err := s.priceRepo.CachedDates(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	today := domain.Day(s.now())
	for _, run := range missingRuns(weekdaysBetween(start, end), cached) {
		bars, err := s.prices.FetchDailyPrices(ctx, symbol, run.from, run.to)
		if err != nil {
			log.Printf("price fetch failed for %s %s..%s, serving cached data: %v",
				symbol, run.from.Format("2006-01-02"), run.to.Format("2006-01-02"), err)
			continue
		}
		kept := bars[:0]
		for _, b := range bars {
			if !domain.Day(b.Date).After(today) {
				kept = append(kept, b)
			}
		}
		if err := s.priceRepo.UpsertBars(ctx, kept); err != nil {
			return nil, err
		}
	}

	return s.priceRepo.GetBarsInRange(ctx, symbol, start, end)
}

// EnsureNewsData returns relevant cached articles for [start, end], fetching
// missing days first. Fetched items pass through the relevance filter before
// storage; a day is only marked covered after a successful fetch, so quiet
// days are not refetched but failed ones are.
func (s *RefreshService) EnsureNewsData(ctx context.Context, symbol string, start, end time.Time) ([]domain.NewsArticle, error) {
	ctx, span := s.tracer.Start(ctx, "refresh-service.ensure-news-data")
	defer span.End()

	start, end, err := s.clampRange(start, end)
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		return nil, nil
	}

	covered, err := s.newsRepo.CoveredDates(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	for _, run := range missingRuns(calendarDays(start, end), covered) {
		items, err := s.news.FetchTickerNews(ctx, symbol, run.from, run.to)
		if err != nil {
			log.Printf("news fetch failed for %s %s..%s, serving cached data: %v",
				symbol, run.from.Format("2006-01-02"), run.to.Format("2006-01-02"), err)
			continue
		}
		articles := make([]domain.NewsArticle, 0, len(items))
		for _, item := range items {
			articles = append(articles, articleFromItem(item, s.now()))
		}
		if _, err := s.newsRepo.UpsertArticles(ctx, articles); err != nil {
			return nil, err
		}
		if err := s.newsRepo.MarkCovered(ctx, symbol, calendarDays(run.from, run.to)); err != nil {
			return nil, err
		}
	}

	return s.newsRepo.ListRelevant(ctx, symbol, start, end.Add(24*time.Hour-time.Second))
}

// EnrichSentiment scores relevant articles that carried no provider
// sentiment. Returns how many articles were updated.
func (s *RefreshService) EnrichSentiment(ctx context.Context, scorer ArticleScorer, symbol string, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "refresh-service.enrich-sentiment")
	defer span.End()

	articles, err := s.newsRepo.ListUnscored(ctx, symbol, limit)
	if err != nil {
		return 0, err
	}
	if len(articles) == 0 {
		return 0, nil
	}

	scores, err := scorer.Score(ctx, articles)
	if err != nil {
		return 0, err
	}

	updated := 0
	scoredAt := s.now().UTC()
	for _, sc := range scores {
		bucket := sc.Bucket()
		if err := s.newsRepo.UpdateSentiment(ctx, sc.ArticleID, bucket.Score(), string(bucket), scoredAt); err != nil {
			log.Printf("sentiment update failed for article %d: %v", sc.ArticleID, err)
			continue
		}
		updated++
	}
	return updated, nil
}

// RescoreRelevance replays the relevance filter over stored articles and
// persists changed verdicts. Run after a term vocabulary change.
func (s *RefreshService) RescoreRelevance(ctx context.Context, symbol string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "refresh-service.rescore-relevance")
	defer span.End()

	articles, err := s.newsRepo.ListAll(ctx, symbol, 0)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, a := range articles {
		res := relevance.Score(a.TickerSymbol, a.Headline, a.RawText)
		if res.Relevant == a.IsRelevant && res.Score == a.RelevanceScore {
			continue
		}
		if err := s.newsRepo.UpdateRelevance(ctx, a.ID, res.Relevant, res.Score); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// clampRange truncates the bounds to days and caps end at the injected
// today. A range entirely in the future clamps to a zero start, meaning
// nothing to do.
func (s *RefreshService) clampRange(start, end time.Time) (time.Time, time.Time, error) {
	start, end = domain.Day(start), domain.Day(end)
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid range: end %s before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	today := domain.Day(s.now())
	if end.After(today) {
		end = today
	}
	if start.After(today) {
		return time.Time{}, time.Time{}, nil
	}
	return start, end, nil
}

func articleFromItem(item provider.NewsItem, now time.Time) domain.NewsArticle {
	res := relevance.Score(item.TickerSymbol, item.Headline, item.RawText)
	article := domain.NewsArticle{
		TickerSymbol:   item.TickerSymbol,
		PublishedAt:    item.PublishedAt.UTC(),
		Headline:       item.Headline,
		Source:         item.Source,
		URL:            item.URL,
		RawText:        item.RawText,
		SentimentScore: item.SentimentScore,
		IsRelevant:     res.Relevant,
		RelevanceScore: res.Score,
	}
	if item.SentimentScore != nil {
		article.SentimentLabel = string(item.Bucket)
		scoredAt := now.UTC()
		article.ScoredAt = &scoredAt
	}
	return article
}

type dateRange struct {
	from, to time.Time
}

// missingRuns partitions the expected dates that are absent from have into
// contiguous runs, so each run costs one provider call.
func missingRuns(expected []time.Time, have map[time.Time]struct{}) []dateRange {
	var runs []dateRange
	var open *dateRange
	for _, d := range expected {
		if _, ok := have[d]; ok {
			if open != nil {
				runs = append(runs, *open)
				open = nil
			}
			continue
		}
		if open == nil {
			open = &dateRange{from: d, to: d}
		} else {
			open.to = d
		}
	}
	if open != nil {
		runs = append(runs, *open)
	}
	return runs
}

func weekdaysBetween(start, end time.Time) []time.Time {
	var out []time.Time
	for d := domain.Day(start); !d.After(domain.Day(end)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

func calendarDays(start, end time.Time) []time.Time {
	var out []time.Time
	for d := domain.Day(start); !d.After(domain.Day(end)); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
