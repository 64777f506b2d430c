package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockmood/internal/domain"
	"stockmood/internal/provider"
	"stockmood/internal/sentiment"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func fixedNow(day string) func() time.Time {
	t, _ := time.Parse("2006-01-02", day)
	return func() time.Time { return t }
}

type mockPriceProvider struct {
	bars       []domain.PriceBar
	err        error
	calls      int
	lastStart  time.Time
	lastEnd    time.Time
	rangeCalls []dateRange
}

func (m *mockPriceProvider) FetchDailyPrices(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	m.calls++
	m.lastStart, m.lastEnd = start, end
	m.rangeCalls = append(m.rangeCalls, dateRange{from: start, to: end})
	if m.err != nil {
		return nil, m.err
	}
	return m.bars, nil
}

type mockNewsProvider struct {
	items []provider.NewsItem
	err   error
	calls int
}

func (m *mockNewsProvider) FetchTickerNews(ctx context.Context, symbol string, start, end time.Time) ([]provider.NewsItem, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

type mockPriceRepo struct {
	bars   map[time.Time]domain.PriceBar
	upsert int
}

func newMockPriceRepo() *mockPriceRepo {
	return &mockPriceRepo{bars: make(map[time.Time]domain.PriceBar)}
}

func (m *mockPriceRepo) UpsertBars(ctx context.Context, bars []domain.PriceBar) error {
	m.upsert++
	for _, b := range bars {
		m.bars[domain.Day(b.Date)] = b
	}
	return nil
}

func (m *mockPriceRepo) GetBarsInRange(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	var out []domain.PriceBar
	for d, b := range m.bars {
		if !d.Before(from) && !d.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockPriceRepo) CachedDates(ctx context.Context, symbol string, from, to time.Time) (map[time.Time]struct{}, error) {
	out := make(map[time.Time]struct{})
	for d := range m.bars {
		if !d.Before(from) && !d.After(to) {
			out[d] = struct{}{}
		}
	}
	return out, nil
}

type mockNewsRepo struct {
	articles map[int64]domain.NewsArticle
	covered  map[time.Time]struct{}
	nextID   int64
}

func newMockNewsRepo() *mockNewsRepo {
	return &mockNewsRepo{
		articles: make(map[int64]domain.NewsArticle),
		covered:  make(map[time.Time]struct{}),
		nextID:   1,
	}
}

func (m *mockNewsRepo) UpsertArticles(ctx context.Context, articles []domain.NewsArticle) ([]domain.NewsArticle, error) {
	out := make([]domain.NewsArticle, 0, len(articles))
	for _, a := range articles {
		found := false
		for id, existing := range m.articles {
			if existing.TickerSymbol == a.TickerSymbol && existing.PublishedAt.Equal(a.PublishedAt) && existing.URL == a.URL {
				a.ID = id
				m.articles[id] = a
				found = true
				break
			}
		}
		if !found {
			a.ID = m.nextID
			m.nextID++
			m.articles[a.ID] = a
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *mockNewsRepo) ListRelevant(ctx context.Context, symbol string, from, to time.Time) ([]domain.NewsArticle, error) {
	var out []domain.NewsArticle
	for _, a := range m.articles {
		if a.IsRelevant && !a.PublishedAt.Before(from) && !a.PublishedAt.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockNewsRepo) ListUnscored(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error) {
	var out []domain.NewsArticle
	for _, a := range m.articles {
		if a.IsRelevant && a.SentimentScore == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockNewsRepo) ListAll(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error) {
	var out []domain.NewsArticle
	for _, a := range m.articles {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockNewsRepo) UpdateSentiment(ctx context.Context, articleID int64, score float64, label string, scoredAt time.Time) error {
	a, ok := m.articles[articleID]
	if !ok {
		return errors.New("not found")
	}
	a.SentimentScore = &score
	a.SentimentLabel = label
	a.ScoredAt = &scoredAt
	m.articles[articleID] = a
	return nil
}

func (m *mockNewsRepo) UpdateRelevance(ctx context.Context, articleID int64, relevant bool, score float64) error {
	a, ok := m.articles[articleID]
	if !ok {
		return errors.New("not found")
	}
	a.IsRelevant = relevant
	a.RelevanceScore = score
	m.articles[articleID] = a
	return nil
}

func (m *mockNewsRepo) CoveredDates(ctx context.Context, symbol string, from, to time.Time) (map[time.Time]struct{}, error) {
	out := make(map[time.Time]struct{})
	for d := range m.covered {
		if !d.Before(from) && !d.After(to) {
			out[d] = struct{}{}
		}
	}
	return out, nil
}

func (m *mockNewsRepo) MarkCovered(ctx context.Context, symbol string, dates []time.Time) error {
	for _, d := range dates {
		m.covered[domain.Day(d)] = struct{}{}
	}
	return nil
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestEnsurePriceDataNeverFetchesPastToday(t *testing.T) {
	t.Parallel()

	prov := &mockPriceProvider{}
	svc := NewRefreshService(testTracer, prov, &mockNewsProvider{}, newMockPriceRepo(), newMockNewsRepo(), fixedNow("2024-06-01"))

	_, err := svc.EnsurePriceData(context.Background(), "AAPL", day("2024-05-27"), day("2030-01-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prov.calls == 0 {
		t.Fatal("expected at least one fetch")
	}
	for _, r := range prov.rangeCalls {
		if r.to.After(day("2024-06-01")) {
			t.Fatalf("fetch range extends past today: %v", r.to)
		}
	}
}

func TestEnsurePriceDataEntirelyFutureRangeFetchesNothing(t *testing.T) {
	t.Parallel()

	prov := &mockPriceProvider{}
	svc := NewRefreshService(testTracer, prov, &mockNewsProvider{}, newMockPriceRepo(), newMockNewsRepo(), fixedNow("2024-06-01"))

	bars, err := svc.EnsurePriceData(context.Background(), "AAPL", day("2030-01-01"), day("2030-02-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prov.calls != 0 {
		t.Fatalf("expected no provider calls, got %d", prov.calls)
	}
	if len(bars) != 0 {
		t.Fatalf("expected no bars, got %d", len(bars))
	}
}

func TestEnsurePriceDataFetchesOnlyGaps(t *testing.T) {
	t.Parallel()

	repo := newMockPriceRepo()
	// Mon and Tue cached; Wed through Fri missing.
	for _, d := range []string{"2024-06-03", "2024-06-04"} {
		repo.bars[day(d)] = domain.PriceBar{TickerSymbol: "AAPL", Date: day(d), Close: 100}
	}
	prov := &mockPriceProvider{}
	svc := NewRefreshService(testTracer, prov, &mockNewsProvider{}, repo, newMockNewsRepo(), fixedNow("2024-06-10"))

	_, err := svc.EnsurePriceData(context.Background(), "AAPL", day("2024-06-03"), day("2024-06-07"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prov.calls != 1 {
		t.Fatalf("expected one gap fetch, got %d", prov.calls)
	}
	if !prov.lastStart.Equal(day("2024-06-05")) || !prov.lastEnd.Equal(day("2024-06-07")) {
		t.Fatalf("unexpected gap range: %v..%v", prov.lastStart, prov.lastEnd)
	}
}

func TestEnsurePriceDataIdempotentIngestion(t *testing.T) {
	t.Parallel()

	repo := newMockPriceRepo()
	prov := &mockPriceProvider{bars: []domain.PriceBar{
		{TickerSymbol: "AAPL", Date: day("2024-06-03"), Close: 100},
		{TickerSymbol: "AAPL", Date: day("2024-06-04"), Close: 101},
	}}
	svc := NewRefreshService(testTracer, prov, &mockNewsProvider{}, repo, newMockNewsRepo(), fixedNow("2024-06-10"))

	if _, err := svc.EnsurePriceData(context.Background(), "AAPL", day("2024-06-03"), day("2024-06-04")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := len(repo.bars)

	if _, err := svc.EnsurePriceData(context.Background(), "AAPL", day("2024-06-03"), day("2024-06-04")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.bars) != first {
		t.Fatalf("row count changed on re-ingest: %d -> %d", first, len(repo.bars))
	}
	if prov.calls != 1 {
		t.Fatalf("expected cached second call, got %d fetches", prov.calls)
	}
}

func TestEnsurePriceDataServesCacheOnProviderFailure(t *testing.T) {
	t.Parallel()

	repo := newMockPriceRepo()
	repo.bars[day("2024-06-03")] = domain.PriceBar{TickerSymbol: "AAPL", Date: day("2024-06-03"), Close: 100}
	prov := &mockPriceProvider{err: domain.ErrProviderUnavailable}
	svc := NewRefreshService(testTracer, prov, &mockNewsProvider{}, repo, newMockNewsRepo(), fixedNow("2024-06-10"))

	bars, err := svc.EnsurePriceData(context.Background(), "AAPL", day("2024-06-03"), day("2024-06-05"))
	if err != nil {
		t.Fatalf("expected absorbed failure, got %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected cached bar to be served, got %d", len(bars))
	}
}

func TestEnsureNewsDataFiltersAndMarksCoverage(t *testing.T) {
	t.Parallel()

	newsRepo := newMockNewsRepo()
	prov := &mockNewsProvider{items: []provider.NewsItem{
		{
			TickerSymbol: "AAPL",
			PublishedAt:  day("2024-06-03").Add(13 * time.Hour),
			Headline:     "Apple Inc stock climbs after earnings",
			URL:          "https://example.com/1",
		},
		{
			TickerSymbol: "AAPL",
			PublishedAt:  day("2024-06-03").Add(15 * time.Hour),
			Headline:     "Global market research report 2024 roundup",
			URL:          "https://example.com/2",
		},
	}}
	svc := NewRefreshService(testTracer, &mockPriceProvider{}, prov, newMockPriceRepo(), newsRepo, fixedNow("2024-06-10"))

	articles, err := svc.EnsureNewsData(context.Background(), "AAPL", day("2024-06-03"), day("2024-06-04"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected only the relevant article, got %d", len(articles))
	}
	if articles[0].RelevanceScore != 1.0 {
		t.Fatalf("expected relevance 1.0, got %f", articles[0].RelevanceScore)
	}
	// Both articles are stored, irrelevant ones just excluded from reads.
	if len(newsRepo.articles) != 2 {
		t.Fatalf("expected 2 stored articles, got %d", len(newsRepo.articles))
	}
	if len(newsRepo.covered) != 2 {
		t.Fatalf("expected 2 covered days, got %d", len(newsRepo.covered))
	}

	// Second call is fully covered: no provider traffic.
	if _, err := svc.EnsureNewsData(context.Background(), "AAPL", day("2024-06-03"), day("2024-06-04")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prov.calls != 1 {
		t.Fatalf("expected covered range to skip fetch, got %d calls", prov.calls)
	}
}

func TestEnsureNewsDataFailedFetchNotMarkedCovered(t *testing.T) {
	t.Parallel()

	newsRepo := newMockNewsRepo()
	prov := &mockNewsProvider{err: domain.ErrProviderUnavailable}
	svc := NewRefreshService(testTracer, &mockPriceProvider{}, prov, newMockPriceRepo(), newsRepo, fixedNow("2024-06-10"))

	if _, err := svc.EnsureNewsData(context.Background(), "AAPL", day("2024-06-03"), day("2024-06-03")); err != nil {
		t.Fatalf("expected absorbed failure, got %v", err)
	}
	if len(newsRepo.covered) != 0 {
		t.Fatal("failed fetch must not mark coverage")
	}

	// Retry succeeds and covers the day.
	prov.err = nil
	if _, err := svc.EnsureNewsData(context.Background(), "AAPL", day("2024-06-03"), day("2024-06-03")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(newsRepo.covered) != 1 {
		t.Fatalf("expected retried day to be covered, got %d", len(newsRepo.covered))
	}
}

func TestEnrichSentimentScoresUnscored(t *testing.T) {
	t.Parallel()

	newsRepo := newMockNewsRepo()
	newsRepo.articles[1] = domain.NewsArticle{
		ID: 1, TickerSymbol: "AAPL", Headline: "Apple beats on strong growth",
		IsRelevant: true, RelevanceScore: 0.7,
	}
	newsRepo.nextID = 2
	svc := NewRefreshService(testTracer, &mockPriceProvider{}, &mockNewsProvider{}, newMockPriceRepo(), newsRepo, fixedNow("2024-06-10"))

	updated, err := svc.EnrichSentiment(context.Background(), sentiment.NewScorer(nil, 10), "AAPL", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 update, got %d", updated)
	}
	got := newsRepo.articles[1]
	if got.SentimentScore == nil || got.ScoredAt == nil {
		t.Fatalf("expected sentiment to be stored, got %+v", got)
	}
}

func TestRescoreRelevanceUpdatesChangedVerdicts(t *testing.T) {
	t.Parallel()

	newsRepo := newMockNewsRepo()
	// Stored with a stale verdict that the current vocabulary rejects.
	newsRepo.articles[1] = domain.NewsArticle{
		ID: 1, TickerSymbol: "AAPL", Headline: "Global market size forecast report",
		IsRelevant: true, RelevanceScore: 0.6,
	}
	// Verdict already matches; must not count as changed.
	newsRepo.articles[2] = domain.NewsArticle{
		ID: 2, TickerSymbol: "AAPL", Headline: "Apple Inc stock rises on earnings",
		IsRelevant: true, RelevanceScore: 1.0,
	}
	newsRepo.nextID = 3
	svc := NewRefreshService(testTracer, &mockPriceProvider{}, &mockNewsProvider{}, newMockPriceRepo(), newsRepo, fixedNow("2024-06-10"))

	changed, err := svc.RescoreRelevance(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected 1 changed verdict, got %d", changed)
	}
	if newsRepo.articles[1].IsRelevant {
		t.Fatal("noise article should have been demoted")
	}
}
