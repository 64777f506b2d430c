package provider

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"stockmood/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

func newsTestProvider(t *testing.T, payload string) *AlphaVantageProvider {
	t.Helper()
	p := NewAlphaVantageProvider(trace.NewNoopTracerProvider().Tracer("test"), "demo", 4)
	p.baseURL = "http://example"
	p.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("function") != "NEWS_SENTIMENT" {
				t.Fatalf("unexpected function: %s", req.URL.Query().Get("function"))
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewReader([]byte(payload))),
				Header:     make(http.Header),
			}, nil
		}),
	}
	p.limiter = NewRateLimiter(10, time.Millisecond)
	return p
}

func TestAlphaVantageFetchTickerNews(t *testing.T) {
	t.Parallel()

	payload := `{"feed":[{
		"title":"Apple beats earnings expectations",
		"url":"https://example.com/a",
		"time_published":"20240315T123000",
		"source":"Reuters",
		"summary":"Apple Inc reported strong quarterly results.",
		"overall_sentiment_label":"Neutral",
		"ticker_sentiment":[{"ticker":"AAPL","relevance_score":"0.9","ticker_sentiment_label":"Bullish"}]
	}]}`

	p := newsTestProvider(t, payload)
	start := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)

	items, err := p.FetchTickerNews(context.Background(), "AAPL", start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.SentimentLabel != "Bullish" {
		t.Fatalf("expected per-ticker label to win, got %s", item.SentimentLabel)
	}
	if item.Bucket != domain.SentimentVeryPositive {
		t.Fatalf("expected very_positive bucket, got %s", item.Bucket)
	}
	if item.SentimentScore == nil || *item.SentimentScore != 0.75 {
		t.Fatalf("unexpected score: %+v", item.SentimentScore)
	}
}

func TestAlphaVantageFiltersOutOfRangeItems(t *testing.T) {
	t.Parallel()

	payload := `{"feed":[
		{"title":"Old news","url":"u1","time_published":"20230101T000000","source":"X","summary":"s","overall_sentiment_label":"Neutral"},
		{"title":"Fresh news","url":"u2","time_published":"20240315T090000","source":"X","summary":"s","overall_sentiment_label":"Neutral"}
	]}`

	p := newsTestProvider(t, payload)
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	end := start

	items, err := p.FetchTickerNews(context.Background(), "AAPL", start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Headline != "Fresh news" {
		t.Fatalf("expected only in-range item, got %+v", items)
	}
}

func TestAlphaVantageThrottleNoteIsProviderUnavailable(t *testing.T) {
	t.Parallel()

	p := newsTestProvider(t, `{"Note":"API call frequency is 5 calls per minute"}`)
	_, err := p.FetchTickerNews(context.Background(), "AAPL", time.Now().AddDate(0, 0, -1), time.Now())
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestAlphaVantageMissingKey(t *testing.T) {
	t.Parallel()

	p := NewAlphaVantageProvider(trace.NewNoopTracerProvider().Tracer("test"), "", 4)
	_, err := p.FetchTickerNews(context.Background(), "AAPL", time.Now().AddDate(0, 0, -1), time.Now())
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
