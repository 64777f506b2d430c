package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stockmood/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	alphaVantageBaseURL = "https://www.alphavantage.co/query"
	avTimeLayout        = "20060102T150405"
	avQueryTimeLayout   = "20060102T1504"
)

// AlphaVantageProvider fetches ticker news with provider-supplied sentiment
// from the Alpha Vantage NEWS_SENTIMENT endpoint.
type AlphaVantageProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	tracer  trace.Tracer
	limiter *RateLimiter
}

func NewAlphaVantageProvider(tracer trace.Tracer, apiKey string, callsPerMinute int) *AlphaVantageProvider {
	if callsPerMinute <= 0 {
		callsPerMinute = 4
	}
	return &AlphaVantageProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: alphaVantageBaseURL,
		apiKey:  apiKey,
		tracer:  tracer,
		limiter: NewRateLimiter(callsPerMinute, time.Minute/time.Duration(callsPerMinute)),
	}
}

// FetchTickerNews fetches news for symbol published in [start, end]. The
// endpoint only carries recent history, so an empty feed for an old range is
// a valid response, not an error.
func (p *AlphaVantageProvider) FetchTickerNews(ctx context.Context, symbol string, start, end time.Time) ([]NewsItem, error) {
	_, span := p.tracer.Start(ctx, "alphavantage.fetch-ticker-news")
	defer span.End()

	if p.apiKey == "" {
		return nil, fmt.Errorf("alpha vantage api key not configured: %w", domain.ErrProviderUnavailable)
	}

	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	params.Set("tickers", symbol)
	params.Set("time_from", domain.Day(start).Format(avQueryTimeLayout))
	params.Set("time_to", domain.Day(end).Add(24*time.Hour-time.Minute).Format(avQueryTimeLayout))
	params.Set("limit", "1000")
	params.Set("apikey", p.apiKey)

	body, err := p.doRequest(ctx, p.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch news for %s: %w", symbol, err)
	}

	var raw struct {
		ErrorMessage string `json:"Error Message"`
		Note         string `json:"Note"`
		Information  string `json:"Information"`
		Feed         []struct {
			Title                 string `json:"title"`
			URL                   string `json:"url"`
			TimePublished         string `json:"time_published"`
			Source                string `json:"source"`
			Summary               string `json:"summary"`
			OverallSentimentLabel string `json:"overall_sentiment_label"`
			TickerSentiment       []struct {
				Ticker               string `json:"ticker"`
				RelevanceScore       string `json:"relevance_score"`
				TickerSentimentLabel string `json:"ticker_sentiment_label"`
			} `json:"ticker_sentiment"`
		} `json:"feed"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse news payload for %s: %w", symbol, err)
	}
	if raw.ErrorMessage != "" {
		return nil, fmt.Errorf("news API error: %s: %w", raw.ErrorMessage, domain.ErrProviderUnavailable)
	}
	// "Note" and "Information" both signal rate limiting or plan issues.
	if raw.Note != "" || raw.Information != "" {
		return nil, fmt.Errorf("news API throttled: %w", domain.ErrProviderUnavailable)
	}

	items := make([]NewsItem, 0, len(raw.Feed))
	for _, row := range raw.Feed {
		headline := sanitizeText(row.Title, 300)
		if headline == "" {
			continue
		}
		publishedAt, err := time.Parse(avTimeLayout, row.TimePublished)
		if err != nil {
			continue
		}
		publishedAt = publishedAt.UTC()
		if publishedAt.Before(domain.Day(start)) || publishedAt.After(domain.Day(end).Add(24*time.Hour)) {
			continue
		}

		// Prefer the per-ticker sentiment entry; fall back to overall.
		label := row.OverallSentimentLabel
		for _, ts := range row.TickerSentiment {
			if ts.Ticker == symbol {
				label = ts.TickerSentimentLabel
				break
			}
		}
		bucket := domain.BucketFromAlphaVantage(label)
		score := bucket.Score()

		items = append(items, NewsItem{
			TickerSymbol:   symbol,
			PublishedAt:    publishedAt,
			Headline:       headline,
			Source:         sanitizeText(row.Source, 120),
			URL:            sanitizeText(row.URL, 500),
			RawText:        sanitizeText(row.Summary, 2000),
			SentimentScore: &score,
			SentimentLabel: label,
			Bucket:         bucket,
		})
	}
	return items, nil
}

func (p *AlphaVantageProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("news API status %d: %s: %w", resp.StatusCode, string(body), domain.ErrProviderUnavailable)
	}

	return io.ReadAll(resp.Body)
}
