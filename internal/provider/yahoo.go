package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stockmood/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooProvider fetches daily OHLCV bars from the Yahoo Finance chart API.
type YahooProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

func NewYahooProvider(tracer trace.Tracer, callsPerMinute int) *YahooProvider {
	if callsPerMinute <= 0 {
		callsPerMinute = 30
	}
	return &YahooProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: yahooBaseURL,
		tracer:  tracer,
		limiter: NewRateLimiter(callsPerMinute, time.Minute/time.Duration(callsPerMinute)),
	}
}

// FetchDailyPrices fetches daily bars for symbol in [start, end]. An empty
// result for a valid range (weekends, holidays) is not an error.
func (p *YahooProvider) FetchDailyPrices(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	_, span := p.tracer.Start(ctx, "yahoo.fetch-daily-prices")
	defer span.End()

	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	// period2 is exclusive in the chart API, so push it one day past end.
	url := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=1d&events=history",
		p.baseURL, symbol, domain.Day(start).Unix(), domain.Day(end).AddDate(0, 0, 1).Unix())

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch daily prices for %s: %w", symbol, err)
	}

	var raw struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Open   []*float64 `json:"open"`
						High   []*float64 `json:"high"`
						Low    []*float64 `json:"low"`
						Close  []*float64 `json:"close"`
						Volume []*int64   `json:"volume"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse chart for %s: %w", symbol, err)
	}
	if raw.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s (%s): %w", symbol, raw.Chart.Error.Code, domain.ErrProviderUnavailable)
	}
	if len(raw.Chart.Result) == 0 || len(raw.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := raw.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]domain.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil || quote.Open[i] == nil {
			continue
		}
		bar := domain.PriceBar{
			TickerSymbol: symbol,
			Date:         domain.Day(time.Unix(ts, 0)),
			Open:         *quote.Open[i],
			Close:        *quote.Close[i],
		}
		if i < len(quote.High) && quote.High[i] != nil {
			bar.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			bar.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func (p *YahooProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "stockmood/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("chart API status %d: %s: %w", resp.StatusCode, string(body), domain.ErrProviderUnavailable)
	}

	return io.ReadAll(resp.Body)
}
