package features

import (
	"math"
	"sort"
	"time"

	"stockmood/internal/domain"
)

const (
	featureSpecVersion = "v1"
	volatilityWindow   = 5
	sentimentWindow    = 3
	labelHorizonDays   = 3
)

// Engine derives one feature row per cached trading day. Every feature uses
// only data dated on or before the row's date; the label is the single
// forward-looking column and stays nil until the horizon close is cached.
type Engine struct {
	now            func() time.Time
	labelThreshold float64
}

func NewEngine(now func() time.Time, labelThreshold float64) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now, labelThreshold: labelThreshold}
}

func FeatureSpecVersion() string {
	return featureSpecVersion
}

// BuildRows computes feature rows from daily bars and the articles covering
// the same span. Bars are the trading calendar: day offsets (previous close,
// the 3-day horizon) count trading days, not calendar days.
func (e *Engine) BuildRows(bars []domain.PriceBar, articles []domain.NewsArticle) []domain.DailyFeatureRow {
	bars = sortedBars(bars)
	if len(bars) == 0 {
		return nil
	}

	closes := make([]float64, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
	}

	sentimentByDay := dailySentiment(articles)

	// return_1d per bar index; nil for the first bar or a zero prior close.
	returns := make([]*float64, len(bars))
	for i := 1; i < len(bars); i++ {
		if closes[i-1] == 0 {
			continue
		}
		r := closes[i]/closes[i-1] - 1
		returns[i] = &r
	}

	now := e.now().UTC()
	rows := make([]domain.DailyFeatureRow, 0, len(bars))
	sentimentAvgs := make([]float64, len(bars))

	for i := range bars {
		day := domain.Day(bars[i].Date)
		sentimentAvgs[i] = sentimentByDay[day]

		row := domain.DailyFeatureRow{
			TickerSymbol: bars[i].TickerSymbol,
			Date:         day,
			SentimentAvg: sentimentAvgs[i],
			Return1D:     returns[i],
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		lo := i - sentimentWindow + 1
		if lo < 0 {
			lo = 0
		}
		row.SentimentRollingMean3D = mean(sentimentAvgs[lo : i+1])

		row.Volatility5D = rollingReturnStd(returns, i, volatilityWindow)

		if i+labelHorizonDays < len(bars) && closes[i] != 0 {
			fr := closes[i+labelHorizonDays]/closes[i] - 1
			pos := fr > e.labelThreshold
			row.FutureReturn3D = &fr
			row.Future3DPositive = &pos
		}

		rows = append(rows, row)
	}
	return rows
}

// dailySentiment aggregates relevant, scored articles into one
// relevance-weighted average per publication day. Days without scored
// articles are simply absent and default to zero downstream.
func dailySentiment(articles []domain.NewsArticle) map[time.Time]float64 {
	type acc struct {
		weighted float64
		weight   float64
	}
	sums := make(map[time.Time]acc)
	for _, a := range articles {
		if !a.IsRelevant || a.SentimentScore == nil {
			continue
		}
		weight := a.RelevanceScore
		if weight <= 0 {
			weight = 1
		}
		day := domain.Day(a.PublishedAt)
		cur := sums[day]
		cur.weighted += *a.SentimentScore * weight
		cur.weight += weight
		sums[day] = cur
	}

	out := make(map[time.Time]float64, len(sums))
	for day, cur := range sums {
		if cur.weight > 0 {
			out[day] = cur.weighted / cur.weight
		}
	}
	return out
}

// rollingReturnStd is the sample standard deviation of the returns present
// in the trailing window ending at idx. Fewer than two observed returns
// yield nil, matching a sample deviation being undefined for one point.
func rollingReturnStd(returns []*float64, idx, window int) *float64 {
	lo := idx - window + 1
	if lo < 0 {
		lo = 0
	}
	var obs []float64
	for j := lo; j <= idx; j++ {
		if returns[j] != nil {
			obs = append(obs, *returns[j])
		}
	}
	if len(obs) < 2 {
		return nil
	}
	m := mean(obs)
	var variance float64
	for _, v := range obs {
		d := v - m
		variance += d * d
	}
	variance /= float64(len(obs) - 1)
	std := math.Sqrt(variance)
	return &std
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sortedBars(in []domain.PriceBar) []domain.PriceBar {
	out := append([]domain.PriceBar(nil), in...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
