package domain

import "strings"

// SentimentBucket is the provider-independent sentiment category. Feature
// building never branches on provider identity; each provider vocabulary is
// normalized into a bucket once at ingestion.
type SentimentBucket string

const (
	SentimentVeryNegative SentimentBucket = "very_negative"
	SentimentNegative     SentimentBucket = "negative"
	SentimentNeutral      SentimentBucket = "neutral"
	SentimentPositive     SentimentBucket = "positive"
	SentimentVeryPositive SentimentBucket = "very_positive"
)

// Score maps a bucket to its canonical numeric score in [-1, 1].
func (b SentimentBucket) Score() float64 {
	switch b {
	case SentimentVeryNegative:
		return -0.75
	case SentimentNegative:
		return -0.4
	case SentimentPositive:
		return 0.4
	case SentimentVeryPositive:
		return 0.75
	default:
		return 0
	}
}

// BucketFromAlphaVantage normalizes the Alpha Vantage five-label vocabulary
// ("Bearish", "Somewhat-Bearish", "Neutral", "Somewhat-Bullish", "Bullish").
func BucketFromAlphaVantage(label string) SentimentBucket {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "bearish":
		return SentimentVeryNegative
	case "somewhat-bearish":
		return SentimentNegative
	case "somewhat-bullish":
		return SentimentPositive
	case "bullish":
		return SentimentVeryPositive
	default:
		return SentimentNeutral
	}
}

// BucketFromScore normalizes a raw numeric score in [-1, 1], used for
// enricher output that carries no label vocabulary.
func BucketFromScore(score float64) SentimentBucket {
	switch {
	case score <= -0.6:
		return SentimentVeryNegative
	case score <= -0.2:
		return SentimentNegative
	case score >= 0.6:
		return SentimentVeryPositive
	case score >= 0.2:
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}
