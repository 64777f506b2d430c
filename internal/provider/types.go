package provider

import (
	"strings"
	"time"

	"stockmood/internal/domain"
)

// NewsItem is the raw shape a news provider hands to ingestion, before the
// relevance filter runs. SentimentScore is nil when the provider supplied no
// usable sentiment; the enricher fills it later.
type NewsItem struct {
	TickerSymbol   string
	PublishedAt    time.Time
	Headline       string
	Source         string
	URL            string
	RawText        string
	SentimentScore *float64
	SentimentLabel string
	Bucket         domain.SentimentBucket
}

func sanitizeText(v string, maxLen int) string {
	v = strings.Join(strings.Fields(v), " ")
	if maxLen > 0 && len(v) > maxLen {
		v = v[:maxLen]
	}
	return v
}
