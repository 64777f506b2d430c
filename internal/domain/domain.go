package domain

import "time"

// Ticker is immutable reference data for one tracked company, seeded at
// migration time.
type Ticker struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// PriceBar is one daily OHLCV bar. (TickerSymbol, Date) is unique; rows are
// never mutated after insertion.
type PriceBar struct {
	TickerSymbol string    `json:"ticker_symbol"`
	Date         time.Time `json:"date"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       int64     `json:"volume"`
}

// NewsArticle is one ingested news item for a ticker. IsRelevant and
// RelevanceScore are the only fields a later relevance re-pass may update.
type NewsArticle struct {
	ID             int64      `json:"id"`
	TickerSymbol   string     `json:"ticker_symbol"`
	PublishedAt    time.Time  `json:"published_at"`
	Headline       string     `json:"headline"`
	Source         string     `json:"source"`
	URL            string     `json:"url"`
	RawText        string     `json:"raw_text,omitempty"`
	SentimentScore *float64   `json:"sentiment_score,omitempty"`
	SentimentLabel string     `json:"sentiment_label,omitempty"`
	IsRelevant     bool       `json:"is_relevant"`
	RelevanceScore float64    `json:"relevance_score"`
	ScoredAt       *time.Time `json:"scored_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// DailyFeatureRow is one day of derived model inputs for a ticker, keyed by
// (TickerSymbol, Date). Features use only data dated <= Date; the label is
// the only forward-looking field and is nil until close(t+3) is cached.
type DailyFeatureRow struct {
	TickerSymbol           string    `json:"ticker_symbol"`
	Date                   time.Time `json:"date"`
	SentimentAvg           float64   `json:"sentiment_avg"`
	SentimentRollingMean3D float64   `json:"sentiment_rolling_mean_3d"`
	Return1D               *float64  `json:"return_1d"`
	Volatility5D           *float64  `json:"volatility_5d"`
	FutureReturn3D         *float64  `json:"future_3d_return,omitempty"`
	Future3DPositive       *bool     `json:"future_3d_return_positive"`
	CreatedAt              time.Time `json:"-"`
	UpdatedAt              time.Time `json:"-"`
}

// ModelVersion is one immutable classifier artifact plus its evaluation
// record. At most one version per model key is active; activation is a
// single atomic swap so inference never observes a half-published model.
type ModelVersion struct {
	ID              int64
	ModelKey        string
	Version         int
	FeatureSetVersion string
	TrainedFrom     time.Time
	TrainedTo       time.Time
	TrainedAt       time.Time
	HyperparamsJSON string
	MetricsJSON     string
	ArtifactFormat  string
	ArtifactBlob    []byte
	IsActive        bool
	ActivatedAt     *time.Time
	CreatedAt       time.Time
}

// ModelMetrics is the evaluation record stored alongside every trained
// model. BaselineAccuracy is the majority-class frequency in the test set.
type ModelMetrics struct {
	Accuracy         float64         `json:"accuracy"`
	BaselineAccuracy float64         `json:"baseline_accuracy"`
	ROCAUC           float64         `json:"roc_auc"`
	PrecisionPos     float64         `json:"precision_pos"`
	RecallPos        float64         `json:"recall_pos"`
	PrecisionNeg     float64         `json:"precision_neg"`
	RecallNeg        float64         `json:"recall_neg"`
	Confusion        ConfusionMatrix `json:"confusion_matrix"`
	TrainStart       time.Time       `json:"train_start"`
	TrainEnd         time.Time       `json:"train_end"`
	TestStart        time.Time       `json:"test_start"`
	TestEnd          time.Time       `json:"test_end"`
	TrainSamples     int             `json:"n_train"`
	TestSamples      int             `json:"n_test"`
	FeatureNames     []string        `json:"feature_names"`
}

type ConfusionMatrix struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

// Prediction is the result of scoring one ticker as of one date.
type Prediction struct {
	TickerSymbol string    `json:"ticker_symbol"`
	AsOf         time.Time `json:"as_of"`
	Probability  float64   `json:"prob_positive_return"`
	BaselineRate float64   `json:"baseline_rate"`
	ModelKey     string    `json:"model_key"`
	ModelVersion int       `json:"model_version"`
}

// TrackedTickers lists the seeded symbols with display names.
var TrackedTickers = map[string]string{
	"AAPL":  "Apple Inc",
	"MSFT":  "Microsoft",
	"GOOGL": "Alphabet",
	"AMZN":  "Amazon",
	"META":  "Meta Platforms",
	"TSLA":  "Tesla",
	"NVDA":  "NVIDIA",
	"JPM":   "JPMorgan Chase",
	"V":     "Visa",
	"JNJ":   "Johnson & Johnson",
}

// TrackedSymbols returns the seeded symbols in stable order.
func TrackedSymbols() []string {
	return []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META", "TSLA", "NVDA", "JPM", "V", "JNJ"}
}

// Day truncates a timestamp to its UTC calendar day. All daily keys
// (price bars, feature rows) are stored at UTC midnight.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
