package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"stockmood/internal/domain"
	"stockmood/internal/ml/training"
	"stockmood/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// defaultLookbackDays bounds refresh and rebuild requests that omit a start
// date. Matches the window the excluded dashboard renders by default.
const defaultLookbackDays = 90

type DataRefresher interface {
	EnsurePriceData(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error)
	EnsureNewsData(ctx context.Context, symbol string, start, end time.Time) ([]domain.NewsArticle, error)
	EnrichSentiment(ctx context.Context, scorer service.ArticleScorer, symbol string, limit int) (int, error)
	RescoreRelevance(ctx context.Context, symbol string) (int, error)
}

type FeatureBuilder interface {
	Rebuild(ctx context.Context, symbol string, start, end time.Time) (int, error)
	List(ctx context.Context, symbol string, from, to time.Time) ([]domain.DailyFeatureRow, error)
}

type Trainer interface {
	Train(ctx context.Context, from, to time.Time) (*training.Result, error)
}

type Predictor interface {
	Score(ctx context.Context, symbol string, asOf time.Time) (*domain.Prediction, error)
}

type ModelReader interface {
	GetActiveModel(ctx context.Context, modelKey string) (*domain.ModelVersion, error)
}

type Handler struct {
	tracer    trace.Tracer
	refresher DataRefresher
	features  FeatureBuilder
	trainer   Trainer
	predictor Predictor
	models    ModelReader
	enricher  service.ArticleScorer
}

func New(
	tracer trace.Tracer,
	refresher DataRefresher,
	features FeatureBuilder,
	trainer Trainer,
	predictor Predictor,
	models ModelReader,
	enricher service.ArticleScorer,
) *Handler {
	return &Handler{
		tracer:    tracer,
		refresher: refresher,
		features:  features,
		trainer:   trainer,
		predictor: predictor,
		models:    models,
		enricher:  enricher,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/tickers", h.GetTickers)
	api.GET("/prices/:symbol", h.GetPrices)
	api.GET("/news/:symbol", h.GetNews)
	api.GET("/features/:symbol", h.GetFeatures)
	api.GET("/predictions/:symbol", h.GetPrediction)
	api.GET("/ml/model", h.GetActiveModel)

	protected := r.Group("/api", APIKeyAuth(apiKey))
	protected.POST("/refresh/:symbol", h.TriggerRefresh)
	protected.POST("/news/:symbol/enrich", h.TriggerSentimentEnrichment)
	protected.POST("/news/:symbol/rescore", h.TriggerRelevanceRescore)
	protected.POST("/features/:symbol/rebuild", h.TriggerFeatureRebuild)
	protected.POST("/ml/train", h.TriggerTraining)
}

// symbolParam validates the :symbol path parameter against the tracked set.
// Writes the 400 response itself and returns ok=false when unsupported.
func symbolParam(c *gin.Context) (string, bool) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if _, ok := domain.TrackedTickers[symbol]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported symbol: " + symbol,
			"supported_symbols": domain.TrackedSymbols(),
		})
		return "", false
	}
	return symbol, true
}

// dateRangeQuery parses optional start/end query params (YYYY-MM-DD),
// defaulting to the trailing lookback window ending today.
func dateRangeQuery(c *gin.Context) (time.Time, time.Time, error) {
	end := domain.Day(time.Now())
	if raw := c.Query("end"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = parsed
	}
	start := end.AddDate(0, 0, -defaultLookbackDays)
	if raw := c.Query("start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = parsed
	}
	return start, end, nil
}
