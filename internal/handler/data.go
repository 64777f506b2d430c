package handler

import (
	"net/http"
	"strconv"

	"stockmood/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetTickers godoc
// @Summary      List tracked tickers
// @Description  Returns the ten tracked symbols with display names
// @Tags         tickers
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/tickers [get]
func (h *Handler) GetTickers(c *gin.Context) {
	tickers := make([]domain.Ticker, 0, len(domain.TrackedTickers))
	for _, symbol := range domain.TrackedSymbols() {
		tickers = append(tickers, domain.Ticker{Symbol: symbol, Name: domain.TrackedTickers[symbol]})
	}
	c.JSON(http.StatusOK, gin.H{"tickers": tickers})
}

// GetPrices godoc
// @Summary      Get daily price bars for a ticker
// @Description  Returns cached OHLCV bars for the range, fetching missing days from the provider first
// @Tags         prices
// @Produce      json
// @Param        symbol  path   string  true   "Ticker symbol (e.g., AAPL)"
// @Param        start   query  string  false  "Range start (YYYY-MM-DD), default 90 days back"
// @Param        end     query  string  false  "Range end (YYYY-MM-DD), default today"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/prices/{symbol} [get]
func (h *Handler) GetPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-prices")
	defer span.End()

	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	start, end, err := dateRangeQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date: " + err.Error()})
		return
	}

	bars, err := h.refresher.EnsurePriceData(ctx, symbol, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
		"bars":   bars,
	})
}

// GetNews godoc
// @Summary      Get relevant news articles for a ticker
// @Description  Returns cached relevant articles for the range, fetching uncovered days from the provider first
// @Tags         news
// @Produce      json
// @Param        symbol  path   string  true   "Ticker symbol (e.g., AAPL)"
// @Param        start   query  string  false  "Range start (YYYY-MM-DD), default 90 days back"
// @Param        end     query  string  false  "Range end (YYYY-MM-DD), default today"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/news/{symbol} [get]
func (h *Handler) GetNews(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-news")
	defer span.End()

	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	start, end, err := dateRangeQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date: " + err.Error()})
		return
	}

	articles, err := h.refresher.EnsureNewsData(ctx, symbol, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"start":    start.Format("2006-01-02"),
		"end":      end.Format("2006-01-02"),
		"articles": articles,
	})
}

// TriggerRefresh godoc
// @Summary      Refresh cached prices and news for a ticker
// @Description  Fetches missing price bars and news days for the range and returns counts
// @Tags         refresh
// @Produce      json
// @Param        symbol  path   string  true   "Ticker symbol (e.g., AAPL)"
// @Param        start   query  string  false  "Range start (YYYY-MM-DD), default 90 days back"
// @Param        end     query  string  false  "Range end (YYYY-MM-DD), default today"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/refresh/{symbol} [post]
func (h *Handler) TriggerRefresh(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-refresh")
	defer span.End()

	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	start, end, err := dateRangeQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date: " + err.Error()})
		return
	}

	bars, err := h.refresher.EnsurePriceData(ctx, symbol, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	articles, err := h.refresher.EnsureNewsData(ctx, symbol, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"symbol":   symbol,
		"bars":     len(bars),
		"articles": len(articles),
	})
}

// TriggerSentimentEnrichment godoc
// @Summary      Score unscored relevant articles with the sentiment enricher
// @Description  Runs the configured sentiment scorer over relevant articles missing a score
// @Tags         news
// @Produce      json
// @Param        symbol  path   string  true   "Ticker symbol (e.g., AAPL)"
// @Param        limit   query  int     false  "Max articles to score"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/news/{symbol}/enrich [post]
func (h *Handler) TriggerSentimentEnrichment(c *gin.Context) {
	if h.enricher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sentiment enricher unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-sentiment-enrichment")
	defer span.End()

	symbol, ok := symbolParam(c)
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	scored, err := h.refresher.EnrichSentiment(ctx, h.enricher, symbol, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "symbol": symbol, "scored": scored})
}

// TriggerRelevanceRescore godoc
// @Summary      Replay the relevance filter over stored articles
// @Description  Recomputes relevance for every stored article and persists changed verdicts
// @Tags         news
// @Produce      json
// @Param        symbol  path  string  true  "Ticker symbol (e.g., AAPL)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/news/{symbol}/rescore [post]
func (h *Handler) TriggerRelevanceRescore(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-relevance-rescore")
	defer span.End()

	symbol, ok := symbolParam(c)
	if !ok {
		return
	}

	changed, err := h.refresher.RescoreRelevance(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "symbol": symbol, "changed": changed})
}
