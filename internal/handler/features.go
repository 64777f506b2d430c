package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetFeatures godoc
// @Summary      Get derived daily feature rows for a ticker
// @Description  Returns stored feature rows (returns, volatility, sentiment aggregates, labels) for the range
// @Tags         features
// @Produce      json
// @Param        symbol  path   string  true   "Ticker symbol (e.g., AAPL)"
// @Param        start   query  string  false  "Range start (YYYY-MM-DD), default 90 days back"
// @Param        end     query  string  false  "Range end (YYYY-MM-DD), default today"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/features/{symbol} [get]
func (h *Handler) GetFeatures(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-features")
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

	rows, err := h.features.List(ctx, symbol, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
		"rows":   rows,
	})
}

// TriggerFeatureRebuild godoc
// @Summary      Rebuild derived features for a ticker
// @Description  Ensures source data for the range, rebuilds feature rows deterministically, and replaces the stored set
// @Tags         features
// @Produce      json
// @Param        symbol  path   string  true   "Ticker symbol (e.g., AAPL)"
// @Param        start   query  string  false  "Range start (YYYY-MM-DD), default 90 days back"
// @Param        end     query  string  false  "Range end (YYYY-MM-DD), default today"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/features/{symbol}/rebuild [post]
func (h *Handler) TriggerFeatureRebuild(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-feature-rebuild")
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

	written, err := h.features.Rebuild(ctx, symbol, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "symbol": symbol, "rows": written})
}
