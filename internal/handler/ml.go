package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"stockmood/internal/domain"
	"stockmood/internal/ml/common"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// TriggerTraining godoc
// @Summary      Train and activate the 3-day-rise classifier
// @Description  Fits candidate models on labeled feature rows in the range, persists every candidate, and activates the best
// @Tags         ml
// @Produce      json
// @Param        start  query  string  false  "Training range start (YYYY-MM-DD), default 90 days back"
// @Param        end    query  string  false  "Training range end (YYYY-MM-DD), default today"
// @Success      200  {object}  map[string]interface{}
// @Failure      422  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/ml/train [post]
func (h *Handler) TriggerTraining(c *gin.Context) {
	if h.trainer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "training service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-training")
	defer span.End()

	start, end, err := dateRangeQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date: " + err.Error()})
		return
	}

	result, err := h.trainer.Train(ctx, start, end)
	if errors.Is(err, domain.ErrDataInsufficient) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"result": result,
	})
}

// GetPrediction godoc
// @Summary      Score a ticker with the active model
// @Description  Returns the probability of a positive 3-day forward return, with the model's test-set baseline rate
// @Tags         ml
// @Produce      json
// @Param        symbol  path   string  true   "Ticker symbol (e.g., AAPL)"
// @Param        as_of   query  string  false  "Score date (YYYY-MM-DD), default today"
// @Success      200  {object}  domain.Prediction
// @Failure      400  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/predictions/{symbol} [get]
func (h *Handler) GetPrediction(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-prediction")
	defer span.End()

	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid as_of date: " + err.Error()})
			return
		}
		asOf = parsed
	}

	prediction, err := h.predictor.Score(ctx, symbol, asOf)
	if errors.Is(err, domain.ErrModelUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, domain.ErrDataInsufficient) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, prediction)
}

// GetActiveModel godoc
// @Summary      Get the active model version and its evaluation metrics
// @Description  Returns version metadata and the stored test-set metrics for the active classifier
// @Tags         ml
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/ml/model [get]
func (h *Handler) GetActiveModel(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-active-model")
	defer span.End()

	active, err := h.models.GetActiveModel(ctx, common.ModelKeyRise3D)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if active == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active model"})
		return
	}

	var metrics domain.ModelMetrics
	if err := json.Unmarshal([]byte(active.MetricsJSON), &metrics); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored metrics are unreadable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model_key":           active.ModelKey,
		"version":             active.Version,
		"feature_set_version": active.FeatureSetVersion,
		"artifact_format":     active.ArtifactFormat,
		"trained_from":        active.TrainedFrom.Format("2006-01-02"),
		"trained_to":          active.TrainedTo.Format("2006-01-02"),
		"trained_at":          active.TrainedAt,
		"metrics":             metrics,
	})
}
