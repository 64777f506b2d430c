package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stockmood/internal/domain"
	"stockmood/internal/ml/training"
	"stockmood/internal/sentiment"
	"stockmood/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("handler-test")

type stubRefresher struct {
	bars     []domain.PriceBar
	articles []domain.NewsArticle
	enriched int
	rescored int
	err      error
}

func (s *stubRefresher) EnsurePriceData(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	return s.bars, s.err
}

func (s *stubRefresher) EnsureNewsData(ctx context.Context, symbol string, start, end time.Time) ([]domain.NewsArticle, error) {
	return s.articles, s.err
}

func (s *stubRefresher) EnrichSentiment(ctx context.Context, scorer service.ArticleScorer, symbol string, limit int) (int, error) {
	return s.enriched, s.err
}

func (s *stubRefresher) RescoreRelevance(ctx context.Context, symbol string) (int, error) {
	return s.rescored, s.err
}

type stubFeatureBuilder struct {
	rows    []domain.DailyFeatureRow
	written int
	err     error
}

func (s *stubFeatureBuilder) Rebuild(ctx context.Context, symbol string, start, end time.Time) (int, error) {
	return s.written, s.err
}

func (s *stubFeatureBuilder) List(ctx context.Context, symbol string, from, to time.Time) ([]domain.DailyFeatureRow, error) {
	return s.rows, s.err
}

type stubTrainer struct {
	result *training.Result
	err    error
}

func (s *stubTrainer) Train(ctx context.Context, from, to time.Time) (*training.Result, error) {
	return s.result, s.err
}

type stubPredictor struct {
	prediction *domain.Prediction
	err        error
}

func (s *stubPredictor) Score(ctx context.Context, symbol string, asOf time.Time) (*domain.Prediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.prediction, nil
}

type stubModelReader struct {
	active *domain.ModelVersion
	err    error
}

func (s *stubModelReader) GetActiveModel(ctx context.Context, modelKey string) (*domain.ModelVersion, error) {
	return s.active, s.err
}

type stubEnricher struct{}

func (stubEnricher) Score(ctx context.Context, articles []domain.NewsArticle) ([]sentiment.ArticleScore, error) {
	return nil, nil
}

func newTestRouter(h *Handler, apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router, apiKey)
	return router
}

func TestGetPredictionSuccess(t *testing.T) {
	pred := &domain.Prediction{
		TickerSymbol: "AAPL",
		AsOf:         time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Probability:  0.63,
		BaselineRate: 0.52,
		ModelKey:     "rise3d",
		ModelVersion: 2,
	}
	h := New(testTracer, &stubRefresher{}, &stubFeatureBuilder{}, &stubTrainer{}, &stubPredictor{prediction: pred}, &stubModelReader{}, nil)
	router := newTestRouter(h, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/predictions/aapl?as_of=2024-06-10", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body domain.Prediction
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if body.TickerSymbol != "AAPL" || body.Probability != 0.63 || body.ModelVersion != 2 {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestGetPredictionUnsupportedSymbol(t *testing.T) {
	h := New(testTracer, &stubRefresher{}, &stubFeatureBuilder{}, &stubTrainer{}, &stubPredictor{}, &stubModelReader{}, nil)
	router := newTestRouter(h, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/predictions/DOGE", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetPredictionNoModel(t *testing.T) {
	h := New(testTracer, &stubRefresher{}, &stubFeatureBuilder{}, &stubTrainer{}, &stubPredictor{err: domain.ErrModelUnavailable}, &stubModelReader{}, nil)
	router := newTestRouter(h, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/predictions/AAPL", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestGetPredictionNoFeatures(t *testing.T) {
	h := New(testTracer, &stubRefresher{}, &stubFeatureBuilder{}, &stubTrainer{}, &stubPredictor{err: domain.ErrDataInsufficient}, &stubModelReader{}, nil)
	router := newTestRouter(h, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/predictions/AAPL", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestTriggerTrainingSuccess(t *testing.T) {
	result := &training.Result{
		ModelKey:     "rise3d",
		Activated:    training.CandidateResult{Name: "logreg", Version: 4},
		Candidates:   []training.CandidateResult{{Name: "logreg", Version: 4}, {Name: "gbt", Version: 5}},
		TrainSamples: 400,
		TestSamples:  100,
	}
	h := New(testTracer, &stubRefresher{}, &stubFeatureBuilder{}, &stubTrainer{result: result}, &stubPredictor{}, &stubModelReader{}, nil)
	router := newTestRouter(h, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ml/train", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Status string          `json:"status"`
		Result training.Result `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if body.Status != "ok" || body.Result.Activated.Version != 4 || len(body.Result.Candidates) != 2 {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestTriggerTrainingInsufficientData(t *testing.T) {
	h := New(testTracer, &stubRefresher{}, &stubFeatureBuilder{}, &stubTrainer{err: domain.ErrDataInsufficient}, &stubPredictor{}, &stubModelReader{}, nil)
	router := newTestRouter(h, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ml/train", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestTriggerRefreshReportsCounts(t *testing.T) {
	refresher := &stubRefresher{
		bars:     make([]domain.PriceBar, 7),
		articles: make([]domain.NewsArticle, 3),
	}
	h := New(testTracer, refresher, &stubFeatureBuilder{}, &stubTrainer{}, &stubPredictor{}, &stubModelReader{}, nil)
	router := newTestRouter(h, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/refresh/AAPL?start=2024-06-01&end=2024-06-10", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Bars     int `json:"bars"`
		Articles int `json:"articles"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if body.Bars != 7 || body.Articles != 3 {
		t.Fatalf("unexpected counts: %+v", body)
	}
}

func TestTriggerRefreshInvalidDate(t *testing.T) {
	h := New(testTracer, &stubRefresher{}, &stubFeatureBuilder{}, &stubTrainer{}, &stubPredictor{}, &stubModelReader{}, nil)
	router := newTestRouter(h, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/refresh/AAPL?start=June-1st", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestTriggerSentimentEnrichmentUnavailable(t *testing.T) {
	h := New(testTracer, &stubRefresher{}, &stubFeatureBuilder{}, &stubTrainer{}, &stubPredictor{}, &stubModelReader{}, nil)
	router := newTestRouter(h, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/news/AAPL/enrich", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without an enricher, got %d", w.Code)
	}
}

func TestTriggerSentimentEnrichment(t *testing.T) {
	h := New(testTracer, &stubRefresher{enriched: 12}, &stubFeatureBuilder{}, &stubTrainer{}, &stubPredictor{}, &stubModelReader{}, stubEnricher{})
	router := newTestRouter(h, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/news/AAPL/enrich?limit=20", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Scored int `json:"scored"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if body.Scored != 12 {
		t.Fatalf("expected 12 scored, got %d", body.Scored)
	}
}

func TestGetActiveModelNotFound(t *testing.T) {
	h := New(testTracer, &stubRefresher{}, &stubFeatureBuilder{}, &stubTrainer{}, &stubPredictor{}, &stubModelReader{}, nil)
	router := newTestRouter(h, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ml/model", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetActiveModel(t *testing.T) {
	metrics, _ := json.Marshal(domain.ModelMetrics{Accuracy: 0.61, BaselineAccuracy: 0.55, ROCAUC: 0.64})
	h := New(testTracer, &stubRefresher{}, &stubFeatureBuilder{}, &stubTrainer{}, &stubPredictor{}, &stubModelReader{active: &domain.ModelVersion{
		ModelKey:          "rise3d",
		Version:           3,
		FeatureSetVersion: "v1",
		ArtifactFormat:    "json/logreg-v1",
		MetricsJSON:       string(metrics),
	}}, nil)
	router := newTestRouter(h, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ml/model", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Version int                 `json:"version"`
		Metrics domain.ModelMetrics `json:"metrics"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if body.Version != 3 || body.Metrics.ROCAUC != 0.64 {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestAPIKeyProtectsMutations(t *testing.T) {
	h := New(testTracer, &stubRefresher{}, &stubFeatureBuilder{written: 5}, &stubTrainer{}, &stubPredictor{}, &stubModelReader{}, nil)
	router := newTestRouter(h, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/features/AAPL/rebuild", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/features/AAPL/rebuild", nil)
	req.Header.Set("X-API-Key", "wrong")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with bad key, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/features/AAPL/rebuild", nil)
	req.Header.Set("X-API-Key", "secret")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid key, got %d", w.Code)
	}

	// Reads stay open.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/tickers", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected open read access, got %d", w.Code)
	}
}
