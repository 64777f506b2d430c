package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockmood/internal/cache"
	"stockmood/internal/config"
	"stockmood/internal/db"
	"stockmood/internal/handler"
	"stockmood/internal/ml/features"
	"stockmood/internal/ml/inference"
	"stockmood/internal/ml/outlier"
	"stockmood/internal/ml/registry"
	"stockmood/internal/ml/training"
	"stockmood/internal/provider"
	"stockmood/internal/repository"
	"stockmood/internal/sentiment"
	"stockmood/internal/service"
	"stockmood/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "stockmood/docs"
)

var (
	loadEnvFunc          = godotenv.Load
	loadConfigFunc       = config.Load
	initPostgresFunc     = db.InitPostgres
	initRedisFunc        = cache.InitRedis
	initTracerFunc       = tracing.InitTracer
	newPriceProviderFunc = func(tracer trace.Tracer, cfg *config.Config) service.PriceProvider {
		return provider.NewYahooProvider(tracer, cfg.PriceCallsPerMinute)
	}
	newNewsProviderFunc = func(tracer trace.Tracer, cfg *config.Config) service.NewsProvider {
		return provider.NewAlphaVantageProvider(tracer, cfg.AlphaVantageAPIKey, cfg.NewsCallsPerMinute)
	}
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Stockmood API
// @version         1.0
// @description     Stock news sentiment and 3-day-rise prediction service.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	priceRepo := repository.NewPriceRepository(db.Pool, tracer)
	newsRepo := repository.NewNewsRepository(db.Pool, tracer)
	featureRepo := features.NewRepository(db.Pool, tracer)
	registryRepo := registry.NewRepository(db.Pool, tracer)

	priceProvider := newPriceProviderFunc(tracer, cfg)
	newsProvider := newNewsProviderFunc(tracer, cfg)

	refreshService := service.NewRefreshService(tracer, priceProvider, newsProvider, priceRepo, newsRepo, nil)
	featureService := service.NewFeatureService(tracer, refreshService, features.NewEngine(nil, cfg.LabelThreshold), featureRepo)
	trainingService := training.NewService(tracer, featureRepo, registryRepo, outlier.NewScreen(0), training.Config{
		TestFraction:    cfg.TestFraction,
		MinTrainSamples: cfg.MinTrainSamples,
		LabelThreshold:  cfg.LabelThreshold,
	})
	inferenceService := inference.NewService(tracer, featureRepo, registryRepo, cache.Client)

	// Heuristic sentiment always runs; the LLM pass is layered on when a key
	// is configured.
	var llm sentiment.BatchLLMScorer
	if cfg.OpenAIAPIKey != "" {
		llm = sentiment.NewOpenAIScorer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	enricher := sentiment.NewScorer(llm, 0)

	h := newHandlerFunc(tracer, refreshService, featureService, trainingService, inferenceService, registryRepo, enricher)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("stockmood"))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
