package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	APIKey      string

	AlphaVantageAPIKey  string
	NewsCallsPerMinute  int
	PriceCallsPerMinute int

	OpenAIAPIKey string
	OpenAIModel  string

	LabelThreshold  float64
	TestFraction    float64
	MinTrainSamples int
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		APIKey:             strings.TrimSpace(os.Getenv("API_KEY")),
		AlphaVantageAPIKey: strings.TrimSpace(os.Getenv("ALPHAVANTAGE_API_KEY")),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.AlphaVantageAPIKey == "" {
		log.Println("Warning: ALPHAVANTAGE_API_KEY not set, news ingestion will be disabled")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, sentiment enrichment will use the heuristic scorer only")
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	// Alpha Vantage free tier allows 5 calls/min; stay under it.
	cfg.NewsCallsPerMinute = 4
	if v := strings.TrimSpace(os.Getenv("NEWS_CALLS_PER_MINUTE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.NewsCallsPerMinute = n
		}
	}

	cfg.PriceCallsPerMinute = 30
	if v := strings.TrimSpace(os.Getenv("PRICE_CALLS_PER_MINUTE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PriceCallsPerMinute = n
		}
	}

	cfg.LabelThreshold = 0.0
	if v := strings.TrimSpace(os.Getenv("LABEL_THRESHOLD")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LabelThreshold = n
		}
	}

	cfg.TestFraction = 0.2
	if v := strings.TrimSpace(os.Getenv("TEST_FRACTION")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 && n < 1 {
			cfg.TestFraction = n
		}
	}

	cfg.MinTrainSamples = 100
	if v := strings.TrimSpace(os.Getenv("MIN_TRAIN_SAMPLES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MinTrainSamples = n
		}
	}

	return cfg
}
