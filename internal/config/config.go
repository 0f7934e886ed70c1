package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Shared secret expected in the X-Pipeline-Token header on job triggers.
	TriggerToken string

	DatabaseURL string

	KafkaBrokers []string
	RunLogTopic  string

	CivicDataBaseURL   string
	CivicDataAppToken  string
	CivicDataTimeout   time.Duration
	CivicDataRateLimit float64 // requests per second against the ingestion source

	NarrativeBaseURL string
	NarrativeTimeout time.Duration

	// Path to the YAML domain file (signal domains, events, coverage).
	DomainConfigPath string

	BatchConcurrency int
	BatchDelay       time.Duration
	TimeBudget       time.Duration
	TargetCacheSize  int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	civicTimeout, err := parseDurationEnv("CIVICDATA_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	narrativeTimeout, err := parseDurationEnv("NARRATIVE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	batchDelay, err := parseDurationEnv("BATCH_DELAY", 2*time.Second)
	if err != nil {
		return nil, err
	}
	timeBudget, err := parseDurationEnv("TIME_BUDGET", 8*time.Minute)
	if err != nil {
		return nil, err
	}
	concurrency, err := parseIntEnv("BATCH_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseIntEnv("TARGET_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	rateLimit, err := parseFloatEnv("CIVICDATA_RATE_LIMIT", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		TriggerToken: os.Getenv("TRIGGER_TOKEN"),

		DatabaseURL: envOrDefault("DATABASE_URL", "postgres://localhost:5432/platform?sslmode=disable"),

		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		RunLogTopic:  envOrDefault("RUN_LOG_TOPIC", "pipeline-run-log"),

		CivicDataBaseURL:   envOrDefault("CIVICDATA_BASE_URL", "https://data.cityofnewyork.us"),
		CivicDataAppToken:  os.Getenv("CIVICDATA_APP_TOKEN"),
		CivicDataTimeout:   civicTimeout,
		CivicDataRateLimit: rateLimit,

		NarrativeBaseURL: envOrDefault("NARRATIVE_BASE_URL", "http://narrative-generator:8090"),
		NarrativeTimeout: narrativeTimeout,

		DomainConfigPath: envOrDefault("PIPELINE_DOMAIN_CONFIG", "config/domains.yaml"),

		BatchConcurrency: concurrency,
		BatchDelay:       batchDelay,
		TimeBudget:       timeBudget,
		TargetCacheSize:  cacheSize,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.RunLogTopic == "" {
		return nil, errors.New("RUN_LOG_TOPIC is required")
	}
	if cfg.TriggerToken == "" {
		return nil, errors.New("TRIGGER_TOKEN is required")
	}
	if cfg.BatchConcurrency < 1 {
		return nil, errors.New("BATCH_CONCURRENCY must be at least 1")
	}
	if cfg.TimeBudget <= 0 {
		return nil, errors.New("TIME_BUDGET must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseFloatEnv(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}
