package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Agent holds configuration for the ingestion agent.
type Agent struct {
	Common
	BindAddr string

	RedisAddr       string
	ProcessedSetKey string

	KafkaBrokers []string
	KafkaTopic   string

	SearchURL string
	BaseURL   string
	UserAgent string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
}

// API describes HTTP-layer configuration for the read service.
type API struct {
	Common
	BindAddr    string
	RecentLimit int
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// LoadAgent builds an Agent config from environment variables.
func LoadAgent() (*Agent, error) {
	c := &Agent{
		Common:          loadCommon(),
		BindAddr:        getEnv("AGENT_BIND_ADDR", "0.0.0.0:8081"),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		ProcessedSetKey: getEnv("REDIS_PROCESSED_KEY", "processed_slugs"),
		KafkaBrokers:    splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "project_events"),
		SearchURL:       getEnv("SEARCH_URL", "https://www.workana.com/jobs?category=it-programming&has_few_bids=1&language=pt&publication=1d"),
		BaseURL:         getEnv("SEARCH_BASE_URL", "https://www.workana.com"),
		UserAgent:       getEnv("SEARCH_USER_AGENT", "Mozilla/5.0"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY must be set")
	}
	if c.ProcessedSetKey == "" {
		return nil, fmt.Errorf("REDIS_PROCESSED_KEY cannot be empty")
	}
	if c.SearchURL == "" || c.BaseURL == "" {
		return nil, fmt.Errorf("SEARCH_URL and SEARCH_BASE_URL cannot be empty")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:      loadCommon(),
		BindAddr:    getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		RecentLimit: getInt("API_RECENT_LIMIT", 50),
	}

	if c.RecentLimit <= 0 {
		return nil, fmt.Errorf("API_RECENT_LIMIT must be positive")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_INTERVAL", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_INTERVAL must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "projects"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
