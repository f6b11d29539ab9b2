package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the synapta service.
// Environment variables are parsed from the SYNAPTA_ prefix,
// e.g. SYNAPTA_HTTP_PORT, SYNAPTA_POSTGRES_DSN.
type Config struct {
	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Store selection
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"synapta.db"`

	// Knowledge graph backend: graphiti (REST service) or weaviate (hybrid index)
	GraphDriver  string `envconfig:"GRAPH_DRIVER" default:"graphiti"`
	GraphitiURL  string `envconfig:"GRAPHITI_URL" default:"http://localhost:8001"`
	GraphGroupID string `envconfig:"GRAPH_GROUP_ID" default:"user_main"`
	WeaviateURL  string `envconfig:"WEAVIATE_URL" default:"localhost:8081"`

	// Embeddings (used by the weaviate graph backend)
	EmbedProvider string `envconfig:"EMBED_PROVIDER" default:"ollama"`
	EmbedModel    string `envconfig:"EMBED_MODEL" default:"mxbai-embed-large"`
	OllamaURL     string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`

	// Language model provider: gemini or ollama
	LLMProvider  string `envconfig:"LLM_PROVIDER" default:"gemini"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash-latest"`
	OllamaModel  string `envconfig:"OLLAMA_MODEL" default:"llama3.1"`

	// OAuth proxy (Pipedream Connect)
	PipedreamBaseURL      string `envconfig:"PIPEDREAM_BASE_URL" default:"https://api.pipedream.com/v1"`
	PipedreamClientID     string `envconfig:"PIPEDREAM_CLIENT_ID" default:""`
	PipedreamClientSecret string `envconfig:"PIPEDREAM_CLIENT_SECRET" default:""`
	PipedreamProjectID    string `envconfig:"PIPEDREAM_PROJECT_ID" default:""`
	PipedreamEnv          string `envconfig:"PIPEDREAM_ENV" default:"production"`
	ExternalUserID        string `envconfig:"EXTERNAL_USER_ID" default:"user_main"`

	// Sync behaviour
	SyncWindowDays       int `envconfig:"SYNC_WINDOW_DAYS" default:"90"`
	PageSize             int `envconfig:"PAGE_SIZE" default:"100"`
	PageTimeoutSeconds   int `envconfig:"PAGE_TIMEOUT_SECONDS" default:"30"`
	PageRetryBaseMS      int `envconfig:"PAGE_RETRY_BASE_MS" default:"500"`
	PageRetryMaxAttempts int `envconfig:"PAGE_RETRY_MAX_ATTEMPTS" default:"4"`
	IngestWorkers        int `envconfig:"INGEST_WORKERS" default:"4"`

	// Retrieval & answer behaviour
	SearchTopK           int     `envconfig:"SEARCH_TOP_K" default:"10"`
	SearchMinScore       float64 `envconfig:"SEARCH_MIN_SCORE" default:"0.0"`
	ContextFactLimit     int     `envconfig:"CONTEXT_FACT_LIMIT" default:"5"`
	AnswerTimeoutSeconds int     `envconfig:"ANSWER_TIMEOUT_SECONDS" default:"30"`
}

// ResolveDefaults validates driver selections and cross-field requirements.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("SYNAPTA_POSTGRES_DSN is required when DB_DRIVER=postgres")
	}

	switch c.GraphDriver {
	case "graphiti", "weaviate":
	default:
		return fmt.Errorf("unsupported GRAPH_DRIVER: %s", c.GraphDriver)
	}

	switch c.LLMProvider {
	case "gemini", "ollama":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER: %s", c.LLMProvider)
	}

	if c.SyncWindowDays <= 0 {
		return fmt.Errorf("SYNC_WINDOW_DAYS must be positive")
	}
	if c.PageRetryMaxAttempts < 1 {
		c.PageRetryMaxAttempts = 1
	}
	if c.IngestWorkers < 1 {
		c.IngestWorkers = 1
	}
	if c.ContextFactLimit > c.SearchTopK {
		c.ContextFactLimit = c.SearchTopK
	}
	return nil
}

// New creates a Config by parsing SYNAPTA_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("SYNAPTA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting returns a config with defaults suitable for unit tests.
func NewForTesting() *Config {
	cfg := &Config{
		HTTPPort:             8080,
		DBDriver:             "sqlite",
		SQLitePath:           ":memory:",
		GraphDriver:          "graphiti",
		GraphitiURL:          "http://localhost:8001",
		GraphGroupID:         "user_main",
		WeaviateURL:          "localhost:8081",
		EmbedProvider:        "ollama",
		EmbedModel:           "mxbai-embed-large",
		OllamaURL:            "http://localhost:11434",
		LLMProvider:          "ollama",
		OllamaModel:          "llama3.1",
		PipedreamBaseURL:     "http://localhost:0",
		PipedreamEnv:         "development",
		ExternalUserID:       "user_main",
		SyncWindowDays:       90,
		PageSize:             100,
		PageTimeoutSeconds:   5,
		PageRetryBaseMS:      1,
		PageRetryMaxAttempts: 3,
		IngestWorkers:        4,
		SearchTopK:           10,
		SearchMinScore:       0.0,
		ContextFactLimit:     5,
		AnswerTimeoutSeconds: 5,
	}
	return cfg
}

// GetHTTPAddr returns the HTTP server bind address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// SyncWindow returns the trailing sync window duration.
func (c *Config) SyncWindow() time.Duration {
	return time.Duration(c.SyncWindowDays) * 24 * time.Hour
}

// PageTimeout returns the per-page fetch timeout.
func (c *Config) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutSeconds) * time.Second
}

// PageRetryBase returns the base delay for page-level retry backoff.
func (c *Config) PageRetryBase() time.Duration {
	return time.Duration(c.PageRetryBaseMS) * time.Millisecond
}

// AnswerTimeout returns the deadline applied to one chat query.
func (c *Config) AnswerTimeout() time.Duration {
	return time.Duration(c.AnswerTimeoutSeconds) * time.Second
}
