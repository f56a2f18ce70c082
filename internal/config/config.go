// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest):
//  1. Environment variables
//  2. Config file (~/.gitrag/config.yaml or ./config.yaml)
//  3. Defaults
//
// The configuration is loaded and validated exactly once at startup
// and threaded into component constructors; nothing reads the
// environment at call time.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultEmbeddingDimension is the fixed vector dimension D shared
	// by the embedding generator and the vector store. The schema's
	// vector(256) column must match; see db/migrations.
	DefaultEmbeddingDimension = 256

	// DefaultChunkSize is the chunk window size in tokens.
	DefaultChunkSize = 500

	// DefaultRetrieveLimit is the candidate count fetched from the
	// vector store before reranking.
	DefaultRetrieveLimit = 25

	// DefaultMinSimilarity is the strict lower bound on cosine
	// similarity for retrieval candidates.
	DefaultMinSimilarity = 0.2

	// DefaultRerankTopN is the number of results kept after reranking.
	DefaultRerankTopN = 5

	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default but
	// supports truncation via OutputDimensionality.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultOptimizerModel rewrites user queries for retrieval.
	DefaultOptimizerModel = "googleai/gemini-2.5-flash"

	// DefaultRerankModel is the cross-relevance scoring model.
	DefaultRerankModel = "rerank-english-v3.0"
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON.
type Config struct {
	// AI credentials and models
	GeminiAPIKey   string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	CohereAPIKey   string `mapstructure:"cohere_api_key" json:"cohere_api_key"` // SENSITIVE: masked in MarshalJSON
	OptimizerModel string `mapstructure:"optimizer_model" json:"optimizer_model"`
	EmbedderModel  string `mapstructure:"embedder_model" json:"embedder_model"`
	RerankModel    string `mapstructure:"rerank_model" json:"rerank_model"`
	RerankBaseURL  string `mapstructure:"rerank_base_url" json:"rerank_base_url"`

	// Pipeline tuning. Defaults: dimension 256, chunk size 500,
	// retrieve limit 25, similarity floor 0.2, rerank top 5.
	EmbeddingDimension int     `mapstructure:"embedding_dimension" json:"embedding_dimension"`
	ChunkSize          int     `mapstructure:"chunk_size" json:"chunk_size"`
	RetrieveLimit      int     `mapstructure:"retrieve_limit" json:"retrieve_limit"`
	MinSimilarity      float64 `mapstructure:"min_similarity" json:"min_similarity"`
	RerankTopN         int     `mapstructure:"rerank_top_n" json:"rerank_top_n"`

	// Embedding provider pacing (requests per second, 0 = unlimited)
	EmbedRPS float64 `mapstructure:"embed_rps" json:"embed_rps"`

	// Per-client request quota within a rolling window
	RateLimitQuota  int           `mapstructure:"rate_limit_quota" json:"rate_limit_quota"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window" json:"rate_limit_window"`

	// Storage (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Redis (rate-limit counters)
	RedisAddr     string `mapstructure:"redis_addr" json:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" json:"redis_password"` // SENSITIVE: masked in MarshalJSON
	RedisDB       int    `mapstructure:"redis_db" json:"redis_db"`

	// HTTP server
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)

	// Observability (OTLP HTTP trace export, disabled when empty)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
}

// Load loads configuration.
// Priority: environment variables > config file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".gitrag")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Fail fast: nothing downstream sees an unvalidated config.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("optimizer_model", DefaultOptimizerModel)
	v.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	v.SetDefault("rerank_model", DefaultRerankModel)
	v.SetDefault("rerank_base_url", "https://api.cohere.com")

	// Pipeline defaults
	v.SetDefault("embedding_dimension", DefaultEmbeddingDimension)
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("retrieve_limit", DefaultRetrieveLimit)
	v.SetDefault("min_similarity", DefaultMinSimilarity)
	v.SetDefault("rerank_top_n", DefaultRerankTopN)
	v.SetDefault("embed_rps", 0.0)

	// Rate limiting: 20 requests per rolling minute per client
	v.SetDefault("rate_limit_quota", 20)
	v.SetDefault("rate_limit_window", time.Minute)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "gitrag")
	v.SetDefault("postgres_password", "gitrag_dev_password")
	v.SetDefault("postgres_db_name", "gitrag")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)

	// Server defaults
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("trust_proxy", false)

	// Observability defaults (empty endpoint = tracing disabled)
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("service_name", "gitrag")
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("cohere_api_key", "COHERE_API_KEY")
	mustBind("redis_addr", "GITRAG_REDIS_ADDR")
	mustBind("redis_password", "GITRAG_REDIS_PASSWORD")
	mustBind("listen_addr", "GITRAG_LISTEN_ADDR")
	mustBind("trust_proxy", "GITRAG_TRUST_PROXY")
	mustBind("otlp_endpoint", "GITRAG_OTLP_ENDPOINT")
}

// MarshalJSON masks sensitive fields so a dumped config never leaks
// credentials into logs.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(*c)
	if masked.GeminiAPIKey != "" {
		masked.GeminiAPIKey = "***"
	}
	if masked.CohereAPIKey != "" {
		masked.CohereAPIKey = "***"
	}
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	if masked.RedisPassword != "" {
		masked.RedisPassword = "***"
	}
	return json.Marshal(masked)
}
