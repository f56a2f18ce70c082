package config

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel validation errors, checked with errors.Is.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates a model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidDimension indicates the embedding dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidChunkSize indicates the chunk size is out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidPipeline indicates retrieval/rerank tuning is out of range.
	ErrInvalidPipeline = errors.New("invalid pipeline setting")

	// ErrInvalidRateLimit indicates the rate-limit quota or window is invalid.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidRedisAddr indicates the Redis address is invalid.
	ErrInvalidRedisAddr = errors.New("invalid Redis address")
)

// validSSLModes are the sslmode values libpq/pgx accept.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration for structural problems. Missing
// provider credentials are not checked here; components verify their
// own credential eagerly at construction so that serve mode can start
// without a Cohere key when reranking is unused (and vice versa).
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if strings.TrimSpace(c.OptimizerModel) == "" {
		return fmt.Errorf("%w: optimizer_model is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.RerankModel) == "" {
		return fmt.Errorf("%w: rerank_model is empty", ErrInvalidModelName)
	}

	if c.EmbeddingDimension < 1 || c.EmbeddingDimension > 4096 {
		return fmt.Errorf("%w: %d (must be 1-4096)", ErrInvalidDimension, c.EmbeddingDimension)
	}
	if c.ChunkSize < 1 || c.ChunkSize > 100_000 {
		return fmt.Errorf("%w: %d (must be 1-100000)", ErrInvalidChunkSize, c.ChunkSize)
	}
	if c.RetrieveLimit < 1 {
		return fmt.Errorf("%w: retrieve_limit %d (must be >= 1)", ErrInvalidPipeline, c.RetrieveLimit)
	}
	if c.MinSimilarity < -1 || c.MinSimilarity > 1 {
		return fmt.Errorf("%w: min_similarity %v (must be in [-1,1])", ErrInvalidPipeline, c.MinSimilarity)
	}
	if c.RerankTopN < 1 {
		return fmt.Errorf("%w: rerank_top_n %d (must be >= 1)", ErrInvalidPipeline, c.RerankTopN)
	}
	if c.EmbedRPS < 0 {
		return fmt.Errorf("%w: embed_rps %v (must be >= 0)", ErrInvalidPipeline, c.EmbedRPS)
	}

	if c.RateLimitQuota < 1 {
		return fmt.Errorf("%w: quota %d (must be >= 1)", ErrInvalidRateLimit, c.RateLimitQuota)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("%w: window %v (must be > 0)", ErrInvalidRateLimit, c.RateLimitWindow)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("%w: address is empty", ErrInvalidRedisAddr)
	}

	return nil
}

// RequireGeminiKey verifies the Gemini API key is configured. Called
// by components that talk to the embedding/generation provider before
// any network call.
func (c *Config) RequireGeminiKey() error {
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrMissingAPIKey)
	}
	return nil
}

// RequireCohereKey verifies the rerank API key is configured.
func (c *Config) RequireCohereKey() error {
	if strings.TrimSpace(c.CohereAPIKey) == "" {
		return fmt.Errorf("%w: COHERE_API_KEY is not set", ErrMissingAPIKey)
	}
	return nil
}
