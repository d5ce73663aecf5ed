package config

import (
	"errors"
	"slices"
	"strings"

	"askdocs/internal/models"
)

var (
	embedderProviders  = []string{"hash", "ollama", "openai"}
	generatorProviders = []string{"mock", "ollama", "openrouter", "openai"}
	storeTypes         = []string{"memory", "chromem", "postgres", "sqlite"}
	postgresDrivers    = []string{"pgdriver", "pq"}
	logLevels          = []string{"trace", "debug", "info", "warn", "error"}
)

// Validate reports every invalid setting at once, each wrapped as ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, models.Wrap(models.ErrConfiguration, nil, format, args...))
	}

	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		fail("log.level %q is not one of %v", c.Log.Level, logLevels)
	}

	r := c.RAG
	if r.ChunkSize < 1 {
		fail("rag.chunk_size must be at least 1, got %d", r.ChunkSize)
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		fail("rag.chunk_overlap must be in [0, chunk_size), got %d", r.ChunkOverlap)
	}
	if r.BoundaryTolerance < 0 || r.BoundaryTolerance >= r.ChunkSize {
		fail("rag.boundary_tolerance must be in [0, chunk_size), got %d", r.BoundaryTolerance)
	}
	if r.TopK < 1 {
		fail("rag.top_k must be at least 1, got %d", r.TopK)
	}
	if r.MinScore != nil && (*r.MinScore < -1 || *r.MinScore > 1) {
		fail("rag.min_score must be in [-1, 1], got %g", *r.MinScore)
	}
	if r.EmbedConcurrency < 1 {
		fail("rag.embed_concurrency must be at least 1, got %d", r.EmbedConcurrency)
	}
	if r.IngestConcurrency < 1 {
		fail("rag.ingest_concurrency must be at least 1, got %d", r.IngestConcurrency)
	}
	if r.EmbedTimeout <= 0 {
		fail("rag.embed_timeout must be positive, got %s", r.EmbedTimeout)
	}
	if r.GenerateTimeout <= 0 {
		fail("rag.generate_timeout must be positive, got %s", r.GenerateTimeout)
	}

	if !slices.Contains(embedderProviders, c.Embedder.Provider) {
		fail("embedder.provider %q is not one of %v", c.Embedder.Provider, embedderProviders)
	}
	if c.Embedder.Provider == "hash" && c.Embedder.Dimension < 1 {
		fail("embedder.dimension must be at least 1 for the hash embedder, got %d", c.Embedder.Dimension)
	}
	if c.Embedder.Provider != "hash" && strings.TrimSpace(c.Embedder.Model) == "" {
		fail("embedder.model is required for provider %q", c.Embedder.Provider)
	}
	if !slices.Contains(generatorProviders, c.Generator.Provider) {
		fail("generator.provider %q is not one of %v", c.Generator.Provider, generatorProviders)
	}
	if c.Generator.Provider != "mock" && strings.TrimSpace(c.Generator.Model) == "" {
		fail("generator.model is required for provider %q", c.Generator.Provider)
	}

	if !slices.Contains(storeTypes, c.Store.Type) {
		fail("store.type %q is not one of %v", c.Store.Type, storeTypes)
	}
	if c.Store.Type == "postgres" {
		if strings.TrimSpace(c.Store.Postgres.DSN) == "" {
			fail("store.postgres.dsn is required")
		}
		if !slices.Contains(postgresDrivers, c.Store.Postgres.Driver) {
			fail("store.postgres.driver %q is not one of %v", c.Store.Postgres.Driver, postgresDrivers)
		}
	}
	if k := len(c.Store.Chromem.EncryptionKey); k != 0 && k != 32 {
		fail("store.chromem.encryption_key must be 32 bytes, got %d", k)
	}

	return errors.Join(errs...)
}
