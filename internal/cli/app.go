package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"askdocs/internal/chromemdb"
	"askdocs/internal/chunker"
	"askdocs/internal/config"
	"askdocs/internal/db"
	"askdocs/internal/embedding"
	"askdocs/internal/llmservice"
	"askdocs/internal/parser"
	"askdocs/internal/rag"
	"askdocs/internal/sqlitedb"
	"askdocs/internal/vectorindex"
)

// app is the wired pipeline for one command invocation.
type app struct {
	cfg     *config.Config
	store   vectorindex.Store
	index   *vectorindex.Index
	service *rag.Service
}

func openStore(ctx context.Context, cfg *config.StoreConfig) (vectorindex.Store, error) {
	switch cfg.Type {
	case "memory":
		return nil, nil
	case "chromem":
		return chromemdb.NewVectorDBManager(ctx, cfg.Chromem)
	case "postgres":
		return db.NewStore(ctx, &cfg.Postgres)
	case "sqlite":
		return sqlitedb.Open(ctx, cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	embedder, err := embedding.New(&cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("error initializing embedder: %w", err)
	}
	generator, err := llmservice.New(&cfg.Generator)
	if err != nil {
		return nil, fmt.Errorf("error initializing generator: %w", err)
	}
	ch, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.BoundaryTolerance)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, &cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("error opening %s store: %w", cfg.Store.Type, err)
	}

	opts := []vectorindex.Option{
		vectorindex.WithEmbedTimeout(cfg.RAG.EmbedTimeout),
		vectorindex.WithConcurrency(cfg.RAG.EmbedConcurrency),
	}
	if store != nil {
		opts = append(opts, vectorindex.WithStore(store))
	}
	index := vectorindex.New(embedder, opts...)
	if err := index.Restore(ctx); err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	var retrieverOpts []rag.RetrieverOption
	if cfg.RAG.MinScore != nil {
		retrieverOpts = append(retrieverOpts, rag.WithMinScore(*cfg.RAG.MinScore))
	}
	service := rag.NewService(
		parser.New(),
		ch,
		index,
		rag.NewRetriever(index, retrieverOpts...),
		rag.NewOrchestrator(generator, rag.WithGenerateTimeout(cfg.RAG.GenerateTimeout)),
		cfg.RAG.IngestConcurrency,
	)

	log.Debug().
		Str("store", cfg.Store.Type).
		Str("embedder", cfg.Embedder.Provider).
		Str("generator", cfg.Generator.Provider).
		Int("entries", index.Len()).
		Msg("Pipeline ready")
	return &app{cfg: cfg, store: store, index: index, service: service}, nil
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
