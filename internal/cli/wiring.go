package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"docqa/config"
	"docqa/internal/adapter/cache"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/extract"
	"docqa/internal/adapter/llm"
	"docqa/internal/adapter/memstore"
	"docqa/internal/adapter/qdrant"
	"docqa/internal/adapter/retriever"
	"docqa/internal/adapter/store"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

// app is the set of collaborators one command runs with. Each command opens
// its own and closes it when done.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.BoltStore
	vectors   port.VectorStore
	dimension int
	extractor *extract.Composite
	pipeline  *usecase.Pipeline
	migration *store.MigrationResult
}

func openApp(ctx context.Context) (*app, error) {
	cfg := GetConfig()
	dir := GetRootDir()

	if err := config.EnsureDataDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", config.DataDirName, err)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr),
		store:     st,
		extractor: extract.NewComposite(),
	}
	if err := a.wire(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// wire builds the pipeline. An embedder or vector store that fails to come
// up for any reason other than bad configuration is left out; the pipeline
// then reports itself degraded through Health and fails the calls needing it.
func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	emb, err := newEmbedder(cfg.Embedding)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return fmt.Errorf("failed to create embedder: %w", err)
		}
		a.logger.Error("embedding model unavailable", "provider", cfg.Embedding.Provider, "error", err)
		emb = nil
	}
	a.dimension = cfg.Embedding.Dimension
	if emb != nil {
		a.dimension = emb.Dimension()
		if cfg.Cache.Enabled {
			emb = cache.NewCachedEmbedder(emb, cache.NewQueryCache(cfg.Cache.Size, cfg.Cache.TTL()))
		}
	}

	a.vectors, err = a.newVectorStore(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return err
		}
		a.logger.Error("vector store unavailable", "backend", cfg.VectorStore.Backend, "error", err)
		a.vectors = nil
	}

	generator, err := newGenerator(cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	chk, err := chunker.NewSentenceChunker(cfg.Ingest.ChunkSizeTokens, cfg.Ingest.OverlapTokens)
	if err != nil {
		return err
	}

	deps := usecase.Deps{
		Chunker: chk,
		Gateway: retriever.NewGateway(a.vectors, emb,
			retriever.WithBatchSize(cfg.Embedding.BatchSize),
			retriever.WithCallTimeout(cfg.Embedding.Timeout()),
			retriever.WithLogger(a.logger)),
		LLM:       generator,
		Documents: a.store,
		Extractor: a.extractor,
		Logger:    a.logger,
	}
	if cfg.Memory.Enabled {
		deps.Memory = usecase.NewConversationMemory(a.store, usecase.MemoryParams{
			MaxShortTerm:    cfg.Memory.MaxShortTerm,
			MaxLongTerm:     cfg.Memory.MaxLongTerm,
			HistoryMessages: cfg.Memory.HistoryMessages,
		})
	}

	a.pipeline, err = usecase.NewPipeline(usecase.ParamsFromConfig(cfg), deps)
	if err != nil {
		return err
	}

	a.migration, err = a.store.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}
	if a.migration.NeedsMigration && !a.migration.NeedsRebuild {
		if err := a.store.Migrate(cfg); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func newEmbedder(cfg config.EmbeddingConfig) (port.Embedder, error) {
	opts := []embedding.Option{
		embedding.WithBatchSize(cfg.BatchSize),
		embedding.WithTimeout(cfg.Timeout()),
		embedding.WithRateLimit(cfg.RequestsPerSecond),
	}

	switch cfg.Provider {
	case "", "local":
		return embedding.NewLocalEmbedder(cfg.Dimension), nil
	case "openai":
		if cfg.BaseURL != "" {
			return embedding.NewOpenAICompatibleEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL, opts...)
		}
		return embedding.NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, opts...)
	case "jina":
		return embedding.NewJinaEmbedder(cfg.APIKeyEnv, cfg.Model, opts...)
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Model, cfg.BaseURL, opts...)
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrConfiguration, cfg.Provider)
	}
}

func newGenerator(cfg config.LLMConfig) (port.LLM, error) {
	if cfg.Provider == "" || cfg.Provider == "extractive" {
		return llm.NewExtractiveGenerator(cfg.MaxSentences), nil
	}
	return llm.NewChatClient(cfg.Provider, cfg.Model, llm.ClientOptions{
		BaseURL:           cfg.BaseURL,
		APIKeyEnv:         cfg.APIKeyEnv,
		Timeout:           cfg.Timeout(),
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
}

func (a *app) newVectorStore(ctx context.Context) (port.VectorStore, error) {
	vs := a.cfg.VectorStore

	switch vs.Backend {
	case "", "bolt":
		s, err := store.NewBoltVectorStore(a.store.DB(), a.dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
		return s, nil
	case "memory":
		return memstore.NewVectorStore(a.dimension), nil
	case "qdrant":
		s := qdrant.NewStore(qdrant.Config{
			URL:        vs.URL,
			APIKey:     os.Getenv(vs.APIKeyEnv),
			Collection: vs.Collection,
			Dimension:  a.dimension,
			Timeout:    vs.Timeout(),
		})
		if err := s.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("%w: qdrant: %v", domain.ErrIndexUnavailable, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unsupported vector store backend %q", domain.ErrConfiguration, vs.Backend)
	}
}

func (a *app) clearVectors(ctx context.Context) error {
	switch s := a.vectors.(type) {
	case *store.BoltVectorStore:
		return s.Clear(ctx, a.dimension)
	case *memstore.VectorStore:
		return s.Clear(ctx, a.dimension)
	case *qdrant.Store:
		if err := s.Clear(ctx); err != nil {
			return err
		}
		return s.EnsureCollection(ctx)
	}
	return nil
}

// rebuild drops every vector and re-ingests all registered documents with
// the current chunking and embedding settings.
func (a *app) rebuild(ctx context.Context, onDoc func(name string, err error)) (*usecase.BatchResult, error) {
	if err := a.clearVectors(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear index: %w", err)
	}
	batch, err := a.pipeline.Rebuild(ctx, onDoc)
	if err != nil {
		return batch, err
	}
	if err := a.store.Migrate(a.cfg); err != nil {
		return batch, fmt.Errorf("failed to update schema info: %w", err)
	}
	a.migration.NeedsRebuild = false
	return batch, nil
}

// warnIfStale tells the user when the index was built with other settings.
func (a *app) warnIfStale() {
	if a.migration.NeedsRebuild {
		fmt.Fprintf(os.Stderr, "Warning: %s; run 'docqa rebuild' to refresh the index.\n", a.migration.Reason)
	}
}
