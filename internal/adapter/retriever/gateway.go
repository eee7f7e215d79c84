package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// Gateway wraps the embedding capability and the vector store behind the
// upsert/search contract used by ingestion and retrieval.
type Gateway struct {
	vectorStore port.VectorStore
	embedder    port.Embedder
	batchSize   int
	timeout     time.Duration
	logger      *slog.Logger
}

type GatewayOption func(*Gateway)

func WithBatchSize(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// WithCallTimeout bounds every embedder and store call.
func WithCallTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGateway accepts a nil embedder or store; such a gateway reports itself
// unhealthy and fails every call instead of panicking.
func NewGateway(vectorStore port.VectorStore, embedder port.Embedder, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		vectorStore: vectorStore,
		embedder:    embedder,
		batchSize:   64,
		timeout:     60 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// UpsertReport lists which chunks reached the index.
type UpsertReport struct {
	Stored []string
	Failed []string
}

// Upsert embeds chunks batch by batch and stores the resulting records.
// A batch the embedder rejects is reported and skipped; the error returned
// afterwards wraps domain.ErrEmbeddingFailure. A store failure stops the
// call with domain.ErrIndexUnavailable, or domain.ErrConfiguration when the
// embedder and the store disagree on the vector dimension.
func (g *Gateway) Upsert(ctx context.Context, chunks []domain.Chunk) (UpsertReport, error) {
	var report UpsertReport
	if err := g.ready(); err != nil {
		return report, err
	}

	var embedErrs []error
	for start := 0; start < len(chunks); start += g.batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		end := start + g.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := g.embed(ctx, texts(batch))
		if err != nil {
			for _, c := range batch {
				report.Failed = append(report.Failed, c.ID)
			}
			g.logger.Warn("embedding batch failed", "first_chunk", batch[0].ID, "size", len(batch), "error", err)
			embedErrs = append(embedErrs, err)
			continue
		}

		records := make([]domain.EmbeddingRecord, len(batch))
		for i, c := range batch {
			records[i] = domain.EmbeddingRecord{
				ChunkID:  c.ID,
				Vector:   vectors[i],
				Metadata: c.Metadata(),
				Text:     c.Text,
			}
		}

		// A cancelled caller must not leave a half-written batch behind.
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		err = g.vectorStore.Upsert(writeCtx, records)
		cancel()
		if err != nil {
			for _, c := range batch {
				report.Failed = append(report.Failed, c.ID)
			}
			return report, storeError(err)
		}
		for _, c := range batch {
			report.Stored = append(report.Stored, c.ID)
		}
	}

	if len(embedErrs) > 0 {
		return report, fmt.Errorf("%w: %d of %d chunks not embedded: %v",
			domain.ErrEmbeddingFailure, len(report.Failed), len(chunks), errors.Join(embedErrs...))
	}
	return report, nil
}

func (g *Gateway) embed(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vectors, err := g.embedder.Embed(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	vectors, err := g.embed(ctx, []string{text})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailure, err)
	}
	return vectors[0], nil
}

// SearchVector returns up to k candidates sorted by score descending. Scores
// are cosine similarities clamped into [0, 1].
func (g *Gateway) SearchVector(ctx context.Context, vector []float32, k int) ([]domain.Candidate, error) {
	if g.vectorStore == nil {
		return nil, fmt.Errorf("%w: vector store not configured", domain.ErrIndexUnavailable)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	results, err := g.vectorStore.Search(ctx, vector, k)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, storeError(err)
	}

	candidates := make([]domain.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, domain.Candidate{
			ChunkID:  r.Record.ChunkID,
			Text:     r.Record.Text,
			Metadata: r.Record.Metadata,
			Score:    analyzer.Normalize(r.Score),
			Vector:   r.Record.Vector,
		})
		if len(candidates) == k {
			break
		}
	}
	return candidates, nil
}

// Search embeds the query and searches the index.
func (g *Gateway) Search(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	vector, err := g.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return g.SearchVector(ctx, vector, k)
}

// DeleteChunks removes records by chunk id.
func (g *Gateway) DeleteChunks(ctx context.Context, ids []string) error {
	if g.vectorStore == nil {
		return fmt.Errorf("%w: vector store not configured", domain.ErrIndexUnavailable)
	}
	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	if err := g.vectorStore.Delete(ctx, ids); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

func (g *Gateway) Count(ctx context.Context) (int, error) {
	if g.vectorStore == nil {
		return 0, fmt.Errorf("%w: vector store not configured", domain.ErrIndexUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	n, err := g.vectorStore.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return n, nil
}

// Health reports which dependencies initialised and answer.
func (g *Gateway) Health(ctx context.Context) domain.Health {
	h := domain.Health{
		Timestamp:           time.Now().UTC(),
		EmbeddingModelReady: g.embedder != nil,
	}

	if n, err := g.Count(ctx); err == nil {
		h.VectorDBReady = true
		h.IndexedChunks = n
	} else {
		g.logger.Warn("vector store health check failed", "error", err)
	}

	h.Status = "healthy"
	if !h.VectorDBReady || !h.EmbeddingModelReady {
		h.Status = "degraded"
	}
	return h
}

// EmbeddingModel names the wired embedder, or "" when none is.
func (g *Gateway) EmbeddingModel() string {
	if g.embedder == nil {
		return ""
	}
	return g.embedder.ModelName()
}

func (g *Gateway) ready() error {
	if g.embedder == nil {
		return fmt.Errorf("%w: embedding model not configured", domain.ErrEmbeddingFailure)
	}
	if g.vectorStore == nil {
		return fmt.Errorf("%w: vector store not configured", domain.ErrIndexUnavailable)
	}
	return nil
}

// storeError classifies a vector store failure. A dimension mismatch is a
// configuration fault, not an outage.
func storeError(err error) error {
	var mismatch *domain.DimensionMismatchError
	if errors.As(err, &mismatch) {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
}

func texts(chunks []domain.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
