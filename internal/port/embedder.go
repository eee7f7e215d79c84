package port

import (
	"context"

	"docqa/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore stores and searches embedding records.
type VectorStore interface {
	// Upsert adds or replaces records keyed by chunk ID.
	Upsert(ctx context.Context, records []domain.EmbeddingRecord) error

	// Search finds the k nearest records to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]VectorResult, error)

	// Delete removes records by chunk ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of records in the store.
	Count(ctx context.Context) (int, error)
}

// VectorResult is a search hit. Score is raw cosine similarity in [-1, 1].
type VectorResult struct {
	Record domain.EmbeddingRecord
	Score  float64
}
