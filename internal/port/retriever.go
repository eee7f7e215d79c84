package port

import (
	"context"

	"docqa/internal/domain"
)

// Index is the query side of the embedding/index gateway.
type Index interface {
	// EmbedQuery turns query text into a vector.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// SearchVector returns up to k candidates sorted by score descending.
	SearchVector(ctx context.Context, vector []float32, k int) ([]domain.Candidate, error)

	Count(ctx context.Context) (int, error)
}
