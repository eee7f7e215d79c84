package usecase

import (
	"context"
	"fmt"

	"docqa/internal/adapter/retriever"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// RetrieveUseCase handles search and re-ranking. It holds no per-query state.
type RetrieveUseCase struct {
	index     port.Index
	overfetch int // Candidate pool is topK * overfetch
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(index port.Index, overfetch int) *RetrieveUseCase {
	if overfetch < 1 {
		overfetch = 2
	}
	return &RetrieveUseCase{
		index:     index,
		overfetch: overfetch,
	}
}

// Retrieve embeds the query, fetches an over-sized candidate pool and
// re-ranks it with MMR down to topK.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int, lambda float64) ([]domain.Candidate, error) {
	if err := validateRetrieval(topK, lambda); err != nil {
		return nil, err
	}

	vector, err := u.index.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	pool, err := u.Candidates(ctx, vector, topK)
	if err != nil {
		return nil, err
	}

	return u.Rerank(pool, topK, lambda)
}

// Candidates searches the index for the pool MMR selects from.
func (u *RetrieveUseCase) Candidates(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error) {
	return u.index.SearchVector(ctx, vector, topK*u.overfetch)
}

// Rerank applies MMR to a candidate pool.
func (u *RetrieveUseCase) Rerank(pool []domain.Candidate, topK int, lambda float64) ([]domain.Candidate, error) {
	if err := validateRetrieval(topK, lambda); err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, nil
	}
	return retriever.NewMMRReranker(lambda).Rerank(pool, topK), nil
}

// RetrieveWithoutMMR returns the raw similarity ranking (for debugging).
func (u *RetrieveUseCase) RetrieveWithoutMMR(ctx context.Context, query string, topK int) ([]domain.Candidate, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1", domain.ErrInvalidInput)
	}
	vector, err := u.index.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return u.index.SearchVector(ctx, vector, topK)
}

func validateRetrieval(topK int, lambda float64) error {
	if topK < 1 {
		return fmt.Errorf("%w: top_k must be at least 1", domain.ErrConfiguration)
	}
	if lambda < 0 || lambda > 1 {
		return fmt.Errorf("%w: mmr_lambda %.2f outside [0, 1]", domain.ErrConfiguration, lambda)
	}
	return nil
}

// CandidateResult is a simplified result for CLI output.
type CandidateResult struct {
	Document string  `json:"document"`
	Page     int     `json:"page"`
	ChunkID  string  `json:"chunk_id"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

func ToCandidateResults(candidates []domain.Candidate) []CandidateResult {
	out := make([]CandidateResult, len(candidates))
	for i, c := range candidates {
		out[i] = CandidateResult{
			Document: c.Metadata.DocumentName,
			Page:     c.Metadata.PageNumber,
			ChunkID:  c.ChunkID,
			Score:    c.Score,
			Text:     c.Text,
		}
	}
	return out
}
