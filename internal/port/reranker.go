package port

import "docqa/internal/domain"

// DiversityReranker reorders a candidate pool trading relevance for diversity.
type DiversityReranker interface {
	Rerank(candidates []domain.Candidate, k int) []domain.Candidate
}
