package retriever

import (
	"sort"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/domain"
	"docqa/internal/port"
)

var _ port.DiversityReranker = (*MMRReranker)(nil)

// MMRReranker implements Maximal Marginal Relevance for result diversification.
type MMRReranker struct {
	lambda    float64
	tokenizer port.Tokenizer
}

// NewMMRReranker creates a new MMR reranker. Lambda is expected in [0, 1];
// callers validate it.
func NewMMRReranker(lambda float64) *MMRReranker {
	return &MMRReranker{
		lambda:    lambda,
		tokenizer: analyzer.NewTokenizer(),
	}
}

// Lambda returns the relevance weight.
func (r *MMRReranker) Lambda() float64 {
	return r.lambda
}

// Rerank applies MMR to diversify the results.
// MMR(c) = λ * relevance(c) - (1-λ) * max_similarity(c, selected)
// The result is in selection order and never repeats a candidate.
func (r *MMRReranker) Rerank(candidates []domain.Candidate, k int) []domain.Candidate {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}

	pool := make([]domain.Candidate, len(candidates))
	copy(pool, candidates)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Score > pool[j].Score
	})

	if k > len(pool) {
		k = len(pool)
	}

	tokens := make([][]string, len(pool))
	for i, c := range pool {
		tokens[i] = r.tokenizer.Tokenize(c.Text)
	}

	// maxSim[i] is the highest similarity of pool[i] to anything selected so far.
	maxSim := make([]float64, len(pool))
	used := make([]bool, len(pool))
	selected := make([]domain.Candidate, 0, k)

	for len(selected) < k {
		bestIdx := -1
		bestMMR := 0.0

		for i, c := range pool {
			if used[i] {
				continue
			}
			mmr := r.lambda*c.Score - (1-r.lambda)*maxSim[i]
			// Strict comparison keeps the earlier rank on ties.
			if bestIdx == -1 || mmr > bestMMR {
				bestIdx = i
				bestMMR = mmr
			}
		}

		used[bestIdx] = true
		selected = append(selected, pool[bestIdx])

		for i := range pool {
			if used[i] {
				continue
			}
			sim := similarity(pool[i], pool[bestIdx], tokens[i], tokens[bestIdx])
			if sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}

	return selected
}

// similarity uses embedding cosine when both candidates carry vectors and
// falls back to lexical Jaccard otherwise.
func similarity(a, b domain.Candidate, tokensA, tokensB []string) float64 {
	if len(a.Vector) > 0 && len(a.Vector) == len(b.Vector) {
		return analyzer.Normalize(analyzer.Cosine(a.Vector, b.Vector))
	}
	return analyzer.Jaccard(tokensA, tokensB)
}
