package retriever

import (
	"testing"

	"docqa/internal/domain"
)

func candidate(id string, score float64, text string, vec ...float32) domain.Candidate {
	return domain.Candidate{
		ChunkID:  id,
		Text:     text,
		Metadata: domain.ChunkMetadata{DocumentName: "doc", PageNumber: 1, ChunkID: id},
		Score:    score,
		Vector:   vec,
	}
}

func ids(cs []domain.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ChunkID
	}
	return out
}

func TestMMRReranking_PrefersDiverse(t *testing.T) {
	reranker := NewMMRReranker(0.5)

	candidates := []domain.Candidate{
		candidate("dup1", 0.95, "", 1, 0, 0),
		candidate("dup2", 0.93, "", 0.99, 0.14, 0),
		candidate("other", 0.6, "", 0, 0, 1),
	}

	results := reranker.Rerank(candidates, 2)
	got := ids(results)
	if len(got) != 2 || got[0] != "dup1" || got[1] != "other" {
		t.Errorf("expected [dup1 other], got %v", got)
	}
}

func TestMMRReranking_LexicalFallback(t *testing.T) {
	reranker := NewMMRReranker(0.5)

	candidates := []domain.Candidate{
		candidate("c1", 1.0, "authentication login user password"),
		candidate("c2", 0.9, "authentication login user session"),
		candidate("c3", 0.8, "database query connection pooling"),
	}

	got := ids(reranker.Rerank(candidates, 2))
	if len(got) != 2 || got[0] != "c1" || got[1] != "c3" {
		t.Errorf("expected [c1 c3], got %v", got)
	}
}

func TestMMRReranking_LambdaOneKeepsRelevanceOrder(t *testing.T) {
	reranker := NewMMRReranker(1.0)

	candidates := []domain.Candidate{
		candidate("b", 0.7, "same text", 1, 0),
		candidate("a", 0.9, "same text", 1, 0),
		candidate("c", 0.7, "same text", 1, 0),
		candidate("d", 0.2, "other", 0, 1),
	}

	got := ids(reranker.Rerank(candidates, 4))
	want := []string{"a", "b", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMMRReranking_NoRepeats(t *testing.T) {
	reranker := NewMMRReranker(0.0)

	candidates := []domain.Candidate{
		candidate("a", 0.9, "x", 1, 0),
		candidate("b", 0.8, "x", 1, 0),
		candidate("c", 0.7, "x", 1, 0),
	}

	for _, k := range []int{1, 2, 3, 10} {
		results := reranker.Rerank(candidates, k)
		want := k
		if want > len(candidates) {
			want = len(candidates)
		}
		if len(results) != want {
			t.Errorf("k=%d: expected %d results, got %d", k, want, len(results))
		}
		seen := map[string]bool{}
		for _, r := range results {
			if seen[r.ChunkID] {
				t.Errorf("k=%d: %s selected twice", k, r.ChunkID)
			}
			seen[r.ChunkID] = true
		}
		if results[0].ChunkID != "a" {
			t.Errorf("k=%d: first pick must be the most relevant, got %s", k, results[0].ChunkID)
		}
	}
}

func TestMMRReranking_DoesNotMutateInput(t *testing.T) {
	candidates := []domain.Candidate{
		candidate("low", 0.1, "x"),
		candidate("high", 0.9, "y"),
	}
	NewMMRReranker(0.5).Rerank(candidates, 2)
	if candidates[0].ChunkID != "low" {
		t.Error("input slice was reordered")
	}
}

func TestMMREmptyCandidates(t *testing.T) {
	reranker := NewMMRReranker(0.7)

	if results := reranker.Rerank(nil, 10); results != nil {
		t.Errorf("expected nil for empty candidates, got %v", results)
	}
	if results := reranker.Rerank([]domain.Candidate{candidate("a", 1, "x")}, 0); results != nil {
		t.Errorf("expected nil for k=0, got %v", results)
	}
}
