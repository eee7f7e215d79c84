package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestServer(t *testing.T, dim int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			http.Error(w, "bad auth "+got, http.StatusUnauthorized)
			return
		}

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// Answer in reverse order to exercise index handling.
		var resp embeddingResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dim)
			vec[0] = float32(len(req.Input[i]))
			resp.Data = append(resp.Data, embeddingData{Embedding: vec, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIEmbedder_Batches(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "secret")
	var calls int32
	srv := newTestServer(t, 4, &calls)
	defer srv.Close()

	e, err := NewOpenAICompatibleEmbedder("TEST_EMBED_KEY", "custom", srv.URL, WithDimension(4), WithBatchSize(2))
	if err != nil {
		t.Fatal(err)
	}

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}

	if len(vecs) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vecs))
	}
	for i, v := range vecs {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
	if calls != 3 {
		t.Errorf("expected 3 batched requests, got %d", calls)
	}
	if e.Dimension() != 4 || e.ModelName() != "custom" {
		t.Errorf("unexpected dimension/model: %d %s", e.Dimension(), e.ModelName())
	}
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "secret")
	var calls int32
	srv := newTestServer(t, 8, &calls)
	defer srv.Close()

	mismatch, _ := NewOpenAICompatibleEmbedder("TEST_EMBED_KEY", "custom", srv.URL, WithDimension(4))
	if _, err := mismatch.Embed(context.Background(), []string{"x"}); err == nil || !strings.Contains(err.Error(), "dimension mismatch") {
		t.Errorf("expected dimension mismatch error, got %v", err)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer failing.Close()

	e, _ := NewOpenAICompatibleEmbedder("TEST_EMBED_KEY", "custom", failing.URL)
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status error, got %v", err)
	}

	if _, err := NewOpenAICompatibleEmbedder("TEST_MISSING_KEY", "m", srv.URL); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestOpenAIEmbedder_Cancelled(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "secret")
	var calls int32
	srv := newTestServer(t, 4, &calls)
	defer srv.Close()

	e, _ := NewOpenAICompatibleEmbedder("TEST_EMBED_KEY", "custom", srv.URL, WithDimension(4), WithRateLimit(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Embed(ctx, []string{"x"}); err == nil {
		t.Error("expected error for cancelled context")
	}
	if _, err := e.Embed(context.Background(), nil); err != nil {
		t.Errorf("expected no error for empty input, got %v", err)
	}
}

func TestLocalEmbedder(t *testing.T) {
	e := NewLocalEmbedder(0)
	if e.Dimension() != DefaultLocalDimension {
		t.Fatalf("expected default dimension %d, got %d", DefaultLocalDimension, e.Dimension())
	}

	vecs, err := e.Embed(context.Background(), []string{
		"transformers use attention layers",
		"attention layers in transformers",
		"bread recipes need flour and yeast",
		"",
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, v := range vecs[:3] {
		if len(v) != DefaultLocalDimension {
			t.Fatalf("vector %d has length %d", i, len(v))
		}
		if n := norm(v); math.Abs(n-1) > 1e-5 {
			t.Errorf("vector %d not normalized: %f", i, n)
		}
	}
	if norm(vecs[3]) != 0 {
		t.Error("expected zero vector for empty text")
	}

	related := dot(vecs[0], vecs[1])
	unrelated := dot(vecs[0], vecs[2])
	if related <= unrelated {
		t.Errorf("expected related texts to be closer: related=%f unrelated=%f", related, unrelated)
	}

	again, _ := e.Embed(context.Background(), []string{"transformers use attention layers"})
	for i := range again[0] {
		if again[0][i] != vecs[0][i] {
			t.Fatal("expected deterministic embeddings")
		}
	}
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
