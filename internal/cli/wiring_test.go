package cli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"docqa/config"
	"docqa/internal/domain"
	"docqa/internal/usecase"
)

// useConfig points the command globals at c and a fresh directory.
func useConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prevCfg, prevDir := cfg, rootDir
	t.Cleanup(func() { cfg, rootDir = prevCfg, prevDir })

	c.Logging.Level = "error"
	cfg, rootDir = c, t.TempDir()
}

func TestOpenApp_Defaults(t *testing.T) {
	useConfig(t, config.DefaultConfig())

	a, err := openApp(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	h := a.pipeline.Health(context.Background())
	if h.Status != "healthy" || !h.VectorDBReady || !h.EmbeddingModelReady {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestOpenApp_DegradedDependencies(t *testing.T) {
	qdrant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer qdrant.Close()

	c := config.DefaultConfig()
	c.Embedding.Provider = "openai"
	c.Embedding.APIKeyEnv = "DOCQA_TEST_EMBEDDING_KEY"
	c.VectorStore.Backend = "qdrant"
	c.VectorStore.URL = qdrant.URL
	c.VectorStore.Collection = "docs"
	t.Setenv("DOCQA_TEST_EMBEDDING_KEY", "")
	useConfig(t, c)

	a, err := openApp(context.Background())
	if err != nil {
		t.Fatalf("expected a degraded app, got %v", err)
	}
	defer a.Close()

	h := a.pipeline.Health(context.Background())
	if h.Status != "degraded" || h.VectorDBReady || h.EmbeddingModelReady {
		t.Errorf("unexpected health %+v", h)
	}

	_, err = a.pipeline.Query(context.Background(), usecase.QueryRequest{Query: "How did revenue change?"})
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestOpenApp_BadConfigurationFails(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*config.Config)
	}{
		{"embedding provider", func(c *config.Config) { c.Embedding.Provider = "word2vec" }},
		{"vector store backend", func(c *config.Config) { c.VectorStore.Backend = "faiss" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.DefaultConfig()
			tt.apply(c)
			useConfig(t, c)

			if _, err := openApp(context.Background()); !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}
