package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"docqa/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Start the HTTP API:

  GET    /                  service info
  GET    /health            readiness of the vector store and embedder
  POST   /upload            multipart "file" (PDF, TXT or MD)
  POST   /chat              {"query": "...", "conversation_id": "..."}
  GET    /documents         ingested documents
  DELETE /documents/{name}  remove a document

Examples:
  docqa serve
  docqa serve --addr 127.0.0.1:9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.warnIfStale()

	if h := a.pipeline.Health(ctx); h.Status != "healthy" {
		a.logger.Warn("starting in degraded mode",
			"vector_db_ready", h.VectorDBReady, "embedding_model_ready", h.EmbeddingModelReady)
	}

	// The in-memory index starts empty; refill it from the registry.
	if a.cfg.VectorStore.Backend == "memory" {
		docs, err := a.pipeline.Documents()
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			a.logger.Info("loading documents into memory index", "documents", len(docs))
			if _, err := a.rebuild(ctx, nil); err != nil {
				return fmt.Errorf("failed to load index: %w", err)
			}
		}
	}

	cfg := a.cfg.Server
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	return server.New(a.pipeline, cfg, a.logger).Run(ctx)
}
