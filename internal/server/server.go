// Package server exposes the question answering pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"docqa/config"
	"docqa/internal/domain"
	"docqa/internal/usecase"
)

// Version is reported by the info endpoint.
const Version = "1.0.0"

var supportedUploads = map[string]bool{".pdf": true, ".txt": true, ".md": true}

type Server struct {
	pipeline *usecase.Pipeline
	cfg      config.ServerConfig
	logger   *slog.Logger
	mux      *http.ServeMux
}

func New(pipeline *usecase.Pipeline, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleInfo)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /documents", s.handleListDocuments)
	s.mux.HandleFunc("DELETE /documents/{name}", s.handleDeleteDocument)
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Stage string `json:"stage,omitempty"`
}

type chatRequest struct {
	Query          string   `json:"query"`
	ConversationID string   `json:"conversation_id,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
	MMRLambda      *float64 `json:"mmr_lambda,omitempty"`
}

type uploadResponse struct {
	Message string `json:"message"`
	domain.IngestResult
}

type documentSummary struct {
	Name       string    `json:"name"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	Tokens     int       `json:"tokens"`
	IngestedAt time.Time `json:"ingested_at"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error(), Kind: domain.Kind(err)}
	var pe *domain.PipelineError
	if errors.As(err, &pe) {
		resp.Stage = string(pe.Stage)
	}

	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "kind", resp.Kind, "error", err)
	}
	writeJSON(w, status, resp)
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnreadableDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEmbeddingFailure), errors.Is(err, domain.ErrGenerationFailure):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "docqa",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"POST /upload",
			"POST /chat",
			"GET /documents",
			"DELETE /documents/{name}",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.pipeline.Health(r.Context())
	status := http.StatusOK
	if h.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: fmt.Sprintf("file exceeds %d MB", s.cfg.MaxUploadMB),
				Kind:  domain.Kind(domain.ErrInvalidInput),
			})
			return
		}
		s.writeError(w, fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidInput))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !supportedUploads[ext] {
		s.writeError(w, fmt.Errorf("%w: unsupported file type %q (PDF, TXT or MD)", domain.ErrInvalidInput, ext))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: reading upload: %v", domain.ErrInvalidInput, err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout())
	defer cancel()

	result, err := s.pipeline.IngestFile(ctx, header.Filename, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Message:      fmt.Sprintf("Successfully processed %s", header.Filename),
		IngestResult: result,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidInput))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout())
	defer cancel()

	answer, err := s.pipeline.Query(ctx, usecase.QueryRequest{
		Query:          req.Query,
		ConversationID: req.ConversationID,
		TopK:           req.TopK,
		Lambda:         req.MMRLambda,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.pipeline.Documents()
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]documentSummary, len(docs))
	for i, d := range docs {
		out[i] = documentSummary{
			Name:       d.Name,
			Pages:      len(d.Pages),
			Chunks:     len(d.ChunkIDs),
			Tokens:     d.Tokens,
			IngestedAt: d.IngestedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.pipeline.DeleteDocument(r.Context(), name); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Deleted %s", name)})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
