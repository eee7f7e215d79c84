package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"docqa/internal/adapter/retriever"
	"docqa/internal/domain"
	"docqa/internal/port"
	"golang.org/x/sync/errgroup"
)

// IngestUseCase turns documents into indexed chunks and keeps the document
// registry in step with the index.
type IngestUseCase struct {
	chunker   port.Chunker
	gateway   *retriever.Gateway
	docs      port.DocumentStore
	extractor port.TextExtractor
	logger    *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	chunker port.Chunker,
	gateway *retriever.Gateway,
	docs port.DocumentStore,
	extractor port.TextExtractor,
	logger *slog.Logger,
) *IngestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		chunker:   chunker,
		gateway:   gateway,
		docs:      docs,
		extractor: extractor,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// IngestRequest is one document's page-tagged text.
type IngestRequest struct {
	DocumentName  string
	Pages         []domain.Page
	SourcePath    string
	SourceModTime int64
}

// Ingest chunks and indexes a document, replacing any earlier version of the
// same name. Chunks the embedder rejected are listed in EmbeddingFailures;
// the call only fails outright when nothing reached the index.
func (u *IngestUseCase) Ingest(ctx context.Context, req IngestRequest) (domain.IngestResult, error) {
	result := domain.IngestResult{DocumentName: req.DocumentName}

	name := strings.TrimSpace(req.DocumentName)
	if name == "" {
		return result, fmt.Errorf("%w: document name is required", domain.ErrInvalidInput)
	}

	unlock := u.lock(name)
	defer unlock()

	chunks, err := u.chunker.Chunk(domain.Document{Name: name, Pages: req.Pages})
	if err != nil {
		return result, ingestError(name, domain.StageChunk, err)
	}
	if len(chunks) == 0 {
		return result, ingestError(name, domain.StageChunk,
			fmt.Errorf("%w: no extractable text", domain.ErrUnreadableDocument))
	}

	result.ChunksCreated = len(chunks)
	for _, c := range chunks {
		result.TotalTokens += c.TokenEstimate
	}

	previous, err := u.docs.GetDocument(name)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return result, ingestError(name, domain.StageIndex, err)
	}

	report, err := u.gateway.Upsert(ctx, chunks)
	result.EmbeddingFailures = report.Failed
	if len(report.Stored) == 0 && err != nil {
		return result, ingestError(name, domain.StageIndex, err)
	}
	if err != nil && !errors.Is(err, domain.ErrEmbeddingFailure) {
		// The index failed after some batches landed; keep the registry
		// consistent with what is stored.
		u.logger.Error("index write failed mid-document", "document", name, "stored", len(report.Stored), "error", err)
	} else if err != nil {
		u.logger.Warn("some chunks were not embedded", "document", name, "failed", len(report.Failed), "error", err)
	}

	if stale := staleChunkIDs(previous.ChunkIDs, report.Stored); len(stale) > 0 {
		if derr := u.gateway.DeleteChunks(ctx, stale); derr != nil {
			u.logger.Warn("failed to delete stale chunks", "document", name, "count", len(stale), "error", derr)
		}
	}

	record := domain.DocumentRecord{
		Name:          name,
		Pages:         req.Pages,
		ChunkIDs:      report.Stored,
		Tokens:        result.TotalTokens,
		IngestedAt:    time.Now().UTC(),
		SourcePath:    req.SourcePath,
		SourceModTime: req.SourceModTime,
	}
	if perr := u.docs.PutDocument(record); perr != nil {
		return result, ingestError(name, domain.StageIndex, perr)
	}

	if err != nil && !errors.Is(err, domain.ErrEmbeddingFailure) {
		return result, ingestError(name, domain.StageIndex, err)
	}

	u.logger.Info("document ingested", "document", name,
		"chunks", result.ChunksCreated, "tokens", result.TotalTokens, "embedding_failures", len(result.EmbeddingFailures))
	return result, nil
}

// IngestFile extracts page-tagged text from a document blob and ingests it
// under the file name without its extension.
func (u *IngestUseCase) IngestFile(ctx context.Context, filename string, data []byte) (domain.IngestResult, error) {
	name := DocumentName(filename)
	if u.extractor == nil {
		return domain.IngestResult{DocumentName: name}, fmt.Errorf("%w: no text extractor configured", domain.ErrConfiguration)
	}

	pages, err := u.extractor.Extract(ctx, filename, data)
	if err != nil {
		return domain.IngestResult{DocumentName: name}, ingestError(name, domain.StageExtract, err)
	}
	return u.Ingest(ctx, IngestRequest{DocumentName: name, Pages: pages})
}

// IngestPath ingests a file from disk. Unless force is set, a file whose
// modification time has not moved since the last ingest is skipped.
func (u *IngestUseCase) IngestPath(ctx context.Context, file port.FileInfo, force bool) (domain.IngestResult, bool, error) {
	name := DocumentName(file.Path)

	if !force {
		if existing, err := u.docs.GetDocument(name); err == nil &&
			existing.SourcePath == file.Path && existing.SourceModTime >= file.ModTime {
			return domain.IngestResult{DocumentName: name, ChunksCreated: len(existing.ChunkIDs), TotalTokens: existing.Tokens}, true, nil
		}
	}

	data, err := os.ReadFile(file.Path)
	if err != nil {
		return domain.IngestResult{DocumentName: name}, false, ingestError(name, domain.StageExtract, err)
	}
	if u.extractor == nil {
		return domain.IngestResult{DocumentName: name}, false, fmt.Errorf("%w: no text extractor configured", domain.ErrConfiguration)
	}
	pages, err := u.extractor.Extract(ctx, filepath.Base(file.Path), data)
	if err != nil {
		return domain.IngestResult{DocumentName: name}, false, ingestError(name, domain.StageExtract, err)
	}

	result, err := u.Ingest(ctx, IngestRequest{
		DocumentName:  name,
		Pages:         pages,
		SourcePath:    file.Path,
		SourceModTime: file.ModTime,
	})
	return result, false, err
}

// BatchResult summarises a multi-document ingest.
type BatchResult struct {
	Indexed int
	Skipped int
	Results []domain.IngestResult
	Errors  []string
}

// BatchOptions controls IngestFiles.
type BatchOptions struct {
	Workers int
	Force   bool
	// OnFile runs after each file, from the worker goroutine.
	OnFile func(path string, err error)
}

// IngestFiles ingests files concurrently, at most Workers at a time. A
// failing file is recorded and the rest continue; only cancellation stops
// the batch.
func (u *IngestUseCase) IngestFiles(ctx context.Context, files []port.FileInfo, opts BatchOptions) (*BatchResult, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	batch := &BatchResult{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result, skipped, err := u.IngestPath(gctx, file, opts.Force)

			mu.Lock()
			switch {
			case err != nil:
				batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %v", file.Path, err))
			case skipped:
				batch.Skipped++
			default:
				batch.Indexed++
				batch.Results = append(batch.Results, result)
			}
			mu.Unlock()

			if opts.OnFile != nil {
				opts.OnFile(file.Path, err)
			}
			if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return batch, err
	}
	return batch, nil
}

// Delete removes a document's chunks from the index and the registry.
func (u *IngestUseCase) Delete(ctx context.Context, name string) error {
	unlock := u.lock(name)
	defer unlock()

	doc, err := u.docs.GetDocument(name)
	if err != nil {
		return err
	}
	if err := u.gateway.DeleteChunks(ctx, doc.ChunkIDs); err != nil {
		return err
	}
	if err := u.docs.DeleteDocument(name); err != nil {
		return err
	}

	u.logger.Info("document deleted", "document", name, "chunks", len(doc.ChunkIDs))
	return nil
}

// Rebuild re-chunks and re-embeds every registered document from its stored
// pages, as needed after a chunking or embedding configuration change.
func (u *IngestUseCase) Rebuild(ctx context.Context, onDoc func(name string, err error)) (*BatchResult, error) {
	docs, err := u.docs.ListDocuments()
	if err != nil {
		return nil, err
	}

	batch := &BatchResult{}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		result, err := u.Ingest(ctx, IngestRequest{
			DocumentName:  doc.Name,
			Pages:         doc.Pages,
			SourcePath:    doc.SourcePath,
			SourceModTime: doc.SourceModTime,
		})
		if err != nil {
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %v", doc.Name, err))
		} else {
			batch.Indexed++
			batch.Results = append(batch.Results, result)
		}
		if onDoc != nil {
			onDoc(doc.Name, err)
		}
	}
	return batch, nil
}

func (u *IngestUseCase) lock(name string) func() {
	u.locksMu.Lock()
	m, ok := u.locks[name]
	if !ok {
		m = &sync.Mutex{}
		u.locks[name] = m
	}
	u.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

// DocumentName derives a document name from a file name: the base name
// without its extension.
func DocumentName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func staleChunkIDs(previous, current []string) []string {
	keep := make(map[string]struct{}, len(current))
	for _, id := range current {
		keep[id] = struct{}{}
	}
	var stale []string
	for _, id := range previous {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}

func ingestError(document string, stage domain.Stage, err error) error {
	return fmt.Errorf("ingest %s: %w", document, &domain.PipelineError{Stage: stage, Err: err})
}
