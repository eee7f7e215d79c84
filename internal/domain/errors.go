package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnreadableDocument = errors.New("unreadable document")
	ErrConfiguration      = errors.New("configuration error")
	ErrEmbeddingFailure   = errors.New("embedding failure")
	ErrIndexUnavailable   = errors.New("index unavailable")
	ErrGenerationFailure  = errors.New("generation failure")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInvalidInput       = errors.New("invalid input")
)

// PipelineError records the stage at which a query or ingestion failed.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// DimensionMismatchError reports a vector whose length differs from the
// dimension the index was created with. ChunkID is empty for query vectors.
type DimensionMismatchError struct {
	ChunkID  string
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	if e.ChunkID == "" {
		return fmt.Sprintf("query dimension mismatch: expected %d, got %d", e.Expected, e.Got)
	}
	return fmt.Sprintf("vector dimension mismatch for %s: expected %d, got %d", e.ChunkID, e.Expected, e.Got)
}

// Kind maps an error to a stable name for API and CLI output.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnreadableDocument):
		return "unreadable_document"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, ErrEmbeddingFailure):
		return "embedding_failure"
	case errors.Is(err, ErrIndexUnavailable):
		return "index_unavailable"
	case errors.Is(err, ErrGenerationFailure):
		return "generation_failure"
	case errors.Is(err, ErrDocumentNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
