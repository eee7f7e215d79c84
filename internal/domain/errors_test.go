package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unreadable", fmt.Errorf("scan.pdf: %w", ErrUnreadableDocument), "unreadable_document"},
		{"config", ErrConfiguration, "configuration_error"},
		{"embedding", fmt.Errorf("batch 2: %w", ErrEmbeddingFailure), "embedding_failure"},
		{"index", ErrIndexUnavailable, "index_unavailable"},
		{"generation", ErrGenerationFailure, "generation_failure"},
		{"not found", ErrDocumentNotFound, "not_found"},
		{"invalid", ErrInvalidInput, "invalid_input"},
		{"other", errors.New("boom"), "internal"},
		{
			"pipeline wrapped",
			&PipelineError{Stage: StageEmbedded, Err: fmt.Errorf("embed query: %w", ErrEmbeddingFailure)},
			"embedding_failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestPipelineError(t *testing.T) {
	err := &PipelineError{Stage: StageGenerated, Err: ErrGenerationFailure}

	if !errors.Is(err, ErrGenerationFailure) {
		t.Error("expected PipelineError to unwrap to ErrGenerationFailure")
	}
	if err.Error() != "generated stage: generation failure" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	var pe *PipelineError
	if !errors.As(fmt.Errorf("query: %w", err), &pe) || pe.Stage != StageGenerated {
		t.Error("expected errors.As to recover the stage")
	}
}

func TestChunkMetadata(t *testing.T) {
	c := Chunk{ID: "paper_3", DocumentName: "paper", PageNumber: 2, Text: "x"}
	m := c.Metadata()
	if m.ChunkID != "paper_3" || m.DocumentName != "paper" || m.PageNumber != 2 {
		t.Errorf("unexpected metadata: %+v", m)
	}
}
