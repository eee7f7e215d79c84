package port

import "docqa/internal/domain"

// Chunker splits a page-tagged document into ordered chunks.
type Chunker interface {
	Chunk(doc domain.Document) ([]domain.Chunk, error)
}
