package port

import (
	"context"

	"docqa/internal/domain"
)

// TextExtractor turns a document blob into page-tagged text.
// Implementations return domain.ErrUnreadableDocument when no text can be extracted.
type TextExtractor interface {
	Extract(ctx context.Context, name string, data []byte) ([]domain.Page, error)
}
