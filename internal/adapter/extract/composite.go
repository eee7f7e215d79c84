package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// Composite dispatches to an extractor by file extension.
type Composite struct {
	byExt map[string]port.TextExtractor
}

// NewComposite registers the PDF and plain-text extractors.
func NewComposite() *Composite {
	c := &Composite{byExt: make(map[string]port.TextExtractor)}
	c.Register(".pdf", NewPDFExtractor())
	text := NewTextExtractor()
	c.Register(".txt", text)
	c.Register(".md", text)
	return c
}

func (c *Composite) Register(ext string, e port.TextExtractor) {
	c.byExt[strings.ToLower(ext)] = e
}

// Supports reports whether a file name has a registered extension.
func (c *Composite) Supports(name string) bool {
	_, ok := c.byExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (c *Composite) Extract(ctx context.Context, name string, data []byte) ([]domain.Page, error) {
	ext := strings.ToLower(filepath.Ext(name))
	e, ok := c.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrUnreadableDocument, ext)
	}
	return e.Extract(ctx, name, data)
}
