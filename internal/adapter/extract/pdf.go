package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"docqa/internal/domain"
	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads the plain text of every page of a PDF.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(ctx context.Context, name string, data []byte) (pages []domain.Page, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrUnreadableDocument, name)
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: malformed pdf: %v", domain.ErrUnreadableDocument, name, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnreadableDocument, name, err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s has no extractable text", domain.ErrUnreadableDocument, name)
	}
	return pages, nil
}
