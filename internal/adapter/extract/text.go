package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"docqa/internal/domain"
)

var pageMarker = regexp.MustCompile(`(?m)^\s*\[PAGE (\d+)\]\s*$`)

// TextExtractor reads plain UTF-8 text. Lines of the form "[PAGE n]" start
// page n; text before the first marker belongs to page 1.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(ctx context.Context, name string, data []byte) ([]domain.Page, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8 text", domain.ErrUnreadableDocument, name)
	}

	pages := ParsePages(string(data))
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s has no text", domain.ErrUnreadableDocument, name)
	}
	return pages, nil
}

// ParsePages splits marker-tagged text into pages, dropping empty ones.
func ParsePages(text string) []domain.Page {
	var pages []domain.Page
	add := func(number int, body string) {
		body = strings.TrimSpace(body)
		if body == "" {
			return
		}
		pages = append(pages, domain.Page{Number: number, Text: body})
	}

	matches := pageMarker.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		add(1, text)
		return pages
	}

	add(1, text[:matches[0][0]])
	for i, m := range matches {
		number, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil || number < 1 {
			number = i + 1
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		add(number, text[m[1]:end])
	}
	return pages
}

// FormatPages renders pages with the markers ParsePages understands.
func FormatPages(pages []domain.Page) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[PAGE %d]\n%s\n", p.Number, p.Text)
	}
	return b.String()
}
