package chunker

import (
	"fmt"
	"strings"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/domain"
)

// SentenceChunker packs whole sentences into chunks of a bounded token
// estimate, carrying trailing sentences forward as overlap.
type SentenceChunker struct {
	maxTokens int
	overlap   int
}

// sentence may run across a page break; spans holds its word count on each
// page it touches, in page order.
type sentence struct {
	text  string
	spans []pageSpan
	words int
}

type pageSpan struct {
	page  int
	words int
}

func NewSentenceChunker(maxTokens, overlap int) (*SentenceChunker, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfiguration, maxTokens)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrConfiguration, overlap)
	}
	if overlap >= maxTokens {
		return nil, fmt.Errorf("%w: overlap (%d) must be smaller than chunk size (%d)", domain.ErrConfiguration, overlap, maxTokens)
	}
	return &SentenceChunker{maxTokens: maxTokens, overlap: overlap}, nil
}

func (c *SentenceChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	sentences := splitSentences(doc.Pages)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []domain.Chunk
	var current []sentence
	words := 0

	for _, s := range sentences {
		if len(current) > 0 && analyzer.EstimateWords(words+s.words) > c.maxTokens {
			chunks = append(chunks, buildChunk(doc.Name, len(chunks), current))
			current = c.overlapTail(current, s.words)
			words = countWords(current)
		}
		current = append(current, s)
		words += s.words
	}
	chunks = append(chunks, buildChunk(doc.Name, len(chunks), current))

	return chunks, nil
}

// overlapTail picks the trailing sentences of prev that seed the next chunk.
// The longest run whose estimate stays within the overlap wins; when even the
// last sentence is too long it is carried alone. The run is then trimmed from
// the front until the next sentence fits beside it.
func (c *SentenceChunker) overlapTail(prev []sentence, nextWords int) []sentence {
	if c.overlap == 0 {
		return nil
	}

	start := len(prev)
	words := 0
	for i := len(prev) - 1; i >= 0; i-- {
		if analyzer.EstimateWords(words+prev[i].words) > c.overlap {
			break
		}
		words += prev[i].words
		start = i
	}
	if start == len(prev) {
		start = len(prev) - 1
		words = prev[start].words
	}

	for start < len(prev) && analyzer.EstimateWords(words+nextWords) > c.maxTokens {
		words -= prev[start].words
		start++
	}

	tail := make([]sentence, len(prev)-start)
	copy(tail, prev[start:])
	return tail
}

func buildChunk(docName string, ordinal int, sentences []sentence) domain.Chunk {
	parts := make([]string, len(sentences))
	for i, s := range sentences {
		parts[i] = s.text
	}
	text := strings.Join(parts, " ")

	return domain.Chunk{
		ID:            ChunkID(docName, ordinal),
		DocumentName:  docName,
		PageNumber:    majorityPage(sentences),
		Text:          text,
		TokenEstimate: analyzer.EstimateTokens(text),
	}
}

// ChunkID derives the identifier of the ordinal-th chunk of a document.
func ChunkID(docName string, ordinal int) string {
	return fmt.Sprintf("%s_%d", docName, ordinal)
}

// majorityPage returns the page contributing the most words. Ties go to the
// page seen first, which is the page of the first sentence when it is tied.
func majorityPage(sentences []sentence) int {
	counts := make(map[int]int)
	var order []int
	for _, s := range sentences {
		for _, sp := range s.spans {
			if _, seen := counts[sp.page]; !seen {
				order = append(order, sp.page)
			}
			counts[sp.page] += sp.words
		}
	}

	best := order[0]
	for _, p := range order[1:] {
		if counts[p] > counts[best] {
			best = p
		}
	}
	return best
}

func countWords(sentences []sentence) int {
	n := 0
	for _, s := range sentences {
		n += s.words
	}
	return n
}

// splitSentences breaks the pages into sentences ending in '.', '!' or '?'
// followed by whitespace. A page break does not end a sentence: the
// unfinished tail of one page continues on the next. Whitespace runs
// collapse to single spaces.
func splitSentences(pages []domain.Page) []sentence {
	var (
		out   []sentence
		words []string
		spans []pageSpan
	)
	flush := func() {
		if len(words) == 0 {
			return
		}
		out = append(out, sentence{
			text:  strings.Join(words, " "),
			spans: spans,
			words: len(words),
		})
		words, spans = nil, nil
	}

	for i, p := range pages {
		page := p.Number
		if page < 1 {
			page = i + 1
		}

		for _, w := range strings.Fields(p.Text) {
			words = append(words, w)
			if n := len(spans); n == 0 || spans[n-1].page != page {
				spans = append(spans, pageSpan{page: page})
			}
			spans[len(spans)-1].words++
			if endsSentence(w) {
				flush()
			}
		}
	}
	flush()
	return out
}

func endsSentence(word string) bool {
	trimmed := strings.TrimRight(word, "\"')]}”’")
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
