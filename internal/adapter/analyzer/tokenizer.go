package analyzer

import (
	"math"
	"strings"
	"unicode"
)

// tokensPerWord is the average number of model tokens per whitespace word.
const tokensPerWord = 1.3

// EstimateTokens approximates the model token count of text.
// It returns 0 for empty input and never decreases as words are appended.
func EstimateTokens(text string) int {
	return EstimateWords(len(strings.Fields(text)))
}

// EstimateWords converts a whitespace word count into a token estimate.
func EstimateWords(words int) int {
	if words <= 0 {
		return 0
	}
	return int(math.Round(float64(words) * tokensPerWord))
}

// Tokenizer splits text into lower-cased lexical terms with stopword removal.
// It backs lexical similarity, not token budgeting.
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{stopwords: defaultStopwords()}
}

// Tokenize splits text into terms.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len(word) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// CountTokens returns the same estimate as EstimateTokens.
func (t *Tokenizer) CountTokens(text string) int {
	return EstimateTokens(text)
}

// splitWords splits text into runs of letters and digits.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
		"there", "these", "those", "into", "about", "then", "them",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
