package llm

import (
	"context"
	"sort"
	"strings"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/port"
)

// Section headers of the answer prompt that the extractive generator reads.
const (
	ContextHeader  = "DOCUMENT CONTEXT:"
	QuestionHeader = "USER QUESTION:"
	blockSeparator = "---"
)

// NoAnswer is what the extractive generator says when nothing in the
// context shares a term with the question.
const NoAnswer = "The documents do not contain enough information to answer this question."

// ExtractiveGenerator answers offline by quoting the context sentences that
// share the most terms with the question.
type ExtractiveGenerator struct {
	tokenizer    *analyzer.Tokenizer
	maxSentences int
}

func NewExtractiveGenerator(maxSentences int) *ExtractiveGenerator {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &ExtractiveGenerator{
		tokenizer:    analyzer.NewTokenizer(),
		maxSentences: maxSentences,
	}
}

type scoredSentence struct {
	text  string
	pos   int
	score int
}

func (g *ExtractiveGenerator) Generate(ctx context.Context, prompt string, _ port.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	evidence, question := splitPrompt(prompt)
	terms := make(map[string]struct{})
	for _, t := range g.tokenizer.Tokenize(question) {
		terms[t] = struct{}{}
	}
	if len(terms) == 0 {
		return NoAnswer, nil
	}

	var candidates []scoredSentence
	for _, s := range contextSentences(evidence) {
		seen := make(map[string]struct{})
		score := 0
		for _, t := range g.tokenizer.Tokenize(s) {
			if _, ok := terms[t]; !ok {
				continue
			}
			if _, dup := seen[t]; !dup {
				seen[t] = struct{}{}
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scoredSentence{text: s, pos: len(candidates), score: score})
		}
	}
	if len(candidates) == 0 {
		return NoAnswer, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > g.maxSentences {
		candidates = candidates[:g.maxSentences]
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].pos < candidates[j].pos
	})

	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = c.text
	}
	return strings.Join(parts, " "), nil
}

func (g *ExtractiveGenerator) ModelName() string {
	return "extractive"
}

// splitPrompt returns the context section and the question of a prompt.
// A prompt without headers is treated as all context and all question.
func splitPrompt(prompt string) (string, string) {
	ci := strings.Index(prompt, ContextHeader)
	qi := strings.LastIndex(prompt, QuestionHeader)
	if ci < 0 || qi < 0 || qi < ci {
		return prompt, prompt
	}

	evidence := prompt[ci+len(ContextHeader) : qi]
	question := prompt[qi+len(QuestionHeader):]
	if end := strings.Index(question, "\n\n"); end >= 0 {
		question = question[:end]
	}
	return evidence, strings.TrimSpace(question)
}

// contextSentences drops block headers and separators and splits the rest
// into sentences.
func contextSentences(evidence string) []string {
	var sentences []string
	var words []string
	flush := func() {
		if len(words) > 0 {
			sentences = append(sentences, strings.Join(words, " "))
			words = nil
		}
	}

	for _, line := range strings.Split(evidence, "\n") {
		line = strings.TrimSpace(line)
		if line == blockSeparator || (strings.HasPrefix(line, "[Document:") && strings.HasSuffix(line, "]")) {
			flush()
			continue
		}
		for _, w := range strings.Fields(line) {
			words = append(words, w)
			if strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?") {
				flush()
			}
		}
	}
	flush()
	return sentences
}
