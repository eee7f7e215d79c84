package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"text/template"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/domain"
	"docqa/internal/port"
)

//go:embed templates/answer_prompt.txt
var promptTemplates embed.FS

// Confidence weights and length-ratio bounds.
const (
	similarityWeight = 0.6
	lengthWeight     = 0.4

	minExpectedTokens = 20
	maxExpectedTokens = 150
)

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(trained by|developed by|created by|built by|made by)\s*(google|openai|anthropic|meta|microsoft)\b`),
	regexp.MustCompile(`(?i)\b(gemini|gpt-?\d*|claude|llama|palm|bard)\b`),
	regexp.MustCompile(`(?i)\bi am (a |an )?(large )?language model\b`),
	regexp.MustCompile(`(?i)\bi'm (a |an )?(large )?language model\b`),
	regexp.MustCompile(`(?i)\bas an? (ai|artificial intelligence|language model|llm)\b`),
	regexp.MustCompile(`(?i)\bapi[_\s]?key\b`),
	regexp.MustCompile(`(?i)\bsecret[_\s]?key\b`),
	regexp.MustCompile(`(?i)\baccess[_\s]?token\b`),
}

var whitespace = regexp.MustCompile(`\s+`)

// Phrases a generator uses when the context does not answer the question.
var refusalPhrases = []string{
	"insufficient information",
	"does not contain",
	"do not contain",
	"no information",
	"cannot find",
	"unable to find",
	"not found in",
	"no relevant",
	"not mentioned",
	"i cannot answer",
	"not in the document",
	"the documents don't",
	"the document doesn't",
}

// SynthesisRequest is the input of one answer synthesis.
type SynthesisRequest struct {
	Query      string
	Candidates []domain.Candidate
	Threshold  float64
	History    string
}

// DraftAnswer is the generator's raw output plus the prompt that produced it.
type DraftAnswer struct {
	Prompt    string
	Text      string
	Generated bool
}

// AnswerUseCase builds the context-only prompt, calls the generator, scores
// confidence and applies the gate.
type AnswerUseCase struct {
	llm    port.LLM
	tmpl   *template.Template
	opts   port.GenerateOptions
	logger *slog.Logger
}

func NewAnswerUseCase(llm port.LLM, opts port.GenerateOptions, logger *slog.Logger) (*AnswerUseCase, error) {
	content, err := promptTemplates.ReadFile("templates/answer_prompt.txt")
	if err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}
	tmpl, err := template.New("answer").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{
		llm:    llm,
		tmpl:   tmpl,
		opts:   opts,
		logger: logger,
	}, nil
}

// Synthesize runs Draft then Finalize.
func (u *AnswerUseCase) Synthesize(ctx context.Context, req SynthesisRequest) (domain.Answer, error) {
	draft, err := u.Draft(ctx, req)
	if err != nil {
		return domain.Answer{}, err
	}
	return u.Finalize(req, draft), nil
}

// Draft renders the prompt and invokes the generator. With no candidates
// the generator is not called. Generator errors wrap
// domain.ErrGenerationFailure and are not retried.
func (u *AnswerUseCase) Draft(ctx context.Context, req SynthesisRequest) (DraftAnswer, error) {
	if len(req.Candidates) == 0 {
		return DraftAnswer{}, nil
	}

	prompt, err := u.BuildPrompt(req)
	if err != nil {
		return DraftAnswer{}, err
	}
	if u.llm == nil {
		return DraftAnswer{Prompt: prompt}, fmt.Errorf("%w: no generator configured", domain.ErrGenerationFailure)
	}

	text, err := u.llm.Generate(ctx, prompt, u.opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return DraftAnswer{Prompt: prompt}, ctxErr
		}
		return DraftAnswer{Prompt: prompt}, fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}

	return DraftAnswer{
		Prompt:    prompt,
		Text:      Sanitize(text),
		Generated: true,
	}, nil
}

// BuildPrompt renders the answer prompt for the request.
func (u *AnswerUseCase) BuildPrompt(req SynthesisRequest) (string, error) {
	var buf bytes.Buffer
	if err := u.tmpl.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

// Finalize scores the draft, applies the confidence gate and attaches
// citations. It never returns generator text below the threshold.
func (u *AnswerUseCase) Finalize(req SynthesisRequest, draft DraftAnswer) domain.Answer {
	answer := domain.Answer{
		Text:            domain.FallbackAnswer,
		Citations:       []domain.Citation{},
		RetrievedChunks: len(req.Candidates),
	}

	if len(req.Candidates) == 0 || !draft.Generated {
		answer.Outcome = domain.OutcomeNoEvidence
		return answer
	}

	refused := draft.Text == "" || IsRefusal(draft.Text)
	answerTokens := analyzer.EstimateTokens(draft.Text)
	if refused {
		// A refusal carries no grounded content, whatever its length.
		answerTokens = 0
	}
	answer.Confidence = Confidence(req.Candidates, answerTokens)

	switch {
	case refused:
		answer.Outcome = domain.OutcomeInsufficient
	case answer.Confidence < req.Threshold:
		answer.Outcome = domain.OutcomeLowConfidence
		u.logger.Info("answer below confidence threshold",
			"confidence", answer.Confidence, "threshold", req.Threshold)
	default:
		answer.Text = draft.Text
		answer.Citations = Citations(req.Candidates)
		answer.Outcome = domain.OutcomeAnswered
	}
	return answer
}

// Confidence is 0.6*avg_similarity + 0.4*length_ratio, clamped to [0, 1].
// length_ratio = min(1, answerTokens / expected) where expected is a quarter
// of the context's estimated tokens, kept within [20, 150].
func Confidence(candidates []domain.Candidate, answerTokens int) float64 {
	if len(candidates) == 0 {
		return 0
	}

	var sum float64
	contextTokens := 0
	for _, c := range candidates {
		sum += analyzer.Normalize(c.Score)
		contextTokens += analyzer.EstimateTokens(c.Text)
	}
	avgSimilarity := sum / float64(len(candidates))

	expected := float64(contextTokens) / 4
	expected = math.Max(minExpectedTokens, math.Min(maxExpectedTokens, expected))
	lengthRatio := math.Min(1, float64(answerTokens)/expected)

	confidence := similarityWeight*avgSimilarity + lengthWeight*lengthRatio
	return math.Max(0, math.Min(1, confidence))
}

// Citations returns one citation per distinct chunk id in candidate order.
func Citations(candidates []domain.Candidate) []domain.Citation {
	seen := make(map[string]struct{}, len(candidates))
	citations := make([]domain.Citation, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.ChunkID]; dup {
			continue
		}
		seen[c.ChunkID] = struct{}{}
		citations = append(citations, domain.Citation{
			Document: c.Metadata.DocumentName,
			Page:     c.Metadata.PageNumber,
			ChunkID:  c.ChunkID,
		})
	}
	return citations
}

// IsRefusal reports whether the text says the context holds no answer.
func IsRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Sanitize strips model identity and credential mentions. If that leaves
// less than a sentence, the result is empty.
func Sanitize(text string) string {
	redacted := false
	for _, p := range sensitivePatterns {
		if p.MatchString(text) {
			text = p.ReplaceAllString(text, "")
			redacted = true
		}
	}
	text = strings.TrimSpace(text)
	if !redacted {
		return text
	}

	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	if len(text) < 20 {
		return ""
	}
	return text
}
