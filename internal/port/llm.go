package port

import "context"

// LLM represents a language model for text generation.
type LLM interface {
	// Generate generates text based on the prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}

type GenerateOptions struct {
	System      string
	MaxTokens   int
	Temperature float64
}
