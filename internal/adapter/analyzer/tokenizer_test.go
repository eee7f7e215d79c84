package analyzer

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"", 0},
		{"   \n\t ", 0},
		{"one", 1},
		{"one two", 3},
		{"one two three", 4},
		{"one two three four five six seven eight nine ten", 13},
		{"punctuation, counts; part-of words.", 5},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.input); got != tt.expected {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestEstimateTokens_Monotonic(t *testing.T) {
	var b strings.Builder
	prev := EstimateTokens("")
	for i := 0; i < 200; i++ {
		b.WriteString("word ")
		cur := EstimateTokens(b.String())
		if cur < prev {
			t.Fatalf("estimate decreased after %d words: %d < %d", i+1, cur, prev)
		}
		prev = cur
	}
}

func TestEstimateWords_MatchesText(t *testing.T) {
	text := "alpha beta gamma delta epsilon"
	if EstimateWords(5) != EstimateTokens(text) {
		t.Errorf("EstimateWords(5) = %d, EstimateTokens = %d", EstimateWords(5), EstimateTokens(text))
	}
	if EstimateWords(-3) != 0 {
		t.Error("expected 0 for negative word count")
	}
}

func TestTokenizer_Tokenize(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("The Transformer uses self-attention layers")
	want := []string{"transformer", "uses", "self", "attention", "layers"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %v, got %v", want, tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestTokenizer_StopwordRemoval(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("the quick brown fox")
	for _, token := range tokens {
		if token == "the" {
			t.Errorf("stopword 'the' should be removed, got %v", tokens)
		}
	}
}

func TestTokenizer_ShortWordRemoval(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("a I go to")
	for _, token := range tokens {
		if len(token) < 2 {
			t.Errorf("short word should be removed: %s", token)
		}
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	tok := NewTokenizer()

	if tokens := tok.Tokenize(""); len(tokens) != 0 {
		t.Errorf("expected 0 tokens for empty input, got %d", len(tokens))
	}
	if count := tok.CountTokens(""); count != 0 {
		t.Errorf("expected 0 count for empty input, got %d", count)
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"hello-world", 2},
		{"f(x, y)", 3},
		{"CamelCase", 1},
		{"123numbers456", 1},
		{"", 0},
	}

	for _, tt := range tests {
		words := splitWords(tt.input)
		if len(words) != tt.expected {
			t.Errorf("splitWords(%q) = %d words, want %d: %v", tt.input, len(words), tt.expected, words)
		}
	}
}
