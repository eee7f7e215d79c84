package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"docqa/internal/adapter/analyzer"
)

// DefaultLocalDimension matches the small sentence-transformer models.
const DefaultLocalDimension = 384

// LocalEmbedder hashes lexical terms and adjacent term pairs into a fixed
// vector. It needs no network and is deterministic, so similar wording gives
// similar vectors; it has no notion of synonyms.
type LocalEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = DefaultLocalDimension
	}
	return &LocalEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(),
	}
}

func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = e.embed(text)
	}
	return embeddings, nil
}

func (e *LocalEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	terms := e.tokenizer.Tokenize(text)

	for i, term := range terms {
		e.add(vec, term, 1.0)
		if i > 0 {
			e.add(vec, terms[i-1]+" "+term, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (e *LocalEmbedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(e.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}

func (e *LocalEmbedder) ModelName() string {
	return "local-hash"
}
