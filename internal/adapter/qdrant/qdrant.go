package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docqa/internal/domain"
	"docqa/internal/port"
	"github.com/google/uuid"
)

// Store is a minimal REST client for a Qdrant collection using cosine
// distance. Point ids are UUIDv5 of the chunk id so upserts stay idempotent.
type Store struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// payload is the fixed-shape metadata stored with every point.
type payload struct {
	ChunkID      string `json:"chunk_id"`
	DocumentName string `json:"document_name"`
	PageNumber   int    `json:"page_number"`
	Text         string `json:"text"`
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload payload   `json:"payload"`
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}
}

// PointID maps a chunk id onto the UUID Qdrant stores it under.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// EnsureCollection creates the collection when it does not exist yet.
func (s *Store) EnsureCollection(ctx context.Context) error {
	if s.dimension <= 0 {
		return errors.New("invalid dimension")
	}

	status, err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	if err == nil {
		return nil
	}
	if status != http.StatusNotFound {
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	_, err = s.do(ctx, http.MethodPut, s.collectionURL(), body, nil)
	return err
}

func (s *Store) Upsert(ctx context.Context, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]point, len(records))
	for i, r := range records {
		if len(r.Vector) != s.dimension {
			return &domain.DimensionMismatchError{ChunkID: r.ChunkID, Expected: s.dimension, Got: len(r.Vector)}
		}
		points[i] = point{
			ID:     PointID(r.ChunkID),
			Vector: r.Vector,
			Payload: payload{
				ChunkID:      r.ChunkID,
				DocumentName: r.Metadata.DocumentName,
				PageNumber:   r.Metadata.PageNumber,
				Text:         r.Text,
			},
		}
	}

	body := map[string]any{"points": points}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil)
	return err
}

func (s *Store) Search(ctx context.Context, query []float32, k int) ([]port.VectorResult, error) {
	if len(query) != s.dimension {
		return nil, &domain.DimensionMismatchError{Expected: s.dimension, Got: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}

	req := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []struct {
			Score   float64   `json:"score"`
			Payload payload   `json:"payload"`
			Vector  []float32 `json:"vector"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}

	results := make([]port.VectorResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, port.VectorResult{
			Record: domain.EmbeddingRecord{
				ChunkID: r.Payload.ChunkID,
				Vector:  r.Vector,
				Metadata: domain.ChunkMetadata{
					DocumentName: r.Payload.DocumentName,
					PageNumber:   r.Payload.PageNumber,
					ChunkID:      r.Payload.ChunkID,
				},
				Text: r.Payload.Text,
			},
			Score: r.Score,
		})
	}
	return results, nil
}

func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	points := make([]string, len(ids))
	for i, id := range ids {
		points[i] = PointID(id)
	}
	body := map[string]any{"points": points}
	_, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/delete?wait=true", body, nil)
	return err
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Clear drops the collection.
func (s *Store) Clear(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

func (s *Store) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

// do sends a JSON request and decodes the response into out when non-nil.
// The HTTP status is returned even on error so callers can branch on 404.
func (s *Store) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
