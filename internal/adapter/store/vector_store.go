package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/domain"
	"docqa/internal/port"
	"go.etcd.io/bbolt"
)

var bucketVectors = []byte("vectors")

// BoltVectorStore persists embedding records in BoltDB and searches an
// in-memory copy by brute-force cosine similarity.
type BoltVectorStore struct {
	db        *bbolt.DB
	dimension int
	mu        sync.RWMutex
	records   map[string]domain.EmbeddingRecord
}

type storedVector struct {
	Vector   []float32            `json:"v"`
	Metadata domain.ChunkMetadata `json:"m"`
	Text     string               `json:"t"`
}

func NewBoltVectorStore(db *bbolt.DB, dimension int) (*BoltVectorStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vectors bucket: %w", err)
	}

	s := &BoltVectorStore{
		db:        db,
		dimension: dimension,
		records:   make(map[string]domain.EmbeddingRecord),
	}
	if err := s.loadVectors(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return s, nil
}

func (s *BoltVectorStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("corrupt vector %s: %w", k, err)
			}
			s.records[string(k)] = domain.EmbeddingRecord{
				ChunkID:  string(k),
				Vector:   stored.Vector,
				Metadata: stored.Metadata,
				Text:     stored.Text,
			}
			return nil
		})
	})
}

// Upsert writes all records in one transaction; either all land or none do.
func (s *BoltVectorStore) Upsert(ctx context.Context, records []domain.EmbeddingRecord) error {
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return &domain.DimensionMismatchError{ChunkID: r.ChunkID, Expected: s.dimension, Got: len(r.Vector)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for _, r := range records {
			data, err := json.Marshal(storedVector{Vector: r.Vector, Metadata: r.Metadata, Text: r.Text})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(r.ChunkID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, r := range records {
		s.records[r.ChunkID] = r
	}
	return nil
}

func (s *BoltVectorStore) Search(ctx context.Context, query []float32, k int) ([]port.VectorResult, error) {
	if len(query) != s.dimension {
		return nil, &domain.DimensionMismatchError{Expected: s.dimension, Got: len(query)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	results := make([]port.VectorResult, 0, len(s.records))
	for _, r := range s.records {
		results = append(results, port.VectorResult{Record: r, Score: analyzer.Cosine(query, r.Vector)})
	}
	s.mu.RUnlock()

	return topK(results, k), nil
}

func (s *BoltVectorStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *BoltVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Clear drops every stored vector and adopts a new dimension, as needed
// before a rebuild with a different embedding model.
func (s *BoltVectorStore) Clear(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketVectors); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucketVectors)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}

	s.records = make(map[string]domain.EmbeddingRecord)
	if dimension > 0 {
		s.dimension = dimension
	}
	return nil
}

// topK sorts by score descending, breaking ties by chunk ID, and truncates.
func topK(results []port.VectorResult, k int) []port.VectorResult {
	if k <= 0 {
		return nil
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ChunkID < results[j].Record.ChunkID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results
}
