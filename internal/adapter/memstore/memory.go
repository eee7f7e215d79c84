package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// VectorStore is a process-local index. Its contents are lost on exit.
type VectorStore struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]domain.EmbeddingRecord
}

func NewVectorStore(dimension int) *VectorStore {
	return &VectorStore{
		dimension: dimension,
		records:   make(map[string]domain.EmbeddingRecord),
	}
}

func (s *VectorStore) Upsert(ctx context.Context, records []domain.EmbeddingRecord) error {
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return &domain.DimensionMismatchError{ChunkID: r.ChunkID, Expected: s.dimension, Got: len(r.Vector)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ChunkID] = r
	}
	return nil
}

func (s *VectorStore) Search(ctx context.Context, query []float32, k int) ([]port.VectorResult, error) {
	if len(query) != s.dimension {
		return nil, &domain.DimensionMismatchError{Expected: s.dimension, Got: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	results := make([]port.VectorResult, 0, len(s.records))
	for _, r := range s.records {
		results = append(results, port.VectorResult{Record: r, Score: analyzer.Cosine(query, r.Vector)})
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ChunkID < results[j].Record.ChunkID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (s *VectorStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *VectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *VectorStore) Clear(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]domain.EmbeddingRecord)
	if dimension > 0 {
		s.dimension = dimension
	}
	return nil
}

// DocumentStore is an in-memory registry of ingested documents.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]domain.DocumentRecord
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]domain.DocumentRecord)}
}

func (s *DocumentStore) PutDocument(doc domain.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Name] = doc
	return nil
}

func (s *DocumentStore) GetDocument(name string) (domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[name]
	if !ok {
		return domain.DocumentRecord{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, name)
	}
	return doc, nil
}

func (s *DocumentStore) DeleteDocument(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[name]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, name)
	}
	delete(s.docs, name)
	return nil
}

func (s *DocumentStore) ListDocuments() ([]domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.DocumentRecord, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// ConversationStore keeps conversation logs in memory.
type ConversationStore struct {
	mu    sync.RWMutex
	convs map[string][]domain.Message
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{convs: make(map[string][]domain.Message)}
}

func (s *ConversationStore) AppendMessage(conversationID string, msg domain.Message, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := append(s.convs[conversationID], msg)
	if max > 0 && len(messages) > max {
		messages = append([]domain.Message(nil), messages[len(messages)-max:]...)
	}
	s.convs[conversationID] = messages
	return nil
}

func (s *ConversationStore) Messages(conversationID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Message(nil), s.convs[conversationID]...), nil
}

func (s *ConversationStore) DeleteConversation(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, conversationID)
	return nil
}

func (s *ConversationStore) ListConversations() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.convs))
	for id := range s.convs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
