package store

import (
	"encoding/json"
	"fmt"
	"time"

	"docqa/internal/domain"
	"go.etcd.io/bbolt"
)

var (
	bucketDocuments     = []byte("documents")
	bucketConversations = []byte("conversations")
	bucketMeta          = []byte("meta")
)

// BoltStore keeps the document registry, conversation logs and schema info.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocuments, bucketConversations, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// DB exposes the handle so the vector store can share the file.
func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) PutDocument(doc domain.DocumentRecord) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).Put([]byte(doc.Name), data)
	})
}

func (s *BoltStore) GetDocument(name string) (domain.DocumentRecord, error) {
	var doc domain.DocumentRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocuments).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, name)
		}
		return json.Unmarshal(data, &doc)
	})
	return doc, err
}

func (s *BoltStore) DeleteDocument(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, name)
		}
		return b.Delete([]byte(name))
	})
}

// ListDocuments returns every document ordered by name.
func (s *BoltStore) ListDocuments() ([]domain.DocumentRecord, error) {
	var docs []domain.DocumentRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			var doc domain.DocumentRecord
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("corrupt document record %s: %w", k, err)
			}
			docs = append(docs, doc)
			return nil
		})
	})
	return docs, err
}

func (s *BoltStore) AppendMessage(conversationID string, msg domain.Message, max int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketConversations)

		var messages []domain.Message
		if data := b.Get([]byte(conversationID)); data != nil {
			if err := json.Unmarshal(data, &messages); err != nil {
				return fmt.Errorf("corrupt conversation %s: %w", conversationID, err)
			}
		}

		messages = append(messages, msg)
		if max > 0 && len(messages) > max {
			messages = messages[len(messages)-max:]
		}

		data, err := json.Marshal(messages)
		if err != nil {
			return err
		}
		return b.Put([]byte(conversationID), data)
	})
}

func (s *BoltStore) Messages(conversationID string) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketConversations).Get([]byte(conversationID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &messages)
	})
	return messages, err
}

func (s *BoltStore) DeleteConversation(conversationID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConversations).Delete([]byte(conversationID))
	})
}

func (s *BoltStore) ListConversations() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConversations).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}
