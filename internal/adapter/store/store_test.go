package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"docqa/config"
	"docqa/internal/domain"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	st, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestBoltStore_Documents(t *testing.T) {
	st := newTestStore(t)

	doc := domain.DocumentRecord{
		Name:       "paper",
		Pages:      []domain.Page{{Number: 1, Text: "Hello."}},
		ChunkIDs:   []string{"paper_0"},
		Tokens:     2,
		IngestedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := st.PutDocument(doc); err != nil {
		t.Fatal(err)
	}
	if err := st.PutDocument(domain.DocumentRecord{Name: "appendix"}); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetDocument("paper")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "paper" || len(got.ChunkIDs) != 1 || got.Pages[0].Text != "Hello." || !got.IngestedAt.Equal(doc.IngestedAt) {
		t.Errorf("unexpected document: %+v", got)
	}

	docs, err := st.ListDocuments()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].Name != "appendix" || docs[1].Name != "paper" {
		t.Errorf("expected documents sorted by name, got %+v", docs)
	}

	if err := st.DeleteDocument("paper"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.GetDocument("paper"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := st.DeleteDocument("paper"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound on second delete, got %v", err)
	}
}

func TestBoltStore_Conversations(t *testing.T) {
	st := newTestStore(t)

	for i := 0; i < 5; i++ {
		msg := domain.Message{Role: domain.RoleUser, Content: string(rune('a' + i))}
		if err := st.AppendMessage("c1", msg, 3); err != nil {
			t.Fatal(err)
		}
	}
	st.AppendMessage("c2", domain.Message{Role: domain.RoleAssistant, Content: "x"}, 3)

	msgs, err := st.Messages("c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 || msgs[0].Content != "c" || msgs[2].Content != "e" {
		t.Errorf("expected newest 3 messages, got %+v", msgs)
	}

	ids, _ := st.ListConversations()
	if len(ids) != 2 {
		t.Errorf("expected 2 conversations, got %v", ids)
	}

	if err := st.DeleteConversation("c1"); err != nil {
		t.Fatal(err)
	}
	msgs, _ = st.Messages("c1")
	if len(msgs) != 0 {
		t.Errorf("expected empty conversation after delete, got %d", len(msgs))
	}
}

func TestBoltStore_Migration(t *testing.T) {
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	result, err := st.CheckMigration(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !result.NeedsMigration || result.NeedsRebuild {
		t.Errorf("expected fresh store to need migration only, got %+v", result)
	}

	if err := st.Migrate(cfg); err != nil {
		t.Fatal(err)
	}
	rebuild, _, err := st.NeedsRebuild(cfg)
	if err != nil || rebuild {
		t.Errorf("expected no rebuild after migrate, got %v %v", rebuild, err)
	}

	changed := config.DefaultConfig()
	changed.Ingest.ChunkSizeTokens = 200
	rebuild, reason, err := st.NeedsRebuild(changed)
	if err != nil || !rebuild || reason == "" {
		t.Errorf("expected rebuild after chunk size change, got %v %q %v", rebuild, reason, err)
	}

	unrelated := config.DefaultConfig()
	unrelated.Retrieve.TopK = 9
	if rebuild, _, _ := st.NeedsRebuild(unrelated); rebuild {
		t.Error("retrieval settings should not force a rebuild")
	}
}

func record(id string, vec ...float32) domain.EmbeddingRecord {
	return domain.EmbeddingRecord{
		ChunkID:  id,
		Vector:   vec,
		Metadata: domain.ChunkMetadata{DocumentName: "doc", PageNumber: 1, ChunkID: id},
		Text:     "text of " + id,
	}
}

func TestBoltVectorStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	st, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	vs, err := NewBoltVectorStore(st.DB(), 2)
	if err != nil {
		t.Fatal(err)
	}

	err = vs.Upsert(ctx, []domain.EmbeddingRecord{
		record("a", 1, 0),
		record("b", 0.7, 0.7),
		record("c", 0, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	var mismatch *domain.DimensionMismatchError
	if err := vs.Upsert(ctx, []domain.EmbeddingRecord{record("bad", 1, 2, 3)}); !errors.As(err, &mismatch) || mismatch.ChunkID != "bad" {
		t.Errorf("expected dimension mismatch error, got %v", err)
	}

	results, err := vs.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Record.ChunkID != "a" || results[1].Record.ChunkID != "b" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Record.Text != "text of a" || results[0].Record.Metadata.ChunkID != "a" {
		t.Errorf("record fields not returned: %+v", results[0].Record)
	}

	if _, err := vs.Search(ctx, []float32{1, 0, 0}, 2); err == nil {
		t.Error("expected query dimension mismatch error")
	}

	if err := vs.Delete(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	// Reopen and confirm persistence.
	st, err = NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	vs, err = NewBoltVectorStore(st.DB(), 2)
	if err != nil {
		t.Fatal(err)
	}
	n, _ := vs.Count(ctx)
	if n != 2 {
		t.Errorf("expected 2 vectors after reopen, got %d", n)
	}
	results, _ = vs.Search(ctx, []float32{1, 0}, 5)
	if len(results) != 2 || results[0].Record.ChunkID != "b" {
		t.Errorf("unexpected results after reopen: %+v", results)
	}
}

func TestBoltVectorStore_Clear(t *testing.T) {
	st, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	ctx := context.Background()

	vs, err := NewBoltVectorStore(st.DB(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := vs.Upsert(ctx, []domain.EmbeddingRecord{record("a", 1, 0)}); err != nil {
		t.Fatal(err)
	}

	if err := vs.Clear(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if n, _ := vs.Count(ctx); n != 0 {
		t.Errorf("expected empty store, got %d", n)
	}
	if err := vs.Upsert(ctx, []domain.EmbeddingRecord{record("b", 1, 0, 0)}); err != nil {
		t.Errorf("expected new dimension to be accepted: %v", err)
	}
}
