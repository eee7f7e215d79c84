package usecase

import (
	"strings"
	"testing"

	"docqa/internal/adapter/memstore"
	"docqa/internal/domain"
)

func TestConversationMemory_Windows(t *testing.T) {
	store := memstore.NewConversationStore()
	m := NewConversationMemory(store, MemoryParams{MaxShortTerm: 3, MaxLongTerm: 5, HistoryMessages: 2})

	for _, c := range []string{"a", "b", "c", "d", "e", "f"} {
		if err := m.Add("conv", domain.Message{Role: domain.RoleUser, Content: c}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := m.Recent("conv", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 || recent[0].Content != "d" {
		t.Errorf("expected short-term window [d e f], got %+v", recent)
	}
	if recent[0].Timestamp.IsZero() {
		t.Error("expected timestamps to be filled")
	}

	history, _ := m.History("conv")
	if len(history) != 5 || history[0].Content != "b" {
		t.Errorf("expected long-term log of 5 starting at b, got %d", len(history))
	}

	// A fresh process only has the long-term log.
	reloaded := NewConversationMemory(store, MemoryParams{MaxShortTerm: 3, MaxLongTerm: 5, HistoryMessages: 2})
	recent, _ = reloaded.Recent("conv", 2)
	if len(recent) != 2 || recent[1].Content != "f" {
		t.Errorf("expected fallback to long-term log, got %+v", recent)
	}
}

func TestConversationMemory_Summary(t *testing.T) {
	m := NewConversationMemory(memstore.NewConversationStore(), MemoryParams{HistoryMessages: 2})

	m.Add("c", domain.Message{Role: domain.RoleUser, Content: "first question"})
	m.Add("c", domain.Message{Role: domain.RoleUser, Content: "What is attention?"})
	m.Add("c", domain.Message{Role: domain.RoleAssistant, Content: strings.Repeat("x", 250)})

	summary, err := m.Summary("c")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(summary, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", summary)
	}
	if lines[0] != "User: What is attention?" {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if lines[1] != "Assistant: "+strings.Repeat("x", 200)+"..." {
		t.Errorf("expected truncated assistant line, got %d chars", len(lines[1]))
	}

	empty, _ := m.Summary("unknown")
	if empty != "" {
		t.Errorf("expected empty summary, got %q", empty)
	}
}

func TestConversationMemory_Clear(t *testing.T) {
	m := NewConversationMemory(memstore.NewConversationStore(), MemoryParams{})
	m.Add("a", domain.Message{Role: domain.RoleUser, Content: "hi"})
	m.Add("b", domain.Message{Role: domain.RoleUser, Content: "hi"})

	if err := m.Clear("a"); err != nil {
		t.Fatal(err)
	}
	recent, _ := m.Recent("a", 0)
	if len(recent) != 0 {
		t.Errorf("expected cleared conversation, got %+v", recent)
	}
	ids, _ := m.Conversations()
	if len(ids) != 1 || ids[0] != "b" {
		t.Errorf("expected only b, got %v", ids)
	}
}

func TestTruncateUTF8(t *testing.T) {
	if got := truncateUTF8("héllo", 2); got != "h" {
		t.Errorf("expected rune-safe cut, got %q", got)
	}
	if got := truncateUTF8("abc", 10); got != "abc" {
		t.Errorf("expected unchanged, got %q", got)
	}
}
