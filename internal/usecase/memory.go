package usecase

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"docqa/internal/domain"
	"docqa/internal/port"
)

const summaryContentLimit = 200

// MemoryParams bounds the conversation memory.
type MemoryParams struct {
	MaxShortTerm    int
	MaxLongTerm     int
	HistoryMessages int
}

// ConversationMemory keeps a short-term window per conversation in memory
// and the long-term log in a ConversationStore.
type ConversationMemory struct {
	mu        sync.Mutex
	shortTerm map[string][]domain.Message
	store     port.ConversationStore
	params    MemoryParams
}

func NewConversationMemory(store port.ConversationStore, params MemoryParams) *ConversationMemory {
	if params.MaxShortTerm <= 0 {
		params.MaxShortTerm = 10
	}
	if params.MaxLongTerm <= 0 {
		params.MaxLongTerm = 100
	}
	if params.HistoryMessages <= 0 {
		params.HistoryMessages = 6
	}
	return &ConversationMemory{
		shortTerm: make(map[string][]domain.Message),
		store:     store,
		params:    params,
	}
}

// Add appends a message to both the short-term window and the long-term log.
func (m *ConversationMemory) Add(conversationID string, msg domain.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	m.mu.Lock()
	window := append(m.shortTerm[conversationID], msg)
	if len(window) > m.params.MaxShortTerm {
		window = window[len(window)-m.params.MaxShortTerm:]
	}
	m.shortTerm[conversationID] = window
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	if err := m.store.AppendMessage(conversationID, msg, m.params.MaxLongTerm); err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}
	return nil
}

// Recent returns up to n of the newest messages, preferring the short-term
// window and falling back to the long-term log.
func (m *ConversationMemory) Recent(conversationID string, n int) ([]domain.Message, error) {
	m.mu.Lock()
	window, ok := m.shortTerm[conversationID]
	if ok {
		window = append([]domain.Message(nil), window...)
	}
	m.mu.Unlock()

	if !ok {
		var err error
		if window, err = m.History(conversationID); err != nil {
			return nil, err
		}
	}
	if n > 0 && len(window) > n {
		window = window[len(window)-n:]
	}
	return window, nil
}

// Summary renders the last few messages as prompt history, each truncated.
func (m *ConversationMemory) Summary(conversationID string) (string, error) {
	messages, err := m.Recent(conversationID, m.params.HistoryMessages)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		role := "User"
		if msg.Role == domain.RoleAssistant {
			role = "Assistant"
		}
		content := msg.Content
		if len(content) > summaryContentLimit {
			content = truncateUTF8(content, summaryContentLimit) + "..."
		}
		parts = append(parts, role+": "+content)
	}
	return strings.Join(parts, "\n"), nil
}

// History returns the long-term log.
func (m *ConversationMemory) History(conversationID string) ([]domain.Message, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.Messages(conversationID)
}

func (m *ConversationMemory) Clear(conversationID string) error {
	m.mu.Lock()
	delete(m.shortTerm, conversationID)
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	return m.store.DeleteConversation(conversationID)
}

func (m *ConversationMemory) Conversations() ([]string, error) {
	if m.store == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		ids := make([]string, 0, len(m.shortTerm))
		for id := range m.shortTerm {
			ids = append(ids, id)
		}
		return ids, nil
	}
	return m.store.ListConversations()
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
