package port

import "docqa/internal/domain"

type DocumentStore interface {
	PutDocument(doc domain.DocumentRecord) error

	GetDocument(name string) (domain.DocumentRecord, error)

	DeleteDocument(name string) error

	ListDocuments() ([]domain.DocumentRecord, error)
}

// ConversationStore persists the long-term message log of each conversation.
type ConversationStore interface {
	// AppendMessage adds msg and trims the log to the newest max entries.
	AppendMessage(conversationID string, msg domain.Message, max int) error

	Messages(conversationID string) ([]domain.Message, error)

	DeleteConversation(conversationID string) error

	ListConversations() ([]string, error)
}
