package store

import (
	"errors"

	"researchdesk/pkg/domain"
)

var (
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidSnapshot indicates an import payload that is not a usable
	// database snapshot. Distinct from write failures so the HTTP layer can
	// report it as a client error.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	// ErrClosed indicates the store handle has been closed.
	ErrClosed = errors.New("store is closed")
)

// MaxLocalSearchResults bounds full-text search responses.
const MaxLocalSearchResults = 5

// Store defines persistence operations for conversations, messages, notes,
// and search provider configuration, plus snapshot export/import.
type Store interface {
	// conversations
	ListConversations() ([]domain.Conversation, error)
	CreateConversation(title string) (domain.Conversation, error)
	GetConversation(id int64) (domain.Conversation, bool, error)
	DeleteConversation(id int64) error

	// messages
	AppendMessage(msg domain.Message) (domain.Message, error)
	ListMessages(conversationID int64) ([]domain.Message, error)
	SearchMessages(query string, limit int) ([]domain.Message, error)

	// notes
	SaveNote(conversationID int64, content string) error
	GetNote(conversationID int64) (domain.Note, bool, error)

	// providers
	ListProviders() ([]domain.SearchProvider, error)
	AddProvider(p domain.SearchProvider) (domain.SearchProvider, error)
	ToggleProvider(id int64, enabled bool) error
	DeleteProvider(id int64) error

	// snapshots
	Export() ([]byte, error)
	Import(data []byte) error

	Mode() domain.StorageMode
	Close() error
}
