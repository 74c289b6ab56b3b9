package domain

import (
	"encoding/json"
	"time"
)

// ProviderType distinguishes built-in search behaviors from user-configured
// HTTP APIs.
type ProviderType string

const (
	ProviderNative  ProviderType = "native"
	ProviderGeneric ProviderType = "generic"
)

// Sentinel api_url values identifying native provider behaviors.
const (
	SentinelLocalDB = "native_local_db"
	SentinelWiki    = "native_wiki"
	SentinelDDG     = "native_ddg"
	SentinelReddit  = "native_reddit"
	SentinelQwant   = "native_qwant"
	SentinelMojeek  = "native_mojeek"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// StorageMode reports which backend the store is running on.
type StorageMode string

const (
	StorageDurable StorageMode = "durable"
	StorageMemory  StorageMode = "memory"
)

type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type Message struct {
	ID             int64           `json:"id"`
	ConversationID int64           `json:"conversationId"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Sources        json.RawMessage `json:"sources,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type Note struct {
	ConversationID int64     `json:"conversationId"`
	Content        string    `json:"content"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SearchProvider is one configured search source. JSON keys mirror the
// persisted column names so exported configuration reads the same everywhere.
type SearchProvider struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Type        ProviderType `json:"type"`
	APIURL      string       `json:"api_url"`
	APIHeaders  string       `json:"api_headers,omitempty"`
	ResultPath  string       `json:"result_path"`
	TitlePath   string       `json:"title_path"`
	URLPath     string       `json:"url_path"`
	ContentPath string       `json:"content_path"`
	IsEnabled   bool         `json:"is_enabled"`
}

// SearchResult is one hit from any provider. Never persisted. The field
// names are the sidecar wire contract.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Engine  string `json:"engine"`
}
