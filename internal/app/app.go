package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"researchdesk/internal/search"
	"researchdesk/internal/sidecar"
	"researchdesk/internal/store"
	"researchdesk/pkg/domain"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DataDir         string
	SidecarURL      string
	WikiBaseURL     string
	ProviderTimeout time.Duration

	// Overrides for tests.
	Store   store.Store
	Sidecar *sidecar.Client
}

// App owns the store handle, the search dispatcher, and the sidecar client.
type App struct {
	store      store.Store
	sidecar    *sidecar.Client
	dispatcher *search.Dispatcher
}

// New constructs the application. Opening the store never fails over to an
// error just because durable storage is missing; the degraded mode is
// visible through Status.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		var err error
		dataStore, err = store.Open(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
	}

	sc := cfg.Sidecar
	if sc == nil && cfg.SidecarURL != "" {
		sc = sidecar.NewClient(cfg.SidecarURL)
	}
	var proxy search.ProxySearcher
	if sc != nil {
		proxy = sc
	}

	return &App{
		store:   dataStore,
		sidecar: sc,
		dispatcher: search.New(search.Config{
			Local:           dataStore,
			Proxy:           proxy,
			WikiBaseURL:     cfg.WikiBaseURL,
			ProviderTimeout: cfg.ProviderTimeout,
		}),
	}, nil
}

// ListConversations returns all conversations, newest first.
func (a *App) ListConversations() ([]domain.Conversation, error) {
	return a.store.ListConversations()
}

// CreateConversation starts a new conversation.
func (a *App) CreateConversation(title string) (domain.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Conversation{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	return a.store.CreateConversation(title)
}

// ConversationDetail bundles a conversation with its messages and note.
type ConversationDetail struct {
	Conversation domain.Conversation `json:"conversation"`
	Messages     []domain.Message    `json:"messages"`
	NoteContent  string              `json:"noteContent"`
}

// GetConversation returns a conversation with its message history and note.
func (a *App) GetConversation(id int64) (ConversationDetail, bool, error) {
	conv, ok, err := a.store.GetConversation(id)
	if err != nil || !ok {
		return ConversationDetail{}, ok, err
	}
	msgs, err := a.store.ListMessages(id)
	if err != nil {
		return ConversationDetail{}, false, fmt.Errorf("list messages: %w", err)
	}
	detail := ConversationDetail{Conversation: conv, Messages: msgs}
	note, ok, err := a.store.GetNote(id)
	if err != nil {
		return ConversationDetail{}, false, fmt.Errorf("get note: %w", err)
	}
	if ok {
		detail.NoteContent = note.Content
	}
	return detail, true, nil
}

// DeleteConversation removes a conversation, its messages, and its note.
func (a *App) DeleteConversation(id int64) error {
	return a.store.DeleteConversation(id)
}

// AddMessage appends a message to a conversation.
func (a *App) AddMessage(conversationID int64, role, content string, sources json.RawMessage) (domain.Message, error) {
	switch role {
	case domain.RoleUser, domain.RoleAssistant, domain.RoleSystem:
	default:
		return domain.Message{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if len(sources) > 0 && !json.Valid(sources) {
		return domain.Message{}, fmt.Errorf("%w: sources must be valid JSON", ErrValidation)
	}
	return a.store.AppendMessage(domain.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Sources:        sources,
	})
}

// SaveNote creates or replaces a conversation's note.
func (a *App) SaveNote(conversationID int64, content string) error {
	return a.store.SaveNote(conversationID, content)
}

// ListProviders returns all configured providers.
func (a *App) ListProviders() ([]domain.SearchProvider, error) {
	return a.store.ListProviders()
}

// AddProvider validates and stores a user-configured generic provider.
// Template problems are rejected here, not at query time.
func (a *App) AddProvider(p domain.SearchProvider) (domain.SearchProvider, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return domain.SearchProvider{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	p.APIURL = strings.TrimSpace(p.APIURL)
	if p.APIURL == "" || !strings.Contains(p.APIURL, "{q}") {
		return domain.SearchProvider{}, fmt.Errorf("%w: api_url must contain the {q} placeholder", ErrValidation)
	}
	if p.APIHeaders != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(p.APIHeaders), &headers); err != nil {
			return domain.SearchProvider{}, fmt.Errorf("%w: api_headers must be a JSON object of strings", ErrValidation)
		}
	}
	return a.store.AddProvider(p)
}

// ToggleProvider sets a provider's enabled flag.
func (a *App) ToggleProvider(id int64, enabled bool) error {
	return a.store.ToggleProvider(id, enabled)
}

// DeleteProvider removes a provider.
func (a *App) DeleteProvider(id int64) error {
	return a.store.DeleteProvider(id)
}

// Search dispatches a query to every enabled provider and merges the
// results. Individual provider failures are logged inside the dispatcher
// and never surface here.
func (a *App) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	providers, err := a.store.ListProviders()
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	enabled := providers[:0:0]
	for _, p := range providers {
		if p.IsEnabled {
			enabled = append(enabled, p)
		}
	}
	return a.dispatcher.Search(ctx, query, enabled), nil
}

// ExportSnapshot produces a binary snapshot of the whole store.
func (a *App) ExportSnapshot() ([]byte, error) {
	return a.store.Export()
}

// ImportSnapshot replaces the store contents with a snapshot.
func (a *App) ImportSnapshot(data []byte) error {
	return a.store.Import(data)
}

// Status describes storage durability and sidecar reachability.
type Status struct {
	Storage domain.StorageMode `json:"storage"`
	Sidecar sidecar.Status     `json:"sidecar"`
}

// CheckSidecar re-probes the sidecar. Reachability only changes on these
// explicit checks, never in the background.
func (a *App) CheckSidecar(ctx context.Context) sidecar.Status {
	if a.sidecar == nil {
		return sidecar.Status{}
	}
	return a.sidecar.Check(ctx)
}

// Status reports the current storage mode and the last sidecar probe.
func (a *App) Status() Status {
	st := Status{Storage: a.store.Mode()}
	if a.sidecar != nil {
		st.Sidecar = a.sidecar.Status()
	}
	return st
}

// Close releases the store handle.
func (a *App) Close() error {
	return a.store.Close()
}
