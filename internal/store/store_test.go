package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"researchdesk/pkg/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if s.Mode() != domain.StorageDurable {
		t.Fatalf("expected durable store in temp dir, got %s", s.Mode())
	}
	return s
}

func TestOpenSeedsDefaultProviders(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	providers, err := s.ListProviders()
	if err != nil {
		t.Fatalf("list providers: %v", err)
	}
	if len(providers) != 7 {
		t.Fatalf("expected 7 seeded providers, got %d", len(providers))
	}
	if providers[0].Name != "Local Database" || providers[0].APIURL != domain.SentinelLocalDB {
		t.Fatalf("unexpected first provider %+v", providers[0])
	}
	for _, p := range providers {
		wantEnabled := p.APIURL != domain.SentinelDDG
		if p.IsEnabled != wantEnabled {
			t.Errorf("provider %q enabled = %v, want %v", p.Name, p.IsEnabled, wantEnabled)
		}
	}
	s.Close()

	// Reopening an existing database must not seed again.
	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	providers, err = s2.ListProviders()
	if err != nil {
		t.Fatalf("list providers after reopen: %v", err)
	}
	if len(providers) != 7 {
		t.Fatalf("expected 7 providers after reopen, got %d", len(providers))
	}
}

func TestSeedRestoredAfterDeletingAllProviders(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	providers, err := s.ListProviders()
	if err != nil {
		t.Fatalf("list providers: %v", err)
	}
	for _, p := range providers {
		if err := s.DeleteProvider(p.ID); err != nil {
			t.Fatalf("delete provider %d: %v", p.ID, err)
		}
	}
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	providers, err = s2.ListProviders()
	if err != nil {
		t.Fatalf("list providers: %v", err)
	}
	if len(providers) != 7 {
		t.Fatalf("expected defaults restored after full deletion, got %d providers", len(providers))
	}
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestStore(t)

	first, err := s.CreateConversation("first")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected store-assigned id")
	}
	second, err := s.CreateConversation("second")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	convs, err := s.ListConversations()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	if convs[0].ID != second.ID {
		t.Fatalf("expected newest conversation first, got id %d", convs[0].ID)
	}

	got, ok, err := s.GetConversation(first.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Title != "first" {
		t.Fatalf("title = %q", got.Title)
	}
	if _, ok, err := s.GetConversation(9999); err != nil || ok {
		t.Fatalf("missing conversation: ok=%v err=%v", ok, err)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	s := newTestStore(t)

	conv, err := s.CreateConversation("doomed")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.AppendMessage(domain.Message{
			ConversationID: conv.ID, Role: domain.RoleUser, Content: fmt.Sprintf("msg %d", i),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.SaveNote(conv.ID, "some note"); err != nil {
		t.Fatalf("save note: %v", err)
	}

	if err := s.DeleteConversation(conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	msgs, err := s.ListMessages(conv.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected messages removed, got %d", len(msgs))
	}
	if _, ok, err := s.GetNote(conv.ID); err != nil || ok {
		t.Fatalf("expected note removed: ok=%v err=%v", ok, err)
	}

	// Unknown ids are a no-op, not an error.
	if err := s.DeleteConversation(424242); err != nil {
		t.Fatalf("delete unknown conversation: %v", err)
	}
}

func TestAppendMessageRequiresConversation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AppendMessage(domain.Message{ConversationID: 77, Role: domain.RoleUser, Content: "orphan"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMessagesKeepInsertionOrderAndSources(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation("chat")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.AppendMessage(domain.Message{
		ConversationID: conv.ID, Role: domain.RoleUser, Content: "question",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendMessage(domain.Message{
		ConversationID: conv.ID, Role: domain.RoleAssistant, Content: "answer",
		Sources: []byte(`[{"title":"src","url":"https://example.com"}]`),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, err := s.ListMessages(conv.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "question" || msgs[1].Content != "answer" {
		t.Fatalf("messages out of order: %q, %q", msgs[0].Content, msgs[1].Content)
	}
	if len(msgs[1].Sources) == 0 {
		t.Fatal("sources not persisted")
	}
}

func TestSaveNoteUpserts(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation("notes")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SaveNote(conv.ID, "v1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveNote(conv.ID, "v2"); err != nil {
		t.Fatalf("save again: %v", err)
	}
	note, ok, err := s.GetNote(conv.ID)
	if err != nil || !ok {
		t.Fatalf("get note: ok=%v err=%v", ok, err)
	}
	if note.Content != "v2" {
		t.Fatalf("note content = %q, want v2", note.Content)
	}

	if err := s.SaveNote(5150, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown conversation, got %v", err)
	}
}

func TestSearchMessagesCapAndOrdering(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation("history")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		if _, err := s.AppendMessage(domain.Message{
			ConversationID: conv.ID, Role: domain.RoleUser,
			Content:   fmt.Sprintf("needle number %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	hits, err := s.SearchMessages("needle", 100)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != MaxLocalSearchResults {
		t.Fatalf("expected limit clamped to %d, got %d", MaxLocalSearchResults, len(hits))
	}
	if hits[0].Content != "needle number 7" {
		t.Fatalf("expected newest hit first, got %q", hits[0].Content)
	}

	// LIKE matching is case-insensitive for ASCII.
	hits, err = s.SearchMessages("NEEDLE", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 5 {
		t.Fatalf("case-insensitive match failed, got %d hits", len(hits))
	}

	hits, err = s.SearchMessages("haystack", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestAddProviderForcesGenericAndEnabled(t *testing.T) {
	s := newTestStore(t)
	added, err := s.AddProvider(domain.SearchProvider{
		ID: 99, Name: "Custom", Type: domain.ProviderNative,
		APIURL: "https://api.example.com/?q={q}", IsEnabled: false,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.ID == 99 {
		t.Fatal("client-supplied id must be ignored")
	}
	if added.Type != domain.ProviderGeneric {
		t.Fatalf("type = %q, want generic", added.Type)
	}
	if !added.IsEnabled {
		t.Fatal("new providers must start enabled")
	}
}

func TestToggleAndDeleteProvider(t *testing.T) {
	s := newTestStore(t)
	providers, err := s.ListProviders()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	target := providers[0]

	if err := s.ToggleProvider(target.ID, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	providers, _ = s.ListProviders()
	if providers[0].IsEnabled {
		t.Fatal("toggle off did not persist")
	}

	if err := s.ToggleProvider(31337, true); err != nil {
		t.Fatalf("toggle unknown id: %v", err)
	}
	if err := s.DeleteProvider(31337); err != nil {
		t.Fatalf("delete unknown id: %v", err)
	}

	if err := s.DeleteProvider(target.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after, _ := s.ListProviders()
	if len(after) != len(providers)-1 {
		t.Fatalf("expected %d providers after delete, got %d", len(providers)-1, len(after))
	}
}

func TestOpenFallsBackToTempDatabase(t *testing.T) {
	// A regular file where the data directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	s, err := Open(blocker)
	if err != nil {
		t.Fatalf("open with unusable dir: %v", err)
	}
	defer s.Close()
	if s.Mode() != domain.StorageMemory {
		t.Fatalf("mode = %s, want memory fallback", s.Mode())
	}
	// The fallback store is fully functional.
	if _, err := s.CreateConversation("ephemeral"); err != nil {
		t.Fatalf("create on fallback store: %v", err)
	}
}

func TestClosedStoreReturnsErrClosed(t *testing.T) {
	s := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.ListConversations(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("double close: %v", err)
	}
}
