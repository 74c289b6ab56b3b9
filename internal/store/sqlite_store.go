package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"researchdesk/internal/util"
	"researchdesk/pkg/domain"
)

const dbFilename = "researchdesk.db"

// SQLiteStore implements Store on an embedded single-file SQLite database
// via GORM. On open it prefers a durable file under the configured data
// directory and falls back to a process-lifetime temp database when that
// directory is unusable. Import swaps the underlying file, so every
// operation holds the read side of mu and Import holds the write side.
type SQLiteStore struct {
	mu      sync.RWMutex
	db      *gorm.DB
	path    string
	durable bool
	tempDir string
}

// Open initializes the store under dataDir, creating the schema and seeding
// default providers when the provider table is empty. A failure to use
// dataDir degrades to a non-durable temp database rather than failing.
func Open(dataDir string) (*SQLiteStore, error) {
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err == nil {
			path := filepath.Join(dataDir, dbFilename)
			if db, err := openDB(path); err == nil {
				return &SQLiteStore{db: db, path: path, durable: true}, nil
			} else {
				slog.Warn("durable store unavailable, falling back to temp database", "path", path, "err", err)
			}
		} else {
			slog.Warn("data directory unusable, falling back to temp database", "dir", dataDir, "err", err)
		}
	}

	tempDir, err := os.MkdirTemp("", "researchdesk-*")
	if err != nil {
		return nil, fmt.Errorf("create temp store dir: %w", err)
	}
	path := filepath.Join(tempDir, dbFilename)
	db, err := openDB(path)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("open temp store: %w", err)
	}
	return &SQLiteStore{db: db, path: path, tempDir: tempDir}, nil
}

// openDB opens the database file, applies the idempotent schema, and seeds
// default providers when none exist.
func openDB(path string) (*gorm.DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate(db); err != nil {
		closeDB(db)
		return nil, err
	}
	if err := seedDefaults(db); err != nil {
		closeDB(db)
		return nil, err
	}
	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&ConversationModel{}, &MessageModel{}, &NoteModel{}, &SearchProviderModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	// Full-text index over message content, kept in lockstep with the
	// messages table by triggers so it can never diverge.
	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(content, content='messages', content_rowid='id')`,
		`CREATE TRIGGER IF NOT EXISTS messages_fts_ai AFTER INSERT ON messages BEGIN
			INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS messages_fts_ad AFTER DELETE ON messages BEGIN
			INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.id, old.content);
		END`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create fts index: %w", err)
		}
	}
	return nil
}

// seedDefaults inserts the built-in provider set. Guarded by an empty-table
// check: once any provider row exists (user-created or seeded), seeding
// never runs again. Deleting every provider therefore restores the defaults
// on the next open.
func seedDefaults(db *gorm.DB) error {
	var count int64
	if err := db.Model(&SearchProviderModel{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count providers: %w", err)
	}
	if count > 0 {
		return nil
	}
	defaults := []SearchProviderModel{
		{Name: "Local Database", Type: string(domain.ProviderNative), APIURL: domain.SentinelLocalDB, IsEnabled: true},
		{Name: "Wikipedia", Type: string(domain.ProviderNative), APIURL: domain.SentinelWiki, IsEnabled: true},
		{Name: "DuckDuckGo (Needs Sidecar)", Type: string(domain.ProviderNative), APIURL: domain.SentinelDDG, IsEnabled: false},
		{
			Name: "Apple Podcasts", Type: string(domain.ProviderGeneric),
			APIURL:     "https://itunes.apple.com/search?term={q}&entity=podcast&limit=5",
			ResultPath: "results", TitlePath: "collectionName", URLPath: "collectionViewUrl", ContentPath: "artistName",
			IsEnabled: true,
		},
		{
			// Empty result_path: the response body itself is the item list.
			Name: "TVMaze (TV Shows)", Type: string(domain.ProviderGeneric),
			APIURL:    "https://api.tvmaze.com/search/shows?q={q}",
			TitlePath: "show.name", URLPath: "show.url", ContentPath: "show.summary",
			IsEnabled: true,
		},
		{
			Name: "StackExchange", Type: string(domain.ProviderGeneric),
			APIURL:     "https://api.stackexchange.com/2.3/search/advanced?order=desc&sort=relevance&q={q}&site=stackoverflow",
			ResultPath: "items", TitlePath: "title", URLPath: "link", ContentPath: "title",
			IsEnabled: true,
		},
		{
			Name: "SearXNG (Public)", Type: string(domain.ProviderGeneric),
			APIURL:     "https://searx.be/search?q={q}&format=json",
			ResultPath: "results", TitlePath: "title", URLPath: "url", ContentPath: "content",
			IsEnabled: true,
		},
	}
	if err := db.Create(&defaults).Error; err != nil {
		return fmt.Errorf("seed providers: %w", err)
	}
	return nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListConversations returns all conversations, newest first.
func (s *SQLiteStore) ListConversations() ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	var models []ConversationModel
	if err := s.db.Order("created_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Conversation, 0, len(models))
	for _, m := range models {
		res = append(res, conversationFromModel(m))
	}
	return res, nil
}

// CreateConversation inserts a conversation and returns it with its
// store-assigned id.
func (s *SQLiteStore) CreateConversation(title string) (domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return domain.Conversation{}, ErrClosed
	}
	model := ConversationModel{Title: title}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Conversation{}, err
	}
	return conversationFromModel(model), nil
}

// GetConversation retrieves a conversation by id.
func (s *SQLiteStore) GetConversation(id int64) (domain.Conversation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return domain.Conversation{}, false, ErrClosed
	}
	var model ConversationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// DeleteConversation removes a conversation with its messages and note.
// Deleting an unknown id is a no-op.
func (s *SQLiteStore) DeleteConversation(id int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&MessageModel{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&NoteModel{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ConversationModel{}, "id = ?", id).Error
	})
}

// AppendMessage records a message. The owning conversation must exist.
func (s *SQLiteStore) AppendMessage(msg domain.Message) (domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return domain.Message{}, ErrClosed
	}
	var count int64
	if err := s.db.Model(&ConversationModel{}).Where("id = ?", msg.ConversationID).Count(&count).Error; err != nil {
		return domain.Message{}, err
	}
	if count == 0 {
		return domain.Message{}, fmt.Errorf("conversation %d: %w", msg.ConversationID, ErrNotFound)
	}
	model := messageToModel(msg)
	model.ID = 0
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Message{}, err
	}
	return messageFromModel(model), nil
}

// ListMessages returns a conversation's messages in insertion order.
func (s *SQLiteStore) ListMessages(conversationID int64) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	var models []MessageModel
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res, nil
}

// SearchMessages does a substring match over message content, newest first.
// Matching is case-insensitive for ASCII (SQLite LIKE semantics). The result
// count is capped at MaxLocalSearchResults.
func (s *SQLiteStore) SearchMessages(query string, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 || limit > MaxLocalSearchResults {
		limit = MaxLocalSearchResults
	}
	var models []MessageModel
	if err := s.db.Where("content LIKE ?", "%"+query+"%").
		Order("created_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res, nil
}

// SaveNote creates or replaces the single note of a conversation.
func (s *SQLiteStore) SaveNote(conversationID int64, content string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	var count int64
	if err := s.db.Model(&ConversationModel{}).Where("id = ?", conversationID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("conversation %d: %w", conversationID, ErrNotFound)
	}
	model := NoteModel{ConversationID: conversationID, Content: content}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(&model).Error
}

// GetNote retrieves a conversation's note.
func (s *SQLiteStore) GetNote(conversationID int64) (domain.Note, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return domain.Note{}, false, ErrClosed
	}
	var model NoteModel
	if err := s.db.Where("conversation_id = ?", conversationID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Note{}, false, nil
		}
		return domain.Note{}, false, err
	}
	return noteFromModel(model), true, nil
}

// ListProviders returns all configured providers in id order.
func (s *SQLiteStore) ListProviders() ([]domain.SearchProvider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	var models []SearchProviderModel
	if err := s.db.Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.SearchProvider, 0, len(models))
	for _, m := range models {
		res = append(res, providerFromModel(m))
	}
	return res, nil
}

// AddProvider inserts a user-configured provider. The type is always
// generic: native providers are seeded, never user-created. New providers
// start enabled.
func (s *SQLiteStore) AddProvider(p domain.SearchProvider) (domain.SearchProvider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return domain.SearchProvider{}, ErrClosed
	}
	model := providerToModel(p)
	model.ID = 0
	model.Type = string(domain.ProviderGeneric)
	model.IsEnabled = true
	if err := s.db.Create(&model).Error; err != nil {
		return domain.SearchProvider{}, err
	}
	return providerFromModel(model), nil
}

// ToggleProvider sets the enabled flag. Unknown ids are a no-op.
func (s *SQLiteStore) ToggleProvider(id int64, enabled bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Model(&SearchProviderModel{}).Where("id = ?", id).
		Update("is_enabled", enabled).Error
}

// DeleteProvider removes a provider. Unknown ids are a no-op.
func (s *SQLiteStore) DeleteProvider(id int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Delete(&SearchProviderModel{}, "id = ?", id).Error
}

// Mode reports whether the store is running on durable storage.
func (s *SQLiteStore) Mode() domain.StorageMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.durable {
		return domain.StorageDurable
	}
	return domain.StorageMemory
}

// Export produces a self-contained snapshot of the database via VACUUM INTO.
// It never touches the network and works in both storage modes.
func (s *SQLiteStore) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	// VACUUM INTO requires a fresh target path.
	target := filepath.Join(os.TempDir(), "researchdesk-export-"+util.NewID()+".db")
	if err := s.db.Exec("VACUUM INTO ?", target).Error; err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}
	defer os.Remove(target)
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Close releases the database handle and deletes the temp database when
// running in the non-durable fallback mode.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := closeDB(s.db)
	s.db = nil
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	return err
}
