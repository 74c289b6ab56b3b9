package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"researchdesk/pkg/domain"
)

// GORM models used for persistence. Column names are pinned explicitly:
// they are the snapshot contract, so exported databases stay importable
// across versions.

type ConversationModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Title     string    `gorm:"column:title;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ConversationModel) TableName() string { return "conversations" }

type MessageModel struct {
	ID             int64          `gorm:"column:id;primaryKey;autoIncrement"`
	ConversationID int64          `gorm:"column:conversation_id;not null;index"`
	Role           string         `gorm:"column:role;not null"`
	Content        string         `gorm:"column:content;not null"`
	Sources        datatypes.JSON `gorm:"column:sources"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime;index"`
}

func (MessageModel) TableName() string { return "messages" }

type NoteModel struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ConversationID int64     `gorm:"column:conversation_id;not null;uniqueIndex"`
	Content        string    `gorm:"column:content;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (NoteModel) TableName() string { return "notes" }

type SearchProviderModel struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string `gorm:"column:name;not null"`
	Type        string `gorm:"column:type;not null"`
	APIURL      string `gorm:"column:api_url"`
	APIHeaders  string `gorm:"column:api_headers"`
	ResultPath  string `gorm:"column:result_path"`
	TitlePath   string `gorm:"column:title_path"`
	URLPath     string `gorm:"column:url_path"`
	ContentPath string `gorm:"column:content_path"`
	// No default tag: gorm would skip a zero-valued false on insert, and
	// seeded rows must be able to start disabled. Callers set the flag
	// explicitly.
	IsEnabled bool `gorm:"column:is_enabled"`
}

func (SearchProviderModel) TableName() string { return "search_providers" }

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:        m.ID,
		Title:     m.Title,
		CreatedAt: m.CreatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		Sources:        datatypes.JSON(msg.Sources),
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Sources:        json.RawMessage(m.Sources),
		CreatedAt:      m.CreatedAt,
	}
}

func noteFromModel(m NoteModel) domain.Note {
	return domain.Note{
		ConversationID: m.ConversationID,
		Content:        m.Content,
		UpdatedAt:      m.UpdatedAt,
	}
}

func providerToModel(p domain.SearchProvider) SearchProviderModel {
	return SearchProviderModel{
		ID:          p.ID,
		Name:        p.Name,
		Type:        string(p.Type),
		APIURL:      p.APIURL,
		APIHeaders:  p.APIHeaders,
		ResultPath:  p.ResultPath,
		TitlePath:   p.TitlePath,
		URLPath:     p.URLPath,
		ContentPath: p.ContentPath,
		IsEnabled:   p.IsEnabled,
	}
}

func providerFromModel(m SearchProviderModel) domain.SearchProvider {
	return domain.SearchProvider{
		ID:          m.ID,
		Name:        m.Name,
		Type:        domain.ProviderType(m.Type),
		APIURL:      m.APIURL,
		APIHeaders:  m.APIHeaders,
		ResultPath:  m.ResultPath,
		TitlePath:   m.TitlePath,
		URLPath:     m.URLPath,
		ContentPath: m.ContentPath,
		IsEnabled:   m.IsEnabled,
	}
}
