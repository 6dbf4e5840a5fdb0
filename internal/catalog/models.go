// Package catalog provides the relational metadata catalog for memoryd.
//
// The catalog is the source of truth for existence and authorization: a file
// or conversation absent here is inaccessible regardless of blob store or
// vector index state. The vector index holds a derived, rebuildable
// projection; the blob store holds content.
package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap is a JSON object column.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported JSONMap source type %T", src)
	}
}

// StringList is a JSON string-array column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported StringList source type %T", src)
	}
}

// Conversation statuses.
const (
	StatusActive = "active"
	StatusClosed = "closed"
)

// Conversation is a persisted agent conversation.
//
// Created on save, mutated by summary generation and trigger actions. The
// core never physically deletes conversations; retention is external policy.
type Conversation struct {
	ID           string `gorm:"type:varchar(40);primaryKey"`
	UserID       string `gorm:"type:varchar(64);index;not null"`
	MessageCount int
	TotalTokens  int
	Status       string `gorm:"type:varchar(16);not null;default:active"`
	Summary      string
	Metadata     JSONMap   `gorm:"type:jsonb"`
	Tags         []Tag     `gorm:"many2many:conversation_tags"`
	StartedAt    time.Time `gorm:"autoCreateTime"`
	EndedAt      *time.Time
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (Conversation) TableName() string { return "conversations" }

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation. Immutable once created; deleted
// with its parent conversation.
type Message struct {
	ID             string       `gorm:"type:varchar(40);primaryKey"`
	ConversationID string       `gorm:"type:varchar(40);index;not null"`
	Conversation   Conversation `gorm:"constraint:OnDelete:CASCADE"`
	Role           string       `gorm:"type:varchar(16);not null"`
	TokenCount     int
	VectorID       string    `gorm:"type:varchar(128)"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (Message) TableName() string { return "messages" }

// FileRecord mirrors one blob in the metadata catalog.
//
// (UserID, FilePath) is unique: re-indexing the same path overwrites, never
// duplicates. VectorIDs is the authoritative mapping from the file to its
// chunks in the vector index.
type FileRecord struct {
	ID             string `gorm:"type:varchar(40);primaryKey"`
	UserID         string `gorm:"type:varchar(64);uniqueIndex:idx_user_path;not null"`
	FilePath       string `gorm:"type:varchar(512);uniqueIndex:idx_user_path;not null"`
	FileName       string `gorm:"type:varchar(255)"`
	FolderPath     string `gorm:"type:varchar(512)"`
	FileType       string `gorm:"type:varchar(32);index"`
	Size           int64
	Checksum       string `gorm:"type:char(64)"`
	Title          string
	Summary        string
	Tags           StringList `gorm:"type:jsonb"`
	Metadata       JSONMap    `gorm:"type:jsonb"`
	ConversationID *string    `gorm:"type:varchar(40)"`
	VectorIDs      StringList `gorm:"type:jsonb"`
	ModifiedAt     time.Time
	LastAccessedAt *time.Time
	IndexedAt      time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (FileRecord) TableName() string { return "file_records" }

// Tag is a user-scoped label. (Name, UserID) is unique.
type Tag struct {
	ID        string    `gorm:"type:varchar(40);primaryKey"`
	Name      string    `gorm:"type:varchar(128);uniqueIndex:idx_tag_name_user;not null"`
	UserID    string    `gorm:"type:varchar(64);uniqueIndex:idx_tag_name_user;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Tag) TableName() string { return "tags" }

// MemoryRule is a user-defined trigger rule. Read-only to the trigger
// engine; Condition and Action are rule-type-specific JSON payloads decoded
// by the rules package.
type MemoryRule struct {
	ID        string  `gorm:"type:varchar(40);primaryKey"`
	UserID    string  `gorm:"type:varchar(64);index;not null"`
	RuleType  string  `gorm:"type:varchar(16);not null"`
	Condition JSONMap `gorm:"type:jsonb"`
	Action    JSONMap `gorm:"type:jsonb"`
	Active    bool    `gorm:"default:true"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (MemoryRule) TableName() string { return "memory_rules" }

// MemoryTrigger is an append-only audit record of one rule firing.
type MemoryTrigger struct {
	ID             string  `gorm:"type:varchar(40);primaryKey"`
	RuleID         string  `gorm:"type:varchar(40);index"`
	RuleType       string  `gorm:"type:varchar(16);index"`
	UserID         string  `gorm:"type:varchar(64);index"`
	ConversationID string  `gorm:"type:varchar(40)"`
	Details        JSONMap `gorm:"type:jsonb"`
	FiredAt        time.Time `gorm:"autoCreateTime;index"`
}

func (MemoryTrigger) TableName() string { return "memory_triggers" }

// SearchQuery is an append-only analytics row for one search call.
type SearchQuery struct {
	ID        string     `gorm:"type:varchar(40);primaryKey"`
	UserID    string     `gorm:"type:varchar(64);index"`
	Query     string     `gorm:"type:text"`
	QueryType string     `gorm:"type:varchar(16)"`
	Paths     StringList `gorm:"type:jsonb"`
	ElapsedMS int64
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SearchQuery) TableName() string { return "search_queries" }

// FileAccessLog is an append-only per-file access event.
type FileAccessLog struct {
	ID         string    `gorm:"type:varchar(40);primaryKey"`
	UserID     string    `gorm:"type:varchar(64);index"`
	FilePath   string    `gorm:"type:varchar(512)"`
	AccessedAt time.Time `gorm:"autoCreateTime"`
}

func (FileAccessLog) TableName() string { return "file_access_logs" }
