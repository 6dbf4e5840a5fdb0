package catalog

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for catalog operations.
var (
	// ErrNotFound is returned when a record does not exist or does not
	// belong to the requesting user. Existence and authorization are
	// deliberately indistinguishable.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates a malformed record rejected before any
	// store call.
	ErrInvalidInput = errors.New("invalid input")
)

// FileQuery filters FileRecord listings.
//
// Tags use has-every semantics: a record matches only if it carries every
// requested tag. Date bounds are inclusive and apply to StartedAt/CreatedAt.
type FileQuery struct {
	FileType       string
	FileTypes      []string
	Tags           []string
	DateStart      *time.Time
	DateEnd        *time.Time
	ConversationID string
	Limit          int
	Offset         int
}

// Catalog is the metadata catalog capability consumed by the core.
//
// Every method is scoped by user id; there is no cross-user read path.
// Upserts are idempotent on the natural keys (UserID, FilePath) and
// (Name, UserID), so concurrent writers on the same key are last-writer-wins.
type Catalog interface {
	// Conversations.
	CreateConversation(ctx context.Context, conv *Conversation, msgs []Message) error
	GetConversation(ctx context.Context, id, userID string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string, limit, offset int) ([]Conversation, error)
	UpdateConversation(ctx context.Context, conv *Conversation) error

	// File records. UpsertFileRecord keys on (UserID, FilePath).
	UpsertFileRecord(ctx context.Context, rec *FileRecord) error
	GetFileRecord(ctx context.Context, userID, path string) (*FileRecord, error)
	DeleteFileRecord(ctx context.Context, userID, path string) error
	QueryFileRecords(ctx context.Context, userID string, q FileQuery) ([]FileRecord, error)

	// Tags. UpsertTag keys on (Name, UserID).
	UpsertTag(ctx context.Context, userID, name string) (*Tag, error)
	TagConversation(ctx context.Context, conversationID, tagID string) error

	// Rules and triggers.
	ListRules(ctx context.Context, userID string, activeOnly bool) ([]MemoryRule, error)
	CreateRule(ctx context.Context, rule *MemoryRule) error
	AppendTrigger(ctx context.Context, trig *MemoryTrigger) error
	ListTriggers(ctx context.Context, userID, conversationID string) ([]MemoryTrigger, error)
	LastTriggerAt(ctx context.Context, userID, ruleType string) (time.Time, bool, error)

	// Best-effort analytics. Failures here are logged by callers, never
	// surfaced.
	AppendSearchQuery(ctx context.Context, row *SearchQuery) error
	TouchFileAccess(ctx context.Context, userID, path string, at time.Time) error
}
