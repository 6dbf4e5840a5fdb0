package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormCatalog is a Catalog backed by Postgres via gorm.
type GormCatalog struct {
	db *gorm.DB
}

// NewGormCatalog opens a Postgres connection and migrates the schema.
func NewGormCatalog(dsn string) (*GormCatalog, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}
	return NewGormCatalogFromDB(db)
}

// NewGormCatalogFromDB wraps an existing gorm handle. Used by tests and by
// callers that manage the connection themselves.
func NewGormCatalogFromDB(db *gorm.DB) (*GormCatalog, error) {
	if err := db.AutoMigrate(
		&Conversation{}, &Message{}, &FileRecord{}, &Tag{},
		&MemoryRule{}, &MemoryTrigger{}, &SearchQuery{}, &FileAccessLog{},
	); err != nil {
		return nil, fmt.Errorf("migrating catalog schema: %w", err)
	}
	return &GormCatalog{db: db}, nil
}

func (c *GormCatalog) CreateConversation(ctx context.Context, conv *Conversation, msgs []Message) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return fmt.Errorf("creating conversation: %w", err)
		}
		for i := range msgs {
			msgs[i].ConversationID = conv.ID
			if msgs[i].ID == "" {
				msgs[i].ID = uuid.New().String()
			}
		}
		if len(msgs) > 0 {
			if err := tx.Omit("Conversation").Create(&msgs).Error; err != nil {
				return fmt.Errorf("creating messages: %w", err)
			}
		}
		return nil
	})
}

func (c *GormCatalog) GetConversation(ctx context.Context, id, userID string) (*Conversation, error) {
	var conv Conversation
	err := c.db.WithContext(ctx).
		Preload("Tags").
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return &conv, nil
}

func (c *GormCatalog) ListConversations(ctx context.Context, userID string, limit, offset int) ([]Conversation, error) {
	var convs []Conversation
	err := c.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).Offset(offset).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return convs, nil
}

func (c *GormCatalog) UpdateConversation(ctx context.Context, conv *Conversation) error {
	res := c.db.WithContext(ctx).
		Model(&Conversation{}).
		Where("id = ? AND user_id = ?", conv.ID, conv.UserID).
		Updates(map[string]any{
			"message_count": conv.MessageCount,
			"total_tokens":  conv.TotalTokens,
			"status":        conv.Status,
			"summary":       conv.Summary,
			"metadata":      conv.Metadata,
			"ended_at":      conv.EndedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("updating conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// fileRecordUpdateColumns are the columns overwritten on re-index. ID and
// CreatedAt survive conflicts so the record identity is stable across
// re-indexing.
var fileRecordUpdateColumns = []string{
	"file_name", "folder_path", "file_type", "size", "checksum",
	"title", "summary", "tags", "metadata", "conversation_id",
	"vector_ids", "modified_at", "indexed_at",
}

func (c *GormCatalog) UpsertFileRecord(ctx context.Context, rec *FileRecord) error {
	if rec.UserID == "" || rec.FilePath == "" {
		return fmt.Errorf("%w: user id and file path required", ErrInvalidInput)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "file_path"}},
		DoUpdates: clause.AssignmentColumns(fileRecordUpdateColumns),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("upserting file record: %w", err)
	}
	return nil
}

func (c *GormCatalog) GetFileRecord(ctx context.Context, userID, path string) (*FileRecord, error) {
	var rec FileRecord
	err := c.db.WithContext(ctx).
		Where("user_id = ? AND file_path = ?", userID, path).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting file record: %w", err)
	}
	return &rec, nil
}

func (c *GormCatalog) DeleteFileRecord(ctx context.Context, userID, path string) error {
	err := c.db.WithContext(ctx).
		Where("user_id = ? AND file_path = ?", userID, path).
		Delete(&FileRecord{}).Error
	if err != nil {
		return fmt.Errorf("deleting file record: %w", err)
	}
	return nil
}

func (c *GormCatalog) QueryFileRecords(ctx context.Context, userID string, q FileQuery) ([]FileRecord, error) {
	tx := c.db.WithContext(ctx).Where("user_id = ?", userID)
	if q.FileType != "" {
		tx = tx.Where("file_type = ?", q.FileType)
	}
	if len(q.FileTypes) > 0 {
		tx = tx.Where("file_type IN ?", q.FileTypes)
	}
	for _, tag := range q.Tags {
		// has-every semantics: one jsonb containment check per tag.
		encoded, err := json.Marshal([]string{tag})
		if err != nil {
			return nil, fmt.Errorf("encoding tag filter: %w", err)
		}
		tx = tx.Where("tags @> ?", string(encoded))
	}
	if q.DateStart != nil {
		tx = tx.Where("created_at >= ?", *q.DateStart)
	}
	if q.DateEnd != nil {
		tx = tx.Where("created_at <= ?", *q.DateEnd)
	}
	if q.ConversationID != "" {
		tx = tx.Where("conversation_id = ?", q.ConversationID)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	var recs []FileRecord
	if err := tx.Order("created_at DESC").Limit(limit).Offset(q.Offset).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("querying file records: %w", err)
	}
	return recs, nil
}

func (c *GormCatalog) UpsertTag(ctx context.Context, userID, name string) (*Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: tag name required", ErrInvalidInput)
	}
	tag := Tag{ID: uuid.New().String(), Name: name, UserID: userID}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&tag).Error
	if err != nil {
		return nil, fmt.Errorf("upserting tag: %w", err)
	}
	// Re-read so callers always get the canonical row, whether inserted or
	// pre-existing.
	var out Tag
	if err := c.db.WithContext(ctx).Where("name = ? AND user_id = ?", name, userID).First(&out).Error; err != nil {
		return nil, fmt.Errorf("reading tag after upsert: %w", err)
	}
	return &out, nil
}

func (c *GormCatalog) TagConversation(ctx context.Context, conversationID, tagID string) error {
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Table("conversation_tags").
		Create(map[string]any{"conversation_id": conversationID, "tag_id": tagID}).Error
	if err != nil {
		return fmt.Errorf("tagging conversation: %w", err)
	}
	return nil
}

func (c *GormCatalog) ListRules(ctx context.Context, userID string, activeOnly bool) ([]MemoryRule, error) {
	tx := c.db.WithContext(ctx).Where("user_id = ?", userID)
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}
	var rules []MemoryRule
	if err := tx.Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	return rules, nil
}

func (c *GormCatalog) CreateRule(ctx context.Context, rule *MemoryRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if err := c.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("creating rule: %w", err)
	}
	return nil
}

func (c *GormCatalog) AppendTrigger(ctx context.Context, trig *MemoryTrigger) error {
	if trig.ID == "" {
		trig.ID = uuid.New().String()
	}
	if err := c.db.WithContext(ctx).Create(trig).Error; err != nil {
		return fmt.Errorf("appending trigger: %w", err)
	}
	return nil
}

func (c *GormCatalog) ListTriggers(ctx context.Context, userID, conversationID string) ([]MemoryTrigger, error) {
	tx := c.db.WithContext(ctx).Where("user_id = ?", userID)
	if conversationID != "" {
		tx = tx.Where("conversation_id = ?", conversationID)
	}
	var trigs []MemoryTrigger
	if err := tx.Order("fired_at ASC").Find(&trigs).Error; err != nil {
		return nil, fmt.Errorf("listing triggers: %w", err)
	}
	return trigs, nil
}

func (c *GormCatalog) LastTriggerAt(ctx context.Context, userID, ruleType string) (time.Time, bool, error) {
	var trig MemoryTrigger
	err := c.db.WithContext(ctx).
		Where("user_id = ? AND rule_type = ?", userID, ruleType).
		Order("fired_at DESC").
		First(&trig).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("reading last trigger: %w", err)
	}
	return trig.FiredAt, true, nil
}

func (c *GormCatalog) AppendSearchQuery(ctx context.Context, row *SearchQuery) error {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if err := c.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("appending search query: %w", err)
	}
	return nil
}

func (c *GormCatalog) TouchFileAccess(ctx context.Context, userID, path string, at time.Time) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&FileRecord{}).
			Where("user_id = ? AND file_path = ?", userID, path).
			Update("last_accessed_at", at).Error; err != nil {
			return fmt.Errorf("updating last access: %w", err)
		}
		log := FileAccessLog{ID: uuid.New().String(), UserID: userID, FilePath: path, AccessedAt: at}
		if err := tx.Create(&log).Error; err != nil {
			return fmt.Errorf("appending access log: %w", err)
		}
		return nil
	})
}
