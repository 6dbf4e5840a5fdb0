package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCatalog is an in-memory Catalog. It backs the "memory" catalog
// driver for single-node deployments and doubles as the test fixture.
type MemoryCatalog struct {
	mu sync.RWMutex

	conversations map[string]*Conversation
	messages      map[string][]Message // keyed by conversation id
	files         map[string]*FileRecord
	tags          map[string]*Tag // keyed by userID+"\x00"+name
	convTags      map[string][]string
	rules         []MemoryRule
	triggers      []MemoryTrigger
	searches      []SearchQuery
	accesses      []FileAccessLog
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]Message),
		files:         make(map[string]*FileRecord),
		tags:          make(map[string]*Tag),
		convTags:      make(map[string][]string),
	}
}

func fileKey(userID, path string) string { return userID + "\x00" + path }

func (c *MemoryCatalog) CreateConversation(_ context.Context, conv *Conversation, msgs []Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	if conv.StartedAt.IsZero() {
		conv.StartedAt = time.Now()
	}
	cp := *conv
	c.conversations[conv.ID] = &cp
	for i := range msgs {
		msgs[i].ConversationID = conv.ID
		if msgs[i].ID == "" {
			msgs[i].ID = uuid.New().String()
		}
		if msgs[i].CreatedAt.IsZero() {
			msgs[i].CreatedAt = time.Now()
		}
	}
	c.messages[conv.ID] = append(c.messages[conv.ID], msgs...)
	return nil
}

func (c *MemoryCatalog) GetConversation(_ context.Context, id, userID string) (*Conversation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conv, ok := c.conversations[id]
	if !ok || conv.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *conv
	for _, tagID := range c.convTags[id] {
		for _, t := range c.tags {
			if t.ID == tagID {
				cp.Tags = append(cp.Tags, *t)
			}
		}
	}
	return &cp, nil
}

func (c *MemoryCatalog) ListConversations(_ context.Context, userID string, limit, offset int) ([]Conversation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Conversation
	for _, conv := range c.conversations {
		if conv.UserID == userID {
			out = append(out, *conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return paginate(out, limit, offset), nil
}

func (c *MemoryCatalog) UpdateConversation(_ context.Context, conv *Conversation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.conversations[conv.ID]
	if !ok || existing.UserID != conv.UserID {
		return ErrNotFound
	}
	existing.MessageCount = conv.MessageCount
	existing.TotalTokens = conv.TotalTokens
	existing.Status = conv.Status
	existing.Summary = conv.Summary
	existing.Metadata = conv.Metadata
	existing.EndedAt = conv.EndedAt
	existing.UpdatedAt = time.Now()
	return nil
}

func (c *MemoryCatalog) UpsertFileRecord(_ context.Context, rec *FileRecord) error {
	if rec.UserID == "" || rec.FilePath == "" {
		return fmt.Errorf("%w: user id and file path required", ErrInvalidInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fileKey(rec.UserID, rec.FilePath)
	if existing, ok := c.files[key]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		rec.LastAccessedAt = existing.LastAccessedAt
	} else {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
	}
	cp := *rec
	c.files[key] = &cp
	return nil
}

func (c *MemoryCatalog) GetFileRecord(_ context.Context, userID, path string) (*FileRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.files[fileKey(userID, path)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (c *MemoryCatalog) DeleteFileRecord(_ context.Context, userID, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, fileKey(userID, path))
	return nil
}

func (c *MemoryCatalog) QueryFileRecords(_ context.Context, userID string, q FileQuery) ([]FileRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []FileRecord
	for _, rec := range c.files {
		if rec.UserID != userID {
			continue
		}
		if q.FileType != "" && rec.FileType != q.FileType {
			continue
		}
		if len(q.FileTypes) > 0 && !containsString(q.FileTypes, rec.FileType) {
			continue
		}
		if !hasEveryTag(rec.Tags, q.Tags) {
			continue
		}
		if q.DateStart != nil && rec.CreatedAt.Before(*q.DateStart) {
			continue
		}
		if q.DateEnd != nil && rec.CreatedAt.After(*q.DateEnd) {
			continue
		}
		if q.ConversationID != "" && (rec.ConversationID == nil || *rec.ConversationID != q.ConversationID) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	return paginate(out, limit, q.Offset), nil
}

func (c *MemoryCatalog) UpsertTag(_ context.Context, userID, name string) (*Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: tag name required", ErrInvalidInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := userID + "\x00" + name
	if tag, ok := c.tags[key]; ok {
		cp := *tag
		return &cp, nil
	}
	tag := &Tag{ID: uuid.New().String(), Name: name, UserID: userID, CreatedAt: time.Now()}
	c.tags[key] = tag
	cp := *tag
	return &cp, nil
}

func (c *MemoryCatalog) TagConversation(_ context.Context, conversationID, tagID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if containsString(c.convTags[conversationID], tagID) {
		return nil
	}
	c.convTags[conversationID] = append(c.convTags[conversationID], tagID)
	return nil
}

func (c *MemoryCatalog) ListRules(_ context.Context, userID string, activeOnly bool) ([]MemoryRule, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []MemoryRule
	for _, r := range c.rules {
		if r.UserID != userID {
			continue
		}
		if activeOnly && !r.Active {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *MemoryCatalog) CreateRule(_ context.Context, rule *MemoryRule) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	c.rules = append(c.rules, *rule)
	return nil
}

func (c *MemoryCatalog) AppendTrigger(_ context.Context, trig *MemoryTrigger) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if trig.ID == "" {
		trig.ID = uuid.New().String()
	}
	if trig.FiredAt.IsZero() {
		trig.FiredAt = time.Now()
	}
	c.triggers = append(c.triggers, *trig)
	return nil
}

func (c *MemoryCatalog) ListTriggers(_ context.Context, userID, conversationID string) ([]MemoryTrigger, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []MemoryTrigger
	for _, t := range c.triggers {
		if t.UserID != userID {
			continue
		}
		if conversationID != "" && t.ConversationID != conversationID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *MemoryCatalog) LastTriggerAt(_ context.Context, userID, ruleType string) (time.Time, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var last time.Time
	found := false
	for _, t := range c.triggers {
		if t.UserID == userID && t.RuleType == ruleType && t.FiredAt.After(last) {
			last = t.FiredAt
			found = true
		}
	}
	return last, found, nil
}

func (c *MemoryCatalog) AppendSearchQuery(_ context.Context, row *SearchQuery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	c.searches = append(c.searches, *row)
	return nil
}

func (c *MemoryCatalog) TouchFileAccess(_ context.Context, userID, path string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.files[fileKey(userID, path)]; ok {
		t := at
		rec.LastAccessedAt = &t
	}
	c.accesses = append(c.accesses, FileAccessLog{
		ID: uuid.New().String(), UserID: userID, FilePath: path, AccessedAt: at,
	})
	return nil
}

// ConversationTags returns the tag ids linked to a conversation. Test
// helper.
func (c *MemoryCatalog) ConversationTags(conversationID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.convTags[conversationID]))
	copy(out, c.convTags[conversationID])
	return out
}

// SearchQueries returns recorded analytics rows. Test helper.
func (c *MemoryCatalog) SearchQueries() []SearchQuery {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SearchQuery, len(c.searches))
	copy(out, c.searches)
	return out
}

// FileAccesses returns recorded access events. Test helper.
func (c *MemoryCatalog) FileAccesses() []FileAccessLog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]FileAccessLog, len(c.accesses))
	copy(out, c.accesses)
	return out
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func hasEveryTag(have StringList, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if strings.EqualFold(h, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
