package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCatalogConversations(t *testing.T) {
	ctx := context.Background()
	cat := NewMemoryCatalog()

	conv := &Conversation{ID: "c1", UserID: "u1", MessageCount: 2, Status: StatusActive}
	msgs := []Message{
		{ID: "m1", ConversationID: "c1", Role: RoleUser},
		{ID: "m2", ConversationID: "c1", Role: RoleAssistant},
	}
	require.NoError(t, cat.CreateConversation(ctx, conv, msgs))

	t.Run("get scopes by user", func(t *testing.T) {
		got, err := cat.GetConversation(ctx, "c1", "u1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.MessageCount)

		_, err = cat.GetConversation(ctx, "c1", "u2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update persists", func(t *testing.T) {
		got, err := cat.GetConversation(ctx, "c1", "u1")
		require.NoError(t, err)
		got.Summary = "done"
		require.NoError(t, cat.UpdateConversation(ctx, got))

		again, err := cat.GetConversation(ctx, "c1", "u1")
		require.NoError(t, err)
		assert.Equal(t, "done", again.Summary)
	})

	t.Run("list is user scoped", func(t *testing.T) {
		convs, err := cat.ListConversations(ctx, "u1", 10, 0)
		require.NoError(t, err)
		assert.Len(t, convs, 1)

		convs, err = cat.ListConversations(ctx, "u2", 10, 0)
		require.NoError(t, err)
		assert.Empty(t, convs)
	})
}

func TestMemoryCatalogFileRecords(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert is idempotent on user and path", func(t *testing.T) {
		cat := NewMemoryCatalog()
		rec := &FileRecord{UserID: "u1", FilePath: "/users/u1/a.md", FileType: "document", Checksum: "c1"}
		require.NoError(t, cat.UpsertFileRecord(ctx, rec))
		require.NoError(t, cat.UpsertFileRecord(ctx, &FileRecord{
			UserID: "u1", FilePath: "/users/u1/a.md", FileType: "document", Checksum: "c2",
		}))

		recs, err := cat.QueryFileRecords(ctx, "u1", FileQuery{Limit: 10})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "c2", recs[0].Checksum)
	})

	t.Run("query filters by tags with has-every semantics", func(t *testing.T) {
		cat := NewMemoryCatalog()
		require.NoError(t, cat.UpsertFileRecord(ctx, &FileRecord{
			UserID: "u1", FilePath: "/a", Tags: StringList{"alpha", "beta"},
		}))
		require.NoError(t, cat.UpsertFileRecord(ctx, &FileRecord{
			UserID: "u1", FilePath: "/b", Tags: StringList{"alpha"},
		}))

		recs, err := cat.QueryFileRecords(ctx, "u1", FileQuery{Tags: []string{"alpha", "beta"}, Limit: 10})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "/a", recs[0].FilePath)
	})

	t.Run("query filters by date range", func(t *testing.T) {
		cat := NewMemoryCatalog()
		old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, cat.UpsertFileRecord(ctx, &FileRecord{
			UserID: "u1", FilePath: "/old", CreatedAt: old,
		}))
		require.NoError(t, cat.UpsertFileRecord(ctx, &FileRecord{
			UserID: "u1", FilePath: "/new", CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		}))

		start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		recs, err := cat.QueryFileRecords(ctx, "u1", FileQuery{DateStart: &start, Limit: 10})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "/new", recs[0].FilePath)
	})

	t.Run("delete and not found", func(t *testing.T) {
		cat := NewMemoryCatalog()
		require.NoError(t, cat.UpsertFileRecord(ctx, &FileRecord{UserID: "u1", FilePath: "/a"}))
		require.NoError(t, cat.DeleteFileRecord(ctx, "u1", "/a"))
		_, err := cat.GetFileRecord(ctx, "u1", "/a")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("records are invisible across users", func(t *testing.T) {
		cat := NewMemoryCatalog()
		require.NoError(t, cat.UpsertFileRecord(ctx, &FileRecord{UserID: "u1", FilePath: "/a"}))
		_, err := cat.GetFileRecord(ctx, "u2", "/a")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryCatalogTags(t *testing.T) {
	ctx := context.Background()
	cat := NewMemoryCatalog()

	first, err := cat.UpsertTag(ctx, "u1", "work")
	require.NoError(t, err)
	second, err := cat.UpsertTag(ctx, "u1", "work")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := cat.UpsertTag(ctx, "u2", "work")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	require.NoError(t, cat.TagConversation(ctx, "c1", first.ID))
	require.NoError(t, cat.TagConversation(ctx, "c1", first.ID))
	assert.Len(t, cat.ConversationTags("c1"), 1)

	_, err = cat.UpsertTag(ctx, "u1", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMemoryCatalogTriggers(t *testing.T) {
	ctx := context.Background()
	cat := NewMemoryCatalog()

	early := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, cat.AppendTrigger(ctx, &MemoryTrigger{UserID: "u1", RuleType: "time", FiredAt: early}))
	require.NoError(t, cat.AppendTrigger(ctx, &MemoryTrigger{UserID: "u1", RuleType: "time", FiredAt: late}))
	require.NoError(t, cat.AppendTrigger(ctx, &MemoryTrigger{UserID: "u1", RuleType: "keyword", FiredAt: late}))

	last, found, err := cat.LastTriggerAt(ctx, "u1", "time")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, late, last)

	_, found, err = cat.LastTriggerAt(ctx, "u2", "time")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCatalogAnalytics(t *testing.T) {
	ctx := context.Background()
	cat := NewMemoryCatalog()

	require.NoError(t, cat.AppendSearchQuery(ctx, &SearchQuery{UserID: "u1", Query: "q", QueryType: "semantic"}))
	assert.Len(t, cat.SearchQueries(), 1)

	require.NoError(t, cat.UpsertFileRecord(ctx, &FileRecord{UserID: "u1", FilePath: "/a"}))
	at := time.Now()
	require.NoError(t, cat.TouchFileAccess(ctx, "u1", "/a", at))

	rec, err := cat.GetFileRecord(ctx, "u1", "/a")
	require.NoError(t, err)
	require.NotNil(t, rec.LastAccessedAt)
	assert.Len(t, cat.FileAccesses(), 1)
}
