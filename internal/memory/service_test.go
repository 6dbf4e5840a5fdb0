package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoryd/internal/blob"
	"github.com/fyrsmithlabs/memoryd/internal/catalog"
	"github.com/fyrsmithlabs/memoryd/internal/indexer"
	"github.com/fyrsmithlabs/memoryd/internal/notify"
	"github.com/fyrsmithlabs/memoryd/internal/rules"
	"github.com/fyrsmithlabs/memoryd/internal/vectorstore"
)

type stubEmbedder struct{}

func embedText(text string) []float32 {
	v := make([]float32, 27)
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z':
			v[r-'a']++
		case r >= 'A' && r <= 'Z':
			v[r-'A']++
		default:
			v[26]++
		}
	}
	return v
}

func (stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedText(t)
	}
	return out, nil
}

func (stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return embedText(text), nil
}

// stubIntel fails extraction (analysis falls open) and serves a fixed
// completion for summaries.
type stubIntel struct {
	completion  string
	completeErr error
	completions int
}

func (s *stubIntel) Complete(context.Context, string) (string, error) {
	s.completions++
	return s.completion, s.completeErr
}

func (s *stubIntel) ExtractJSON(context.Context, string, any) error {
	return errors.New("extraction unavailable")
}

type fixture struct {
	svc     *Service
	catalog *catalog.MemoryCatalog
	blobs   *blob.MemoryStore
	vectors *vectorstore.MemoryStore
	intel   *stubIntel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := catalog.NewMemoryCatalog()
	blobs := blob.NewMemoryStore()
	vectors := vectorstore.NewMemoryStore(stubEmbedder{})
	idx := indexer.NewService(blobs, cat, vectors, nil, indexer.Config{})
	intel := &stubIntel{completion: "A brief summary of the discussion."}
	svc := NewService(cat, blobs, idx, intel, notify.NewLogPublisher(nil), nil, Config{})
	return &fixture{svc: svc, catalog: cat, blobs: blobs, vectors: vectors, intel: intel}
}

func messages(n int, extra string) []IncomingMessage {
	msgs := make([]IncomingMessage, n)
	for i := range msgs {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs[i] = IncomingMessage{Role: role, Content: fmt.Sprintf("message %d %s", i, extra)}
	}
	return msgs
}

func TestSaveConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("persists catalog rows, transcript, and index entry", func(t *testing.T) {
		f := newFixture(t)
		conv, err := f.svc.SaveConversation(ctx, "u1", messages(3, "about caching"))
		require.NoError(t, err)

		assert.Equal(t, 3, conv.MessageCount)
		assert.Equal(t, catalog.StatusActive, conv.Status)
		assert.Positive(t, conv.TotalTokens)

		got, err := f.svc.GetConversation(ctx, conv.ID, "u1")
		require.NoError(t, err)
		assert.Equal(t, conv.ID, got.ID)

		recs, err := f.catalog.QueryFileRecords(ctx, "u1", catalog.FileQuery{
			ConversationID: conv.ID,
			FileType:       indexer.FileTypeConversation,
		})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.NotEmpty(t, recs[0].VectorIDs)

		content, err := f.blobs.ReadFile(ctx, recs[0].FilePath)
		require.NoError(t, err)
		var doc struct {
			Messages []IncomingMessage `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(content, &doc))
		assert.Len(t, doc.Messages, 3)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.SaveConversation(ctx, "", messages(1, ""))
		assert.ErrorIs(t, err, catalog.ErrInvalidInput)
		_, err = f.svc.SaveConversation(ctx, "u1", nil)
		assert.ErrorIs(t, err, catalog.ErrInvalidInput)
	})

	t.Run("seeds default rules on first save only", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.SaveConversation(ctx, "u1", messages(2, ""))
		require.NoError(t, err)

		seeded, err := f.catalog.ListRules(ctx, "u1", false)
		require.NoError(t, err)
		require.Len(t, seeded, 2)

		_, err = f.svc.SaveConversation(ctx, "u1", messages(2, ""))
		require.NoError(t, err)
		after, err := f.catalog.ListRules(ctx, "u1", false)
		require.NoError(t, err)
		assert.Len(t, after, 2)
	})

	t.Run("twelve important messages fire both default rules", func(t *testing.T) {
		f := newFixture(t)
		conv, err := f.svc.SaveConversation(ctx, "u1", messages(12, "this is important"))
		require.NoError(t, err)

		triggers, err := f.catalog.ListTriggers(ctx, "u1", conv.ID)
		require.NoError(t, err)
		require.Len(t, triggers, 2)
		ruleTypes := []string{triggers[0].RuleType, triggers[1].RuleType}
		assert.Contains(t, ruleTypes, rules.RuleTypeLength)
		assert.Contains(t, ruleTypes, rules.RuleTypeKeyword)

		// The keyword rule tagged the conversation "important".
		tag, err := f.catalog.UpsertTag(ctx, "u1", "important")
		require.NoError(t, err)
		assert.Contains(t, f.catalog.ConversationTags(conv.ID), tag.ID)

		// The length rule generated and persisted a summary.
		got, err := f.svc.GetConversation(ctx, conv.ID, "u1")
		require.NoError(t, err)
		assert.Equal(t, "A brief summary of the discussion.", got.Summary)
	})

	t.Run("short neutral conversation fires nothing", func(t *testing.T) {
		f := newFixture(t)
		conv, err := f.svc.SaveConversation(ctx, "u1", messages(2, "nothing special"))
		require.NoError(t, err)

		triggers, err := f.catalog.ListTriggers(ctx, "u1", conv.ID)
		require.NoError(t, err)
		assert.Empty(t, triggers)
	})

	t.Run("analysis failure is fail-open", func(t *testing.T) {
		f := newFixture(t)
		conv, err := f.svc.SaveConversation(ctx, "u1", messages(2, ""))
		require.NoError(t, err)
		assert.Nil(t, conv.Metadata)
	})
}

func TestGenerateSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("persists and indexes the summary", func(t *testing.T) {
		f := newFixture(t)
		conv, err := f.svc.SaveConversation(ctx, "u1", messages(2, "about indexing"))
		require.NoError(t, err)

		summary, err := f.svc.GenerateSummary(ctx, conv.ID, "u1", "detailed")
		require.NoError(t, err)
		assert.Equal(t, "A brief summary of the discussion.", summary)

		got, err := f.svc.GetConversation(ctx, conv.ID, "u1")
		require.NoError(t, err)
		assert.Equal(t, summary, got.Summary)

		recs, err := f.catalog.QueryFileRecords(ctx, "u1", catalog.FileQuery{
			ConversationID: conv.ID,
			FileType:       indexer.FileTypeSummary,
		})
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})

	t.Run("unknown conversation is not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.GenerateSummary(ctx, "nope", "u1", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("another user's conversation is not found", func(t *testing.T) {
		f := newFixture(t)
		conv, err := f.svc.SaveConversation(ctx, "u1", messages(2, ""))
		require.NoError(t, err)

		_, err = f.svc.GenerateSummary(ctx, conv.ID, "u2", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("completion failure propagates", func(t *testing.T) {
		f := newFixture(t)
		conv, err := f.svc.SaveConversation(ctx, "u1", messages(2, ""))
		require.NoError(t, err)

		f.intel.completeErr = errors.New("model down")
		_, err = f.svc.GenerateSummary(ctx, conv.ID, "u1", "")
		assert.Error(t, err)
	})
}

func TestCreateRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.svc.CreateRule(ctx, &catalog.MemoryRule{
		UserID:    "u1",
		RuleType:  rules.RuleTypeKeyword,
		Condition: catalog.JSONMap{"keywords": []any{"x"}},
		Action:    catalog.JSONMap{"type": "tag", "tags": []any{"x"}},
		Active:    true,
	})
	require.NoError(t, err)

	err = f.svc.CreateRule(ctx, &catalog.MemoryRule{UserID: "u1", RuleType: "astrology"})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)
}

func TestWriteBlob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.WriteBlob(ctx, "u1", "/users/u1/documents/a.md", []byte("hi")))

	err := f.svc.WriteBlob(ctx, "u1", "/users/u2/documents/a.md", []byte("hi"))
	assert.ErrorIs(t, err, blob.ErrInvalidPath)
}
