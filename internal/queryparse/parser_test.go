package queryparse

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubIntel serves canned extraction results.
type stubIntel struct {
	response string
	err      error
	called   bool
}

func (s *stubIntel) Complete(_ context.Context, _ string) (string, error) {
	s.called = true
	return s.response, s.err
}

func (s *stubIntel) ExtractJSON(ctx context.Context, prompt string, out any) error {
	raw, err := s.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func TestParsePatterns(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	parser := NewParser(nil, nil)
	parser.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("explicit date is structured", func(t *testing.T) {
		intent := parser.Parse(ctx, "show me notes from 2026-08-15")
		assert.Equal(t, IntentStructured, intent.Type)
		require.NotNil(t, intent.Filters.DateRange)
		assert.Equal(t, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), intent.Filters.DateRange.Start)
		assert.Equal(t, 15, intent.Filters.DateRange.End.Day())
	})

	t.Run("relative date is structured", func(t *testing.T) {
		intent := parser.Parse(ctx, "everything from last 2 weeks")
		assert.Equal(t, IntentStructured, intent.Type)
		require.NotNil(t, intent.Filters.DateRange)
		assert.Equal(t, now.AddDate(0, 0, -14), intent.Filters.DateRange.Start)
		assert.Equal(t, now, intent.Filters.DateRange.End)
	})

	t.Run("quoted tag is structured", func(t *testing.T) {
		intent := parser.Parse(ctx, `items tagged as "urgent"`)
		assert.Equal(t, IntentStructured, intent.Type)
		assert.Equal(t, []string{"urgent"}, intent.Filters.Tags)
	})

	t.Run("tagged with variant", func(t *testing.T) {
		intent := parser.Parse(ctx, `files tagged with "project-x"`)
		assert.Equal(t, IntentStructured, intent.Type)
		assert.Equal(t, []string{"project-x"}, intent.Filters.Tags)
	})

	t.Run("semantic indicator outranks file-type keyword", func(t *testing.T) {
		intent := parser.Parse(ctx, "conversations about distributed systems")
		assert.Equal(t, IntentSemantic, intent.Type)
		assert.Equal(t, "conversations about distributed systems", intent.Query)
		assert.Empty(t, intent.Filters.FileType)
	})

	t.Run("file-type keyword alone is structured", func(t *testing.T) {
		intent := parser.Parse(ctx, "show my summaries")
		assert.Equal(t, IntentStructured, intent.Type)
		assert.Equal(t, "summary", intent.Filters.FileType)
	})

	t.Run("aggregation keyword", func(t *testing.T) {
		intent := parser.Parse(ctx, "how many proposals do I have")
		assert.Equal(t, IntentStructured, intent.Type)
		// File-type keyword matches before aggregation in the fixed order.
		assert.Equal(t, "proposal", intent.Filters.FileType)

		intent = parser.Parse(ctx, "count everything I saved")
		assert.Equal(t, IntentStructured, intent.Type)
		assert.Equal(t, "count", intent.Aggregation)
	})

	t.Run("empty query is semantic", func(t *testing.T) {
		intent := parser.Parse(ctx, "   ")
		assert.Equal(t, IntentSemantic, intent.Type)
	})

	t.Run("no pattern and no intel falls open to semantic", func(t *testing.T) {
		intent := parser.Parse(ctx, "weird unclassifiable text")
		assert.Equal(t, IntentSemantic, intent.Type)
		assert.Equal(t, "weird unclassifiable text", intent.Query)
	})
}

func TestParseExtraction(t *testing.T) {
	ctx := context.Background()

	t.Run("model classification is used", func(t *testing.T) {
		intel := &stubIntel{response: `{"type": "hybrid", "query": "vector db tradeoffs", "filters": {"fileType": "conversation"}}`}
		parser := NewParser(intel, nil)

		intent := parser.Parse(ctx, "stuff when I compared vector dbs")
		assert.True(t, intel.called)
		assert.Equal(t, IntentHybrid, intent.Type)
		assert.Equal(t, "vector db tradeoffs", intent.Query)
		assert.Equal(t, "conversation", intent.Filters.FileType)
	})

	t.Run("extraction failure fails open to semantic", func(t *testing.T) {
		intel := &stubIntel{err: errors.New("model unavailable")}
		parser := NewParser(intel, nil)

		intent := parser.Parse(ctx, "unclassifiable gibberish here")
		assert.Equal(t, IntentSemantic, intent.Type)
		assert.Equal(t, "unclassifiable gibberish here", intent.Query)
	})

	t.Run("malformed output fails open", func(t *testing.T) {
		intel := &stubIntel{response: "not json at all"}
		parser := NewParser(intel, nil)

		intent := parser.Parse(ctx, "unclassifiable gibberish here")
		assert.Equal(t, IntentSemantic, intent.Type)
	})

	t.Run("unknown intent type fails open", func(t *testing.T) {
		intel := &stubIntel{response: `{"type": "mystery"}`}
		parser := NewParser(intel, nil)

		intent := parser.Parse(ctx, "unclassifiable gibberish here")
		assert.Equal(t, IntentSemantic, intent.Type)
	})

	t.Run("patterns short-circuit before the model", func(t *testing.T) {
		intel := &stubIntel{response: `{"type": "hybrid"}`}
		parser := NewParser(intel, nil)

		intent := parser.Parse(ctx, `tagged as "keep"`)
		assert.False(t, intel.called)
		assert.Equal(t, IntentStructured, intent.Type)
	})
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("my summary notes", "summary"))
	assert.True(t, containsWord("summary", "summary"))
	assert.False(t, containsWord("summarize this", "summary"))
	assert.False(t, containsWord("presummary", "summary"))
}
