package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoryd/internal/catalog"
)

// recordingExecutor captures executed actions.
type recordingExecutor struct {
	actions []Action
	err     error
}

func (e *recordingExecutor) Execute(_ context.Context, _, _ string, action Action) error {
	e.actions = append(e.actions, action)
	return e.err
}

func conversation(contents ...string) []Message {
	msgs := make([]Message, len(contents))
	for i, c := range contents {
		msgs[i] = Message{Role: "user", Content: c}
	}
	return msgs
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("keyword rule fires and records a trigger", func(t *testing.T) {
		cat := catalog.NewMemoryCatalog()
		exec := &recordingExecutor{}
		engine := NewEngine(cat, exec, nil)

		require.NoError(t, cat.CreateRule(ctx, &catalog.MemoryRule{
			ID:        "r-kw",
			UserID:    "u1",
			RuleType:  RuleTypeKeyword,
			Condition: catalog.JSONMap{"keywords": []any{"urgent", "todo"}, "matchType": "any"},
			Action:    catalog.JSONMap{"type": "tag", "tags": []any{"flagged"}},
			Active:    true,
		}))

		fired, err := engine.Evaluate(ctx, "c1", conversation("please add a todo for this"), "u1")
		require.NoError(t, err)
		require.Len(t, fired, 1)
		assert.Equal(t, ActionTag, fired[0].Type)
		assert.Len(t, exec.actions, 1)

		triggers, err := cat.ListTriggers(ctx, "u1", "c1")
		require.NoError(t, err)
		require.Len(t, triggers, 1)
		assert.Equal(t, "r-kw", triggers[0].RuleID)
		assert.Equal(t, RuleTypeKeyword, triggers[0].RuleType)
		assert.NotNil(t, triggers[0].Details["condition"])
	})

	t.Run("length rule boundary", func(t *testing.T) {
		cat := catalog.NewMemoryCatalog()
		engine := NewEngine(cat, nil, nil)
		require.NoError(t, cat.CreateRule(ctx, &catalog.MemoryRule{
			UserID:    "u1",
			RuleType:  RuleTypeLength,
			Condition: catalog.JSONMap{"minMessages": 10},
			Action:    catalog.JSONMap{"type": "generate_summary"},
			Active:    true,
		}))

		nine := conversation(make([]string, 9)...)
		fired, err := engine.Evaluate(ctx, "c1", nine, "u1")
		require.NoError(t, err)
		assert.Empty(t, fired)

		ten := conversation(make([]string, 10)...)
		fired, err = engine.Evaluate(ctx, "c2", ten, "u1")
		require.NoError(t, err)
		assert.Len(t, fired, 1)
	})

	t.Run("inactive rules are skipped", func(t *testing.T) {
		cat := catalog.NewMemoryCatalog()
		engine := NewEngine(cat, nil, nil)
		require.NoError(t, cat.CreateRule(ctx, &catalog.MemoryRule{
			UserID:    "u1",
			RuleType:  RuleTypeKeyword,
			Condition: catalog.JSONMap{"keywords": []any{"hit"}},
			Action:    catalog.JSONMap{"type": "tag", "tags": []any{"x"}},
			Active:    false,
		}))

		fired, err := engine.Evaluate(ctx, "c1", conversation("hit"), "u1")
		require.NoError(t, err)
		assert.Empty(t, fired)
	})

	t.Run("other users' rules are invisible", func(t *testing.T) {
		cat := catalog.NewMemoryCatalog()
		engine := NewEngine(cat, nil, nil)
		require.NoError(t, cat.CreateRule(ctx, &catalog.MemoryRule{
			UserID:    "u2",
			RuleType:  RuleTypeKeyword,
			Condition: catalog.JSONMap{"keywords": []any{"hit"}},
			Action:    catalog.JSONMap{"type": "tag", "tags": []any{"x"}},
			Active:    true,
		}))

		fired, err := engine.Evaluate(ctx, "c1", conversation("hit"), "u1")
		require.NoError(t, err)
		assert.Empty(t, fired)
	})

	t.Run("misconfigured time rule is skipped without aborting the batch", func(t *testing.T) {
		cat := catalog.NewMemoryCatalog()
		engine := NewEngine(cat, nil, nil)
		require.NoError(t, cat.CreateRule(ctx, &catalog.MemoryRule{
			UserID:    "u1",
			RuleType:  RuleTypeTime,
			Condition: catalog.JSONMap{"interval": "whenever"},
			Action:    catalog.JSONMap{"type": "backup"},
			Active:    true,
		}))
		require.NoError(t, cat.CreateRule(ctx, &catalog.MemoryRule{
			UserID:    "u1",
			RuleType:  RuleTypeKeyword,
			Condition: catalog.JSONMap{"keywords": []any{"hit"}},
			Action:    catalog.JSONMap{"type": "tag", "tags": []any{"x"}},
			Active:    true,
		}))

		fired, err := engine.Evaluate(ctx, "c1", conversation("hit"), "u1")
		require.NoError(t, err)
		require.Len(t, fired, 1)
		assert.Equal(t, ActionTag, fired[0].Type)
	})

	t.Run("unknown rule type is a no-op", func(t *testing.T) {
		cat := catalog.NewMemoryCatalog()
		engine := NewEngine(cat, nil, nil)
		require.NoError(t, cat.CreateRule(ctx, &catalog.MemoryRule{
			UserID:   "u1",
			RuleType: "astrology",
			Action:   catalog.JSONMap{"type": "tag", "tags": []any{"x"}},
			Active:   true,
		}))

		fired, err := engine.Evaluate(ctx, "c1", conversation("anything"), "u1")
		require.NoError(t, err)
		assert.Empty(t, fired)

		triggers, err := cat.ListTriggers(ctx, "u1", "")
		require.NoError(t, err)
		assert.Empty(t, triggers)
	})

	t.Run("time rule gates on last firing", func(t *testing.T) {
		cat := catalog.NewMemoryCatalog()
		engine := NewEngine(cat, nil, nil)
		require.NoError(t, cat.CreateRule(ctx, &catalog.MemoryRule{
			UserID:    "u1",
			RuleType:  RuleTypeTime,
			Condition: catalog.JSONMap{"interval": "1h"},
			Action:    catalog.JSONMap{"type": "backup"},
			Active:    true,
		}))

		fired, err := engine.Evaluate(ctx, "c1", conversation("x"), "u1")
		require.NoError(t, err)
		require.Len(t, fired, 1)

		// The firing above is now the last time-type trigger; within the
		// interval the rule stays quiet.
		fired, err = engine.Evaluate(ctx, "c2", conversation("x"), "u1")
		require.NoError(t, err)
		assert.Empty(t, fired)

		engine.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		fired, err = engine.Evaluate(ctx, "c3", conversation("x"), "u1")
		require.NoError(t, err)
		assert.Len(t, fired, 1)
	})

	t.Run("action failure does not block other rules", func(t *testing.T) {
		cat := catalog.NewMemoryCatalog()
		exec := &recordingExecutor{err: errors.New("downstream broken")}
		engine := NewEngine(cat, exec, nil)
		require.NoError(t, cat.CreateRule(ctx, &catalog.MemoryRule{
			UserID:    "u1",
			RuleType:  RuleTypeKeyword,
			Condition: catalog.JSONMap{"keywords": []any{"hit"}},
			Action: catalog.JSONMap{"actions": []any{
				map[string]any{"type": "notify"},
				map[string]any{"type": "backup"},
			}},
			Active: true,
		}))

		fired, err := engine.Evaluate(ctx, "c1", conversation("hit"), "u1")
		require.NoError(t, err)
		assert.Len(t, fired, 2)
		// Both actions were attempted despite each failing.
		assert.Len(t, exec.actions, 2)
	})
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules("u1")
	require.Len(t, rules, 2)

	assert.Equal(t, RuleTypeLength, rules[0].RuleType)
	assert.True(t, rules[0].Active)
	assert.Equal(t, RuleTypeKeyword, rules[1].RuleType)
	assert.True(t, rules[1].Active)
	assert.Equal(t, "u1", rules[0].UserID)
}
