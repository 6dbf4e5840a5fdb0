package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoryd/internal/catalog"
)

func TestTranslateActions(t *testing.T) {
	t.Run("single action object", func(t *testing.T) {
		actions, unknown := translateActions("r1", catalog.JSONMap{
			"type": "tag",
			"tags": []any{"important"},
		})
		require.Len(t, actions, 1)
		assert.Empty(t, unknown)
		assert.Equal(t, ActionTag, actions[0].Type)
		assert.Equal(t, "r1", actions[0].RuleID)
		require.NotNil(t, actions[0].Tag)
		assert.Equal(t, []string{"important"}, actions[0].Tag.Tags)
	})

	t.Run("summary style defaults to brief", func(t *testing.T) {
		actions, _ := translateActions("r1", catalog.JSONMap{"type": "generate_summary"})
		require.Len(t, actions, 1)
		require.NotNil(t, actions[0].Summary)
		assert.Equal(t, DefaultSummaryStyle, actions[0].Summary.Style)
	})

	t.Run("explicit summary style kept", func(t *testing.T) {
		actions, _ := translateActions("r1", catalog.JSONMap{
			"type":  "generate_summary",
			"style": "detailed",
		})
		require.Len(t, actions, 1)
		assert.Equal(t, "detailed", actions[0].Summary.Style)
	})

	t.Run("actions array", func(t *testing.T) {
		actions, unknown := translateActions("r1", catalog.JSONMap{
			"actions": []any{
				map[string]any{"type": "notify", "subject": "triggers", "message": "fired"},
				map[string]any{"type": "backup"},
			},
		})
		require.Len(t, actions, 2)
		assert.Empty(t, unknown)
		assert.Equal(t, ActionNotify, actions[0].Type)
		assert.Equal(t, "fired", actions[0].Notify.Message)
		assert.Equal(t, ActionBackup, actions[1].Type)
		assert.Empty(t, actions[1].Backup.Destination)
	})

	t.Run("unknown type is reported not fatal", func(t *testing.T) {
		actions, unknown := translateActions("r1", catalog.JSONMap{
			"actions": []any{
				map[string]any{"type": "teleport"},
				map[string]any{"type": "tag", "tags": []any{"x"}},
			},
		})
		require.Len(t, actions, 1)
		assert.Equal(t, ActionTag, actions[0].Type)
		assert.Equal(t, []string{"teleport"}, unknown)
	})

	t.Run("missing type is reported", func(t *testing.T) {
		actions, unknown := translateActions("r1", catalog.JSONMap{"note": "no type here"})
		assert.Empty(t, actions)
		assert.Len(t, unknown, 1)
	})
}
