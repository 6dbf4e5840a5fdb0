package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRelevantSection(t *testing.T) {
	t.Run("conversation content returns the matching message", func(t *testing.T) {
		content := []byte(`{
			"messages": [
				{"role": "user", "content": "What is the capital of France?"},
				{"role": "assistant", "content": "The capital of France is Paris, a city on the Seine."}
			]
		}`)
		chunk := "The capital of France is Paris"
		section := extractRelevantSection(content, chunk, 300)
		assert.Equal(t, "The capital of France is Paris, a city on the Seine.", section)
	})

	t.Run("plain text returns a window around the match", func(t *testing.T) {
		padding := strings.Repeat("lorem ipsum ", 50)
		content := []byte(padding + "THE IMPORTANT BIT about cache invalidation. " + padding)
		section := extractRelevantSection(content, "THE IMPORTANT BIT about cache invalidation.", 100)
		assert.Contains(t, section, "THE IMPORTANT BIT")
		assert.Less(t, len(section), len(content))
	})

	t.Run("chunk not found falls back to the chunk text", func(t *testing.T) {
		section := extractRelevantSection([]byte("unrelated content"), "missing chunk text", 100)
		assert.Equal(t, "missing chunk text", section)
	})

	t.Run("empty chunk yields empty section", func(t *testing.T) {
		assert.Empty(t, extractRelevantSection([]byte("content"), "  ", 100))
	})
}
