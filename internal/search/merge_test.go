package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeHybrid(t *testing.T) {
	t.Run("file in both legs sums both contributions", func(t *testing.T) {
		semantic := []Result{{Path: "/a", Score: 0.8}}
		structured := []Result{{Path: "/a", Score: structuredBonus}}

		merged := mergeHybrid(semantic, structured)
		require.Len(t, merged, 1)
		assert.InDelta(t, 0.8*1.5+0.5, merged[0].Score, 1e-9)
	})

	t.Run("structured-only file scores the flat bonus", func(t *testing.T) {
		merged := mergeHybrid(nil, []Result{{Path: "/b", Score: structuredBonus}})
		require.Len(t, merged, 1)
		assert.InDelta(t, 0.5, merged[0].Score, 1e-9)
	})

	t.Run("semantic-only file keeps the scaled score", func(t *testing.T) {
		merged := mergeHybrid([]Result{{Path: "/c", Score: 0.6}}, nil)
		require.Len(t, merged, 1)
		assert.InDelta(t, 0.9, merged[0].Score, 1e-9)
	})

	t.Run("both-legs file outranks either leg alone", func(t *testing.T) {
		semantic := []Result{
			{Path: "/both", Score: 0.5},
			{Path: "/sem-only", Score: 0.9},
		}
		structured := []Result{
			{Path: "/both", Score: structuredBonus},
			{Path: "/struct-only", Score: structuredBonus},
		}

		merged := mergeHybrid(semantic, structured)
		require.Len(t, merged, 3)
		assert.Equal(t, "/sem-only", merged[0].Path) // 1.35
		assert.Equal(t, "/both", merged[1].Path)     // 1.25
		assert.Equal(t, "/struct-only", merged[2].Path)
	})

	t.Run("empty legs merge to empty", func(t *testing.T) {
		assert.Empty(t, mergeHybrid(nil, nil))
	})
}
