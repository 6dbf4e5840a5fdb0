package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestLengthCondition(t *testing.T) {
	t.Run("min bound is inclusive", func(t *testing.T) {
		cond := LengthCondition{MinMessages: intPtr(10)}
		assert.False(t, cond.Matches(9))
		assert.True(t, cond.Matches(10))
		assert.True(t, cond.Matches(11))
	})

	t.Run("max bound is inclusive", func(t *testing.T) {
		cond := LengthCondition{MaxMessages: intPtr(5)}
		assert.True(t, cond.Matches(5))
		assert.False(t, cond.Matches(6))
	})

	t.Run("no bounds matches everything", func(t *testing.T) {
		assert.True(t, LengthCondition{}.Matches(0))
		assert.True(t, LengthCondition{}.Matches(1000))
	})

	t.Run("both bounds", func(t *testing.T) {
		cond := LengthCondition{MinMessages: intPtr(2), MaxMessages: intPtr(4)}
		assert.False(t, cond.Matches(1))
		assert.True(t, cond.Matches(3))
		assert.False(t, cond.Matches(5))
	})
}

func TestKeywordCondition(t *testing.T) {
	content := "We should file the urgent TODO tomorrow"

	t.Run("any fires on one hit", func(t *testing.T) {
		cond := KeywordCondition{Keywords: []string{"urgent", "missing"}, MatchType: MatchAny}
		assert.True(t, cond.Matches(content))
	})

	t.Run("any is the default match type", func(t *testing.T) {
		cond := KeywordCondition{Keywords: []string{"todo"}}
		assert.True(t, cond.Matches(content))
	})

	t.Run("matching is case-insensitive", func(t *testing.T) {
		cond := KeywordCondition{Keywords: []string{"URGENT"}}
		assert.True(t, cond.Matches(content))
	})

	t.Run("all requires every keyword", func(t *testing.T) {
		cond := KeywordCondition{Keywords: []string{"urgent", "todo"}, MatchType: MatchAll}
		assert.True(t, cond.Matches(content))

		cond.Keywords = []string{"urgent", "absent"}
		assert.False(t, cond.Matches(content))
	})

	t.Run("no keywords never fires", func(t *testing.T) {
		assert.False(t, KeywordCondition{}.Matches(content))
	})
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "30s", want: 30 * time.Second},
		{in: "5m", want: 5 * time.Minute},
		{in: "2h", want: 2 * time.Hour},
		{in: "1d", want: 24 * time.Hour},
		{in: "2w", want: 14 * 24 * time.Hour},
		{in: " 1h ", want: time.Hour},
		{in: "h", wantErr: true},
		{in: "10", wantErr: true},
		{in: "10y", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeCondition(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) // a Sunday

	t.Run("interval gates on last firing", func(t *testing.T) {
		cond := TimeCondition{Interval: "1h"}

		ok, err := cond.Matches(now, now.Add(-30*time.Minute), true)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = cond.Matches(now, now.Add(-2*time.Hour), true)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("never fired passes the interval gate", func(t *testing.T) {
		ok, err := TimeCondition{Interval: "1w"}.Matches(now, time.Time{}, false)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("days of week allowlist", func(t *testing.T) {
		ok, err := TimeCondition{DaysOfWeek: []string{"Sunday"}}.Matches(now, time.Time{}, false)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = TimeCondition{DaysOfWeek: []string{"monday", "friday"}}.Matches(now, time.Time{}, false)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unparseable interval is a configuration error", func(t *testing.T) {
		_, err := TimeCondition{Interval: "soonish"}.Matches(now, time.Time{}, false)
		assert.Error(t, err)
	})

	t.Run("empty condition always fires", func(t *testing.T) {
		ok, err := TimeCondition{}.Matches(now, time.Time{}, false)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
