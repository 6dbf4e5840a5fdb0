// Package rules evaluates user-defined memory rules against conversation
// state and translates matches into typed actions.
//
// Rule condition and action payloads arrive as loose JSON from the catalog.
// Each known rule type decodes into its own variant struct; an unknown type
// logs and no-ops rather than failing the batch.
package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/memoryd/internal/catalog"
)

// Rule types.
const (
	RuleTypeLength  = "length"
	RuleTypeKeyword = "keyword"
	RuleTypeTime    = "time"
)

// Keyword match modes.
const (
	MatchAny = "any"
	MatchAll = "all"
)

// LengthCondition fires when the message count falls within the optional
// bounds. An omitted bound is unconstrained on that side.
type LengthCondition struct {
	MinMessages *int `json:"minMessages,omitempty"`
	MaxMessages *int `json:"maxMessages,omitempty"`
}

// Matches reports whether count satisfies the bounds.
func (c LengthCondition) Matches(count int) bool {
	if c.MinMessages != nil && count < *c.MinMessages {
		return false
	}
	if c.MaxMessages != nil && count > *c.MaxMessages {
		return false
	}
	return true
}

// KeywordCondition fires when message content contains the configured
// keywords. MatchType defaults to "any".
type KeywordCondition struct {
	Keywords  []string `json:"keywords"`
	MatchType string   `json:"matchType,omitempty"`
}

// Matches scans the lower-cased concatenation of all message content.
func (c KeywordCondition) Matches(content string) bool {
	if len(c.Keywords) == 0 {
		return false
	}
	haystack := strings.ToLower(content)
	requireAll := strings.EqualFold(c.MatchType, MatchAll)
	for _, kw := range c.Keywords {
		hit := strings.Contains(haystack, strings.ToLower(kw))
		if requireAll && !hit {
			return false
		}
		if !requireAll && hit {
			return true
		}
	}
	return requireAll
}

// TimeCondition gates firing on a minimum interval since the last time-type
// trigger and an optional weekday allowlist.
type TimeCondition struct {
	Interval   string   `json:"interval,omitempty"`
	DaysOfWeek []string `json:"daysOfWeek,omitempty"`
}

var intervalPattern = regexp.MustCompile(`^(\d+)([smhdw])$`)

// ParseInterval parses interval strings of the form <integer><unit> where
// the unit is one of s, m, h, d, w.
func ParseInterval(s string) (time.Duration, error) {
	m := intervalPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	case "w":
		unit = 7 * 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}

// Matches evaluates the condition at now, given the last time-type trigger
// for the user. An unparseable interval is a per-rule configuration error.
func (c TimeCondition) Matches(now, lastFired time.Time, hasFired bool) (bool, error) {
	if c.Interval != "" {
		interval, err := ParseInterval(c.Interval)
		if err != nil {
			return false, err
		}
		if hasFired && now.Sub(lastFired) < interval {
			return false, nil
		}
	}
	if len(c.DaysOfWeek) > 0 {
		today := now.Weekday().String()
		allowed := false
		for _, day := range c.DaysOfWeek {
			if strings.EqualFold(day, today) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, nil
		}
	}
	return true, nil
}

// decodeCondition round-trips the loose catalog payload into a typed struct.
func decodeCondition(m catalog.JSONMap, v any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
