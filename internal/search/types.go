// Package search executes parsed query intents against the vector index
// and metadata catalog, merges hybrid results, and retrieves blob content.
package search

import (
	"time"

	"github.com/fyrsmithlabs/memoryd/internal/queryparse"
)

// Options tune a search call.
type Options struct {
	Limit     int
	Offset    int
	FileTypes []string
	Tags      []string
	DateRange *queryparse.DateRange
}

// DefaultLimit is the result count when Options.Limit is unset.
const DefaultLimit = 10

// Result is one search hit, fully hydrated with blob content.
type Result struct {
	ID              string         `json:"id"`
	Path            string         `json:"path"`
	FileName        string         `json:"fileName"`
	FileType        string         `json:"fileType"`
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	Summary         string         `json:"summary,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	Score           float64        `json:"score"`
	RelevantSection string         `json:"relevantSection,omitempty"`
}

// Hybrid merge weights: semantic similarity is scaled, structured matches
// contribute a flat additive bonus, files present in both sum.
const (
	semanticWeight  = 1.5
	structuredBonus = 0.5
)
