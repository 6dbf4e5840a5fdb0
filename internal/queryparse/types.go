// Package queryparse classifies free-text queries into search intents.
//
// Classification is deterministic pattern rules first, in a fixed priority
// order, then a model-based structured extraction, and finally fails open to
// plain semantic search. Parse never returns an error: a query that cannot
// be classified is still a query that can be searched by meaning.
package queryparse

import "time"

// IntentType is the classified shape of a query.
type IntentType string

const (
	// IntentSemantic searches by meaning in the vector index.
	IntentSemantic IntentType = "semantic"
	// IntentStructured filters the metadata catalog.
	IntentStructured IntentType = "structured"
	// IntentHybrid runs both and merges.
	IntentHybrid IntentType = "hybrid"
)

// DateRange is an inclusive time window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Filters are the structured predicates extracted from a query.
type Filters struct {
	FileType       string     `json:"fileType,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	DateRange      *DateRange `json:"dateRange,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
}

// Intent is the parsed form of a query.
type Intent struct {
	Type        IntentType `json:"type"`
	Query       string     `json:"query,omitempty"`
	Filters     Filters    `json:"filters,omitempty"`
	Aggregation string     `json:"aggregation,omitempty"`
	GroupBy     string     `json:"groupBy,omitempty"`
}

// Semantic returns a plain semantic intent for the raw query text. This is
// the fail-open default.
func Semantic(query string) Intent {
	return Intent{Type: IntentSemantic, Query: query}
}
