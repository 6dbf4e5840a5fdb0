package queryparse

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoryd/internal/logging"
	"github.com/fyrsmithlabs/memoryd/internal/textintel"
)

// Pattern rules, checked in priority order. The order is fixed and
// documented: explicit date, relative date, quoted tag, semantic indicator,
// file-type keyword, aggregation. A quoted tag always short-circuits to
// structured; a semantic indicator outranks file-type keywords, so
// "conversations about X" is a semantic query.
var (
	explicitDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	relativeDatePattern = regexp.MustCompile(`(?i)\blast\s+(\d+)\s+(day|week|month)s?\b`)
	quotedTagPattern    = regexp.MustCompile(`(?i)\btag(?:ged)?\s+(?:as\s+|with\s+)?"([^"]+)"`)
	aggregationPattern  = regexp.MustCompile(`(?i)\b(?:count|how many)\b`)
)

// semanticIndicators mark queries that search by meaning.
var semanticIndicators = []string{
	"about", "regarding", "discuss", "related to", "concerning",
	"mentioned", "talked about", "similar to",
}

// fileTypeKeywords map query words to catalog file types.
var fileTypeKeywords = []struct {
	keyword  string
	fileType string
}{
	{"conversations", "conversation"},
	{"conversation", "conversation"},
	{"summaries", "summary"},
	{"summary", "summary"},
	{"proposals", "proposal"},
	{"proposal", "proposal"},
	{"documents", "document"},
	{"document", "document"},
}

// Parser classifies queries.
type Parser struct {
	intel  textintel.Intelligence
	logger *logging.Logger
	now    func() time.Time
}

// NewParser creates a parser. intel may be nil, in which case unmatched
// queries go straight to the semantic fallback.
func NewParser(intel textintel.Intelligence, logger *logging.Logger) *Parser {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Parser{intel: intel, logger: logger, now: time.Now}
}

// Parse classifies text into an Intent. It never fails: extraction errors
// degrade to a semantic intent over the raw text.
func (p *Parser) Parse(ctx context.Context, text string) Intent {
	text = strings.TrimSpace(text)
	if text == "" {
		return Semantic(text)
	}

	if intent, ok := p.matchPatterns(text); ok {
		return intent
	}

	if p.intel != nil {
		if intent, err := p.extract(ctx, text); err == nil {
			return intent
		} else {
			p.logger.Warn(ctx, "query extraction failed, falling back to semantic",
				zap.Error(err))
		}
	}

	return Semantic(text)
}

// matchPatterns applies the deterministic rules. First satisfied category
// wins; categories are not merged.
func (p *Parser) matchPatterns(text string) (Intent, bool) {
	if m := explicitDatePattern.FindStringSubmatch(text); m != nil {
		day, err := time.Parse("2006-01-02", m[0])
		if err == nil {
			return Intent{
				Type:  IntentStructured,
				Query: text,
				Filters: Filters{DateRange: &DateRange{
					Start: day,
					End:   day.Add(24*time.Hour - time.Nanosecond),
				}},
			}, true
		}
	}

	if m := relativeDatePattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			end := p.now()
			var start time.Time
			switch strings.ToLower(m[2]) {
			case "day":
				start = end.AddDate(0, 0, -n)
			case "week":
				start = end.AddDate(0, 0, -7*n)
			case "month":
				start = end.AddDate(0, -n, 0)
			}
			return Intent{
				Type:    IntentStructured,
				Query:   text,
				Filters: Filters{DateRange: &DateRange{Start: start, End: end}},
			}, true
		}
	}

	if m := quotedTagPattern.FindStringSubmatch(text); m != nil {
		return Intent{
			Type:    IntentStructured,
			Query:   text,
			Filters: Filters{Tags: []string{m[1]}},
		}, true
	}

	lower := strings.ToLower(text)
	for _, indicator := range semanticIndicators {
		if strings.Contains(lower, indicator) {
			return Semantic(text), true
		}
	}

	for _, ft := range fileTypeKeywords {
		if containsWord(lower, ft.keyword) {
			return Intent{
				Type:    IntentStructured,
				Query:   text,
				Filters: Filters{FileType: ft.fileType},
			}, true
		}
	}

	if aggregationPattern.MatchString(text) {
		return Intent{Type: IntentStructured, Query: text, Aggregation: "count"}, true
	}

	return Intent{}, false
}

const extractPromptTemplate = `Classify the search query below for a personal memory store.

Respond ONLY with a JSON object of this shape:
{
  "type": "semantic" | "structured" | "hybrid",
  "query": "<text to search by meaning, if any>",
  "filters": {
    "fileType": "conversation" | "summary" | "proposal" | "document",
    "tags": ["..."],
    "dateRange": {"start": "RFC3339", "end": "RFC3339"},
    "conversationId": "..."
  },
  "aggregation": "count"
}
Omit fields that do not apply.

Query: %q`

// extract delegates classification to the model, constrained to the Intent
// shape. Any malformed output is an error; the caller fails open.
func (p *Parser) extract(ctx context.Context, text string) (Intent, error) {
	var intent Intent
	prompt := fmt.Sprintf(extractPromptTemplate, text)
	if err := p.intel.ExtractJSON(ctx, prompt, &intent); err != nil {
		return Intent{}, err
	}
	switch intent.Type {
	case IntentSemantic, IntentStructured, IntentHybrid:
	default:
		return Intent{}, fmt.Errorf("%w: unknown intent type %q", textintel.ErrExtractionFailed, intent.Type)
	}
	if intent.Query == "" {
		intent.Query = text
	}
	return intent, nil
}

// containsWord reports whether lower contains keyword as a whole word.
func containsWord(lower, keyword string) bool {
	idx := strings.Index(lower, keyword)
	for idx >= 0 {
		before := idx == 0 || !isWordChar(lower[idx-1])
		afterIdx := idx + len(keyword)
		after := afterIdx == len(lower) || !isWordChar(lower[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(lower[idx+1:], keyword)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
