package indexer

import (
	"encoding/json"
	"path"
	"strings"
)

// File types recognized by the indexer.
const (
	FileTypeConversation = "conversation"
	FileTypeSummary      = "summary"
	FileTypeProposal     = "proposal"
	FileTypeAgent        = "agent"
	FileTypeDocument     = "document"
	FileTypeUnknown      = "unknown"
)

// classifier inspects a path and content and reports a file type if it can
// decide. Classifiers are pure and checked in order; the first match wins.
type classifier func(filePath string, content []byte) (string, bool)

// classifiers in priority order: path-segment convention, structural sniff,
// extension fallback.
var classifiers = []classifier{
	classifyByPathSegment,
	classifyByStructure,
	classifyByExtension,
}

// ClassifyFile determines the file type for a path and its content.
func ClassifyFile(filePath string, content []byte) string {
	for _, c := range classifiers {
		if t, ok := c(filePath, content); ok {
			return t
		}
	}
	return FileTypeUnknown
}

var pathSegmentTypes = map[string]string{
	"conversations": FileTypeConversation,
	"summaries":     FileTypeSummary,
	"proposals":     FileTypeProposal,
	"agents":        FileTypeAgent,
}

func classifyByPathSegment(filePath string, _ []byte) (string, bool) {
	for _, segment := range strings.Split(filePath, "/") {
		if t, ok := pathSegmentTypes[segment]; ok {
			return t, true
		}
	}
	return "", false
}

// classifyByStructure speculatively parses JSON content: a top-level
// "messages" array marks a conversation, a "proposal" or "content" field
// marks a proposal.
func classifyByStructure(_ string, content []byte) (string, bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(content, &doc); err != nil {
		return "", false
	}
	if raw, ok := doc["messages"]; ok {
		var msgs []json.RawMessage
		if err := json.Unmarshal(raw, &msgs); err == nil {
			return FileTypeConversation, true
		}
	}
	if _, ok := doc["proposal"]; ok {
		return FileTypeProposal, true
	}
	if _, ok := doc["content"]; ok {
		return FileTypeProposal, true
	}
	return "", false
}

func classifyByExtension(filePath string, _ []byte) (string, bool) {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".json", ".md", ".txt":
		return FileTypeDocument, true
	}
	return "", false
}
