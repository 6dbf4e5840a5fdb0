package search

import (
	"encoding/json"
	"strings"
)

// chunkProbeLength is how many leading characters of a matched chunk are
// used to locate it inside the original content.
const chunkProbeLength = 40

// extractRelevantSection finds the human-relevant excerpt for a matched
// chunk inside the file's full content.
//
// For JSON conversation content the excerpt is the message whose text
// contains the chunk's opening characters. For plain text it is a window
// around the match offset. When neither locates the chunk, the chunk text
// itself is returned.
func extractRelevantSection(content []byte, chunk string, window int) string {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return ""
	}
	probe := chunk
	if len(probe) > chunkProbeLength {
		probe = probe[:chunkProbeLength]
	}

	if section, ok := excerptFromConversation(content, probe); ok {
		return section
	}
	if section, ok := excerptFromText(string(content), probe, window); ok {
		return section
	}
	return chunk
}

func excerptFromConversation(content []byte, probe string) (string, bool) {
	var doc struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(content, &doc); err != nil || len(doc.Messages) == 0 {
		return "", false
	}
	for _, msg := range doc.Messages {
		if strings.Contains(msg.Content, probe) {
			return msg.Content, true
		}
	}
	return "", false
}

func excerptFromText(text, probe string, window int) (string, bool) {
	idx := strings.Index(text, probe)
	if idx < 0 {
		return "", false
	}
	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := idx + len(probe) + window/2
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end]), true
}
