package indexer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FileMetadata is the type-specific metadata extracted during indexing.
type FileMetadata struct {
	Title   string
	Summary string
	Tags    []string
	Extra   map[string]any
}

const previewLength = 200

// ExtractMetadata pulls title/summary/tags out of content according to the
// classified file type. Extraction never fails: unparseable content falls
// back to raw-text heuristics.
func ExtractMetadata(fileType string, content []byte) FileMetadata {
	switch fileType {
	case FileTypeConversation:
		return extractConversationMetadata(content)
	case FileTypeSummary:
		return extractSummaryMetadata(content)
	case FileTypeProposal:
		return extractProposalMetadata(content)
	default:
		return FileMetadata{Title: firstLine(string(content)), Summary: preview(string(content))}
	}
}

// conversationDoc is the transcript shape written by the save path.
type conversationDoc struct {
	Timestamp string `json:"timestamp"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Tags []string `json:"tags"`
}

func extractConversationMetadata(content []byte) FileMetadata {
	var doc conversationDoc
	if err := json.Unmarshal(content, &doc); err != nil {
		return FileMetadata{Title: "Conversation", Summary: preview(string(content))}
	}

	title := "Conversation"
	if doc.Timestamp != "" {
		title = fmt.Sprintf("Conversation %s", doc.Timestamp)
	}

	summary := ""
	for _, msg := range doc.Messages {
		if msg.Role == "user" && strings.TrimSpace(msg.Content) != "" {
			summary = preview(msg.Content)
			break
		}
	}

	return FileMetadata{
		Title:   title,
		Summary: summary,
		Tags:    doc.Tags,
		Extra:   map[string]any{"message_count": len(doc.Messages)},
	}
}

func extractSummaryMetadata(content []byte) FileMetadata {
	text := string(content)
	title := "Summary"
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			title = strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
		break
	}
	return FileMetadata{Title: title, Summary: preview(text)}
}

// proposalDoc is the JSON shape of stored proposals.
type proposalDoc struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Proposal string   `json:"proposal"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
}

func extractProposalMetadata(content []byte) FileMetadata {
	var doc proposalDoc
	if err := json.Unmarshal(content, &doc); err != nil {
		// Raw-text proposal: first line is the title.
		text := string(content)
		return FileMetadata{Title: firstLine(text), Summary: preview(text)}
	}

	title := doc.Title
	if title == "" {
		title = "Proposal"
	}
	summary := doc.Summary
	if summary == "" {
		body := doc.Proposal
		if body == "" {
			body = doc.Content
		}
		summary = preview(body)
	}
	return FileMetadata{Title: title, Summary: summary, Tags: doc.Tags}
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= previewLength {
		return text
	}
	return text[:previewLength] + "..."
}
