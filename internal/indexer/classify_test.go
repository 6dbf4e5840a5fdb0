package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFile(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    string
	}{
		{
			name: "conversations path segment",
			path: "/users/u1/conversations/2026/08/abc.json",
			want: FileTypeConversation,
		},
		{
			name: "summaries path segment",
			path: "/users/u1/summaries/2026/08/abc_summary.md",
			want: FileTypeSummary,
		},
		{
			name: "proposals path segment",
			path: "/users/u1/proposals/p1.json",
			want: FileTypeProposal,
		},
		{
			name: "agents path segment",
			path: "/users/u1/agents/job.json",
			want: FileTypeAgent,
		},
		{
			name:    "json with messages array",
			path:    "/users/u1/misc/x.dat",
			content: `{"messages": [{"role": "user", "content": "hi"}]}`,
			want:    FileTypeConversation,
		},
		{
			name:    "json with proposal field",
			path:    "/users/u1/misc/x.dat",
			content: `{"proposal": "do the thing"}`,
			want:    FileTypeProposal,
		},
		{
			name:    "json with content field",
			path:    "/users/u1/misc/x.dat",
			content: `{"content": "body"}`,
			want:    FileTypeProposal,
		},
		{
			name: "markdown extension fallback",
			path: "/users/u1/misc/notes.md",
			want: FileTypeDocument,
		},
		{
			name: "txt extension fallback",
			path: "/users/u1/misc/notes.TXT",
			want: FileTypeDocument,
		},
		{
			name: "no signal at all",
			path: "/users/u1/misc/blob.bin",
			want: FileTypeUnknown,
		},
		{
			name:    "path segment outranks structure",
			path:    "/users/u1/summaries/odd.json",
			content: `{"messages": []}`,
			want:    FileTypeSummary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFile(tt.path, []byte(tt.content)))
		})
	}
}
