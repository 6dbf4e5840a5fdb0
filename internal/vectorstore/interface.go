// Package vectorstore provides the vector index capability for memoryd.
//
// The index holds one entry per content chunk with metadata describing the
// owning file (file_path, user_id, file_type, chunk_index, conversation_id,
// tags, timestamp). It is a derived projection: the catalog's FileRecord
// vector id list is the authoritative file-to-chunk mapping, and the whole
// index can be rebuilt by re-indexing.
//
// Every search is fail-closed on user scoping: a filter without user_id is
// rejected rather than silently searching across users.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates the backing index is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector index")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrMissingUserScope is returned when a search filter lacks user_id.
	ErrMissingUserScope = errors.New("search filter must include user_id")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Document is a chunk to be stored in the vector index.
type Document struct {
	// ID is the logical chunk id, {checksum}_chunk_{index}. Stable for
	// unchanged content, so re-upserting overwrites instead of duplicating.
	ID string

	// Content is the chunk text.
	Content string

	// Metadata carries filterable attributes. user_id is mandatory.
	Metadata map[string]any
}

// SearchResult is one similarity hit.
type SearchResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]any
}

// Store is the vector index capability.
type Store interface {
	// Upsert embeds and stores documents. Existing ids are overwritten.
	Upsert(ctx context.Context, docs []Document) error

	// Search returns up to k hits for the query, highest score first.
	// filters are metadata equality predicates and MUST include user_id.
	Search(ctx context.Context, query string, k int, filters map[string]any) ([]SearchResult, error)

	// Delete removes documents by logical id. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Close releases backing resources.
	Close() error
}

// requireUserScope validates the mandatory user_id filter.
func requireUserScope(filters map[string]any) error {
	if v, ok := filters["user_id"].(string); !ok || v == "" {
		return ErrMissingUserScope
	}
	return nil
}
