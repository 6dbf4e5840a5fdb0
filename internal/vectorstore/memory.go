package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store using brute-force cosine similarity.
// It exists for tests and ephemeral single-process use; it holds every
// vector in RAM and scans linearly on search.
type MemoryStore struct {
	mu       sync.RWMutex
	embedder Embedder
	docs     map[string]memoryDoc
}

type memoryDoc struct {
	doc    Document
	vector []float32
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore(embedder Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder, docs: make(map[string]memoryDoc)}
}

func (s *MemoryStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range docs {
		s.docs[doc.ID] = memoryDoc{doc: doc, vector: vectors[i]}
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, query string, k int, filters map[string]any) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if err := requireUserScope(filters); err != nil {
		return nil, err
	}
	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SearchResult
	for _, md := range s.docs {
		if !matchesFilters(md.doc.Metadata, filters) {
			continue
		}
		out = append(out, SearchResult{
			ID:       md.doc.ID,
			Content:  md.doc.Content,
			Score:    cosineSimilarity(queryVector, md.vector),
			Metadata: md.doc.Metadata,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored documents. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func matchesFilters(metadata, filters map[string]any) bool {
	for k, want := range filters {
		if fmt.Sprintf("%v", metadata[k]) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
