// Package indexer keeps the metadata catalog and vector index synchronized
// with blob store content for a given path.
//
// Write ordering is the consistency contract: chunk vectors are upserted
// before the FileRecord that references them, so a FileRecord never claims
// vector ids that were not written. A crash can leave orphaned vectors
// (recovered by re-indexing or removal); it can never leave a dangling
// FileRecord.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoryd/internal/blob"
	"github.com/fyrsmithlabs/memoryd/internal/catalog"
	"github.com/fyrsmithlabs/memoryd/internal/logging"
	"github.com/fyrsmithlabs/memoryd/internal/vectorstore"
)

// DefaultBatchSize bounds the number of chunks per vector upsert request.
const DefaultBatchSize = 100

// Config holds indexing configuration.
type Config struct {
	MaxChunkSize int
	BatchSize    int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = DefaultMaxChunkSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// Service indexes blob content into the catalog and vector index.
type Service struct {
	blobs   blob.Store
	catalog catalog.Catalog
	vectors vectorstore.Store
	logger  *logging.Logger
	config  Config
}

// NewService creates an indexer service.
func NewService(blobs blob.Store, cat catalog.Catalog, vectors vectorstore.Store, logger *logging.Logger, config Config) *Service {
	config.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		blobs:   blobs,
		catalog: cat,
		vectors: vectors,
		logger:  logger.Named("indexer"),
		config:  config,
	}
}

// ChunkID builds the logical vector id for a chunk.
func ChunkID(checksum string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", checksum, index)
}

// IndexFile reads path from the blob store and synchronizes the catalog and
// vector index with its content. conversationID may be empty.
//
// Re-indexing an unchanged path is cheap: the content checksum matches the
// existing FileRecord and embedding is skipped. Changed content replaces
// the record's vector id list; it is never appended to.
func (s *Service) IndexFile(ctx context.Context, filePath, userID, conversationID string) error {
	if filePath == "" || userID == "" {
		return fmt.Errorf("%w: file path and user id required", catalog.ErrInvalidInput)
	}

	content, err := s.blobs.ReadFile(ctx, filePath)
	if err != nil {
		return fmt.Errorf("reading blob: %w", err)
	}
	stat, err := s.blobs.Stat(ctx, filePath)
	if err != nil {
		return fmt.Errorf("stat blob: %w", err)
	}

	sum := sha256.Sum256(content)
	checksum := hex.EncodeToString(sum[:])

	existing, err := s.catalog.GetFileRecord(ctx, userID, filePath)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("reading file record: %w", err)
	}
	if existing != nil && existing.Checksum == checksum && len(existing.VectorIDs) > 0 {
		existing.IndexedAt = time.Now()
		if err := s.catalog.UpsertFileRecord(ctx, existing); err != nil {
			return fmt.Errorf("refreshing file record: %w", err)
		}
		s.logger.Debug(ctx, "content unchanged, skipping re-embed",
			zap.String("path", filePath))
		return nil
	}

	fileType := ClassifyFile(filePath, content)
	meta := ExtractMetadata(fileType, content)

	chunks := SplitIntoChunks(string(content), s.config.MaxChunkSize)
	vectorIDs := make([]string, len(chunks))
	now := time.Now()

	for start := 0; start < len(chunks); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		docs := make([]vectorstore.Document, 0, end-start)
		for i := start; i < end; i++ {
			id := ChunkID(checksum, i)
			vectorIDs[i] = id
			docs = append(docs, vectorstore.Document{
				ID:      id,
				Content: chunks[i],
				Metadata: map[string]any{
					"file_path":       filePath,
					"user_id":         userID,
					"file_type":       fileType,
					"chunk_index":     i,
					"conversation_id": conversationID,
					"tags":            strings.Join(meta.Tags, ","),
					"timestamp":       now.Format(time.RFC3339),
				},
			})
		}
		// Vector upsert failure propagates before the catalog write: a
		// FileRecord must never point at vectors that were not written.
		if err := s.vectors.Upsert(ctx, docs); err != nil {
			indexErrors.Inc()
			return fmt.Errorf("upserting chunk batch %d-%d: %w", start, end, err)
		}
	}

	rec := &catalog.FileRecord{
		UserID:     userID,
		FilePath:   filePath,
		FileName:   path.Base(filePath),
		FolderPath: path.Dir(filePath),
		FileType:   fileType,
		Size:       stat.Size,
		Checksum:   checksum,
		Title:      meta.Title,
		Summary:    meta.Summary,
		Tags:       meta.Tags,
		Metadata:   meta.Extra,
		VectorIDs:  vectorIDs,
		ModifiedAt: stat.Modified,
		IndexedAt:  now,
	}
	if conversationID != "" {
		rec.ConversationID = &conversationID
	}
	if err := s.catalog.UpsertFileRecord(ctx, rec); err != nil {
		indexErrors.Inc()
		return fmt.Errorf("upserting file record: %w", err)
	}

	// Old chunks from a previous content version are now unreferenced.
	// Cleanup is best-effort: leftovers are stale vector hits, which search
	// already tolerates.
	if existing != nil {
		if stale := staleIDs(existing.VectorIDs, vectorIDs); len(stale) > 0 {
			if err := s.vectors.Delete(ctx, stale); err != nil {
				s.logger.Warn(ctx, "failed to delete stale chunks",
					zap.String("path", filePath),
					zap.Int("count", len(stale)),
					zap.Error(err))
			}
		}
	}

	filesIndexed.Inc()
	chunksEmbedded.Add(float64(len(chunks)))
	s.logger.Info(ctx, "indexed file",
		zap.String("path", filePath),
		zap.String("file_type", fileType),
		zap.Int("chunks", len(chunks)))
	return nil
}

// RemoveFile removes a path from the vector index and catalog. A path with
// no FileRecord is a no-op.
//
// Vectors are deleted before the FileRecord so a failure cannot leave a
// record claiming vectors that are gone.
func (s *Service) RemoveFile(ctx context.Context, filePath, userID string) error {
	rec, err := s.catalog.GetFileRecord(ctx, userID, filePath)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("reading file record: %w", err)
	}

	if len(rec.VectorIDs) > 0 {
		if err := s.vectors.Delete(ctx, rec.VectorIDs); err != nil {
			return fmt.Errorf("deleting vectors: %w", err)
		}
	}
	if err := s.catalog.DeleteFileRecord(ctx, userID, filePath); err != nil {
		return fmt.Errorf("deleting file record: %w", err)
	}

	s.logger.Info(ctx, "removed file from index", zap.String("path", filePath))
	return nil
}

// ReindexUser walks a user's blob namespace and indexes every file.
// Individual file failures are logged and skipped; the walk continues.
func (s *Service) ReindexUser(ctx context.Context, userID string) (int, error) {
	indexed := 0
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := s.blobs.List(ctx, dir)
		if err != nil {
			if errors.Is(err, blob.ErrNotExist) {
				return nil
			}
			return err
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if entry.IsDir {
				if err := walk(entry.Path); err != nil {
					return err
				}
				continue
			}
			if err := s.IndexFile(ctx, entry.Path, userID, ""); err != nil {
				s.logger.Warn(ctx, "reindex: skipping file",
					zap.String("path", entry.Path), zap.Error(err))
				continue
			}
			indexed++
		}
		return nil
	}
	if err := walk(blob.UserRoot(userID)); err != nil {
		return indexed, fmt.Errorf("walking user namespace: %w", err)
	}
	return indexed, nil
}

// staleIDs returns ids in old that are absent from current.
func staleIDs(old, current []string) []string {
	keep := make(map[string]struct{}, len(current))
	for _, id := range current {
		keep[id] = struct{}{}
	}
	var stale []string
	for _, id := range old {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}
