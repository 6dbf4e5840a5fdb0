package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/memoryd/internal/blob"
	"github.com/fyrsmithlabs/memoryd/internal/catalog"
	"github.com/fyrsmithlabs/memoryd/internal/logging"
	"github.com/fyrsmithlabs/memoryd/internal/queryparse"
	"github.com/fyrsmithlabs/memoryd/internal/vectorstore"
)

var tracer = otel.Tracer("memoryd.search")

// ErrNotFound is returned when a requested file does not exist or does not
// belong to the requesting user. The two cases are indistinguishable to
// prevent path enumeration.
var ErrNotFound = errors.New("file not found")

// chunkOverfetch multiplies the requested limit when querying the vector
// index, since several chunk hits can collapse into one file.
const chunkOverfetch = 4

// Config holds search engine configuration.
type Config struct {
	DefaultLimit  int
	ExcerptWindow int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultLimit
	}
	if c.ExcerptWindow <= 0 {
		c.ExcerptWindow = 300
	}
}

// Engine executes search intents.
type Engine struct {
	parser  *queryparse.Parser
	catalog catalog.Catalog
	blobs   blob.Store
	vectors vectorstore.Store
	logger  *logging.Logger
	config  Config
}

// NewEngine creates a search engine.
func NewEngine(parser *queryparse.Parser, cat catalog.Catalog, blobs blob.Store, vectors vectorstore.Store, logger *logging.Logger, config Config) *Engine {
	config.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		parser:  parser,
		catalog: cat,
		blobs:   blobs,
		vectors: vectors,
		logger:  logger.Named("search"),
		config:  config,
	}
}

// Search parses query and executes the resolved intent for userID.
//
// A completed call appends one SearchQuery analytics row; per-file content
// retrieval refreshes the file's last-accessed timestamp. Both side effects
// are best-effort and never fail the search.
func (e *Engine) Search(ctx context.Context, query, userID string, opts Options) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Engine.Search",
		trace.WithAttributes(attribute.Int("limit", opts.Limit)))
	defer span.End()

	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", catalog.ErrInvalidInput)
	}
	if opts.Limit <= 0 {
		opts.Limit = e.config.DefaultLimit
	}

	start := time.Now()
	intent := e.parser.Parse(ctx, query)
	mergeOptions(&intent, opts)
	span.SetAttributes(attribute.String("intent", string(intent.Type)))

	var results []Result
	var err error
	switch intent.Type {
	case queryparse.IntentStructured:
		results, err = e.structured(ctx, intent, userID, opts)
	case queryparse.IntentHybrid:
		results, err = e.hybrid(ctx, intent, userID, opts)
	default:
		results, err = e.semantic(ctx, intent, userID, opts)
	}

	elapsed := time.Since(start)
	searchesTotal.WithLabelValues(string(intent.Type)).Inc()
	searchDuration.Observe(elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.recordQuery(ctx, userID, query, intent, results, elapsed)
	return results, nil
}

// GetFileByPath retrieves a single file. A path without a catalog entry for
// this user is ErrNotFound regardless of blob state: the catalog is the
// source of truth for existence and authorization.
func (e *Engine) GetFileByPath(ctx context.Context, path, userID string) (*Result, error) {
	rec, err := e.catalog.GetFileRecord(ctx, userID, path)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading file record: %w", err)
	}
	content, err := e.blobs.ReadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	e.touchAccess(ctx, userID, path)
	result := resultFromRecord(rec, string(content), 0)
	return &result, nil
}

// semantic searches the vector index, groups chunk hits by file, and
// hydrates each file from catalog and blob store.
//
// Stale hits are silently excluded: a vector entry whose file has no catalog
// row is treated as leftover from an incomplete removal. A blob read failure
// excludes that file and keeps the rest (partial results).
func (e *Engine) semantic(ctx context.Context, intent queryparse.Intent, userID string, opts Options) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Engine.semantic")
	defer span.End()

	filters := map[string]any{"user_id": userID}
	if intent.Filters.FileType != "" {
		filters["file_type"] = intent.Filters.FileType
	}

	hits, err := e.vectors.Search(ctx, intent.Query, opts.Limit*chunkOverfetch, filters)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	best := bestHitPerFile(hits)
	results := make([]Result, 0, len(best))
	for path, hit := range best {
		rec, err := e.catalog.GetFileRecord(ctx, userID, path)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				e.logger.Debug(ctx, "excluding stale vector hit", zap.String("path", path))
				continue
			}
			return nil, fmt.Errorf("reading file record: %w", err)
		}
		content, err := e.blobs.ReadFile(ctx, path)
		if err != nil {
			e.logger.Warn(ctx, "excluding unreadable file from results",
				zap.String("path", path), zap.Error(err))
			continue
		}
		e.touchAccess(ctx, userID, path)

		result := resultFromRecord(rec, string(content), float64(hit.Score))
		result.RelevantSection = extractRelevantSection(content, hit.Content, e.config.ExcerptWindow)
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// structured filters the catalog and hydrates content for each hit.
func (e *Engine) structured(ctx context.Context, intent queryparse.Intent, userID string, opts Options) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Engine.structured")
	defer span.End()

	q := catalog.FileQuery{
		FileType:       intent.Filters.FileType,
		FileTypes:      opts.FileTypes,
		Tags:           intent.Filters.Tags,
		ConversationID: intent.Filters.ConversationID,
		Limit:          opts.Limit,
		Offset:         opts.Offset,
	}
	if intent.Filters.DateRange != nil {
		q.DateStart = &intent.Filters.DateRange.Start
		q.DateEnd = &intent.Filters.DateRange.End
	}

	recs, err := e.catalog.QueryFileRecords(ctx, userID, q)
	if err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}

	results := make([]Result, 0, len(recs))
	for i := range recs {
		rec := &recs[i]
		content, err := e.blobs.ReadFile(ctx, rec.FilePath)
		if err != nil {
			e.logger.Warn(ctx, "excluding unreadable file from results",
				zap.String("path", rec.FilePath), zap.Error(err))
			continue
		}
		e.touchAccess(ctx, userID, rec.FilePath)
		results = append(results, resultFromRecord(rec, string(content), structuredBonus))
	}
	return results, nil
}

// hybrid runs both legs concurrently and merges by file path. One leg
// returning nothing is not an error; the other leg's results stand alone.
func (e *Engine) hybrid(ctx context.Context, intent queryparse.Intent, userID string, opts Options) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Engine.hybrid")
	defer span.End()

	var semanticResults, structuredResults []Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semanticResults, err = e.semantic(gctx, intent, userID, opts)
		return err
	})
	g.Go(func() error {
		var err error
		structuredResults, err = e.structured(gctx, intent, userID, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeHybrid(semanticResults, structuredResults)
	if len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}
	return merged, nil
}

// recordQuery appends the analytics row. Best-effort: failure is warned,
// never surfaced.
func (e *Engine) recordQuery(ctx context.Context, userID, query string, intent queryparse.Intent, results []Result, elapsed time.Duration) {
	paths := make([]string, len(results))
	for i, r := range results {
		paths[i] = r.Path
	}
	row := &catalog.SearchQuery{
		UserID:    userID,
		Query:     query,
		QueryType: string(intent.Type),
		Paths:     paths,
		ElapsedMS: elapsed.Milliseconds(),
	}
	if err := e.catalog.AppendSearchQuery(ctx, row); err != nil {
		e.logger.Warn(ctx, "failed to record search analytics", zap.Error(err))
	}
}

// touchAccess refreshes last-accessed state. Best-effort.
func (e *Engine) touchAccess(ctx context.Context, userID, path string) {
	if err := e.catalog.TouchFileAccess(ctx, userID, path, time.Now()); err != nil {
		e.logger.Warn(ctx, "failed to record file access",
			zap.String("path", path), zap.Error(err))
	}
}

// bestHitPerFile keeps the highest-scoring chunk per file path.
func bestHitPerFile(hits []vectorstore.SearchResult) map[string]vectorstore.SearchResult {
	best := make(map[string]vectorstore.SearchResult)
	for _, hit := range hits {
		path, _ := hit.Metadata["file_path"].(string)
		if path == "" {
			continue
		}
		if current, ok := best[path]; !ok || hit.Score > current.Score {
			best[path] = hit
		}
	}
	return best
}

// mergeOptions folds caller options into the parsed intent filters. Caller
// options win over extracted filters.
func mergeOptions(intent *queryparse.Intent, opts Options) {
	if len(opts.Tags) > 0 {
		intent.Filters.Tags = opts.Tags
	}
	if opts.DateRange != nil {
		intent.Filters.DateRange = opts.DateRange
	}
	if len(opts.FileTypes) == 1 && intent.Filters.FileType == "" {
		intent.Filters.FileType = opts.FileTypes[0]
	}
}

func resultFromRecord(rec *catalog.FileRecord, content string, score float64) Result {
	return Result{
		ID:        rec.ID,
		Path:      rec.FilePath,
		FileName:  rec.FileName,
		FileType:  rec.FileType,
		Content:   content,
		Metadata:  rec.Metadata,
		Tags:      rec.Tags,
		Summary:   rec.Summary,
		CreatedAt: rec.CreatedAt,
		Score:     score,
	}
}
