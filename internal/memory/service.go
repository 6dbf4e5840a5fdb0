// Package memory implements the conversation save path and the trigger
// action executor.
//
// Saving a conversation is the dual-store write sequence: analyze, write the
// catalog rows, write the transcript blob, index it (chunk, embed, register
// the FileRecord), then evaluate trigger rules. The catalog write comes
// first so that vector entries always reference an existing conversation
// row.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoryd/internal/blob"
	"github.com/fyrsmithlabs/memoryd/internal/catalog"
	"github.com/fyrsmithlabs/memoryd/internal/indexer"
	"github.com/fyrsmithlabs/memoryd/internal/logging"
	"github.com/fyrsmithlabs/memoryd/internal/notify"
	"github.com/fyrsmithlabs/memoryd/internal/rules"
	"github.com/fyrsmithlabs/memoryd/internal/textintel"
)

var tracer = otel.Tracer("memoryd.memory")

// ErrNotFound is returned when a conversation does not exist or does not
// belong to the requesting user.
var ErrNotFound = errors.New("conversation not found")

// IncomingMessage is one turn of an inbound conversation.
type IncomingMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config holds memory service configuration.
type Config struct {
	// BackupCategory is the blob category backup actions write to when a
	// rule names no destination.
	BackupCategory string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BackupCategory == "" {
		c.BackupCategory = "backups"
	}
}

// Service owns conversation persistence, summary generation, and trigger
// action execution.
type Service struct {
	catalog  catalog.Catalog
	blobs    blob.Store
	indexer  *indexer.Service
	intel    textintel.Intelligence
	notifier notify.Publisher
	rules    *rules.Engine
	logger   *logging.Logger
	config   Config
	now      func() time.Time
}

// NewService creates the memory service. intel may be nil, disabling
// analysis and summary generation; notifier may be nil, disabling notify
// actions.
func NewService(cat catalog.Catalog, blobs blob.Store, idx *indexer.Service, intel textintel.Intelligence, notifier notify.Publisher, logger *logging.Logger, config Config) *Service {
	config.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	svc := &Service{
		catalog:  cat,
		blobs:    blobs,
		indexer:  idx,
		intel:    intel,
		notifier: notifier,
		logger:   logger.Named("memory"),
		config:   config,
		now:      time.Now,
	}
	svc.rules = rules.NewEngine(cat, svc, logger)
	return svc
}

// SaveConversation persists a conversation end to end and evaluates the
// user's trigger rules against it.
//
// Catalog, blob, and index writes are primary-path: a failure propagates and
// the save fails. Analysis and trigger evaluation are not: analysis failure
// yields empty metadata, and a trigger engine failure is logged after the
// conversation is already durably saved.
func (s *Service) SaveConversation(ctx context.Context, userID string, msgs []IncomingMessage) (*catalog.Conversation, error) {
	ctx, span := tracer.Start(ctx, "Service.SaveConversation")
	defer span.End()

	if userID == "" || len(msgs) == 0 {
		return nil, fmt.Errorf("%w: user id and messages required", catalog.ErrInvalidInput)
	}

	if err := s.seedDefaultRules(ctx, userID); err != nil {
		return nil, err
	}

	now := s.now()
	conv := &catalog.Conversation{
		ID:           uuid.NewString(),
		UserID:       userID,
		MessageCount: len(msgs),
		TotalTokens:  estimateTokens(msgs),
		Status:       catalog.StatusActive,
		Metadata:     s.analyze(ctx, msgs),
		StartedAt:    now,
	}

	rows := make([]catalog.Message, len(msgs))
	for i, msg := range msgs {
		rows[i] = catalog.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Role:           msg.Role,
			TokenCount:     estimateTokens(msgs[i : i+1]),
			CreatedAt:      now,
		}
	}
	if err := s.catalog.CreateConversation(ctx, conv, rows); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	transcriptPath := blob.UserPath(userID, "conversations", conv.ID+".json", now)
	transcript, err := transcriptJSON(msgs, now)
	if err != nil {
		return nil, fmt.Errorf("encoding transcript: %w", err)
	}
	if err := s.blobs.WriteFile(ctx, transcriptPath, transcript); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("writing transcript: %w", err)
	}

	if err := s.indexer.IndexFile(ctx, transcriptPath, userID, conv.ID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("indexing transcript: %w", err)
	}

	ruleMsgs := make([]rules.Message, len(msgs))
	for i, msg := range msgs {
		ruleMsgs[i] = rules.Message{Role: msg.Role, Content: msg.Content}
	}
	if _, err := s.rules.Evaluate(ctx, conv.ID, ruleMsgs, userID); err != nil {
		s.logger.Warn(ctx, "trigger evaluation failed",
			zap.String("conversation_id", conv.ID), zap.Error(err))
	}

	s.logger.Info(ctx, "saved conversation",
		zap.String("conversation_id", conv.ID),
		zap.Int("messages", len(msgs)))
	return conv, nil
}

// GetConversation retrieves one conversation.
func (s *Service) GetConversation(ctx context.Context, id, userID string) (*catalog.Conversation, error) {
	conv, err := s.catalog.GetConversation(ctx, id, userID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading conversation: %w", err)
	}
	return conv, nil
}

// ListConversations lists the user's conversations, newest first.
func (s *Service) ListConversations(ctx context.Context, userID string, limit, offset int) ([]catalog.Conversation, error) {
	return s.catalog.ListConversations(ctx, userID, limit, offset)
}

// GenerateSummary summarizes a conversation's transcript, persists the
// summary on the conversation row, and writes an indexed summary document.
func (s *Service) GenerateSummary(ctx context.Context, conversationID, userID, style string) (string, error) {
	ctx, span := tracer.Start(ctx, "Service.GenerateSummary")
	defer span.End()

	if s.intel == nil {
		return "", errors.New("text intelligence not configured")
	}
	conv, err := s.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return "", err
	}

	transcript, err := s.readTranscript(ctx, conversationID, userID)
	if err != nil {
		return "", err
	}
	if style == "" {
		style = rules.DefaultSummaryStyle
	}

	summary, err := s.intel.Complete(ctx, summaryPrompt(style, transcript))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("generating summary: %w", err)
	}
	summary = strings.TrimSpace(summary)

	conv.Summary = summary
	if err := s.catalog.UpdateConversation(ctx, conv); err != nil {
		return "", fmt.Errorf("persisting summary: %w", err)
	}

	now := s.now()
	summaryPath := blob.UserPath(userID, "summaries", conversationID+"_summary.md", now)
	doc := fmt.Sprintf("# Summary of conversation %s\n\n%s\n", conversationID, summary)
	if err := s.blobs.WriteFile(ctx, summaryPath, []byte(doc)); err != nil {
		return "", fmt.Errorf("writing summary document: %w", err)
	}
	if err := s.indexer.IndexFile(ctx, summaryPath, userID, conversationID); err != nil {
		return "", fmt.Errorf("indexing summary: %w", err)
	}

	s.logger.Info(ctx, "generated summary",
		zap.String("conversation_id", conversationID),
		zap.String("style", style))
	return summary, nil
}

// WriteBlob stores raw uploaded content. The path must fall inside the
// user's blob namespace.
func (s *Service) WriteBlob(ctx context.Context, userID, path string, content []byte) error {
	if !strings.HasPrefix(path, blob.UserRoot(userID)+"/") {
		return fmt.Errorf("%w: path outside user namespace", blob.ErrInvalidPath)
	}
	return s.blobs.WriteFile(ctx, path, content)
}

// ListRules returns the user's rules.
func (s *Service) ListRules(ctx context.Context, userID string, activeOnly bool) ([]catalog.MemoryRule, error) {
	return s.catalog.ListRules(ctx, userID, activeOnly)
}

// CreateRule validates and stores a rule.
func (s *Service) CreateRule(ctx context.Context, rule *catalog.MemoryRule) error {
	switch rule.RuleType {
	case rules.RuleTypeLength, rules.RuleTypeKeyword, rules.RuleTypeTime:
	default:
		return fmt.Errorf("%w: unknown rule type %q", catalog.ErrInvalidInput, rule.RuleType)
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	return s.catalog.CreateRule(ctx, rule)
}

// seedDefaultRules installs the default rule set for a user who has none.
func (s *Service) seedDefaultRules(ctx context.Context, userID string) error {
	existing, err := s.catalog.ListRules(ctx, userID, false)
	if err != nil {
		return fmt.Errorf("listing rules: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, rule := range rules.DefaultRules(userID) {
		rule := rule
		if err := s.catalog.CreateRule(ctx, &rule); err != nil {
			return fmt.Errorf("seeding default rules: %w", err)
		}
	}
	s.logger.Info(ctx, "seeded default rules", zap.String("user_id", userID))
	return nil
}

// analyze extracts topical metadata from the conversation. Fail-open: any
// failure yields nil metadata, never an error.
func (s *Service) analyze(ctx context.Context, msgs []IncomingMessage) catalog.JSONMap {
	if s.intel == nil {
		return nil
	}
	var out struct {
		Topics            []string `json:"topics"`
		Sentiment         string   `json:"sentiment"`
		KeyPoints         []string `json:"keyPoints"`
		ActionItems       []string `json:"actionItems"`
		FollowUpQuestions []string `json:"followUpQuestions"`
	}
	if err := s.intel.ExtractJSON(ctx, analysisPrompt(msgs), &out); err != nil {
		s.logger.Warn(ctx, "conversation analysis failed", zap.Error(err))
		return nil
	}
	return catalog.JSONMap{
		"topics":              out.Topics,
		"sentiment":           out.Sentiment,
		"key_points":          out.KeyPoints,
		"action_items":        out.ActionItems,
		"follow_up_questions": out.FollowUpQuestions,
	}
}

// readTranscript locates the conversation's transcript blob via its
// FileRecord and returns the raw content.
func (s *Service) readTranscript(ctx context.Context, conversationID, userID string) (string, error) {
	recs, err := s.catalog.QueryFileRecords(ctx, userID, catalog.FileQuery{
		ConversationID: conversationID,
		FileType:       indexer.FileTypeConversation,
		Limit:          1,
	})
	if err != nil {
		return "", fmt.Errorf("locating transcript: %w", err)
	}
	if len(recs) == 0 {
		return "", ErrNotFound
	}
	content, err := s.blobs.ReadFile(ctx, recs[0].FilePath)
	if err != nil {
		return "", fmt.Errorf("reading transcript: %w", err)
	}
	return string(content), nil
}

func transcriptJSON(msgs []IncomingMessage, ts time.Time) ([]byte, error) {
	doc := struct {
		Timestamp string            `json:"timestamp"`
		Messages  []IncomingMessage `json:"messages"`
	}{
		Timestamp: ts.Format(time.RFC3339),
		Messages:  msgs,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// estimateTokens approximates token counts at four characters per token.
func estimateTokens(msgs []IncomingMessage) int {
	chars := 0
	for _, msg := range msgs {
		chars += len(msg.Content)
	}
	return chars / 4
}

func summaryPrompt(style, transcript string) string {
	return fmt.Sprintf(`Summarize the following conversation in a %s style.
Return only the summary text.

%s`, style, transcript)
}

func analysisPrompt(msgs []IncomingMessage) string {
	var sb strings.Builder
	sb.WriteString(`Analyze the following conversation. Respond with JSON only:
{"topics": [...], "sentiment": "...", "keyPoints": [...], "actionItems": [...], "followUpQuestions": [...]}

`)
	for _, msg := range msgs {
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
