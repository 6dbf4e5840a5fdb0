package memory

import (
	"context"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/memoryd/internal/blob"
	"github.com/fyrsmithlabs/memoryd/internal/notify"
	"github.com/fyrsmithlabs/memoryd/internal/rules"
)

// Execute runs one translated trigger action. It implements rules.Executor.
func (s *Service) Execute(ctx context.Context, userID, conversationID string, action rules.Action) error {
	switch action.Type {
	case rules.ActionGenerateSummary:
		style := rules.DefaultSummaryStyle
		if action.Summary != nil && action.Summary.Style != "" {
			style = action.Summary.Style
		}
		_, err := s.GenerateSummary(ctx, conversationID, userID, style)
		return err

	case rules.ActionTag:
		if action.Tag == nil || len(action.Tag.Tags) == 0 {
			return nil
		}
		return s.tagConversation(ctx, userID, conversationID, action.Tag.Tags)

	case rules.ActionNotify:
		if s.notifier == nil {
			return nil
		}
		n := notify.Notification{
			UserID:         userID,
			ConversationID: conversationID,
			Message:        fmt.Sprintf("rule %s fired for conversation %s", action.RuleID, conversationID),
		}
		if action.Notify != nil {
			if action.Notify.Subject != "" {
				n.Subject = action.Notify.Subject
			}
			if action.Notify.Message != "" {
				n.Message = action.Notify.Message
			}
		}
		return s.notifier.Publish(ctx, n)

	case rules.ActionBackup:
		dest := s.config.BackupCategory
		if action.Backup != nil && action.Backup.Destination != "" {
			dest = action.Backup.Destination
		}
		return s.copyTranscript(ctx, userID, conversationID, dest, conversationID+".json")

	case rules.ActionExport:
		// Exports only support JSON; the transcript is already JSON so the
		// copy is verbatim.
		return s.copyTranscript(ctx, userID, conversationID, "exports", conversationID+"_export.json")

	default:
		s.logger.Warn(ctx, "ignoring unknown action type",
			zap.String("action", string(action.Type)))
		return nil
	}
}

// tagConversation upserts each tag and links it to the conversation. Tag
// upserts are independent and run concurrently.
func (s *Service) tagConversation(ctx context.Context, userID, conversationID string, tags []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range tags {
		name := name
		g.Go(func() error {
			tag, err := s.catalog.UpsertTag(gctx, userID, name)
			if err != nil {
				return fmt.Errorf("upserting tag %q: %w", name, err)
			}
			if err := s.catalog.TagConversation(gctx, conversationID, tag.ID); err != nil {
				return fmt.Errorf("tagging conversation with %q: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// copyTranscript writes a copy of the conversation transcript under the
// given blob category.
func (s *Service) copyTranscript(ctx context.Context, userID, conversationID, category, filename string) error {
	transcript, err := s.readTranscript(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	dest := blob.UserPath(userID, path.Clean(category), filename, time.Now())
	if err := s.blobs.WriteFile(ctx, dest, []byte(transcript)); err != nil {
		return fmt.Errorf("writing %s copy: %w", category, err)
	}
	return nil
}
