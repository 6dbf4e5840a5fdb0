package rules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoryd/internal/catalog"
	"github.com/fyrsmithlabs/memoryd/internal/logging"
)

var tracer = otel.Tracer("memoryd.rules")

// Message is the conversation turn shape the engine evaluates against.
type Message struct {
	Role    string
	Content string
}

// Executor runs one translated action. Implementations are provided by the
// memory service, which owns the capabilities actions need.
type Executor interface {
	Execute(ctx context.Context, userID, conversationID string, action Action) error
}

// Engine evaluates a user's active rules against a saved conversation.
type Engine struct {
	catalog catalog.Catalog
	exec    Executor
	logger  *logging.Logger
	now     func() time.Time
}

// NewEngine creates a rule engine. exec may be nil, in which case matched
// actions are returned but not executed.
func NewEngine(cat catalog.Catalog, exec Executor, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		catalog: cat,
		exec:    exec,
		logger:  logger.Named("rules"),
		now:     time.Now,
	}
}

// Evaluate runs every active rule the user owns against the conversation.
//
// Each fired rule appends one MemoryTrigger audit row before its actions
// run. A rule with unparseable configuration is skipped with a warning; it
// never aborts the batch. Action execution is best-effort per action.
func (e *Engine) Evaluate(ctx context.Context, conversationID string, msgs []Message, userID string) ([]Action, error) {
	ctx, span := tracer.Start(ctx, "Engine.Evaluate")
	defer span.End()

	rules, err := e.catalog.ListRules(ctx, userID, true)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("listing rules: %w", err)
	}

	var fired []Action
	for i := range rules {
		rule := &rules[i]
		matched, err := e.evaluateRule(ctx, rule, msgs, userID)
		if err != nil {
			e.logger.Warn(ctx, "skipping misconfigured rule",
				zap.String("rule_id", rule.ID),
				zap.String("rule_type", rule.RuleType),
				zap.Error(err))
			continue
		}
		if !matched {
			continue
		}

		if err := e.recordTrigger(ctx, rule, userID, conversationID); err != nil {
			return fired, fmt.Errorf("recording trigger for rule %s: %w", rule.ID, err)
		}

		actions, unknown := translateActions(rule.ID, rule.Action)
		for _, u := range unknown {
			e.logger.Warn(ctx, "ignoring unknown action type",
				zap.String("rule_id", rule.ID), zap.String("action", u))
		}
		e.execute(ctx, userID, conversationID, actions)
		fired = append(fired, actions...)
	}

	triggersEvaluated.Add(float64(len(rules)))
	return fired, nil
}

func (e *Engine) evaluateRule(ctx context.Context, rule *catalog.MemoryRule, msgs []Message, userID string) (bool, error) {
	switch rule.RuleType {
	case RuleTypeLength:
		var cond LengthCondition
		if err := decodeCondition(rule.Condition, &cond); err != nil {
			return false, err
		}
		return cond.Matches(len(msgs)), nil

	case RuleTypeKeyword:
		var cond KeywordCondition
		if err := decodeCondition(rule.Condition, &cond); err != nil {
			return false, err
		}
		var sb strings.Builder
		for _, msg := range msgs {
			sb.WriteString(msg.Content)
			sb.WriteString(" ")
		}
		return cond.Matches(sb.String()), nil

	case RuleTypeTime:
		var cond TimeCondition
		if err := decodeCondition(rule.Condition, &cond); err != nil {
			return false, err
		}
		last, hasFired, err := e.catalog.LastTriggerAt(ctx, userID, RuleTypeTime)
		if err != nil {
			return false, fmt.Errorf("reading last trigger: %w", err)
		}
		return cond.Matches(e.now(), last, hasFired)

	default:
		e.logger.Warn(ctx, "ignoring unknown rule type",
			zap.String("rule_id", rule.ID), zap.String("rule_type", rule.RuleType))
		return false, nil
	}
}

// recordTrigger appends the audit row. The details snapshot captures the
// rule's condition and action as they were at fire time.
func (e *Engine) recordTrigger(ctx context.Context, rule *catalog.MemoryRule, userID, conversationID string) error {
	trig := &catalog.MemoryTrigger{
		ID:             uuid.NewString(),
		RuleID:         rule.ID,
		RuleType:       rule.RuleType,
		UserID:         userID,
		ConversationID: conversationID,
		Details: catalog.JSONMap{
			"rule_id":   rule.ID,
			"condition": map[string]any(rule.Condition),
			"action":    map[string]any(rule.Action),
		},
		FiredAt: e.now(),
	}
	if err := e.catalog.AppendTrigger(ctx, trig); err != nil {
		return err
	}
	triggersFired.WithLabelValues(rule.RuleType).Inc()
	return nil
}

// execute attempts each action independently. One failure is logged and does
// not prevent the others from running.
func (e *Engine) execute(ctx context.Context, userID, conversationID string, actions []Action) {
	if e.exec == nil {
		return
	}
	for _, action := range actions {
		if err := e.exec.Execute(ctx, userID, conversationID, action); err != nil {
			e.logger.Warn(ctx, "trigger action failed",
				zap.String("action", string(action.Type)),
				zap.String("rule_id", action.RuleID),
				zap.Error(err))
		}
	}
}

// DefaultRules are seeded for a user with no rules: long conversations get
// summarized, and conversations mentioning "important" get tagged.
func DefaultRules(userID string) []catalog.MemoryRule {
	return []catalog.MemoryRule{
		{
			ID:        uuid.NewString(),
			UserID:    userID,
			RuleType:  RuleTypeLength,
			Condition: catalog.JSONMap{"minMessages": 10},
			Action:    catalog.JSONMap{"type": string(ActionGenerateSummary), "style": DefaultSummaryStyle},
			Active:    true,
		},
		{
			ID:        uuid.NewString(),
			UserID:    userID,
			RuleType:  RuleTypeKeyword,
			Condition: catalog.JSONMap{"keywords": []any{"important"}, "matchType": MatchAny},
			Action:    catalog.JSONMap{"type": string(ActionTag), "tags": []any{"important"}},
			Active:    true,
		},
	}
}
