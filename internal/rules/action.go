package rules

import (
	"encoding/json"

	"github.com/fyrsmithlabs/memoryd/internal/catalog"
)

// ActionType identifies a translated trigger action.
type ActionType string

// Known action types.
const (
	ActionGenerateSummary ActionType = "generate_summary"
	ActionBackup          ActionType = "backup"
	ActionNotify          ActionType = "notify"
	ActionExport          ActionType = "export"
	ActionTag             ActionType = "tag"
)

// Action is one typed action translated from a fired rule, ready for an
// Executor. Exactly one parameter variant is set, matching Type.
type Action struct {
	Type    ActionType
	RuleID  string
	Summary *SummaryParams
	Backup  *BackupParams
	Notify  *NotifyParams
	Export  *ExportParams
	Tag     *TagParams
}

// SummaryParams configure a generate_summary action.
type SummaryParams struct {
	Style string `json:"style,omitempty"`
}

// BackupParams configure a backup action. An empty Destination uses the
// executor's configured default target.
type BackupParams struct {
	Destination string `json:"destination,omitempty"`
}

// NotifyParams configure a notify action.
type NotifyParams struct {
	Subject string `json:"subject,omitempty"`
	Message string `json:"message,omitempty"`
}

// ExportParams configure an export action.
type ExportParams struct {
	Format string `json:"format,omitempty"`
}

// TagParams configure a tag action.
type TagParams struct {
	Tags []string `json:"tags"`
}

// DefaultSummaryStyle is applied when a generate_summary action omits style.
const DefaultSummaryStyle = "brief"

// translateActions decodes a rule's action payload into typed actions.
//
// The payload is either a single action object with a "type" key or an
// object with an "actions" array of such objects. Unknown action types are
// reported back so the caller can log them.
func translateActions(ruleID string, payload catalog.JSONMap) (actions []Action, unknown []string) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nil
	}

	var multi struct {
		Actions []json.RawMessage `json:"actions"`
	}
	var objects []json.RawMessage
	if err := json.Unmarshal(raw, &multi); err == nil && len(multi.Actions) > 0 {
		objects = multi.Actions
	} else {
		objects = []json.RawMessage{raw}
	}

	for _, obj := range objects {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(obj, &head); err != nil || head.Type == "" {
			unknown = append(unknown, string(obj))
			continue
		}
		action := Action{Type: ActionType(head.Type), RuleID: ruleID}
		switch action.Type {
		case ActionGenerateSummary:
			var p SummaryParams
			_ = json.Unmarshal(obj, &p)
			if p.Style == "" {
				p.Style = DefaultSummaryStyle
			}
			action.Summary = &p
		case ActionBackup:
			var p BackupParams
			_ = json.Unmarshal(obj, &p)
			action.Backup = &p
		case ActionNotify:
			var p NotifyParams
			_ = json.Unmarshal(obj, &p)
			action.Notify = &p
		case ActionExport:
			var p ExportParams
			_ = json.Unmarshal(obj, &p)
			action.Export = &p
		case ActionTag:
			var p TagParams
			_ = json.Unmarshal(obj, &p)
			action.Tag = &p
		default:
			unknown = append(unknown, head.Type)
			continue
		}
		actions = append(actions, action)
	}
	return actions, unknown
}
