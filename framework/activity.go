package framework

import (
	"context"
	"time"
)

// GuardrailOutcome is the resolved verdict for one mutating tool call.
type GuardrailOutcome string

const (
	GuardrailAllow   GuardrailOutcome = "allow"
	GuardrailConfirm GuardrailOutcome = "confirm"
	GuardrailBlock   GuardrailOutcome = "block"
)

// GuardrailDecision is the outcome of validating one mutating tool call. It
// is attached to the activity entry for that call and never silently
// discarded.
type GuardrailDecision struct {
	Outcome   GuardrailOutcome `json:"outcome"`
	Rule      string           `json:"rule,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Threshold float64          `json:"threshold,omitempty"`
}

// Actors recorded on activity entries.
const (
	ActorUser   = "user"
	ActorAgent  = "agent"
	ActorSystem = "system"
)

// ActivityEntry is one append-only record in the decision log. Entries are
// keyed by ID: replaying the same append twice must not duplicate the logical
// log. Corrections are new entries, never updates.
type ActivityEntry struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	Timestamp      time.Time              `json:"timestamp"`
	Actor          string                 `json:"actor"`
	Action         string                 `json:"action"`
	EntityType     string                 `json:"entity_type,omitempty"`
	EntityID       string                 `json:"entity_id,omitempty"`
	Rationale      string                 `json:"rationale"`
	Decision       *GuardrailDecision     `json:"decision,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Activity actions written by the engine.
const (
	ActionToolInvoked         = "tool_invoked"
	ActionToolFailed          = "tool_failed"
	ActionDraftCreated        = "draft_created"
	ActionDraftUpdated        = "draft_updated"
	ActionCampaignPublished   = "campaign_published"
	ActionBudgetChanged       = "budget_changed"
	ActionCampaignPaused      = "campaign_paused"
	ActionGuardrailConfirm    = "guardrail_confirmation_requested"
	ActionGuardrailBlocked    = "guardrail_blocked"
	ActionTurnFailed          = "turn_failed"
	ActionLegacyMigrated      = "legacy_conversations_migrated"
	ActionRecommendationMade  = "recommendation_made"
)

// DecisionLogger is the durable, append-only record of every tool invocation
// and its rationale. Record must never fail silently: a logging failure
// aborts the publish path, since the audit trail is a precondition for
// irreversible actions.
type DecisionLogger interface {
	Record(ctx context.Context, entry ActivityEntry) error
	Entries(ctx context.Context, conversationID string) ([]ActivityEntry, error)
}
