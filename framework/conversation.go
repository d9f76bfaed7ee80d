package framework

import "time"

// Scope is the memory/identity boundary a conversation is bound to.
type Scope string

const (
	ScopeAccountWide    Scope = "account-wide"
	ScopePage           Scope = "page-scoped"
	ScopeLegacyArchived Scope = "legacy-archived"
)

// State tracks the lifecycle stage of a drafting workflow per conversation.
type State string

const (
	StateIdle           State = "idle"
	StateDiscovery      State = "discovery"
	StateIdeation       State = "ideation"
	StateDrafting       State = "drafting"
	StateReview         State = "review"
	StateReadyToPublish State = "ready_to_publish"
	StatePublished      State = "published"
)

// Message roles.
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
)

// Conversation is a long-lived chat bound to exactly one scope: the
// account-wide overview chat of a workspace, or the war room of one included
// page. Created once per scope, never duplicated.
type Conversation struct {
	ID          string                 `json:"id"`
	WorkspaceID string                 `json:"workspace_id"`
	PageID      string                 `json:"page_id,omitempty"`
	Scope       Scope                  `json:"scope"`
	Title       string                 `json:"title,omitempty"`
	State       State                  `json:"state"`
	Context     map[string]interface{} `json:"context,omitempty"`

	Archived       bool      `json:"archived,omitempty"`
	ArchivedAt     time.Time `json:"archived_at,omitempty"`
	ArchiveSummary string    `json:"archive_summary,omitempty"`

	// Pinned content holds the immutable legacy-migration summary shown once
	// in the account overview.
	Pinned        bool   `json:"pinned,omitempty"`
	PinnedContent string `json:"pinned_content,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Conversation context keys. The active draft and product references travel
// in Conversation.Context and are passed explicitly through each orchestration
// step; nothing reads them from ambient storage.
const (
	CtxActiveProductID = "active_product_id"
	CtxActiveDraftID   = "active_draft_id"
	ctxPendingTool     = "pending_tool"
	ctxPendingArgs     = "pending_args"
	ctxPendingSummary  = "pending_summary"
)

// PendingAction is a mutating call the guardrail deferred behind a user
// confirmation. It lives in Conversation.Context between turns: the next user
// message is interpreted as confirm or deny.
type PendingAction struct {
	Tool    string
	Args    map[string]interface{}
	Summary string
}

// SetPendingAction stores the deferred call in the conversation context.
func (c *Conversation) SetPendingAction(p PendingAction) {
	if c.Context == nil {
		c.Context = make(map[string]interface{})
	}
	c.Context[ctxPendingTool] = p.Tool
	c.Context[ctxPendingArgs] = p.Args
	c.Context[ctxPendingSummary] = p.Summary
}

// PendingAction returns the deferred call, if any.
func (c *Conversation) PendingAction() (PendingAction, bool) {
	if c.Context == nil {
		return PendingAction{}, false
	}
	tool, _ := c.Context[ctxPendingTool].(string)
	if tool == "" {
		return PendingAction{}, false
	}
	args, _ := c.Context[ctxPendingArgs].(map[string]interface{})
	summary, _ := c.Context[ctxPendingSummary].(string)
	return PendingAction{Tool: tool, Args: args, Summary: summary}, true
}

// ClearPendingAction drops the deferred call from the conversation context.
func (c *Conversation) ClearPendingAction() {
	if c.Context == nil {
		return
	}
	delete(c.Context, ctxPendingTool)
	delete(c.Context, ctxPendingArgs)
	delete(c.Context, ctxPendingSummary)
}

// ToolTrace records one tool invocation that contributed to a message.
type ToolTrace struct {
	Name     string                 `json:"name"`
	Input    map[string]interface{} `json:"input,omitempty"`
	Output   map[string]interface{} `json:"output,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Decision string                 `json:"decision,omitempty"`
}

// ChatMessage belongs to exactly one conversation, ordered by monotonically
// increasing Seq. Immutable once written.
type ChatMessage struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Seq            int64       `json:"seq"`
	Role           string      `json:"role"`
	Content        string      `json:"content"`
	ToolTrace      []ToolTrace `json:"tool_trace,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
