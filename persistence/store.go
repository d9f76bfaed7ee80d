// Package persistence provides the storage collaborators the engine consumes:
// CRUD-by-id plus ordered-append semantics over conversations, messages,
// drafts, and the activity log. The core never depends on a specific storage
// technology; this package ships an in-memory store for tests and tooling and
// a SQLite store for real deployments.
package persistence

import (
	"context"

	"github.com/lexcodex/adpilot/framework"
)

// Store aggregates the persisted state the engine reads and writes.
type Store interface {
	ConversationStore
	MessageStore
	DraftStore
	SettingsStore
	framework.DecisionLogger
}

// ConversationStore manages conversation records. Conversations are created
// once per scope and never duplicated: GetOrCreate is the only creation path.
type ConversationStore interface {
	Conversation(ctx context.Context, id string) (*framework.Conversation, error)
	// GetOrCreateConversation returns the existing conversation for the
	// scope key, creating it on first use. pageID is empty for account-wide
	// conversations.
	GetOrCreateConversation(ctx context.Context, workspaceID, pageID string, scope framework.Scope, title string) (*framework.Conversation, error)
	SaveConversation(ctx context.Context, conv *framework.Conversation) error
	ListConversations(ctx context.Context, workspaceID string) ([]*framework.Conversation, error)
	// LegacyConversations returns unarchived legacy-scope conversations for
	// the migration batch.
	LegacyConversations(ctx context.Context, workspaceID string) ([]*framework.Conversation, error)
}

// MessageStore appends and reads the ordered message log of a conversation.
// Append assigns the next sequence number; messages are immutable once
// written.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *framework.ChatMessage) error
	Messages(ctx context.Context, conversationID string, limit int) ([]framework.ChatMessage, error)
	LastUserMessage(ctx context.Context, conversationID string) (*framework.ChatMessage, error)
}

// DraftStore manages the ad draft revision chains.
type DraftStore interface {
	SaveDraft(ctx context.Context, draft *framework.AdDraft) error
	Draft(ctx context.Context, id string) (*framework.AdDraft, error)
	LatestDraft(ctx context.Context, conversationID string) (*framework.AdDraft, error)
	Drafts(ctx context.Context, conversationID string) ([]*framework.AdDraft, error)
}

// SettingsStore exposes the workspace, page, and product snapshots the memory
// scoping service reads. The engine treats these as read-only configuration;
// the write side exists for setup tooling and tests.
type SettingsStore interface {
	Workspace(ctx context.Context, id string) (*framework.WorkspaceSettings, error)
	SaveWorkspace(ctx context.Context, ws *framework.WorkspaceSettings) error
	Page(ctx context.Context, id string) (*framework.PageSettings, error)
	Pages(ctx context.Context, workspaceID string) ([]framework.PageSettings, error)
	SavePage(ctx context.Context, page *framework.PageSettings) error
	Product(ctx context.Context, id string) (*framework.Product, error)
	ProductsForPage(ctx context.Context, pageID string) ([]framework.Product, error)
	SaveProduct(ctx context.Context, product *framework.Product) error
	PastWinners(ctx context.Context, pageID string, limit int) ([]framework.PastWinner, error)
	SavePastWinner(ctx context.Context, winner *framework.PastWinner) error
}
