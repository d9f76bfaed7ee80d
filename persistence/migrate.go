package persistence

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lexcodex/adpilot/framework"
)

// Summarizer condenses a legacy conversation transcript into a short summary.
// The migrator falls back to a heuristic digest when no model is available.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, transcript string) (string, error)

// Summarize calls f.
func (f SummarizerFunc) Summarize(ctx context.Context, transcript string) (string, error) {
	return f(ctx, transcript)
}

// Migrator archives legacy conversations into a single pinned summary on the
// workspace's account-wide conversation. The batch runs once per workspace;
// already-archived legacy conversations are skipped.
type Migrator struct {
	store      Store
	summarizer Summarizer
	logger     framework.DecisionLogger
	debug      bool
}

// NewMigrator builds a migrator over the store. summarizer may be nil.
func NewMigrator(store Store, summarizer Summarizer) *Migrator {
	return &Migrator{store: store, summarizer: summarizer, logger: store}
}

// SetDebug toggles verbose logging.
func (m *Migrator) SetDebug(debug bool) { m.debug = debug }

func (m *Migrator) debugf(format string, args ...interface{}) {
	if m.debug {
		log.Printf("[migrate] "+format, args...)
	}
}

// MigrationResult reports what a batch run did.
type MigrationResult struct {
	Migrated      int    `json:"migrated"`
	Skipped       int    `json:"skipped"`
	PinnedSummary string `json:"pinned_summary,omitempty"`
}

// Run migrates every unarchived legacy conversation in the workspace. Each
// conversation is summarized, marked archived, and the combined digest is
// pinned to the account-wide conversation as an inject-once document.
func (m *Migrator) Run(ctx context.Context, workspaceID string) (*MigrationResult, error) {
	legacy, err := m.store.LegacyConversations(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list legacy conversations: %w", err)
	}
	result := &MigrationResult{}
	if len(legacy) == 0 {
		m.debugf("workspace %s has no legacy conversations", workspaceID)
		return result, nil
	}

	var sections []string
	for _, conv := range legacy {
		summary, err := m.summarizeConversation(ctx, conv)
		if err != nil {
			m.debugf("summarize %s failed, skipping: %v", conv.ID, err)
			result.Skipped++
			continue
		}
		conv.Archived = true
		conv.ArchivedAt = time.Now().UTC()
		conv.ArchiveSummary = summary
		if err := m.store.SaveConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("archive conversation %s: %w", conv.ID, err)
		}
		title := conv.Title
		if title == "" {
			title = conv.ID
		}
		sections = append(sections, fmt.Sprintf("## %s\n%s", title, summary))
		result.Migrated++

		entry := framework.ActivityEntry{
			ID:             "migrate:" + conv.ID,
			ConversationID: conv.ID,
			Actor:          framework.ActorSystem,
			Action:         framework.ActionLegacyMigrated,
			EntityType:     "conversation",
			EntityID:       conv.ID,
			Rationale:      "legacy conversation archived into pinned workspace summary",
		}
		if err := m.logger.Record(ctx, entry); err != nil && err != framework.ErrDuplicateEntry {
			return nil, fmt.Errorf("record migration: %w", err)
		}
	}

	if len(sections) == 0 {
		return result, nil
	}

	pinned := "# Legacy campaign history\n\n" + strings.Join(sections, "\n\n")
	account, err := m.store.GetOrCreateConversation(ctx, workspaceID, "", framework.ScopeAccountWide, "Workspace")
	if err != nil {
		return nil, fmt.Errorf("load account conversation: %w", err)
	}
	account.Pinned = true
	account.PinnedContent = pinned
	if err := m.store.SaveConversation(ctx, account); err != nil {
		return nil, fmt.Errorf("pin legacy summary: %w", err)
	}
	result.PinnedSummary = pinned
	m.debugf("workspace %s: migrated %d, skipped %d", workspaceID, result.Migrated, result.Skipped)
	return result, nil
}

func (m *Migrator) summarizeConversation(ctx context.Context, conv *framework.Conversation) (string, error) {
	messages, err := m.store.Messages(ctx, conv.ID, 0)
	if err != nil {
		return "", fmt.Errorf("load messages: %w", err)
	}
	transcript := renderTranscript(messages)
	if m.summarizer != nil && transcript != "" {
		summary, err := m.summarizer.Summarize(ctx, transcript)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary), nil
		}
		if err != nil {
			m.debugf("model summary for %s failed, using digest: %v", conv.ID, err)
		}
	}
	return digestTranscript(conv, messages), nil
}

func renderTranscript(messages []framework.ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}

// digestTranscript builds a deterministic fallback summary: counts plus the
// first and last user asks.
func digestTranscript(conv *framework.Conversation, messages []framework.ChatMessage) string {
	var userMsgs []string
	for _, msg := range messages {
		if msg.Role == framework.RoleUser && msg.Content != "" {
			userMsgs = append(userMsgs, msg.Content)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d messages exchanged between %s and %s.",
		len(messages),
		conv.CreatedAt.Format("2006-01-02"),
		conv.UpdatedAt.Format("2006-01-02"))
	if len(userMsgs) > 0 {
		fmt.Fprintf(&b, " Opened with: %s", truncate(userMsgs[0], 200))
	}
	if len(userMsgs) > 1 {
		fmt.Fprintf(&b, " Last request: %s", truncate(userMsgs[len(userMsgs)-1], 200))
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
