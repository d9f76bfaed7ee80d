package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/adpilot/framework"
)

func seedLegacyConversation(t *testing.T, store Store, workspaceID, title string, messages ...string) *framework.Conversation {
	t.Helper()
	ctx := context.Background()
	conv, err := store.GetOrCreateConversation(ctx, workspaceID, "", framework.ScopeLegacyArchived, title)
	require.NoError(t, err)
	role := framework.RoleUser
	for _, content := range messages {
		require.NoError(t, store.AppendMessage(ctx, &framework.ChatMessage{
			ConversationID: conv.ID, Role: role, Content: content,
		}))
		if role == framework.RoleUser {
			role = framework.RoleAgent
		} else {
			role = framework.RoleUser
		}
	}
	return conv
}

// TestMigratorArchivesLegacyAndPinsSummary checks the one-shot batch: legacy
// conversations end up archived and the account conversation carries the
// pinned digest.
func TestMigratorArchivesLegacyAndPinsSummary(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	legacy := seedLegacyConversation(t, store, "ws-1", "Spring push",
		"run a spring promo", "done, CTR was 2.1%")

	migrator := NewMigrator(store, SummarizerFunc(func(_ context.Context, transcript string) (string, error) {
		require.Contains(t, transcript, "spring promo")
		return "Ran a spring promo; CTR 2.1%.", nil
	}))

	result, err := migrator.Run(ctx, "ws-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.Migrated)
	require.Equal(t, 0, result.Skipped)
	require.Contains(t, result.PinnedSummary, "Spring push")
	require.Contains(t, result.PinnedSummary, "CTR 2.1%")

	archived, err := store.Conversation(ctx, legacy.ID)
	require.NoError(t, err)
	require.True(t, archived.Archived)
	require.False(t, archived.ArchivedAt.IsZero())
	require.Equal(t, "Ran a spring promo; CTR 2.1%.", archived.ArchiveSummary)

	account, err := store.GetOrCreateConversation(ctx, "ws-1", "", framework.ScopeAccountWide, "Workspace")
	require.NoError(t, err)
	require.True(t, account.Pinned)
	require.Contains(t, account.PinnedContent, "Legacy campaign history")

	entries, err := store.Entries(ctx, legacy.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, framework.ActionLegacyMigrated, entries[0].Action)
}

// TestMigratorFallsBackToDigest verifies a failing summarizer degrades to the
// deterministic digest instead of aborting the batch.
func TestMigratorFallsBackToDigest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedLegacyConversation(t, store, "ws-1", "Old campaign",
		"boost the winter ad", "boosted")

	migrator := NewMigrator(store, SummarizerFunc(func(context.Context, string) (string, error) {
		return "", errors.New("model offline")
	}))

	result, err := migrator.Run(ctx, "ws-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.Migrated)
	require.Contains(t, result.PinnedSummary, "boost the winter ad")
}

// TestMigratorRunIsIdempotent checks a second run finds nothing to do and
// does not duplicate log entries.
func TestMigratorRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	legacy := seedLegacyConversation(t, store, "ws-1", "One-off", "hello")

	migrator := NewMigrator(store, nil)
	first, err := migrator.Run(ctx, "ws-1")
	require.NoError(t, err)
	require.Equal(t, 1, first.Migrated)

	second, err := migrator.Run(ctx, "ws-1")
	require.NoError(t, err)
	require.Equal(t, 0, second.Migrated)

	entries, err := store.Entries(ctx, legacy.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
