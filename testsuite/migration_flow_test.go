package testsuite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/adpilot/agents"
	"github.com/lexcodex/adpilot/framework"
	"github.com/lexcodex/adpilot/persistence"
)

// TestLegacyMigrationPinsWorkspaceSummary runs the archive batch end to end
// and checks the pinned digest reaches the account conversation's memory
// context exactly once.
func TestLegacyMigrationPinsWorkspaceSummary(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	require.NoError(t, store.SaveWorkspace(ctx, &framework.WorkspaceSettings{
		ID: "ws-1", Name: "Outfitters", DefaultDailyBudget: 500, Currency: "USD",
	}))

	legacy, err := store.GetOrCreateConversation(ctx, "ws-1", "", framework.ScopeLegacyArchived, "Winter sale planning")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(ctx, &framework.ChatMessage{
		ConversationID: legacy.ID, Role: framework.RoleUser,
		Content: "run a winter sale with a 400 daily budget",
	}))
	require.NoError(t, store.AppendMessage(ctx, &framework.ChatMessage{
		ConversationID: legacy.ID, Role: framework.RoleAgent,
		Content: "Published the winter sale campaign.",
	}))

	migrator := persistence.NewMigrator(store, persistence.SummarizerFunc(
		func(_ context.Context, transcript string) (string, error) {
			assert.Contains(t, transcript, "winter sale")
			return "Ran a winter sale at a 400 daily budget.", nil
		}))

	result, err := migrator.Run(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrated)
	assert.Equal(t, 0, result.Skipped)
	assert.Contains(t, result.PinnedSummary, "Winter sale planning")
	assert.Contains(t, result.PinnedSummary, "Ran a winter sale at a 400 daily budget.")

	archived, err := store.Conversation(ctx, legacy.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	assert.Equal(t, "Ran a winter sale at a 400 daily budget.", archived.ArchiveSummary)

	entries, err := store.Entries(ctx, legacy.ID)
	require.NoError(t, err)
	var migrated bool
	for _, entry := range entries {
		if entry.Action == framework.ActionLegacyMigrated {
			migrated = true
		}
	}
	assert.True(t, migrated, "migration should be recorded in the activity log")

	// The batch is idempotent: archived conversations are not re-migrated.
	result, err = migrator.Run(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Migrated)

	account, err := store.GetOrCreateConversation(ctx, "ws-1", "", framework.ScopeAccountWide, "Workspace")
	require.NoError(t, err)
	assert.True(t, account.Pinned)
	assert.Contains(t, account.PinnedContent, "# Legacy campaign history")

	scope := agents.NewMemoryScope(store, nil)
	first, err := scope.Assemble(ctx, account)
	require.NoError(t, err)
	assert.Contains(t, first.PinnedSummary, "Ran a winter sale at a 400 daily budget.")
	assert.False(t, first.PinnedSummaryInjected)

	second, err := scope.Assemble(ctx, account)
	require.NoError(t, err)
	assert.True(t, second.PinnedSummaryInjected)
}
