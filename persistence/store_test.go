package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/adpilot/framework"
)

// eachStore runs the test body against both store implementations so the
// in-memory and SQLite stores stay behaviorally identical.
func eachStore(t *testing.T, body func(t *testing.T, store Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		body(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "adpilot.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		body(t, store)
	})
}

// TestGetOrCreateConversation verifies the scope key maps to exactly one
// conversation across repeated calls.
func TestGetOrCreateConversation(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		first, err := store.GetOrCreateConversation(ctx, "ws-1", "page-1", framework.ScopePage, "Page One")
		require.NoError(t, err)
		require.NotEmpty(t, first.ID)
		require.Equal(t, framework.StateIdle, first.State)

		again, err := store.GetOrCreateConversation(ctx, "ws-1", "page-1", framework.ScopePage, "Page One")
		require.NoError(t, err)
		require.Equal(t, first.ID, again.ID, "same scope key should reuse the conversation")

		account, err := store.GetOrCreateConversation(ctx, "ws-1", "", framework.ScopeAccountWide, "Workspace")
		require.NoError(t, err)
		require.NotEqual(t, first.ID, account.ID, "different scope should create a new conversation")
	})
}

// TestAppendMessageAssignsSequence checks that messages get strictly
// increasing sequence numbers and come back in chronological order.
func TestAppendMessageAssignsSequence(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		conv, err := store.GetOrCreateConversation(ctx, "ws-1", "page-1", framework.ScopePage, "")
		require.NoError(t, err)

		for _, content := range []string{"first", "second", "third"} {
			msg := &framework.ChatMessage{
				ConversationID: conv.ID,
				Role:           framework.RoleUser,
				Content:        content,
			}
			require.NoError(t, store.AppendMessage(ctx, msg))
		}

		messages, err := store.Messages(ctx, conv.ID, 0)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		require.Equal(t, int64(1), messages[0].Seq)
		require.Equal(t, int64(3), messages[2].Seq)
		require.Equal(t, "first", messages[0].Content)
		require.Equal(t, "third", messages[2].Content)

		limited, err := store.Messages(ctx, conv.ID, 2)
		require.NoError(t, err)
		require.Len(t, limited, 2)
		require.Equal(t, "second", limited[0].Content, "limit should keep the newest messages")
	})
}

// TestLastUserMessage confirms the lookup skips agent replies.
func TestLastUserMessage(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		conv, err := store.GetOrCreateConversation(ctx, "ws-1", "page-1", framework.ScopePage, "")
		require.NoError(t, err)

		_, err = store.LastUserMessage(ctx, conv.ID)
		require.ErrorIs(t, err, framework.ErrNotFound)

		require.NoError(t, store.AppendMessage(ctx, &framework.ChatMessage{
			ConversationID: conv.ID, Role: framework.RoleUser, Content: "launch an ad",
		}))
		require.NoError(t, store.AppendMessage(ctx, &framework.ChatMessage{
			ConversationID: conv.ID, Role: framework.RoleAgent, Content: "sure",
		}))

		last, err := store.LastUserMessage(ctx, conv.ID)
		require.NoError(t, err)
		require.Equal(t, "launch an ad", last.Content)
	})
}

// TestDraftLineage verifies revision chains keep their variant ordering and
// that LatestDraft returns the newest revision.
func TestDraftLineage(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		conv, err := store.GetOrCreateConversation(ctx, "ws-1", "page-1", framework.ScopePage, "")
		require.NoError(t, err)

		original := &framework.AdDraft{
			ConversationID: conv.ID,
			WorkspaceID:    "ws-1",
			Headline:       "Fresh Roast Delivered",
			Status:         framework.DraftStatusDraft,
			VariantNumber:  1,
		}
		require.NoError(t, store.SaveDraft(ctx, original))

		revision := original.NewVariant("", original.CreatedAt.Add(1))
		revision.Headline = "Fresh Roast, Free Shipping"
		require.NoError(t, store.SaveDraft(ctx, revision))
		require.Equal(t, original.ID, revision.ParentDraftID)
		require.Equal(t, 2, revision.VariantNumber)

		latest, err := store.LatestDraft(ctx, conv.ID)
		require.NoError(t, err)
		require.Equal(t, revision.ID, latest.ID)

		all, err := store.Drafts(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, original.ID, all[0].ID)
	})
}

// TestRecordIdempotentAppend checks that replaying a keyed append does not
// duplicate the logical log.
func TestRecordIdempotentAppend(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		entry := framework.ActivityEntry{
			ID:             "turn-1:step-2:publish",
			ConversationID: "conv-1",
			Actor:          framework.ActorAgent,
			Action:         framework.ActionCampaignPublished,
			Rationale:      "user approved the draft",
			Decision:       &framework.GuardrailDecision{Outcome: framework.GuardrailAllow},
		}
		require.NoError(t, store.Record(ctx, entry))
		require.ErrorIs(t, store.Record(ctx, entry), framework.ErrDuplicateEntry)

		entries, err := store.Entries(ctx, "conv-1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, framework.ActionCampaignPublished, entries[0].Action)
		require.NotNil(t, entries[0].Decision)
		require.Equal(t, framework.GuardrailAllow, entries[0].Decision.Outcome)
	})
}

// TestSettingsRoundTrip exercises workspace, page, product, and past-winner
// persistence together.
func TestSettingsRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		require.NoError(t, store.SaveWorkspace(ctx, &framework.WorkspaceSettings{
			ID: "ws-1", Name: "Brew Co", DefaultDailyBudget: 50, Currency: "USD",
			DefaultObjective: "OUTCOME_TRAFFIC", AdAccountConnected: true,
		}))
		ws, err := store.Workspace(ctx, "ws-1")
		require.NoError(t, err)
		require.Equal(t, 50.0, ws.DefaultDailyBudget)
		require.True(t, ws.AdAccountConnected)

		require.NoError(t, store.SavePage(ctx, &framework.PageSettings{
			ID: "page-1", WorkspaceID: "ws-1", Name: "Brew Co Coffee",
			Tone: "warm", TargetMarkets: []string{"US", "CA"}, Primary: true, Included: true,
		}))
		pages, err := store.Pages(ctx, "ws-1")
		require.NoError(t, err)
		require.Len(t, pages, 1)
		require.Equal(t, []string{"US", "CA"}, pages[0].TargetMarkets)

		require.NoError(t, store.SaveProduct(ctx, &framework.Product{
			ID: "prod-1", WorkspaceID: "ws-1", Name: "Espresso Blend",
			Price: 18.5, PageIDs: []string{"page-1"}, Active: true,
		}))
		require.NoError(t, store.SaveProduct(ctx, &framework.Product{
			ID: "prod-2", WorkspaceID: "ws-1", Name: "Retired Mug",
			PageIDs: []string{"page-1"}, Active: false,
		}))
		products, err := store.ProductsForPage(ctx, "page-1")
		require.NoError(t, err)
		require.Len(t, products, 1, "inactive products should be excluded")
		require.Equal(t, "Espresso Blend", products[0].Name)

		require.NoError(t, store.SavePastWinner(ctx, &framework.PastWinner{
			PageID: "page-1", CampaignName: "Summer Sale",
			Metrics: map[string]interface{}{"roas": 4.2},
		}))
		winners, err := store.PastWinners(ctx, "page-1", 5)
		require.NoError(t, err)
		require.Len(t, winners, 1)
		require.Equal(t, "Summer Sale", winners[0].CampaignName)
	})
}
