package testsuite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/adpilot/framework"
)

// TestDraftConfirmPublishFlow walks the full workflow across three turns:
// a draft is generated, the publish request is gated behind a rendered
// confirmation summary, and an explicit "yes" carries it through to the
// platform with the page winner archived.
func TestDraftConfirmPublishFlow(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{responses: []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{toolCall("generate_ad_copy", map[string]interface{}{
			"brief":         "launch the cold brew kit for summer",
			"product_id":    "prod-1",
			"campaign_name": "Cold Brew Launch",
		})}},
		{Text: "Draft is ready for review."},
		{ToolCalls: []framework.ToolCall{toolCall("publish_campaign", map[string]interface{}{})}},
	}}
	h := newHarness(t, model, true)

	events := h.turn(t, "write an ad for the cold brew kit")
	assert.Equal(t, "Draft is ready for review.", reply(t, events))

	var sawCall, sawResult bool
	for _, ev := range events {
		if ev.Tool != "generate_ad_copy" {
			continue
		}
		switch ev.Type {
		case framework.EventToolCall:
			sawCall = true
		case framework.EventToolResult:
			sawResult = true
			assert.Empty(t, ev.Error)
		}
	}
	assert.True(t, sawCall, "tool_call event missing")
	assert.True(t, sawResult, "tool_result event missing")

	conv := h.reload(t)
	assert.Equal(t, framework.StateReview, conv.State)
	draft, err := h.store.LatestDraft(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cold Brew Launch", draft.CampaignName)
	assert.Equal(t, framework.DraftStatusDraft, draft.Status)
	assert.NotEmpty(t, draft.PrimaryText)
	assert.NotEmpty(t, draft.Headline)
	assert.NotEmpty(t, draft.CTA)

	// Publish is irreversible, so the second turn must stop at the gate.
	events = h.turn(t, "looks great, publish it")
	summary := reply(t, events)
	assert.Contains(t, summary, "Before I proceed, please confirm")
	assert.Contains(t, summary, "publish campaign")

	conv = h.reload(t)
	pending, ok := conv.PendingAction()
	require.True(t, ok, "confirmation gate should leave a pending action")
	assert.Equal(t, "publish_campaign", pending.Tool)
	assert.Contains(t, h.actions(t), framework.ActionGuardrailConfirm)

	// The affirmative dispatches the deferred call without another model step.
	events = h.turn(t, "yes")
	assert.Contains(t, reply(t, events), "the campaign is live (id camp_001)")

	status, ok := h.publisher.Status("camp_001")
	require.True(t, ok)
	assert.Equal(t, "active", status)

	draft, err = h.store.LatestDraft(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, framework.DraftStatusPublished, draft.Status)

	winners, err := h.store.PastWinners(ctx, "page-1", 5)
	require.NoError(t, err)
	require.Len(t, winners, 1)

	conv = h.reload(t)
	assert.Equal(t, framework.StateIdle, conv.State)
	_, ok = conv.PendingAction()
	assert.False(t, ok)
	assert.Contains(t, h.actions(t), framework.ActionCampaignPublished)
}

// TestOversizedBudgetGateAbandoned checks that a budget far above the scope
// default trips the confirmation gate, and that any non-affirmative reply
// abandons it instead of publishing.
func TestOversizedBudgetGateAbandoned(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{responses: []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{toolCall("generate_ad_copy", map[string]interface{}{
			"brief": "big push for the cold brew kit",
		})}},
		{ToolCalls: []framework.ToolCall{toolCall("publish_campaign", map[string]interface{}{
			"daily_budget": 3000.0,
		})}},
		{Text: "Okay, keeping the daily budget at 400."},
	}}
	h := newHarness(t, model, true)

	events := h.turn(t, "publish an ad with a 3000 daily budget")
	summary := reply(t, events)
	assert.Contains(t, summary, "3000.00")
	assert.Contains(t, summary, "more than 5x the default of 500.00")
	assert.Contains(t, h.actions(t), framework.ActionGuardrailConfirm)

	events = h.turn(t, "no, keep the budget at 400")
	assert.Equal(t, "Okay, keeping the daily budget at 400.", reply(t, events))

	conv := h.reload(t)
	_, ok := conv.PendingAction()
	assert.False(t, ok, "a non-affirmative reply should abandon the gate")
	_, ok = h.publisher.Status("camp_001")
	assert.False(t, ok, "nothing should have been published")

	draft, err := h.store.LatestDraft(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, framework.DraftStatusDraft, draft.Status)
}

// TestPublishBlockedWithoutConnectedAccount verifies the identity rule fires
// before anything else and the model gets the block as an observation.
func TestPublishBlockedWithoutConnectedAccount(t *testing.T) {
	model := &scriptedModel{responses: []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{toolCall("publish_campaign", map[string]interface{}{})}},
		{Text: "I can't publish until your ad account is connected."},
	}}
	h := newHarness(t, model, false)

	events := h.turn(t, "publish my campaign")
	assert.Equal(t, "I can't publish until your ad account is connected.", reply(t, events))

	var blocked bool
	for _, ev := range events {
		if ev.Type == framework.EventToolResult && ev.Tool == "publish_campaign" {
			blocked = true
			assert.Contains(t, ev.Error, "connected advertising account")
		}
	}
	assert.True(t, blocked, "block should surface as a tool_result event")
	assert.Contains(t, h.actions(t), framework.ActionGuardrailBlocked)
	_, ok := h.publisher.Status("camp_001")
	assert.False(t, ok)
}

// TestPolicyTermBlocksDraftEdit checks disallowed copy is rejected even when
// it arrives nested in an edit's field map.
func TestPolicyTermBlocksDraftEdit(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{responses: []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{toolCall("edit_draft", map[string]interface{}{
			"fields": map[string]interface{}{
				"primary_text": "Guaranteed weight loss in two weeks with every cup",
			},
		})}},
		{Text: "I can't use that claim; want a compliant angle instead?"},
	}}
	h := newHarness(t, model, true)
	require.NoError(t, h.store.SaveDraft(ctx, &framework.AdDraft{
		ID: "draft-1", ConversationID: h.conv.ID, WorkspaceID: "ws-1",
		PrimaryText: "Smooth cold brew at home", Headline: "Cold Brew Kit",
		CTA: "shop_now", Status: framework.DraftStatusDraft, VariantNumber: 1,
	}))

	events := h.turn(t, "change the text to promise guaranteed weight loss")
	assert.Contains(t, reply(t, events), "compliant angle")

	var blocked bool
	for _, ev := range events {
		if ev.Type == framework.EventToolResult && ev.Tool == "edit_draft" {
			blocked = true
			assert.Contains(t, ev.Error, "health_claims")
		}
	}
	assert.True(t, blocked)
	assert.Contains(t, h.actions(t), framework.ActionGuardrailBlocked)

	draft, err := h.store.Draft(ctx, "draft-1")
	require.NoError(t, err)
	assert.Equal(t, "Smooth cold brew at home", draft.PrimaryText)
}

// TestTurnsSerializePerConversation submits a second message while the first
// turn is still inside the completion backend.
func TestTurnsSerializePerConversation(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, &blockingModel{release: release}, true)

	stream, err := h.engine.ProcessTurn(context.Background(), h.conv.ID, "first message")
	require.NoError(t, err)

	_, err = h.engine.ProcessTurn(context.Background(), h.conv.ID, "second message")
	assert.ErrorIs(t, err, framework.ErrTurnInFlight)

	close(release)
	for range stream {
	}

	stream, err = h.engine.ProcessTurn(context.Background(), h.conv.ID, "third message")
	require.NoError(t, err)
	for range stream {
	}
}
