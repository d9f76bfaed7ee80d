package agents

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/adpilot/framework"
)

func connectedContext(defaultBudget float64) GuardrailContext {
	return GuardrailContext{
		DefaultDailyBudget: defaultBudget,
		AdAccountConnected: true,
		PolicyTerms:        DefaultPolicyTerms,
	}
}

// TestBudgetRuleConfirmsAboveThreshold covers the 5x budget gate: a request
// of 2000 against a default of 500 must come back confirm, never allow.
func TestBudgetRuleConfirmsAboveThreshold(t *testing.T) {
	call := ProposedCall{
		Name:       ToolPublishCampaign,
		SideEffect: framework.SideEffectIrreversible,
		Args:       map[string]interface{}{"daily_budget": 2000.0},
	}
	decision := Validate(call, connectedContext(500))
	require.Equal(t, framework.GuardrailConfirm, decision.Outcome)
	require.Equal(t, "budget", decision.Rule)
	require.Equal(t, 2500.0, decision.Threshold)
	require.Contains(t, decision.Reason, "5x the default")
}

// TestBudgetRuleAllowsWithinThreshold checks an in-range adjustment on a
// reversible call passes straight through.
func TestBudgetRuleAllowsWithinThreshold(t *testing.T) {
	call := ProposedCall{
		Name:       ToolAdjustBudget,
		SideEffect: framework.SideEffectMutating,
		Args:       map[string]interface{}{"daily_budget": 800.0},
	}
	decision := Validate(call, connectedContext(500))
	require.Equal(t, framework.GuardrailAllow, decision.Outcome)
}

// TestContentPolicyBlocksHealthClaim verifies disallowed copy is blocked with
// the matched category in the reason.
func TestContentPolicyBlocksHealthClaim(t *testing.T) {
	call := ProposedCall{
		Name:       ToolPublishCampaign,
		SideEffect: framework.SideEffectIrreversible,
		Args: map[string]interface{}{
			"daily_budget": 100.0,
			"primary_text": "Our tea is a miracle: guaranteed weight loss in a week!",
		},
	}
	decision := Validate(call, connectedContext(500))
	require.Equal(t, framework.GuardrailBlock, decision.Outcome)
	require.Equal(t, "content_policy", decision.Rule)
	require.Contains(t, decision.Reason, "health_claims")
}

// TestContentPolicyScansEditFields checks the scan reaches copy nested in an
// edit's field map.
func TestContentPolicyScansEditFields(t *testing.T) {
	call := ProposedCall{
		Name:       ToolEditDraft,
		SideEffect: framework.SideEffectMutating,
		Args: map[string]interface{}{
			"fields": map[string]interface{}{
				"headline": "Double your money, risk-free investment",
			},
		},
	}
	decision := Validate(call, connectedContext(500))
	require.Equal(t, framework.GuardrailBlock, decision.Outcome)
	require.Contains(t, decision.Reason, "financial_guarantees")
}

// TestMissingCredentialBlocksRegardlessOfBudget covers the identity rule: a
// publish with no connected ad account is blocked even when the budget would
// only have required confirmation.
func TestMissingCredentialBlocksRegardlessOfBudget(t *testing.T) {
	gctx := connectedContext(500)
	gctx.AdAccountConnected = false
	call := ProposedCall{
		Name:       ToolPublishCampaign,
		SideEffect: framework.SideEffectIrreversible,
		Args:       map[string]interface{}{"daily_budget": 10000.0},
	}
	decision := Validate(call, gctx)
	require.Equal(t, framework.GuardrailBlock, decision.Outcome)
	require.Equal(t, "missing_identity", decision.Rule)
	require.Contains(t, decision.Reason, "connected advertising account")
}

// TestIrreversibleRequiresConfirmation checks that a clean publish still
// needs the user's explicit affirmative to a rendered summary.
func TestIrreversibleRequiresConfirmation(t *testing.T) {
	call := ProposedCall{
		Name:       ToolPublishCampaign,
		SideEffect: framework.SideEffectIrreversible,
		Args:       map[string]interface{}{"daily_budget": 100.0},
	}
	decision := Validate(call, connectedContext(500))
	require.Equal(t, framework.GuardrailConfirm, decision.Outcome)
	require.Equal(t, "explicit_confirmation", decision.Rule)

	gctx := connectedContext(500)
	gctx.UserConfirmed = true
	decision = Validate(call, gctx)
	require.Equal(t, framework.GuardrailAllow, decision.Outcome)
}

// TestConfirmationNeverOverridesBlock verifies a user yes cannot bypass the
// content policy or identity blocks.
func TestConfirmationNeverOverridesBlock(t *testing.T) {
	gctx := connectedContext(500)
	gctx.UserConfirmed = true
	call := ProposedCall{
		Name:       ToolPublishCampaign,
		SideEffect: framework.SideEffectIrreversible,
		Args: map[string]interface{}{
			"primary_text": "Get rich quick with our course",
		},
	}
	decision := Validate(call, gctx)
	require.Equal(t, framework.GuardrailBlock, decision.Outcome)

	gctx.AdAccountConnected = false
	decision = Validate(call, gctx)
	require.Equal(t, framework.GuardrailBlock, decision.Outcome)
	require.Equal(t, "missing_identity", decision.Rule)
}

// TestConfirmedBudgetPasses checks that once the user has confirmed the
// rendered summary, the budget gate is satisfied rather than re-fired.
func TestConfirmedBudgetPasses(t *testing.T) {
	gctx := connectedContext(500)
	gctx.UserConfirmed = true
	call := ProposedCall{
		Name:       ToolPublishCampaign,
		SideEffect: framework.SideEffectIrreversible,
		Args:       map[string]interface{}{"daily_budget": 2000.0},
	}
	decision := Validate(call, gctx)
	require.Equal(t, framework.GuardrailAllow, decision.Outcome)
}

// TestMutatingDefaultAllow verifies reversible calls like pause need no
// confirmation when no rule matches.
func TestMutatingDefaultAllow(t *testing.T) {
	call := ProposedCall{
		Name:       ToolPauseCampaign,
		SideEffect: framework.SideEffectMutating,
		Args:       map[string]interface{}{"campaign_id": "c-1"},
	}
	decision := Validate(call, connectedContext(500))
	require.Equal(t, framework.GuardrailAllow, decision.Outcome)
}

// TestIsAffirmative checks the strictness of the confirmation parser: only a
// bare yes counts, long messages are new instructions.
func TestIsAffirmative(t *testing.T) {
	for _, yes := range []string{"yes", "Yes!", " go ahead ", "Confirm", "ship it", "OK."} {
		require.True(t, IsAffirmative(yes), "%q should confirm", yes)
	}
	for _, no := range []string{
		"", "no", "not yet", "yes but lower the budget first",
		"ok let's start over with a new product",
	} {
		require.False(t, IsAffirmative(no), "%q should not confirm", no)
	}
}
