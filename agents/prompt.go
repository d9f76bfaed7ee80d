package agents

import (
	"fmt"
	"strings"

	"github.com/lexcodex/adpilot/framework"
)

// BuildSystemPrompt renders the persona instructions plus the scoped memory
// assembly into the system message for one turn.
func BuildSystemPrompt(persona Persona, mc *framework.MemoryContext, tools []framework.Tool) string {
	var b strings.Builder
	b.WriteString(persona.Prompt)
	b.WriteString("\n\nAvailable tools:\n")
	for _, tool := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name(), tool.Description())
	}

	if mc.Workspace.Name != "" {
		fmt.Fprintf(&b, "\nWorkspace: %s (default daily budget %.2f %s, objective %s, ad account connected: %t)\n",
			mc.Workspace.Name, mc.Workspace.DefaultDailyBudget, mc.Workspace.Currency,
			mc.Workspace.DefaultObjective, mc.Workspace.AdAccountConnected)
	}

	if mc.Page != nil {
		fmt.Fprintf(&b, "\nPage: %s\n", mc.Page.Name)
		if mc.Page.Tone != "" {
			fmt.Fprintf(&b, "- tone: %s\n", mc.Page.Tone)
		}
		if mc.Page.CTAStyle != "" {
			fmt.Fprintf(&b, "- call-to-action style: %s\n", mc.Page.CTAStyle)
		}
		if len(mc.Page.TargetMarkets) > 0 {
			fmt.Fprintf(&b, "- target markets: %s\n", strings.Join(mc.Page.TargetMarkets, ", "))
		}
		if mc.Page.DefaultDailyBudget > 0 {
			fmt.Fprintf(&b, "- default daily budget: %.2f\n", mc.Page.DefaultDailyBudget)
		}
	}

	if mc.ActiveProduct != nil {
		fmt.Fprintf(&b, "\nActive product: %s", mc.ActiveProduct.Name)
		if mc.ActiveProduct.USP != "" {
			fmt.Fprintf(&b, " -- %s", mc.ActiveProduct.USP)
		}
		b.WriteRune('\n')
	}
	if len(mc.PageProducts) > 0 {
		b.WriteString("Products on this page:\n")
		for _, product := range mc.PageProducts {
			fmt.Fprintf(&b, "- %s", product.Name)
			if product.Price > 0 {
				fmt.Fprintf(&b, " (%.2f %s)", product.Price, product.Currency)
			}
			b.WriteRune('\n')
		}
	}

	if mc.Performance != nil {
		p := mc.Performance
		fmt.Fprintf(&b, "\nPerformance (%s): spend %.2f, impressions %d, clicks %d, CTR %.2f%%, CPC %.2f, ROAS %.2f\n",
			p.TimeRange, p.Spend, p.Impressions, p.Clicks, p.CTR*100, p.CPC, p.ROAS)
	}
	if len(mc.PageBreakdown) > 0 {
		b.WriteString("Per-page breakdown:\n")
		for _, page := range mc.PageBreakdown {
			fmt.Fprintf(&b, "- %s: spend %.2f, CTR %.2f%%, ROAS %.2f\n",
				page.Page.Name, page.Stats.Spend, page.Stats.CTR*100, page.Stats.ROAS)
		}
	}

	if len(mc.PastWinners) > 0 {
		b.WriteString("\nPast winners on this page:\n")
		for _, winner := range mc.PastWinners {
			fmt.Fprintf(&b, "- %s", winner.CampaignName)
			if winner.Factors != "" {
				fmt.Fprintf(&b, " (worked because: %s)", winner.Factors)
			}
			b.WriteRune('\n')
		}
	}

	if mc.ActiveDraft != nil {
		d := mc.ActiveDraft
		fmt.Fprintf(&b, "\nActive draft (variant %d, status %s):\n- headline: %s\n- primary text: %s\n- CTA: %s\n- daily budget: %.2f\n",
			d.VariantNumber, d.Status, d.Headline, d.PrimaryText, d.CTA, d.DailyBudget)
	}

	if mc.PinnedSummary != "" {
		if mc.PinnedSummaryInjected {
			b.WriteString("\nA summary of this workspace's legacy campaigns was shared earlier in this conversation; do not re-summarize it.\n")
		} else {
			b.WriteString("\nLegacy campaign summary (reference material, already summarized -- do not summarize again):\n")
			b.WriteString(mc.PinnedSummary)
			b.WriteRune('\n')
		}
	}

	b.WriteString("\nWhen you call a tool, wait for its response before continuing. When the work is complete, reply to the user in plain text.")
	return b.String()
}

// RenderConfirmationSummary produces the human-readable summary the user must
// approve before an irreversible or over-budget action is dispatched.
func RenderConfirmationSummary(call ProposedCall, decision framework.GuardrailDecision, draft *framework.AdDraft) string {
	var b strings.Builder
	b.WriteString("Before I proceed, please confirm:\n\n")
	switch call.Name {
	case ToolPublishCampaign:
		b.WriteString("Action: publish campaign\n")
		if draft != nil {
			fmt.Fprintf(&b, "Campaign: %s\nHeadline: %s\nPrimary text: %s\nCTA: %s\nDaily budget: %.2f\n",
				draft.CampaignName, draft.Headline, draft.PrimaryText, draft.CTA, draft.DailyBudget)
		}
	case ToolAdjustBudget:
		b.WriteString("Action: adjust daily budget\n")
		if budget, ok := requestedBudget(call); ok {
			fmt.Fprintf(&b, "New daily budget: %.2f\n", budget)
		}
	default:
		fmt.Fprintf(&b, "Action: %s\n", call.Name)
	}
	if decision.Reason != "" {
		fmt.Fprintf(&b, "\nNote: %s.\n", decision.Reason)
	}
	b.WriteString("\nReply \"yes\" to proceed or tell me what to change.")
	return b.String()
}
