package agents

// Canonical tool names dispatched through the orchestration loop. Tool
// implementations register under these names; the guardrail and state
// machine key off them.
const (
	// Performance (read-only).
	ToolGetPagePerformance      = "get_page_performance"
	ToolGetWorkspacePerformance = "get_workspace_performance"
	ToolGetPageBreakdown        = "get_page_breakdown"
	ToolGetTopPerformers        = "get_top_performers"
	ToolGetUnderperformers      = "get_underperformers"
	ToolGetPastWinners          = "get_past_winners"

	// Creative (read-only over drafts and media).
	ToolGenerateCopy     = "generate_ad_copy"
	ToolGenerateVariants = "generate_variants"
	ToolEditDraft        = "edit_draft"
	ToolSuggestAudience  = "suggest_audience"
	ToolSearchImages     = "search_stock_images"
	ToolGetDraftPreview  = "get_draft_preview"

	// Execution (mutating / irreversible).
	ToolPublishCampaign = "publish_campaign"
	ToolPauseCampaign   = "pause_campaign"
	ToolResumeCampaign  = "resume_campaign"
	ToolAdjustBudget    = "adjust_budget"

	// Utility.
	ToolSimulateResults = "simulate_results"
	ToolLogDecision     = "log_decision"
)

// Persona is a named bundle of tools plus a prompt fragment, dispatched
// through the same orchestration loop rather than a separate agent type.
type Persona struct {
	Name        string
	Description string
	Tools       []string
	Prompt      string
}

// Personas available to the engine, keyed by name.
var Personas = map[string]Persona{
	"performance_analyst": {
		Name:        "performance_analyst",
		Description: "Reads delivery metrics and finds what is working and what is wasting spend.",
		Tools: []string{
			ToolGetPagePerformance, ToolGetWorkspacePerformance, ToolGetPageBreakdown,
			ToolGetTopPerformers, ToolGetUnderperformers, ToolGetPastWinners,
		},
		Prompt: "You are a performance analyst. Ground every claim in the metrics you fetch; cite CTR, CPC, and ROAS numbers rather than impressions alone. Flag underperformers before recommending new spend.",
	},
	"creative_strategist": {
		Name:        "creative_strategist",
		Description: "Turns products and performance history into creative angles.",
		Tools: []string{
			ToolGetPastWinners, ToolGetPagePerformance, ToolSuggestAudience, ToolSearchImages,
		},
		Prompt: "You are a creative strategist. Propose two or three distinct angles anchored in the product's selling point and the page's past winners. Recommend, do not draft final copy.",
	},
	"copywriter": {
		Name:        "copywriter",
		Description: "Writes and revises ad copy within platform character limits.",
		Tools: []string{
			ToolGenerateCopy, ToolGenerateVariants, ToolEditDraft, ToolGetDraftPreview, ToolSearchImages,
		},
		Prompt: "You are the copywriter. Respect the page's tone settings and the platform limits: primary text up to 300 characters with 125 recommended before the feed folds it, headline 40, description up to 90 with 30 recommended. Always produce a call-to-action from the allowed list.",
	},
	"execution": {
		Name:        "execution",
		Description: "Publishes, pauses, and adjusts live campaigns under guardrails.",
		Tools: []string{
			ToolPublishCampaign, ToolPauseCampaign, ToolResumeCampaign,
			ToolAdjustBudget, ToolGetDraftPreview, ToolLogDecision,
		},
		Prompt: "You handle campaign execution. Before any publish, render a confirmation summary with budget, audience, and copy, and wait for the user's explicit approval. Never publish without it.",
	},
	"general": {
		Name:        "general",
		Description: "Full-service ad assistant with the complete tool set.",
		Tools:       nil, // nil means every registered tool
		Prompt:      "You are a hands-on advertising assistant for small business pages. Be concrete, use the page's own data, and prefer one clear recommendation over a menu of options.",
	},
}

// PersonaFor picks the persona whose bundle fits the conversation scope.
// Account-wide conversations default to the analyst view; page-scoped ones
// get the full bundle.
func PersonaFor(name string) Persona {
	if persona, ok := Personas[name]; ok {
		return persona
	}
	return Personas["general"]
}
