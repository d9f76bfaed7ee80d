package framework

import "time"

// WorkspaceSettings is the read-only snapshot of workspace-level defaults the
// engine consumes: guardrail inputs and prompt context. Owned by external
// settings storage, never mutated here.
type WorkspaceSettings struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	DefaultDailyBudget float64 `json:"default_daily_budget"`
	Currency           string  `json:"currency"`
	DefaultObjective   string  `json:"default_objective,omitempty"`
	Timezone           string  `json:"timezone,omitempty"`
	AdAccountConnected bool    `json:"ad_account_connected"`
}

// PageSettings holds per-page tone and targeting defaults. Page-scoped
// conversations inject only their own page's settings so tone and audience
// never bleed between pages.
type PageSettings struct {
	ID                 string   `json:"id"`
	WorkspaceID        string   `json:"workspace_id"`
	Name               string   `json:"name"`
	Tone               string   `json:"tone,omitempty"`
	CTAStyle           string   `json:"cta_style,omitempty"`
	TargetMarkets      []string `json:"target_markets,omitempty"`
	DefaultDailyBudget float64  `json:"default_daily_budget,omitempty"`
	Primary            bool     `json:"primary,omitempty"`
	Included           bool     `json:"included"`
}

// Product is an advertisable item tagged to one or more pages.
type Product struct {
	ID             string   `json:"id"`
	WorkspaceID    string   `json:"workspace_id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Price          float64  `json:"price,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	USP            string   `json:"usp,omitempty"`
	TargetAudience string   `json:"target_audience,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	PageIDs        []string `json:"page_ids,omitempty"`
	Active         bool     `json:"active"`
}

// PerformanceStats aggregates delivery metrics over a time range.
type PerformanceStats struct {
	TimeRange   string  `json:"time_range"`
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	Conversions int64   `json:"conversions"`
	ROAS        float64 `json:"roas"`
}

// Performer summarizes one campaign or ad for ranking.
type Performer struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Spend       float64 `json:"spend"`
	ROAS        float64 `json:"roas"`
	CTR         float64 `json:"ctr"`
	Conversions int64   `json:"conversions"`
}

// PastWinner records a previously winning ad so page-scoped memory can feed
// it back into creative work.
type PastWinner struct {
	ID           string                 `json:"id"`
	PageID       string                 `json:"page_id"`
	CampaignName string                 `json:"campaign_name"`
	AdContent    map[string]interface{} `json:"ad_content,omitempty"`
	Metrics      map[string]interface{} `json:"metrics,omitempty"`
	Factors      string                 `json:"factors,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// MemoryContext is the ephemeral, request-scoped assembly injected into each
// orchestration turn. It is rebuilt on every turn and never cached across
// turns, so performance facts and settings are never stale. Caching within a
// single turn across reasoning steps is fine.
type MemoryContext struct {
	Scope          Scope               `json:"scope"`
	RecentMessages []ChatMessage       `json:"recent_messages,omitempty"`
	Workspace      WorkspaceSettings   `json:"workspace"`
	Page           *PageSettings       `json:"page,omitempty"`
	ActiveProduct  *Product            `json:"active_product,omitempty"`
	PageProducts   []Product           `json:"page_products,omitempty"`
	ActiveDraft    *AdDraft            `json:"active_draft,omitempty"`
	Performance    *PerformanceStats   `json:"performance,omitempty"`
	PastWinners    []PastWinner        `json:"past_winners,omitempty"`
	PageBreakdown  []PagePerformance   `json:"page_breakdown,omitempty"`
	// PinnedSummary carries the archived-legacy digest for account-wide
	// conversations. PinnedSummaryInjected flags it so the backend is told
	// not to re-summarize it every turn.
	PinnedSummary         string `json:"pinned_summary,omitempty"`
	PinnedSummaryInjected bool   `json:"pinned_summary_injected,omitempty"`
}

// PagePerformance pairs a page with its recent stats for the account-wide
// breakdown.
type PagePerformance struct {
	Page  PageSettings     `json:"page"`
	Stats PerformanceStats `json:"stats"`
}
