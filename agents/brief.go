package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexcodex/adpilot/framework"
	"github.com/lexcodex/adpilot/persistence"
)

// BriefRecommendation is one rule-derived suggestion in the daily brief.
type BriefRecommendation struct {
	Kind      string `json:"kind"`
	Entity    string `json:"entity,omitempty"`
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
}

// DailyBrief is the proactive morning summary for a workspace: last-7-day
// performance, the leading ad across included pages, and what to do about it.
type DailyBrief struct {
	Message         string                      `json:"message"`
	HasData         bool                        `json:"has_data"`
	Stats           *framework.PerformanceStats `json:"stats,omitempty"`
	TopPerformer    *framework.Performer        `json:"top_performer,omitempty"`
	Recommendations []BriefRecommendation       `json:"recommendations"`
}

// GenerateDailyBrief assembles the brief from workspace performance and the
// per-page winner ranking. A workspace without a connected ad account gets
// the onboarding nudge instead of metrics.
func GenerateDailyBrief(ctx context.Context, store persistence.Store, perf framework.PerformanceSource, workspaceID string) (*DailyBrief, error) {
	ws, err := store.Workspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	if !ws.AdAccountConnected {
		return &DailyBrief{
			Message: "Welcome! Connect your advertising account to get personalized performance insights.",
		}, nil
	}

	stats, err := perf.WorkspacePerformance(ctx, workspaceID, "last_7d")
	if err != nil {
		return nil, fmt.Errorf("workspace performance: %w", err)
	}

	pages, err := store.Pages(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	var top *framework.Performer
	for _, page := range pages {
		if !page.Included {
			continue
		}
		performers, err := perf.TopPerformers(ctx, page.ID, "roas", 1)
		if err != nil || len(performers) == 0 {
			continue
		}
		if top == nil || performers[0].ROAS > top.ROAS {
			leader := performers[0]
			top = &leader
		}
	}

	recs := briefRecommendations(stats, top)
	return &DailyBrief{
		Message:         renderBrief(stats, top, recs),
		HasData:         true,
		Stats:           stats,
		TopPerformer:    top,
		Recommendations: recs,
	}, nil
}

// briefRecommendations applies the ROAS rules: scale above target, review
// below breakeven, and call out a winner that clearly beats the average.
func briefRecommendations(stats *framework.PerformanceStats, top *framework.Performer) []BriefRecommendation {
	var recs []BriefRecommendation
	switch {
	case stats.ROAS > 3:
		recs = append(recs, BriefRecommendation{
			Kind:      "scale",
			Action:    "Consider increasing budget",
			Rationale: fmt.Sprintf("workspace ROAS of %.1fx is above target", stats.ROAS),
		})
	case stats.ROAS < 1:
		recs = append(recs, BriefRecommendation{
			Kind:      "optimize",
			Action:    "Review underperforming campaigns",
			Rationale: fmt.Sprintf("workspace ROAS of %.1fx is below breakeven", stats.ROAS),
		})
	}
	if top != nil && stats.ROAS > 0 && top.ROAS > stats.ROAS*1.5 {
		recs = append(recs, BriefRecommendation{
			Kind:      "scale",
			Entity:    top.Name,
			Action:    fmt.Sprintf("Increase budget on %q", top.Name),
			Rationale: fmt.Sprintf("performing %.1fx better than the workspace average", top.ROAS/stats.ROAS),
		})
	}
	return recs
}

func renderBrief(stats *framework.PerformanceStats, top *framework.Performer, recs []BriefRecommendation) string {
	var b strings.Builder
	b.WriteString("Good morning! Here's your daily ad performance summary.\n\n")
	fmt.Fprintf(&b, "Last 7 days:\n- Spend: $%.2f\n- Impressions: %d\n- Clicks: %d\n- CTR: %.2f%%\n- Conversions: %d\n- ROAS: %.1fx\n",
		stats.Spend, stats.Impressions, stats.Clicks, stats.CTR, stats.Conversions, stats.ROAS)
	if top != nil {
		fmt.Fprintf(&b, "\nTop performer: %q with ROAS %.1fx\n", top.Name, top.ROAS)
	}
	if len(recs) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range recs {
			fmt.Fprintf(&b, "- %s (%s)\n", rec.Action, rec.Rationale)
		}
	}
	b.WriteString("\nWhat would you like to focus on today?")
	return b.String()
}
