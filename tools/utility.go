package tools

import (
	"context"
	"fmt"

	"github.com/lexcodex/adpilot/framework"
)

// SimulateResultsTool projects campaign outcomes from industry averages. The
// numbers are expectation-setting only, never a promise.
type SimulateResultsTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *SimulateResultsTool) Name() string { return "simulate_results" }
func (t *SimulateResultsTool) Description() string {
	return "Estimates impressions, clicks and conversions for a budget over a duration. Rough projection from industry averages."
}
func (t *SimulateResultsTool) SideEffect() framework.SideEffect { return framework.SideEffectReadOnly }
func (t *SimulateResultsTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "daily_budget", Type: "number", Required: true},
		{Name: "duration_days", Type: "number", Required: false, Default: 7},
	}
}
func (t *SimulateResultsTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	budget := numberArg(args, "daily_budget", 0)
	if budget <= 0 {
		return framework.ToolFailure(framework.ToolErrInputInvalid, "daily_budget must be positive", false), nil
	}
	days := intArg(args, "duration_days", 7)
	total := budget * float64(days)

	// Industry averages: $10 CPM, 1.5% CTR, 3% CVR.
	impressions := int64(total / 10.0 * 1000)
	clicks := int64(float64(impressions) * 0.015)
	conversions := int64(float64(clicks) * 0.03)
	var cpc, cpa float64
	if clicks > 0 {
		cpc = total / float64(clicks)
	}
	if conversions > 0 {
		cpa = total / float64(conversions)
	}
	return framework.ToolSuccess(map[string]interface{}{
		"daily_budget":  budget,
		"duration_days": days,
		"total_budget":  total,
		"estimates": map[string]interface{}{
			"impressions": impressions,
			"clicks":      clicks,
			"conversions": conversions,
			"cpc":         cpc,
			"cpa":         cpa,
		},
		"ranges": map[string]interface{}{
			"impressions": fmt.Sprintf("%d - %d", impressions*7/10, impressions*13/10),
			"clicks":      fmt.Sprintf("%d - %d", clicks*7/10, clicks*13/10),
			"conversions": fmt.Sprintf("%d - %d", conversions/2, conversions*3/2),
		},
		"disclaimer": "Rough estimate from industry averages. Actual results depend on creative quality, targeting, and market conditions.",
	}), nil
}

// LogDecisionTool lets the agent write an explicit rationale entry to the
// activity log, beyond the automatic per-invocation records.
type LogDecisionTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *LogDecisionTool) Name() string { return "log_decision" }
func (t *LogDecisionTool) Description() string {
	return "Records a decision and its reasoning in the activity log for user transparency."
}
func (t *LogDecisionTool) SideEffect() framework.SideEffect { return framework.SideEffectMutating }
func (t *LogDecisionTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "action", Type: "string", Required: true},
		{Name: "rationale", Type: "string", Required: true},
		{Name: "entity_type", Type: "string", Required: false},
		{Name: "entity_id", Type: "string", Required: false},
	}
}
func (t *LogDecisionTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	entry := framework.ActivityEntry{
		ID:             t.deps.NewID(),
		ConversationID: t.conv.ID,
		Timestamp:      t.deps.Now(),
		Actor:          framework.ActorAgent,
		Action:         framework.ActionRecommendationMade,
		EntityType:     stringArg(args, "entity_type"),
		EntityID:       stringArg(args, "entity_id"),
		Rationale:      fmt.Sprintf("%s: %s", stringArg(args, "action"), stringArg(args, "rationale")),
	}
	if err := t.deps.Store.Record(ctx, entry); err != nil {
		return framework.ToolFailure(framework.ToolErrExecutionFailed, err.Error(), true), nil
	}
	return framework.ToolSuccess(map[string]interface{}{
		"log_id": entry.ID,
	}), nil
}
