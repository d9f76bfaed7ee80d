package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexcodex/adpilot/framework"
)

// PublishCampaignTool pushes a finished draft live. Publishing is
// irreversible: the orchestrator gates it behind an explicit confirmation and
// a recorded rationale before the call ever reaches Execute.
type PublishCampaignTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *PublishCampaignTool) Name() string { return "publish_campaign" }
func (t *PublishCampaignTool) Description() string {
	return "Publishes a draft as a live campaign on the ad platform. Cannot be undone."
}
func (t *PublishCampaignTool) SideEffect() framework.SideEffect {
	return framework.SideEffectIrreversible
}
func (t *PublishCampaignTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "draft_id", Type: "string", Required: false},
		{Name: "daily_budget", Type: "number", Required: false},
	}
}
func (t *PublishCampaignTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	draft, fail := loadDraft(ctx, t.deps, t.conv, args)
	if fail != nil {
		return fail, nil
	}
	if draft.Status == framework.DraftStatusPublished {
		return framework.ToolFailure(framework.ToolErrInputInvalid,
			fmt.Sprintf("draft %s is already published; create a variant to run it again", draft.ID), false), nil
	}
	if missing := incompleteFields(draft); len(missing) > 0 {
		return framework.ToolFailure(framework.ToolErrInputInvalid,
			fmt.Sprintf("draft is missing %s", strings.Join(missing, ", ")), false), nil
	}
	if budget := numberArg(args, "daily_budget", 0); budget > 0 {
		draft.DailyBudget = budget
	}
	if draft.DailyBudget <= 0 {
		ws, err := t.deps.Store.Workspace(ctx, t.conv.WorkspaceID)
		if err != nil {
			return framework.ToolFailure(framework.ToolErrExecutionFailed, err.Error(), true), nil
		}
		draft.DailyBudget = ws.DefaultDailyBudget
	}

	campaignID, err := t.deps.Publisher.Publish(ctx, draft)
	if err != nil {
		return framework.ToolFailure(framework.ToolErrExecutionFailed, err.Error(), true), nil
	}

	now := t.deps.Now()
	draft.Status = framework.DraftStatusPublished
	draft.UpdatedAt = now
	if err := t.deps.Store.SaveDraft(ctx, draft); err != nil {
		return framework.ToolFailure(framework.ToolErrExecutionFailed,
			fmt.Sprintf("campaign %s is live but the draft could not be updated: %v", campaignID, err), false), nil
	}

	// Published creative feeds the page's winner archive so later drafting
	// turns can build on it.
	if t.conv.PageID != "" {
		winner := &framework.PastWinner{
			ID:           t.deps.NewID(),
			PageID:       t.conv.PageID,
			CampaignName: draft.CampaignName,
			AdContent: map[string]interface{}{
				"primary_text": draft.PrimaryText,
				"headline":     draft.Headline,
				"cta":          draft.CTA,
			},
			Metrics:   map[string]interface{}{"campaign_id": campaignID, "daily_budget": draft.DailyBudget},
			CreatedAt: now,
		}
		if err := t.deps.Store.SavePastWinner(ctx, winner); err != nil {
			return framework.ToolFailure(framework.ToolErrExecutionFailed,
				fmt.Sprintf("campaign %s is live but the winner archive write failed: %v", campaignID, err), false), nil
		}
	}

	return framework.ToolSuccess(map[string]interface{}{
		"campaign_id":   campaignID,
		"draft_id":      draft.ID,
		"campaign_name": draft.CampaignName,
		"daily_budget":  draft.DailyBudget,
		"status":        "active",
	}), nil
}

func incompleteFields(draft *framework.AdDraft) []string {
	var missing []string
	if draft.PrimaryText == "" {
		missing = append(missing, "primary_text")
	}
	if draft.Headline == "" {
		missing = append(missing, "headline")
	}
	if draft.CTA == "" {
		missing = append(missing, "cta")
	}
	return missing
}

// PauseCampaignTool stops delivery for a live campaign.
type PauseCampaignTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *PauseCampaignTool) Name() string { return "pause_campaign" }
func (t *PauseCampaignTool) Description() string {
	return "Pauses a live campaign. Delivery stops until it is resumed."
}
func (t *PauseCampaignTool) SideEffect() framework.SideEffect { return framework.SideEffectMutating }
func (t *PauseCampaignTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "campaign_id", Type: "string", Required: true},
	}
}
func (t *PauseCampaignTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	id := stringArg(args, "campaign_id")
	if err := t.deps.Publisher.Pause(ctx, id); err != nil {
		return framework.ToolFailure(framework.ToolErrExecutionFailed, err.Error(), true), nil
	}
	return framework.ToolSuccess(map[string]interface{}{
		"campaign_id": id,
		"status":      "paused",
	}), nil
}

// ResumeCampaignTool restarts delivery for a paused campaign.
type ResumeCampaignTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *ResumeCampaignTool) Name() string { return "resume_campaign" }
func (t *ResumeCampaignTool) Description() string {
	return "Resumes delivery for a paused campaign."
}
func (t *ResumeCampaignTool) SideEffect() framework.SideEffect { return framework.SideEffectMutating }
func (t *ResumeCampaignTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "campaign_id", Type: "string", Required: true},
	}
}
func (t *ResumeCampaignTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	id := stringArg(args, "campaign_id")
	if err := t.deps.Publisher.Resume(ctx, id); err != nil {
		return framework.ToolFailure(framework.ToolErrExecutionFailed, err.Error(), true), nil
	}
	return framework.ToolSuccess(map[string]interface{}{
		"campaign_id": id,
		"status":      "active",
	}), nil
}

// AdjustBudgetTool changes a live campaign's daily budget. Large increases are
// caught by the guardrail before dispatch.
type AdjustBudgetTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *AdjustBudgetTool) Name() string { return "adjust_budget" }
func (t *AdjustBudgetTool) Description() string {
	return "Sets a new daily budget on a live campaign."
}
func (t *AdjustBudgetTool) SideEffect() framework.SideEffect { return framework.SideEffectMutating }
func (t *AdjustBudgetTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "campaign_id", Type: "string", Required: true},
		{Name: "daily_budget", Type: "number", Required: true},
	}
}
func (t *AdjustBudgetTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	id := stringArg(args, "campaign_id")
	budget := numberArg(args, "daily_budget", 0)
	if budget <= 0 {
		return framework.ToolFailure(framework.ToolErrInputInvalid, "daily_budget must be positive", false), nil
	}
	if err := t.deps.Publisher.SetDailyBudget(ctx, id, budget); err != nil {
		return framework.ToolFailure(framework.ToolErrExecutionFailed, err.Error(), true), nil
	}
	return framework.ToolSuccess(map[string]interface{}{
		"campaign_id":  id,
		"daily_budget": budget,
	}), nil
}
