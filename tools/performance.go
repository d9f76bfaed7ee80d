package tools

import (
	"context"
	"fmt"

	"github.com/lexcodex/adpilot/framework"
)

// resolvePage picks the page a performance lookup runs against. Page-scoped
// conversations are pinned to their own page; asking about another page is a
// scope violation, not a lookup miss.
func resolvePage(conv *framework.Conversation, args map[string]interface{}) (string, *framework.ToolResult) {
	requested := stringArg(args, "page_id")
	if conv.Scope == framework.ScopePage {
		if requested != "" && requested != conv.PageID {
			return "", framework.ToolFailure(framework.ToolErrInputInvalid,
				fmt.Sprintf("this conversation is scoped to page %s and cannot read page %s", conv.PageID, requested), false)
		}
		return conv.PageID, nil
	}
	if requested == "" {
		return "", framework.ToolFailure(framework.ToolErrInputInvalid,
			"page_id is required in the account overview", false)
	}
	return requested, nil
}

// PagePerformanceTool reports delivery metrics for one page.
type PagePerformanceTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *PagePerformanceTool) Name() string { return "get_page_performance" }
func (t *PagePerformanceTool) Description() string {
	return "Returns spend, CTR, CPC, conversions and ROAS for a page over a time range."
}
func (t *PagePerformanceTool) SideEffect() framework.SideEffect { return framework.SideEffectReadOnly }
func (t *PagePerformanceTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "page_id", Type: "string", Required: false},
		{Name: "time_range", Type: "string", Required: false, Default: "last_30d"},
	}
}
func (t *PagePerformanceTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	pageID, fail := resolvePage(t.conv, args)
	if fail != nil {
		return fail, nil
	}
	stats, err := t.deps.Performance.PagePerformance(ctx, pageID, timeRangeArg(args))
	if err != nil {
		return framework.ToolFailure(framework.ToolErrUnavailable, err.Error(), true), nil
	}
	return framework.ToolSuccess(map[string]interface{}{
		"page_id": pageID,
		"stats":   stats,
	}), nil
}

// WorkspacePerformanceTool aggregates metrics across the whole workspace.
type WorkspacePerformanceTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *WorkspacePerformanceTool) Name() string { return "get_workspace_performance" }
func (t *WorkspacePerformanceTool) Description() string {
	return "Returns aggregate delivery metrics across every included page in the workspace."
}
func (t *WorkspacePerformanceTool) SideEffect() framework.SideEffect {
	return framework.SideEffectReadOnly
}
func (t *WorkspacePerformanceTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "time_range", Type: "string", Required: false, Default: "last_30d"},
	}
}
func (t *WorkspacePerformanceTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	stats, err := t.deps.Performance.WorkspacePerformance(ctx, t.conv.WorkspaceID, timeRangeArg(args))
	if err != nil {
		return framework.ToolFailure(framework.ToolErrUnavailable, err.Error(), true), nil
	}
	return framework.ToolSuccess(map[string]interface{}{
		"workspace_id": t.conv.WorkspaceID,
		"stats":        stats,
	}), nil
}

// PageBreakdownTool lists per-page metrics side by side.
type PageBreakdownTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *PageBreakdownTool) Name() string { return "get_page_breakdown" }
func (t *PageBreakdownTool) Description() string {
	return "Compares delivery metrics across pages, one row per page."
}
func (t *PageBreakdownTool) SideEffect() framework.SideEffect { return framework.SideEffectReadOnly }
func (t *PageBreakdownTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "time_range", Type: "string", Required: false, Default: "last_30d"},
	}
}
func (t *PageBreakdownTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	if t.conv.Scope == framework.ScopePage {
		return framework.ToolFailure(framework.ToolErrInputInvalid,
			"cross-page comparison is only available in the account overview", false), nil
	}
	rows, err := t.deps.Performance.PageBreakdown(ctx, t.conv.WorkspaceID, timeRangeArg(args))
	if err != nil {
		return framework.ToolFailure(framework.ToolErrUnavailable, err.Error(), true), nil
	}
	return framework.ToolSuccess(map[string]interface{}{
		"workspace_id": t.conv.WorkspaceID,
		"pages":        rows,
	}), nil
}

// TopPerformersTool ranks the best ads on a page.
type TopPerformersTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *TopPerformersTool) Name() string { return "get_top_performers" }
func (t *TopPerformersTool) Description() string {
	return "Lists the best performing ads for a page, ranked by the chosen metric."
}
func (t *TopPerformersTool) SideEffect() framework.SideEffect { return framework.SideEffectReadOnly }
func (t *TopPerformersTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "page_id", Type: "string", Required: false},
		{Name: "metric", Type: "string", Required: false, Default: "roas"},
		{Name: "limit", Type: "number", Required: false, Default: 3},
	}
}
func (t *TopPerformersTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	pageID, fail := resolvePage(t.conv, args)
	if fail != nil {
		return fail, nil
	}
	metric := stringArg(args, "metric")
	if metric == "" {
		metric = "roas"
	}
	performers, err := t.deps.Performance.TopPerformers(ctx, pageID, metric, intArg(args, "limit", 3))
	if err != nil {
		return framework.ToolFailure(framework.ToolErrUnavailable, err.Error(), true), nil
	}
	return framework.ToolSuccess(map[string]interface{}{
		"page_id":    pageID,
		"metric":     metric,
		"performers": performers,
	}), nil
}

// UnderperformersTool surfaces ads that are losing money, with a recommended
// next step per ad.
type UnderperformersTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *UnderperformersTool) Name() string { return "get_underperformers" }
func (t *UnderperformersTool) Description() string {
	return "Lists ads performing below break-even, each with a recommended action."
}
func (t *UnderperformersTool) SideEffect() framework.SideEffect { return framework.SideEffectReadOnly }
func (t *UnderperformersTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "page_id", Type: "string", Required: false},
		{Name: "metric", Type: "string", Required: false, Default: "roas"},
		{Name: "limit", Type: "number", Required: false, Default: 3},
	}
}
func (t *UnderperformersTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	pageID, fail := resolvePage(t.conv, args)
	if fail != nil {
		return fail, nil
	}
	metric := stringArg(args, "metric")
	if metric == "" {
		metric = "roas"
	}
	performers, err := t.deps.Performance.Underperformers(ctx, pageID, metric, intArg(args, "limit", 3))
	if err != nil {
		return framework.ToolFailure(framework.ToolErrUnavailable, err.Error(), true), nil
	}
	rows := make([]map[string]interface{}, 0, len(performers))
	for _, p := range performers {
		rec := "refresh the creative"
		if p.ROAS < 1.0 {
			rec = "pause and reallocate the budget"
		}
		rows = append(rows, map[string]interface{}{
			"ad":             p,
			"recommendation": rec,
		})
	}
	return framework.ToolSuccess(map[string]interface{}{
		"page_id":         pageID,
		"metric":          metric,
		"underperformers": rows,
	}), nil
}

// PastWinnersTool pulls the page's winning-ad archive so new creative can
// build on what already worked.
type PastWinnersTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *PastWinnersTool) Name() string { return "get_past_winners" }
func (t *PastWinnersTool) Description() string {
	return "Returns previously winning ads for this page with the factors behind them."
}
func (t *PastWinnersTool) SideEffect() framework.SideEffect { return framework.SideEffectReadOnly }
func (t *PastWinnersTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "limit", Type: "number", Required: false, Default: 5},
	}
}
func (t *PastWinnersTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	if t.conv.PageID == "" {
		return framework.ToolFailure(framework.ToolErrInputInvalid,
			"past winners are page-scoped; open the page's war room", false), nil
	}
	winners, err := t.deps.Store.PastWinners(ctx, t.conv.PageID, intArg(args, "limit", 5))
	if err != nil {
		return framework.ToolFailure(framework.ToolErrExecutionFailed, err.Error(), true), nil
	}
	return framework.ToolSuccess(map[string]interface{}{
		"page_id": t.conv.PageID,
		"winners": winners,
	}), nil
}
