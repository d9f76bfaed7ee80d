package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lexcodex/adpilot/framework"
)

// Facebook creative character limits. Copy over a hard maximum is truncated
// at a word boundary; copy within the maximum but past the recommended
// display length is kept intact and flagged, since the platform merely folds
// it behind "see more".
const (
	maxPrimaryText = 300
	maxHeadline    = 40
	maxDescription = 90

	recommendedPrimaryText = 125
	recommendedDescription = 30
)

// lengthWarnings flags copy that fits the hard limits but overruns the
// recommended display length.
func lengthWarnings(draft *framework.AdDraft) []string {
	var warnings []string
	if len(draft.PrimaryText) > recommendedPrimaryText {
		warnings = append(warnings, fmt.Sprintf(
			"primary text is %d characters; anything past %d is folded behind \"see more\" in the feed",
			len(draft.PrimaryText), recommendedPrimaryText))
	}
	if len(draft.Description) > recommendedDescription {
		warnings = append(warnings, fmt.Sprintf(
			"description is %d characters; %d or fewer displays reliably across placements",
			len(draft.Description), recommendedDescription))
	}
	return warnings
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndex(cut, " "); idx > max/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.") + "…"
}

// loadDraft resolves the draft a creative tool operates on: the explicit
// draft_id argument, or the conversation's latest draft.
func loadDraft(ctx context.Context, deps Deps, conv *framework.Conversation, args map[string]interface{}) (*framework.AdDraft, *framework.ToolResult) {
	if id := stringArg(args, "draft_id"); id != "" {
		draft, err := deps.Store.Draft(ctx, id)
		if err != nil {
			return nil, framework.ToolFailure(framework.ToolErrNotFound, fmt.Sprintf("draft %s: %v", id, err), false)
		}
		if draft.ConversationID != conv.ID {
			return nil, framework.ToolFailure(framework.ToolErrInputInvalid,
				fmt.Sprintf("draft %s belongs to another conversation", id), false)
		}
		return draft, nil
	}
	draft, err := deps.Store.LatestDraft(ctx, conv.ID)
	if err != nil {
		return nil, framework.ToolFailure(framework.ToolErrNotFound,
			"no draft exists in this conversation yet; generate ad copy first", false)
	}
	return draft, nil
}

// GenerateCopyTool drafts primary text, headline and description from a brief.
type GenerateCopyTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *GenerateCopyTool) Name() string { return "generate_ad_copy" }
func (t *GenerateCopyTool) Description() string {
	return "Generates ad copy from a creative brief and saves it as a new draft. Copy respects platform character limits."
}
func (t *GenerateCopyTool) SideEffect() framework.SideEffect { return framework.SideEffectMutating }
func (t *GenerateCopyTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "brief", Type: "string", Required: true},
		{Name: "tone", Type: "string", Required: false, Default: "friendly"},
		{Name: "product_id", Type: "string", Required: false},
		{Name: "campaign_name", Type: "string", Required: false},
	}
}
func (t *GenerateCopyTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	brief := strings.TrimSpace(stringArg(args, "brief"))
	tone := stringArg(args, "tone")
	if tone == "" {
		tone = "friendly"
	}

	var product *framework.Product
	if pid := stringArg(args, "product_id"); pid != "" {
		p, err := t.deps.Store.Product(ctx, pid)
		if err != nil {
			return framework.ToolFailure(framework.ToolErrNotFound, fmt.Sprintf("product %s: %v", pid, err), false), nil
		}
		product = p
	}

	copySet := t.compose(ctx, brief, tone, product)
	now := t.deps.Now()
	draft := &framework.AdDraft{
		ID:             t.deps.NewID(),
		ConversationID: t.conv.ID,
		WorkspaceID:    t.conv.WorkspaceID,
		CampaignName:   stringArg(args, "campaign_name"),
		PrimaryText:    clip(copySet.Primary, maxPrimaryText),
		Headline:       clip(copySet.Headline, maxHeadline),
		Description:    clip(copySet.Description, maxDescription),
		CTA:            copySet.CTA,
		Status:         framework.DraftStatusDraft,
		VariantNumber:  1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if draft.CampaignName == "" {
		draft.CampaignName = clip(brief, maxHeadline)
	}
	if product != nil {
		draft.AdName = product.Name
	}
	if err := t.deps.Store.SaveDraft(ctx, draft); err != nil {
		return framework.ToolFailure(framework.ToolErrExecutionFailed, err.Error(), true), nil
	}
	result := map[string]interface{}{
		"draft_id": draft.ID,
		"preview":  draft.Preview(),
	}
	if warnings := lengthWarnings(draft); len(warnings) > 0 {
		result["warnings"] = warnings
	}
	return framework.ToolSuccess(result), nil
}

type copySet struct {
	Primary     string `json:"primary_text"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	CTA         string `json:"cta"`
}

// compose asks the completion backend for copy and falls back to a template
// when no backend is wired or its output is unusable.
func (t *GenerateCopyTool) compose(ctx context.Context, brief, tone string, product *framework.Product) copySet {
	if t.deps.Model != nil {
		prompt := fmt.Sprintf(
			"Write Facebook ad copy in a %s tone for this brief: %s\n"+
				"Respond with only a JSON object: {\"primary_text\": ..., \"headline\": ..., \"description\": ..., \"cta\": one of %s}",
			tone, brief, strings.Join(framework.ValidCTAs, ", "))
		if product != nil {
			prompt += fmt.Sprintf("\nProduct: %s. %s USP: %s", product.Name, product.Description, product.USP)
		}
		resp, err := t.deps.Model.Generate(ctx, prompt, &framework.LLMOptions{Temperature: 0.8})
		if err == nil && resp != nil {
			var cs copySet
			text := resp.Text
			if start := strings.Index(text, "{"); start >= 0 {
				if end := strings.LastIndex(text, "}"); end > start {
					text = text[start : end+1]
				}
			}
			if json.Unmarshal([]byte(text), &cs) == nil && cs.Primary != "" {
				if !validCTA(cs.CTA) {
					cs.CTA = "learn_more"
				}
				return cs
			}
		}
	}
	subject := brief
	if product != nil {
		subject = product.Name
	}
	return copySet{
		Primary:     fmt.Sprintf("%s. Made for people who care about quality, without the premium price tag.", subject),
		Headline:    subject,
		Description: "Limited time offer",
		CTA:         "shop_now",
	}
}

func validCTA(cta string) bool {
	for _, v := range framework.ValidCTAs {
		if v == cta {
			return true
		}
	}
	return false
}

// GenerateVariantsTool derives alternate angles from an existing draft.
type GenerateVariantsTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *GenerateVariantsTool) Name() string { return "generate_variants" }
func (t *GenerateVariantsTool) Description() string {
	return "Creates new variants of an existing draft, each exploring a different angle."
}
func (t *GenerateVariantsTool) SideEffect() framework.SideEffect { return framework.SideEffectMutating }
func (t *GenerateVariantsTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "draft_id", Type: "string", Required: false},
		{Name: "count", Type: "number", Required: false, Default: 2},
	}
}

var variantAngles = []struct {
	label  string
	prefix string
}{
	{"urgency", "Don't wait: "},
	{"social proof", "Loved by thousands: "},
	{"value", "More for less: "},
}

func (t *GenerateVariantsTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	parent, fail := loadDraft(ctx, t.deps, t.conv, args)
	if fail != nil {
		return fail, nil
	}
	count := intArg(args, "count", 2)
	if count > len(variantAngles) {
		count = len(variantAngles)
	}
	ids := make([]string, 0, count)
	previews := make([]map[string]interface{}, 0, count)
	prev := parent
	for i := 0; i < count; i++ {
		angle := variantAngles[i]
		v := prev.NewVariant(t.deps.NewID(), t.deps.Now())
		v.PrimaryText = clip(angle.prefix+parent.PrimaryText, maxPrimaryText)
		v.AdName = strings.TrimSpace(fmt.Sprintf("%s (%s)", parent.AdName, angle.label))
		if err := t.deps.Store.SaveDraft(ctx, v); err != nil {
			return framework.ToolFailure(framework.ToolErrExecutionFailed, err.Error(), true), nil
		}
		ids = append(ids, v.ID)
		previews = append(previews, v.Preview())
		prev = v
	}
	return framework.ToolSuccess(map[string]interface{}{
		"parent_draft_id": parent.ID,
		"variant_ids":     ids,
		"variants":        previews,
		"draft_id":        prev.ID,
	}), nil
}

// Draft fields the edit tool is allowed to touch.
var editableFields = map[string]bool{
	"campaign_name": true, "ad_name": true, "primary_text": true,
	"headline": true, "description": true, "cta": true, "media_url": true,
	"daily_budget": true, "objective": true,
}

// EditDraftTool applies field-level changes. Published drafts are never
// mutated in place: an edit forks a new variant instead.
type EditDraftTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *EditDraftTool) Name() string { return "edit_draft" }
func (t *EditDraftTool) Description() string {
	return "Updates fields on a draft. Editing a published draft creates a new variant."
}
func (t *EditDraftTool) SideEffect() framework.SideEffect { return framework.SideEffectMutating }
func (t *EditDraftTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "draft_id", Type: "string", Required: false},
		{Name: "fields", Type: "object", Required: true},
	}
}
func (t *EditDraftTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	draft, fail := loadDraft(ctx, t.deps, t.conv, args)
	if fail != nil {
		return fail, nil
	}
	fields, _ := args["fields"].(map[string]interface{})
	if len(fields) == 0 {
		return framework.ToolFailure(framework.ToolErrInputInvalid, "fields must name at least one change", false), nil
	}
	forked := false
	if draft.Status == framework.DraftStatusPublished {
		draft = draft.NewVariant(t.deps.NewID(), t.deps.Now())
		forked = true
	}
	for key, val := range fields {
		if !editableFields[key] {
			return framework.ToolFailure(framework.ToolErrInputInvalid, fmt.Sprintf("field %q is not editable", key), false), nil
		}
		if err := applyField(draft, key, val); err != nil {
			return framework.ToolFailure(framework.ToolErrInputInvalid, err.Error(), false), nil
		}
	}
	draft.UpdatedAt = t.deps.Now()
	if err := t.deps.Store.SaveDraft(ctx, draft); err != nil {
		return framework.ToolFailure(framework.ToolErrExecutionFailed, err.Error(), true), nil
	}
	result := map[string]interface{}{
		"draft_id": draft.ID,
		"forked":   forked,
		"preview":  draft.Preview(),
	}
	if warnings := lengthWarnings(draft); len(warnings) > 0 {
		result["warnings"] = warnings
	}
	return framework.ToolSuccess(result), nil
}

func applyField(draft *framework.AdDraft, key string, val interface{}) error {
	switch key {
	case "daily_budget":
		n, ok := val.(float64)
		if !ok {
			return errors.New("daily_budget must be a number")
		}
		if n <= 0 {
			return errors.New("daily_budget must be positive")
		}
		draft.DailyBudget = n
		return nil
	case "cta":
		s, ok := val.(string)
		if !ok || !validCTA(s) {
			return fmt.Errorf("cta must be one of %s", strings.Join(framework.ValidCTAs, ", "))
		}
		draft.CTA = s
		return nil
	}
	s, ok := val.(string)
	if !ok {
		return fmt.Errorf("field %q must be a string", key)
	}
	switch key {
	case "campaign_name":
		draft.CampaignName = s
	case "ad_name":
		draft.AdName = s
	case "primary_text":
		draft.PrimaryText = clip(s, maxPrimaryText)
	case "headline":
		draft.Headline = clip(s, maxHeadline)
	case "description":
		draft.Description = clip(s, maxDescription)
	case "media_url":
		draft.MediaURL = s
	case "objective":
		draft.Objective = s
	}
	return nil
}

// SuggestAudienceTool proposes targeting from product and page defaults.
type SuggestAudienceTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *SuggestAudienceTool) Name() string { return "suggest_audience" }
func (t *SuggestAudienceTool) Description() string {
	return "Suggests target audience segments with interests and demographics. Optionally applies the suggestion to a draft."
}
func (t *SuggestAudienceTool) SideEffect() framework.SideEffect { return framework.SideEffectMutating }
func (t *SuggestAudienceTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "product_id", Type: "string", Required: false},
		{Name: "region", Type: "string", Required: false, Default: "US"},
		{Name: "draft_id", Type: "string", Required: false},
		{Name: "apply_to_draft", Type: "boolean", Required: false},
	}
}
func (t *SuggestAudienceTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	region := stringArg(args, "region")
	if region == "" {
		region = "US"
	}
	interests := []string{"online shopping"}
	ageMin, ageMax := 18, 54
	if pid := stringArg(args, "product_id"); pid != "" {
		product, err := t.deps.Store.Product(ctx, pid)
		if err != nil {
			return framework.ToolFailure(framework.ToolErrNotFound, fmt.Sprintf("product %s: %v", pid, err), false), nil
		}
		if len(product.Tags) > 0 {
			interests = append(product.Tags, "online shopping")
		}
		if product.TargetAudience != "" {
			interests = append([]string{product.TargetAudience}, interests...)
		}
	}
	markets := []string{region}
	if t.conv.PageID != "" {
		if page, err := t.deps.Store.Page(ctx, t.conv.PageID); err == nil && len(page.TargetMarkets) > 0 {
			markets = page.TargetMarkets
		}
	}
	audience := map[string]interface{}{
		"locations": markets,
		"age_min":   ageMin,
		"age_max":   ageMax,
		"interests": interests,
		"lookalike": "1% of past purchasers",
	}
	applied := false
	if apply, _ := args["apply_to_draft"].(bool); apply {
		draft, fail := loadDraft(ctx, t.deps, t.conv, args)
		if fail != nil {
			return fail, nil
		}
		draft.TargetAudience = audience
		draft.UpdatedAt = t.deps.Now()
		if err := t.deps.Store.SaveDraft(ctx, draft); err != nil {
			return framework.ToolFailure(framework.ToolErrExecutionFailed, err.Error(), true), nil
		}
		applied = true
	}
	return framework.ToolSuccess(map[string]interface{}{
		"audience": audience,
		"applied":  applied,
	}), nil
}

// SearchImagesTool finds stock media candidates for the creative.
type SearchImagesTool struct {
	deps Deps
}

func (t *SearchImagesTool) Name() string { return "search_stock_images" }
func (t *SearchImagesTool) Description() string {
	return "Searches stock photo providers for ad imagery."
}
func (t *SearchImagesTool) SideEffect() framework.SideEffect { return framework.SideEffectReadOnly }
func (t *SearchImagesTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "query", Type: "string", Required: true},
		{Name: "limit", Type: "number", Required: false, Default: 5},
	}
}
func (t *SearchImagesTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return framework.ToolFailure(framework.ToolErrInputInvalid, "query must not be empty", false), nil
	}
	images, err := t.deps.Images.Search(ctx, query, intArg(args, "limit", 5))
	if err != nil {
		return framework.ToolFailure(framework.ToolErrUnavailable, err.Error(), true), nil
	}
	return framework.ToolSuccess(map[string]interface{}{
		"query":  query,
		"images": images,
	}), nil
}

// DraftPreviewTool renders the current state of a draft.
type DraftPreviewTool struct {
	deps Deps
	conv *framework.Conversation
}

func (t *DraftPreviewTool) Name() string { return "get_draft_preview" }
func (t *DraftPreviewTool) Description() string {
	return "Shows the current draft's copy, budget and lineage."
}
func (t *DraftPreviewTool) SideEffect() framework.SideEffect { return framework.SideEffectReadOnly }
func (t *DraftPreviewTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "draft_id", Type: "string", Required: false},
	}
}
func (t *DraftPreviewTool) Execute(ctx context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	draft, fail := loadDraft(ctx, t.deps, t.conv, args)
	if fail != nil {
		return fail, nil
	}
	return framework.ToolSuccess(map[string]interface{}{
		"draft_id":        draft.ID,
		"status":          string(draft.Status),
		"parent_draft_id": draft.ParentDraftID,
		"preview":         draft.Preview(),
	}), nil
}
