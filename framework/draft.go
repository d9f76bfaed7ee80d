package framework

import "time"

// DraftStatus is the lifecycle status of an ad draft. Published is terminal
// for the draft's lineage: a further change always creates a new variant.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusApproved  DraftStatus = "approved"
	DraftStatusPublished DraftStatus = "published"
	DraftStatusRejected  DraftStatus = "rejected"
)

// Call-to-action buttons accepted by the publishing platform.
var ValidCTAs = []string{
	"learn_more", "shop_now", "sign_up", "contact_us", "book_now", "download", "get_offer",
}

// AdDraft is a versioned creative proposal scoped to one conversation.
// VariantNumber and ParentDraftID form the revision chain; drafts are mutated
// only by new variant creation or explicit manual edit.
type AdDraft struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	WorkspaceID    string `json:"workspace_id"`

	CampaignName string `json:"campaign_name,omitempty"`
	AdName       string `json:"ad_name,omitempty"`

	PrimaryText string `json:"primary_text,omitempty"`
	Headline    string `json:"headline,omitempty"`
	Description string `json:"description,omitempty"`
	CTA         string `json:"cta,omitempty"`
	MediaURL    string `json:"media_url,omitempty"`

	TargetAudience map[string]interface{} `json:"target_audience,omitempty"`
	DailyBudget    float64                `json:"daily_budget,omitempty"`
	Objective      string                 `json:"objective,omitempty"`

	Status        DraftStatus `json:"status"`
	VariantNumber int         `json:"variant_number"`
	ParentDraftID string      `json:"parent_draft_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewVariant derives the next revision in the lineage. The parent keeps its
// status; the child starts over as a plain draft.
func (d *AdDraft) NewVariant(id string, now time.Time) *AdDraft {
	next := *d
	next.ID = id
	next.ParentDraftID = d.ID
	next.VariantNumber = d.VariantNumber + 1
	next.Status = DraftStatusDraft
	next.CreatedAt = now
	next.UpdatedAt = now
	return &next
}

// Preview returns the fields the UI preview renders.
func (d *AdDraft) Preview() map[string]interface{} {
	return map[string]interface{}{
		"campaign_name":  d.CampaignName,
		"ad_name":        d.AdName,
		"primary_text":   d.PrimaryText,
		"headline":       d.Headline,
		"description":    d.Description,
		"cta":            d.CTA,
		"media_url":      d.MediaURL,
		"daily_budget":   d.DailyBudget,
		"objective":      d.Objective,
		"variant_number": d.VariantNumber,
	}
}
