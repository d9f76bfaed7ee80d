package framework

import "context"

// PerformanceSource supplies delivery metrics for pages and workspaces. The
// engine treats it as read-only reference data.
type PerformanceSource interface {
	PagePerformance(ctx context.Context, pageID, timeRange string) (*PerformanceStats, error)
	WorkspacePerformance(ctx context.Context, workspaceID, timeRange string) (*PerformanceStats, error)
	PageBreakdown(ctx context.Context, workspaceID, timeRange string) ([]PagePerformance, error)
	TopPerformers(ctx context.Context, pageID, metric string, limit int) ([]Performer, error)
	Underperformers(ctx context.Context, pageID, metric string, limit int) ([]Performer, error)
}

// CampaignPublisher pushes drafts to the advertising platform. Publish is
// irreversible once it returns a campaign id.
type CampaignPublisher interface {
	Publish(ctx context.Context, draft *AdDraft) (campaignID string, err error)
	Pause(ctx context.Context, campaignID string) error
	Resume(ctx context.Context, campaignID string) error
	SetDailyBudget(ctx context.Context, campaignID string, budget float64) error
}

// StockImage is one result from an image search.
type StockImage struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Photographer string `json:"photographer,omitempty"`
	Source       string `json:"source,omitempty"`
}

// StockImageSource finds creative media candidates.
type StockImageSource interface {
	Search(ctx context.Context, query string, limit int) ([]StockImage, error)
}
