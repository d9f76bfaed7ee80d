package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lexcodex/adpilot/framework"
)

// MockPerformanceSource serves canned delivery metrics for local development
// and tests, shaped like the platform API responses.
type MockPerformanceSource struct{}

// NewMockPerformanceSource builds the canned metrics source.
func NewMockPerformanceSource() *MockPerformanceSource { return &MockPerformanceSource{} }

func mockStats(timeRange string) *framework.PerformanceStats {
	return &framework.PerformanceStats{
		TimeRange:   timeRange,
		Spend:       1500.00,
		Impressions: 45000,
		Clicks:      1200,
		CTR:         2.67,
		CPC:         1.25,
		Conversions: 45,
		ROAS:        3.2,
	}
}

func (s *MockPerformanceSource) PagePerformance(_ context.Context, pageID, timeRange string) (*framework.PerformanceStats, error) {
	return mockStats(timeRange), nil
}

func (s *MockPerformanceSource) WorkspacePerformance(_ context.Context, workspaceID, timeRange string) (*framework.PerformanceStats, error) {
	return mockStats(timeRange), nil
}

func (s *MockPerformanceSource) PageBreakdown(_ context.Context, workspaceID, timeRange string) ([]framework.PagePerformance, error) {
	base := mockStats(timeRange)
	half := *base
	half.Spend = base.Spend / 2
	half.Impressions = base.Impressions / 2
	half.Clicks = base.Clicks / 2
	half.Conversions = base.Conversions / 2
	return []framework.PagePerformance{
		{Page: framework.PageSettings{ID: "page-a", WorkspaceID: workspaceID, Name: "Page A", Included: true}, Stats: *base},
		{Page: framework.PageSettings{ID: "page-b", WorkspaceID: workspaceID, Name: "Page B", Included: true}, Stats: half},
	}, nil
}

func (s *MockPerformanceSource) TopPerformers(_ context.Context, pageID, metric string, limit int) ([]framework.Performer, error) {
	performers := []framework.Performer{
		{ID: "ad_001", Name: "Red Hoodie - Winter Sale", Spend: 500.00, ROAS: 4.2, CTR: 3.5, Conversions: 25},
		{ID: "ad_002", Name: "Sneaker Collection - Flash", Spend: 350.00, ROAS: 3.1, CTR: 2.8, Conversions: 15},
	}
	if limit > 0 && limit < len(performers) {
		performers = performers[:limit]
	}
	return performers, nil
}

func (s *MockPerformanceSource) Underperformers(_ context.Context, pageID, metric string, limit int) ([]framework.Performer, error) {
	performers := []framework.Performer{
		{ID: "ad_bad_001", Name: "Old Collection - Generic", Spend: 200.00, ROAS: 0.7, CTR: 0.8, Conversions: 2},
	}
	if limit > 0 && limit < len(performers) {
		performers = performers[:limit]
	}
	return performers, nil
}

// MockPublisher simulates the ad platform. Campaign state lives in memory so
// pause and resume behave consistently within a process.
type MockPublisher struct {
	mu        sync.Mutex
	seq       int
	campaigns map[string]string
}

// NewMockPublisher builds the in-memory platform stub.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{campaigns: make(map[string]string)}
}

func (p *MockPublisher) Publish(_ context.Context, draft *framework.AdDraft) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("camp_%03d", p.seq)
	p.campaigns[id] = "active"
	return id, nil
}

func (p *MockPublisher) Pause(_ context.Context, campaignID string) error {
	return p.setStatus(campaignID, "paused")
}

func (p *MockPublisher) Resume(_ context.Context, campaignID string) error {
	return p.setStatus(campaignID, "active")
}

func (p *MockPublisher) SetDailyBudget(_ context.Context, campaignID string, budget float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.campaigns[campaignID]; !ok {
		// Budget changes on campaigns published elsewhere are accepted; the
		// stub only tracks its own.
		p.campaigns[campaignID] = "active"
	}
	return nil
}

func (p *MockPublisher) setStatus(campaignID, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.campaigns[campaignID]; !ok {
		return fmt.Errorf("campaign %s not found", campaignID)
	}
	p.campaigns[campaignID] = status
	return nil
}

// Status reports the stub's view of a campaign, for tests.
func (p *MockPublisher) Status(campaignID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.campaigns[campaignID]
	return s, ok
}

// MockImageSource returns placeholder imagery when no provider key is set.
type MockImageSource struct{}

// NewMockImageSource builds the placeholder image source.
func NewMockImageSource() *MockImageSource { return &MockImageSource{} }

func (s *MockImageSource) Search(_ context.Context, query string, limit int) ([]framework.StockImage, error) {
	if limit <= 0 {
		limit = 5
	}
	slug := strings.ReplaceAll(query, " ", "+")
	images := make([]framework.StockImage, 0, limit)
	for i := 0; i < limit; i++ {
		images = append(images, framework.StockImage{
			URL:          fmt.Sprintf("https://via.placeholder.com/1200x628?text=%s+%d", slug, i+1),
			ThumbnailURL: fmt.Sprintf("https://via.placeholder.com/200x200?text=%s", slug),
			Photographer: "Placeholder",
			Source:       "placeholder",
		})
	}
	return images, nil
}
