// Package tools implements the agent's callable capabilities: performance
// lookups, creative drafting, and campaign execution. Tools are registered per
// conversation so every execution is already bound to the conversation's scope
// and never reaches across pages.
package tools

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lexcodex/adpilot/framework"
	"github.com/lexcodex/adpilot/persistence"
)

// Deps carries the collaborators the tool set is built from. Store is the only
// required field; absent collaborators degrade to the built-in mocks so local
// runs work without platform credentials.
type Deps struct {
	Store       persistence.Store
	Performance framework.PerformanceSource
	Publisher   framework.CampaignPublisher
	Images      framework.StockImageSource
	Model       framework.LanguageModel

	Now   func() time.Time
	NewID func() string
}

func (d *Deps) normalize() error {
	if d.Store == nil {
		return fmt.Errorf("tools: store is required")
	}
	if d.Performance == nil {
		d.Performance = NewMockPerformanceSource()
	}
	if d.Publisher == nil {
		d.Publisher = NewMockPublisher()
	}
	if d.Images == nil {
		d.Images = NewMockImageSource()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return nil
}

// NewRegistry builds the full tool catalog bound to one conversation. Persona
// bundles narrow the catalog later; registration itself is always complete.
func NewRegistry(deps Deps, conv *framework.Conversation) (*framework.ToolRegistry, error) {
	if err := deps.normalize(); err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("tools: conversation is required")
	}
	reg := framework.NewToolRegistry()
	all := []framework.Tool{
		&PagePerformanceTool{deps: deps, conv: conv},
		&WorkspacePerformanceTool{deps: deps, conv: conv},
		&PageBreakdownTool{deps: deps, conv: conv},
		&TopPerformersTool{deps: deps, conv: conv},
		&UnderperformersTool{deps: deps, conv: conv},
		&PastWinnersTool{deps: deps, conv: conv},
		&GenerateCopyTool{deps: deps, conv: conv},
		&GenerateVariantsTool{deps: deps, conv: conv},
		&EditDraftTool{deps: deps, conv: conv},
		&SuggestAudienceTool{deps: deps, conv: conv},
		&SearchImagesTool{deps: deps},
		&DraftPreviewTool{deps: deps, conv: conv},
		&PublishCampaignTool{deps: deps, conv: conv},
		&PauseCampaignTool{deps: deps, conv: conv},
		&ResumeCampaignTool{deps: deps, conv: conv},
		&AdjustBudgetTool{deps: deps, conv: conv},
		&SimulateResultsTool{deps: deps, conv: conv},
		&LogDecisionTool{deps: deps, conv: conv},
	}
	for _, t := range all {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func numberArg(args map[string]interface{}, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	n := numberArg(args, key, float64(fallback))
	if n < 1 {
		return fallback
	}
	return int(n)
}

func timeRangeArg(args map[string]interface{}) string {
	if tr := stringArg(args, "time_range"); tr != "" {
		return tr
	}
	return "last_30d"
}
