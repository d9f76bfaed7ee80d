package agents

import (
	"context"
	"fmt"
	"log"

	"github.com/lexcodex/adpilot/framework"
	"github.com/lexcodex/adpilot/persistence"
)

// recentMessageWindow is how many messages of conversation history are
// injected per turn.
const recentMessageWindow = 20

// defaultTimeRange is the performance lookback used when the user has not
// asked for a specific range.
const defaultTimeRange = "last_30d"

// ctxPinnedInjected marks that the pinned legacy summary has already been
// injected into this conversation once.
const ctxPinnedInjected = "pinned_summary_injected"

// MemoryScope assembles the MemoryContext for one orchestration turn. The
// assembly is rebuilt fresh every turn so settings and performance facts are
// never stale; callers may reuse it across reasoning steps within the turn.
type MemoryScope struct {
	store       persistence.Store
	performance framework.PerformanceSource
	debug       bool
}

// NewMemoryScope builds the scoping service. performance may be nil, in which
// case performance sections are simply omitted.
func NewMemoryScope(store persistence.Store, performance framework.PerformanceSource) *MemoryScope {
	return &MemoryScope{store: store, performance: performance}
}

// SetDebug toggles verbose logging.
func (m *MemoryScope) SetDebug(debug bool) { m.debug = debug }

func (m *MemoryScope) debugf(format string, args ...interface{}) {
	if m.debug {
		log.Printf("[memory] "+format, args...)
	}
}

// Assemble resolves the ordered context for the conversation's scope. A
// page-scoped conversation sees only its own page's history, settings,
// products, and performance; account-wide signals are never injected there.
func (m *MemoryScope) Assemble(ctx context.Context, conv *framework.Conversation) (*framework.MemoryContext, error) {
	mc := &framework.MemoryContext{Scope: conv.Scope}

	messages, err := m.store.Messages(ctx, conv.ID, recentMessageWindow)
	if err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}
	mc.RecentMessages = messages

	ws, err := m.store.Workspace(ctx, conv.WorkspaceID)
	if err != nil && err != framework.ErrNotFound {
		return nil, fmt.Errorf("load workspace settings: %w", err)
	}
	if ws != nil {
		mc.Workspace = *ws
	}

	switch conv.Scope {
	case framework.ScopePage:
		if err := m.assemblePage(ctx, conv, mc); err != nil {
			return nil, err
		}
	case framework.ScopeAccountWide:
		if err := m.assembleAccount(ctx, conv, mc); err != nil {
			return nil, err
		}
	}

	if draftID, ok := conv.Context[framework.CtxActiveDraftID].(string); ok && draftID != "" {
		draft, err := m.store.Draft(ctx, draftID)
		if err == nil {
			mc.ActiveDraft = draft
		} else if err != framework.ErrNotFound {
			return nil, fmt.Errorf("load active draft: %w", err)
		}
	}

	m.debugf("assembled scope=%s messages=%d products=%d winners=%d",
		conv.Scope, len(mc.RecentMessages), len(mc.PageProducts), len(mc.PastWinners))
	return mc, nil
}

// assemblePage injects this page's settings, products, performance, and past
// winners -- and nothing belonging to any other page.
func (m *MemoryScope) assemblePage(ctx context.Context, conv *framework.Conversation, mc *framework.MemoryContext) error {
	page, err := m.store.Page(ctx, conv.PageID)
	if err != nil && err != framework.ErrNotFound {
		return fmt.Errorf("load page settings: %w", err)
	}
	mc.Page = page

	if productID, ok := conv.Context[framework.CtxActiveProductID].(string); ok && productID != "" {
		product, err := m.store.Product(ctx, productID)
		if err == nil {
			mc.ActiveProduct = product
		} else if err != framework.ErrNotFound {
			return fmt.Errorf("load active product: %w", err)
		}
	}
	products, err := m.store.ProductsForPage(ctx, conv.PageID)
	if err != nil {
		return fmt.Errorf("load page products: %w", err)
	}
	mc.PageProducts = products

	if m.performance != nil {
		stats, err := m.performance.PagePerformance(ctx, conv.PageID, defaultTimeRange)
		if err != nil {
			m.debugf("page performance unavailable for %s: %v", conv.PageID, err)
		} else {
			mc.Performance = stats
		}
	}

	winners, err := m.store.PastWinners(ctx, conv.PageID, 5)
	if err != nil {
		return fmt.Errorf("load past winners: %w", err)
	}
	mc.PastWinners = winners
	return nil
}

// assembleAccount injects the aggregate workspace view plus the per-page
// breakdown, and the pinned legacy summary flagged so the backend does not
// re-summarize it every turn.
func (m *MemoryScope) assembleAccount(ctx context.Context, conv *framework.Conversation, mc *framework.MemoryContext) error {
	if m.performance != nil {
		stats, err := m.performance.WorkspacePerformance(ctx, conv.WorkspaceID, defaultTimeRange)
		if err != nil {
			m.debugf("workspace performance unavailable: %v", err)
		} else {
			mc.Performance = stats
		}
		breakdown, err := m.performance.PageBreakdown(ctx, conv.WorkspaceID, defaultTimeRange)
		if err != nil {
			m.debugf("page breakdown unavailable: %v", err)
		} else {
			mc.PageBreakdown = breakdown
		}
	}

	if conv.Pinned && conv.PinnedContent != "" {
		mc.PinnedSummary = conv.PinnedContent
		injected, _ := conv.Context[ctxPinnedInjected].(bool)
		mc.PinnedSummaryInjected = injected
		if !injected {
			conv.Context[ctxPinnedInjected] = true
		}
	}
	return nil
}
