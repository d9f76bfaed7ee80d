// Package testsuite holds end-to-end tests that wire the real engine together:
// memory store, tool registry, guardrails, and the orchestration loop driven
// by a scripted completion backend.
package testsuite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/adpilot/agents"
	"github.com/lexcodex/adpilot/framework"
	"github.com/lexcodex/adpilot/persistence"
	"github.com/lexcodex/adpilot/server"
	"github.com/lexcodex/adpilot/tools"
)

// scriptedModel pops chat responses in order. Generate deliberately returns
// prose that is not JSON, so tools that draft copy through the backend fall
// back to their deterministic templates instead of consuming the script.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*framework.LLMResponse
}

func (m *scriptedModel) pop() *framework.LLMResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return &framework.LLMResponse{Text: "Done."}
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp
}

func (m *scriptedModel) Generate(context.Context, string, *framework.LLMOptions) (*framework.LLMResponse, error) {
	return &framework.LLMResponse{Text: "plain prose, no structure"}, nil
}

func (m *scriptedModel) GenerateStream(context.Context, string, *framework.LLMOptions) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}

func (m *scriptedModel) Chat(context.Context, []framework.Message, *framework.LLMOptions) (*framework.LLMResponse, error) {
	return m.pop(), nil
}

func (m *scriptedModel) ChatWithTools(context.Context, []framework.Message, []framework.Tool, *framework.LLMOptions) (*framework.LLMResponse, error) {
	return m.pop(), nil
}

// harness is one wired engine over an in-memory store with a page-scoped
// conversation ready to go.
type harness struct {
	engine    *server.Engine
	store     persistence.Store
	publisher *tools.MockPublisher
	conv      *framework.Conversation
}

// blockingModel parks inside the completion call until released, for tests
// that need a turn to stay in flight.
type blockingModel struct {
	scriptedModel
	release <-chan struct{}
}

func (m *blockingModel) ChatWithTools(context.Context, []framework.Message, []framework.Tool, *framework.LLMOptions) (*framework.LLMResponse, error) {
	<-m.release
	return &framework.LLMResponse{Text: "Done."}, nil
}

func newHarness(t *testing.T, model framework.LanguageModel, connected bool) *harness {
	t.Helper()
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	require.NoError(t, store.SaveWorkspace(ctx, &framework.WorkspaceSettings{
		ID: "ws-1", Name: "Outfitters", DefaultDailyBudget: 500,
		Currency: "USD", AdAccountConnected: connected,
	}))
	require.NoError(t, store.SavePage(ctx, &framework.PageSettings{
		ID: "page-1", WorkspaceID: "ws-1", Name: "Coffee", Tone: "warm",
		TargetMarkets: []string{"US", "CA"}, Included: true,
	}))
	require.NoError(t, store.SaveProduct(ctx, &framework.Product{
		ID: "prod-1", WorkspaceID: "ws-1", Name: "Cold Brew Kit",
		Description: "Brew cafe-grade cold brew at home.", USP: "12-hour steep, zero bitterness",
		Tags: []string{"coffee", "home brewing"}, TargetAudience: "coffee enthusiasts",
		PageIDs: []string{"page-1"}, Active: true,
	}))

	publisher := tools.NewMockPublisher()
	engine, err := server.NewEngine(tools.Deps{
		Store: store, Model: model, Publisher: publisher,
	}, agents.Config{})
	require.NoError(t, err)

	conv, err := store.GetOrCreateConversation(ctx, "ws-1", "page-1", framework.ScopePage, "Coffee war room")
	require.NoError(t, err)
	return &harness{engine: engine, store: store, publisher: publisher, conv: conv}
}

// turn submits one user message and drains the event stream to completion.
func (h *harness) turn(t *testing.T, text string) []framework.Event {
	t.Helper()
	stream, err := h.engine.ProcessTurn(context.Background(), h.conv.ID, text)
	require.NoError(t, err)
	var events []framework.Event
	for ev := range stream {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	require.Equal(t, framework.EventDone, events[len(events)-1].Type)
	return events
}

// reply returns the final agent message of a drained turn.
func reply(t *testing.T, events []framework.Event) string {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == framework.EventMessage {
			return events[i].Text
		}
	}
	t.Fatal("turn produced no message event")
	return ""
}

func (h *harness) reload(t *testing.T) *framework.Conversation {
	t.Helper()
	conv, err := h.store.Conversation(context.Background(), h.conv.ID)
	require.NoError(t, err)
	return conv
}

func (h *harness) actions(t *testing.T) []string {
	t.Helper()
	entries, err := h.store.Entries(context.Background(), h.conv.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Action)
	}
	return names
}

func toolCall(name string, args map[string]interface{}) framework.ToolCall {
	return framework.ToolCall{ID: "call-" + name, Name: name, Args: args}
}
