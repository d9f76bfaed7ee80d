package agents

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/adpilot/framework"
	"github.com/lexcodex/adpilot/persistence"
)

// scriptedModel returns canned responses in order and records every request
// so tests can inspect what the backend was shown.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*framework.LLMResponse
	requests  [][]framework.Message
}

func (m *scriptedModel) next() (*framework.LLMResponse, error) {
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("scripted model exhausted")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *scriptedModel) Generate(context.Context, string, *framework.LLMOptions) (*framework.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next()
}

func (m *scriptedModel) GenerateStream(context.Context, string, *framework.LLMOptions) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}

func (m *scriptedModel) Chat(_ context.Context, messages []framework.Message, _ *framework.LLMOptions) (*framework.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, messages)
	return m.next()
}

func (m *scriptedModel) ChatWithTools(_ context.Context, messages []framework.Message, _ []framework.Tool, _ *framework.LLMOptions) (*framework.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, messages)
	return m.next()
}

// stubTool is a scriptable tool implementation.
type stubTool struct {
	name   string
	effect framework.SideEffect
	params []framework.ToolParameter
	fn     func(args map[string]interface{}) (*framework.ToolResult, error)
}

func (t *stubTool) Name() string                        { return t.name }
func (t *stubTool) Description() string                 { return t.name }
func (t *stubTool) SideEffect() framework.SideEffect    { return t.effect }
func (t *stubTool) Parameters() []framework.ToolParameter { return t.params }
func (t *stubTool) Execute(_ context.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	return t.fn(args)
}

func drainEvents(t *testing.T, events <-chan framework.Event) []framework.Event {
	t.Helper()
	var out []framework.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event stream did not terminate")
		}
	}
}

func eventTypes(events []framework.Event) []framework.EventType {
	types := make([]framework.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

type engineFixture struct {
	store persistence.Store
	model *scriptedModel
	orch  *Orchestrator
	conv  *framework.Conversation
}

func newEngine(t *testing.T, scope framework.Scope, pageID string, tools ...framework.Tool) *engineFixture {
	t.Helper()
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedWorkspace(t, store)

	registry := framework.NewToolRegistry()
	for _, tool := range tools {
		require.NoError(t, registry.Register(tool))
	}
	model := &scriptedModel{}
	orch := NewOrchestrator(store, model, registry, NewMemoryScope(store, &stubPerformance{}), Config{
		Model: "test-model", MaxSteps: 6,
	})

	conv, err := store.GetOrCreateConversation(ctx, "ws-1", pageID, scope, "")
	require.NoError(t, err)
	return &engineFixture{store: store, model: model, orch: orch, conv: conv}
}

func (f *engineFixture) turn(t *testing.T, text string) []framework.Event {
	t.Helper()
	events, err := f.orch.ProcessTurn(context.Background(), f.conv.ID, text)
	require.NoError(t, err)
	out := drainEvents(t, events)
	conv, err := f.store.Conversation(context.Background(), f.conv.ID)
	require.NoError(t, err)
	f.conv = conv
	return out
}

// TestTurnFinalReply covers the plain path: no tool calls, a single message
// and done, with both messages persisted in order.
func TestTurnFinalReply(t *testing.T) {
	f := newEngine(t, framework.ScopePage, "page-1")
	f.model.responses = []*framework.LLMResponse{
		{Text: "Your page had a solid month: CTR 2.1%."},
	}

	events := f.turn(t, "how did we do this month?")
	require.Equal(t, []framework.EventType{framework.EventMessage, framework.EventDone}, eventTypes(events))
	require.Equal(t, "Your page had a solid month: CTR 2.1%.", events[0].Text)

	messages, err := f.store.Messages(context.Background(), f.conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, framework.RoleUser, messages[0].Role)
	require.Equal(t, framework.RoleAgent, messages[1].Role)
}

// TestReadOnlyFanOutPreservesOrder is the concurrent-dispatch scenario: two
// read-only calls in one step both complete, and their observations reach the
// next reasoning step in the order dispatched.
func TestReadOnlyFanOutPreservesOrder(t *testing.T) {
	top := &stubTool{name: ToolGetTopPerformers, effect: framework.SideEffectReadOnly,
		fn: func(map[string]interface{}) (*framework.ToolResult, error) {
			time.Sleep(20 * time.Millisecond) // finishes second on purpose
			return framework.ToolSuccess(map[string]interface{}{"winner": "Morning Ritual"}), nil
		}}
	under := &stubTool{name: ToolGetUnderperformers, effect: framework.SideEffectReadOnly,
		fn: func(map[string]interface{}) (*framework.ToolResult, error) {
			return framework.ToolSuccess(map[string]interface{}{"loser": "Late Night"}), nil
		}}

	f := newEngine(t, framework.ScopePage, "page-1", top, under)
	f.model.responses = []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{
			{Name: ToolGetTopPerformers, Args: map[string]interface{}{}},
			{Name: ToolGetUnderperformers, Args: map[string]interface{}{}},
		}},
		{Text: "Morning Ritual is carrying the page; pause Late Night."},
	}

	events := f.turn(t, "what's working and what isn't?")
	require.Equal(t, []framework.EventType{
		framework.EventToolCall, framework.EventToolCall,
		framework.EventToolResult, framework.EventToolResult,
		framework.EventMessage, framework.EventDone,
	}, eventTypes(events))
	require.Equal(t, ToolGetTopPerformers, events[2].Tool, "results keep dispatch order")
	require.Equal(t, ToolGetUnderperformers, events[3].Tool)

	// The second backend request must contain both observations, in order.
	require.Len(t, f.model.requests, 2)
	second := f.model.requests[1]
	var toolMsgs []framework.Message
	for _, msg := range second {
		if msg.Role == "tool" {
			toolMsgs = append(toolMsgs, msg)
		}
	}
	require.Len(t, toolMsgs, 2)
	require.Equal(t, ToolGetTopPerformers, toolMsgs[0].Name)
	require.Equal(t, ToolGetUnderperformers, toolMsgs[1].Name)
	require.Contains(t, toolMsgs[0].Content, "Morning Ritual")
}

func publishTool(published *int) *stubTool {
	return &stubTool{name: ToolPublishCampaign, effect: framework.SideEffectIrreversible,
		params: []framework.ToolParameter{{Name: "daily_budget", Type: "number", Required: true}},
		fn: func(map[string]interface{}) (*framework.ToolResult, error) {
			*published++
			return framework.ToolSuccess(map[string]interface{}{"campaign_id": "cmp-1"}), nil
		}}
}

// TestPublishConfirmationFlow walks the full gate: the publish proposal is
// deferred behind a rendered confirmation summary, the user's yes dispatches
// it, and the decision log carries the allow verdict.
func TestPublishConfirmationFlow(t *testing.T) {
	ctx := context.Background()
	published := 0
	f := newEngine(t, framework.ScopePage, "page-1", publishTool(&published))

	f.conv.State = framework.StateReview
	require.NoError(t, f.store.SaveConversation(ctx, f.conv))

	f.model.responses = []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{{
			Name: ToolPublishCampaign,
			Args: map[string]interface{}{"daily_budget": 100.0},
		}}},
	}

	events := f.turn(t, "looks good, publish it with a 100 budget")
	require.Equal(t, []framework.EventType{framework.EventMessage, framework.EventDone}, eventTypes(events))
	require.Contains(t, events[0].Text, "please confirm")
	require.Zero(t, published, "publish must not dispatch before confirmation")
	_, pendingSet := f.conv.PendingAction()
	require.True(t, pendingSet)
	require.Equal(t, framework.StateReview, f.conv.State, "state stays put at a confirm gate")

	events = f.turn(t, "yes")
	require.Equal(t, 1, published)
	types := eventTypes(events)
	require.Equal(t, framework.EventDone, types[len(types)-1])
	require.Contains(t, events[len(events)-2].Text, "live")
	require.Equal(t, framework.StateIdle, f.conv.State, "turn concludes back to idle after publish")
	_, pendingSet = f.conv.PendingAction()
	require.False(t, pendingSet)

	entries, err := f.store.Entries(ctx, f.conv.ID)
	require.NoError(t, err)
	var confirmSeen, allowSeen, publishedSeen bool
	for _, entry := range entries {
		switch entry.Action {
		case framework.ActionGuardrailConfirm:
			confirmSeen = true
		case framework.ActionToolInvoked:
			if entry.Decision != nil && entry.Decision.Outcome == framework.GuardrailAllow {
				allowSeen = true
			}
		case framework.ActionCampaignPublished:
			publishedSeen = true
		}
	}
	require.True(t, confirmSeen, "confirmation request must be logged")
	require.True(t, allowSeen, "allow decision must be logged before dispatch")
	require.True(t, publishedSeen)
}

// TestUnconfirmedGateIsAbandoned checks that any non-affirmative follow-up
// drops the pending action and is treated as a fresh instruction.
func TestUnconfirmedGateIsAbandoned(t *testing.T) {
	published := 0
	f := newEngine(t, framework.ScopePage, "page-1", publishTool(&published))
	f.model.responses = []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{{
			Name: ToolPublishCampaign,
			Args: map[string]interface{}{"daily_budget": 100.0},
		}}},
		{Text: "Sure -- let's rework the headline first."},
	}

	f.turn(t, "publish it")
	f.turn(t, "actually, change the headline first")

	require.Zero(t, published)
	_, pendingSet := f.conv.PendingAction()
	require.False(t, pendingSet)
}

// TestAffirmativeWithoutPendingGateDoesNotPublish is the "Go ahead" with no
// rendered summary case: the message goes through the normal loop and the
// proposal comes back confirm, not allow.
func TestAffirmativeWithoutPendingGateDoesNotPublish(t *testing.T) {
	published := 0
	f := newEngine(t, framework.ScopePage, "page-1", publishTool(&published))
	f.model.responses = []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{{
			Name: ToolPublishCampaign,
			Args: map[string]interface{}{"daily_budget": 100.0},
		}}},
	}

	events := f.turn(t, "Go ahead")
	require.Zero(t, published)
	require.Contains(t, events[len(events)-2].Text, "please confirm")
}

// TestBlockedContentOffersRephrase covers the content-policy block: the call
// never dispatches, the block is fed back as an observation, and the reply
// offers to rephrase.
func TestBlockedContentOffersRephrase(t *testing.T) {
	published := 0
	f := newEngine(t, framework.ScopePage, "page-1", publishTool(&published))
	f.model.responses = []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{{
			Name: ToolPublishCampaign,
			Args: map[string]interface{}{
				"daily_budget": 100.0,
				"primary_text": "A miracle cure for tired mornings",
			},
		}}},
		{Text: "That wording would violate ad policy. Want me to rephrase it without the health claim?"},
	}

	events := f.turn(t, "publish the draft")
	require.Zero(t, published)
	require.Contains(t, events[len(events)-2].Text, "rephrase")

	// The observation fed back to the backend names the block.
	require.Len(t, f.model.requests, 2)
	last := f.model.requests[1]
	require.Contains(t, last[len(last)-1].Content, "blocked")

	entries, err := f.store.Entries(context.Background(), f.conv.ID)
	require.NoError(t, err)
	var blocked bool
	for _, entry := range entries {
		if entry.Action == framework.ActionGuardrailBlocked {
			blocked = true
		}
	}
	require.True(t, blocked)
}

// TestToolFailureRetriesOnceThenApologizes verifies the failure policy: one
// retry after an error observation, then a terminated turn with a logged
// failure entry.
func TestToolFailureRetriesOnceThenApologizes(t *testing.T) {
	attempts := 0
	flaky := &stubTool{name: ToolGetPagePerformance, effect: framework.SideEffectReadOnly,
		fn: func(map[string]interface{}) (*framework.ToolResult, error) {
			attempts++
			return framework.ToolFailure(framework.ToolErrUnavailable, "metrics api timeout", true), nil
		}}
	f := newEngine(t, framework.ScopePage, "page-1", flaky)
	f.model.responses = []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{{Name: ToolGetPagePerformance, Args: map[string]interface{}{}}}},
		{ToolCalls: []framework.ToolCall{{Name: ToolGetPagePerformance, Args: map[string]interface{}{}}}},
	}

	events := f.turn(t, "how is the page doing?")
	require.Equal(t, 2, attempts)
	final := events[len(events)-2]
	require.Equal(t, framework.EventMessage, final.Type)
	require.Contains(t, final.Text, "sorry")

	entries, err := f.store.Entries(context.Background(), f.conv.ID)
	require.NoError(t, err)
	var turnFailed bool
	for _, entry := range entries {
		if entry.Action == framework.ActionTurnFailed {
			turnFailed = true
		}
	}
	require.True(t, turnFailed)
}

// TestStepBudgetExhausted checks the loop safety valve yields a graceful
// "need more info" reply instead of spinning.
func TestStepBudgetExhausted(t *testing.T) {
	echo := &stubTool{name: ToolGetPagePerformance, effect: framework.SideEffectReadOnly,
		fn: func(map[string]interface{}) (*framework.ToolResult, error) {
			return framework.ToolSuccess(map[string]interface{}{"ok": true}), nil
		}}
	f := newEngine(t, framework.ScopePage, "page-1", echo)
	f.orch.config.MaxSteps = 2
	for i := 0; i < 2; i++ {
		f.model.responses = append(f.model.responses, &framework.LLMResponse{
			ToolCalls: []framework.ToolCall{{Name: ToolGetPagePerformance, Args: map[string]interface{}{}}},
		})
	}

	events := f.turn(t, "do everything")
	final := events[len(events)-2]
	require.Equal(t, framework.EventMessage, final.Type)
	require.Contains(t, final.Text, "more specific")
}

// TestCancelledTurnStopsAtStepBoundary cancels the context while a tool is in
// flight: the loop must stop before asking the backend for another step, keep
// the in-flight result out of the transcript, and persist the conversation.
func TestCancelledTurnStopsAtStepBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancelling := &stubTool{name: ToolGetPagePerformance, effect: framework.SideEffectReadOnly,
		fn: func(map[string]interface{}) (*framework.ToolResult, error) {
			cancel()
			return framework.ToolSuccess(map[string]interface{}{"ctr": 2.1}), nil
		}}
	f := newEngine(t, framework.ScopePage, "page-1", cancelling)
	f.model.responses = []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{{Name: ToolGetPagePerformance, Args: map[string]interface{}{}}}},
		{Text: "never reached"},
	}

	events, err := f.orch.ProcessTurn(ctx, f.conv.ID, "how is the page doing?")
	require.NoError(t, err)
	out := drainEvents(t, events)

	require.Len(t, f.model.requests, 1, "no backend step after cancellation")
	for _, ev := range out {
		require.NotEqual(t, framework.EventMessage, ev.Type)
		require.NotEqual(t, framework.EventDone, ev.Type)
	}

	conv, err := f.store.Conversation(context.Background(), f.conv.ID)
	require.NoError(t, err)
	require.Equal(t, framework.StateDiscovery, conv.State, "progress up to the boundary is persisted")

	messages, err := f.store.Messages(context.Background(), f.conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1, "no agent reply for a cancelled turn")
	require.Equal(t, framework.RoleUser, messages[0].Role)
}

// TestFailedPublishOutcomeIsLogged covers a confirmed publish that the
// platform rejects: the decision log must carry both the pre-dispatch audit
// entry and the failed outcome.
func TestFailedPublishOutcomeIsLogged(t *testing.T) {
	failing := &stubTool{name: ToolPublishCampaign, effect: framework.SideEffectIrreversible,
		params: []framework.ToolParameter{{Name: "daily_budget", Type: "number", Required: true}},
		fn: func(map[string]interface{}) (*framework.ToolResult, error) {
			return framework.ToolFailure(framework.ToolErrUnavailable, "platform rejected the campaign", true), nil
		}}
	f := newEngine(t, framework.ScopePage, "page-1", failing)
	f.model.responses = []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{{
			Name: ToolPublishCampaign,
			Args: map[string]interface{}{"daily_budget": 100.0},
		}}},
	}

	f.turn(t, "publish it")
	events := f.turn(t, "yes")
	final := events[len(events)-2]
	require.Equal(t, framework.EventMessage, final.Type)
	require.Contains(t, final.Text, "didn't go through")

	entries, err := f.store.Entries(context.Background(), f.conv.ID)
	require.NoError(t, err)
	var invoked, failed bool
	for _, entry := range entries {
		if entry.EntityID != ToolPublishCampaign {
			continue
		}
		switch entry.Action {
		case framework.ActionToolInvoked:
			invoked = true
		case framework.ActionToolFailed:
			failed = true
		}
	}
	require.True(t, invoked, "pre-dispatch audit entry must be present")
	require.True(t, failed, "the failed outcome must reach the decision log")
}

// TestTurnSerializationPerConversation rejects a second concurrent turn for
// the same conversation.
func TestTurnSerializationPerConversation(t *testing.T) {
	release := make(chan struct{})
	slow := &stubTool{name: ToolGetPagePerformance, effect: framework.SideEffectReadOnly,
		fn: func(map[string]interface{}) (*framework.ToolResult, error) {
			<-release
			return framework.ToolSuccess(nil), nil
		}}
	f := newEngine(t, framework.ScopePage, "page-1", slow)
	f.model.responses = []*framework.LLMResponse{
		{ToolCalls: []framework.ToolCall{{Name: ToolGetPagePerformance, Args: map[string]interface{}{}}}},
		{Text: "done"},
	}

	events, err := f.orch.ProcessTurn(context.Background(), f.conv.ID, "first")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := f.orch.ProcessTurn(context.Background(), f.conv.ID, "second")
		return err == framework.ErrTurnInFlight
	}, time.Second, 10*time.Millisecond)

	close(release)
	drainEvents(t, events)

	// After the first turn completes, the conversation is free again.
	f.model.responses = append(f.model.responses, &framework.LLMResponse{Text: "hello"})
	more, err := f.orch.ProcessTurn(context.Background(), f.conv.ID, "third")
	require.NoError(t, err)
	drainEvents(t, more)
}
