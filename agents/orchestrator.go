package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lexcodex/adpilot/framework"
	"github.com/lexcodex/adpilot/persistence"
)

// Config carries the runtime settings for the orchestration loop.
type Config struct {
	Model       string
	MaxSteps    int
	Temperature float64
	MaxTokens   int
	Persona     string
	PolicyTerms map[string][]string
	Debug       bool
}

// Orchestrator is the control loop. Given a user message it repeatedly asks
// the completion backend for either a final reply or a tool call, gates
// mutating calls through the guardrail validator, dispatches, logs, and
// streams typed events until the turn terminates.
type Orchestrator struct {
	store    persistence.Store
	model    framework.LanguageModel
	registry *framework.ToolRegistry
	memory   *MemoryScope
	config   Config

	mu    sync.Mutex
	turns map[string]*sync.Mutex
}

// NewOrchestrator wires the engine together.
func NewOrchestrator(store persistence.Store, model framework.LanguageModel, registry *framework.ToolRegistry, memory *MemoryScope, config Config) *Orchestrator {
	if config.MaxSteps <= 0 {
		config.MaxSteps = 6
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}
	if config.PolicyTerms == nil {
		config.PolicyTerms = DefaultPolicyTerms
	}
	return &Orchestrator{
		store:    store,
		model:    model,
		registry: registry,
		memory:   memory,
		config:   config,
		turns:    make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) debugf(format string, args ...interface{}) {
	if o.config.Debug {
		log.Printf("[orchestrator] "+format, args...)
	}
}

// turnLock returns the serialization mutex for one conversation. Turns for
// the same conversation never overlap; distinct conversations run fully
// independently.
func (o *Orchestrator) turnLock(conversationID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.turns[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		o.turns[conversationID] = lock
	}
	return lock
}

// ProcessTurn handles one user message and returns the ordered event stream
// for the turn. The stream is append-only and terminal at the done event. A
// second turn submitted while one is in flight for the same conversation is
// rejected with ErrTurnInFlight.
func (o *Orchestrator) ProcessTurn(ctx context.Context, conversationID, userText string) (<-chan framework.Event, error) {
	lock := o.turnLock(conversationID)
	if !lock.TryLock() {
		return nil, framework.ErrTurnInFlight
	}
	conv, err := o.store.Conversation(ctx, conversationID)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv.Context == nil {
		conv.Context = make(map[string]interface{})
	}

	events := make(chan framework.Event, 32)
	go func() {
		defer lock.Unlock()
		defer close(events)
		turn := &turnState{orch: o, conv: conv, events: events}
		turn.run(ctx, userText)
	}()
	return events, nil
}

// turnState tracks one in-flight turn: the event sink, accumulated tool
// traces for the final agent message, and per-tool consecutive failure
// counts.
type turnState struct {
	orch    *Orchestrator
	conv    *framework.Conversation
	events  chan<- framework.Event
	userSeq int64
	traces  []framework.ToolTrace
	fails   map[string]int
}

func (t *turnState) emit(ctx context.Context, ev framework.Event) {
	ev.ConversationID = t.conv.ID
	ev.Timestamp = time.Now().UTC()
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

func (t *turnState) run(ctx context.Context, userText string) {
	o := t.orch
	t.fails = make(map[string]int)

	userMsg := &framework.ChatMessage{
		ConversationID: t.conv.ID,
		Role:           framework.RoleUser,
		Content:        userText,
	}
	if err := o.store.AppendMessage(ctx, userMsg); err != nil {
		t.finish(ctx, "Sorry, I could not record your message. Please try again.")
		return
	}
	t.userSeq = userMsg.Seq

	if pending, ok := t.conv.PendingAction(); ok {
		if IsAffirmative(userText) {
			t.resumePending(ctx, pending)
			return
		}
		// Any non-affirmative reply abandons the gate; the message is a
		// fresh instruction.
		t.conv.ClearPendingAction()
		o.debugf("pending %s abandoned by conversation %s", pending.Tool, t.conv.ID)
	}

	BeginTurn(t.conv)
	t.loop(ctx, userText)
}

// loop is the bounded reasoning loop: think, gate, act, observe.
func (t *turnState) loop(ctx context.Context, userText string) {
	o := t.orch
	mc, err := o.memory.Assemble(ctx, t.conv)
	if err != nil {
		o.debugf("memory assembly failed: %v", err)
		t.failTurn(ctx, "memory_assembly", err)
		return
	}

	persona := PersonaFor(o.config.Persona)
	var tools []framework.Tool
	if persona.Tools == nil {
		tools = o.registry.All()
	} else {
		tools = o.registry.Subset(persona.Tools)
	}

	messages := t.seedMessages(persona, mc, tools)

	for step := 0; step < o.config.MaxSteps; step++ {
		if ctx.Err() != nil {
			t.saveConversation(context.Background())
			return
		}
		resp, err := o.model.ChatWithTools(ctx, messages, tools, &framework.LLMOptions{
			Model:       o.config.Model,
			Temperature: o.config.Temperature,
			MaxTokens:   o.config.MaxTokens,
		})
		if err != nil {
			if ctx.Err() != nil {
				t.saveConversation(context.Background())
				return
			}
			t.failTurn(ctx, "completion_backend", err)
			return
		}

		if len(resp.ToolCalls) == 0 {
			t.finish(ctx, resp.Text)
			return
		}
		if resp.Text != "" {
			t.emit(ctx, framework.Event{Type: framework.EventThinking, Text: resp.Text})
		}
		messages = append(messages, framework.Message{
			Role:      "assistant",
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		readOnly, mutating := t.partition(resp.ToolCalls)

		results, terminated := t.dispatchReadOnly(ctx, step, readOnly)
		if terminated {
			return
		}
		for i, call := range readOnly {
			messages = append(messages, toolMessage(call, results[i]))
		}

		for _, call := range mutating {
			outcome := t.gateAndDispatch(ctx, step, call, mc)
			switch outcome.verdict {
			case turnContinue:
				messages = append(messages, toolMessage(call, outcome.result))
			case turnObservation:
				messages = append(messages, framework.Message{
					Role: "tool", Name: call.Name, ToolCallID: call.ID,
					Content: outcome.observation,
				})
			case turnTerminated:
				return
			}
		}
	}

	// Step budget exhausted: the loop's safety valve.
	o.debugf("step budget exhausted for conversation %s", t.conv.ID)
	t.finish(ctx, "I was not able to finish that in one go. Could you give me more specific instructions, or break the request into smaller steps?")
}

// partition splits a step's proposals into the read-only batch (dispatched
// concurrently) and the mutating tail (gated one at a time). Order within
// each group follows the proposal order.
func (t *turnState) partition(calls []framework.ToolCall) (readOnly, mutating []framework.ToolCall) {
	for _, call := range calls {
		tool, ok := t.orch.registry.Get(call.Name)
		if ok && tool.SideEffect() == framework.SideEffectReadOnly {
			readOnly = append(readOnly, call)
		} else {
			mutating = append(mutating, call)
		}
	}
	return readOnly, mutating
}

// dispatchReadOnly fans the batch out concurrently and collects results in
// dispatch order, so the fed-back observations never reorder. The bool return
// reports whether the turn was terminated by a repeated failure.
func (t *turnState) dispatchReadOnly(ctx context.Context, step int, calls []framework.ToolCall) ([]*framework.ToolResult, bool) {
	if len(calls) == 0 {
		return nil, false
	}
	results := make([]*framework.ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		t.emit(ctx, framework.Event{Type: framework.EventToolCall, Tool: call.Name, Input: call.Args})
		wg.Add(1)
		go func(i int, call framework.ToolCall) {
			defer wg.Done()
			results[i] = t.execute(ctx, call)
		}(i, call)
	}
	wg.Wait()

	for i, call := range calls {
		res := results[i]
		t.recordInvocation(ctx, step, i, call, res, nil)
		t.observeResult(ctx, call, res)
		if !res.Success {
			if t.bumpFailure(ctx, call.Name) {
				return results, true
			}
		} else {
			t.fails[call.Name] = 0
		}
	}
	return results, false
}

type turnVerdict int

const (
	turnContinue turnVerdict = iota
	turnObservation
	turnTerminated
)

type gateOutcome struct {
	verdict     turnVerdict
	result      *framework.ToolResult
	observation string
}

// gateAndDispatch runs one mutating or irreversible proposal through the
// guardrail and, on allow, dispatches it.
func (t *turnState) gateAndDispatch(ctx context.Context, step int, call framework.ToolCall, mc *framework.MemoryContext) gateOutcome {
	o := t.orch
	proposed := ProposedCall{Name: call.Name, Args: call.Args, SideEffect: framework.SideEffectMutating}
	if tool, ok := o.registry.Get(call.Name); ok {
		proposed.SideEffect = tool.SideEffect()
	}
	gctx := t.guardrailContext(mc, false)
	decision := Validate(proposed, gctx)
	o.debugf("guardrail %s -> %s (%s)", call.Name, decision.Outcome, decision.Reason)

	switch decision.Outcome {
	case framework.GuardrailBlock:
		t.recordGuardrail(ctx, step, call, decision, framework.ActionGuardrailBlocked)
		t.emit(ctx, framework.Event{Type: framework.EventToolResult, Tool: call.Name, Error: decision.Reason})
		t.traces = append(t.traces, framework.ToolTrace{Name: call.Name, Input: call.Args, Decision: string(decision.Outcome), Error: decision.Reason})
		observation := fmt.Sprintf("The %s call was blocked: %s. Do not retry it; explain the block to the user and offer to rephrase or adjust instead.", call.Name, decision.Reason)
		return gateOutcome{verdict: turnObservation, observation: observation}

	case framework.GuardrailConfirm:
		t.recordGuardrail(ctx, step, call, decision, framework.ActionGuardrailConfirm)
		summary := RenderConfirmationSummary(proposed, decision, mc.ActiveDraft)
		t.conv.SetPendingAction(framework.PendingAction{Tool: call.Name, Args: call.Args, Summary: summary})
		t.traces = append(t.traces, framework.ToolTrace{Name: call.Name, Input: call.Args, Decision: string(decision.Outcome)})
		t.finish(ctx, summary)
		return gateOutcome{verdict: turnTerminated}

	default: // allow
		res, terminated := t.dispatchAllowed(ctx, step, call, proposed, decision)
		if terminated {
			return gateOutcome{verdict: turnTerminated}
		}
		return gateOutcome{verdict: turnContinue, result: res}
	}
}

// dispatchAllowed logs and executes a guardrail-approved call. For
// irreversible calls the log entry is written before dispatch: the audit
// trail is a precondition, so a logging failure aborts the publish path.
func (t *turnState) dispatchAllowed(ctx context.Context, step int, call framework.ToolCall, proposed ProposedCall, decision framework.GuardrailDecision) (*framework.ToolResult, bool) {
	o := t.orch
	irreversible := proposed.SideEffect == framework.SideEffectIrreversible
	if irreversible {
		if err := t.recordInvocation(ctx, step, -1, call, nil, &decision); err != nil {
			o.debugf("audit append failed, aborting publish path: %v", err)
			t.failTurn(ctx, "decision_log", framework.ErrLoggingFailed)
			return nil, true
		}
		if t.conv.State == framework.StateReview {
			t.conv.State = framework.StateReadyToPublish
		}
	}

	t.emit(ctx, framework.Event{Type: framework.EventToolCall, Tool: call.Name, Input: call.Args})
	res := t.execute(ctx, call)
	// The irreversible path already holds slot -1 for its pre-dispatch audit
	// entry; the outcome gets its own slot.
	slot := -1
	if irreversible {
		slot = -2
	}
	t.recordInvocation(ctx, step, slot, call, res, &decision)
	t.observeResult(ctx, call, res)

	if res.Success {
		t.fails[call.Name] = 0
		AdvanceOnToolResult(t.conv, call.Name, true)
		t.adoptResultRefs(res)
		if call.Name == ToolPublishCampaign {
			t.recordAction(ctx, framework.ActivityEntry{
				ID:         fmt.Sprintf("%s:%d:%d:published", t.conv.ID, t.userSeq, step),
				Actor:      framework.ActorAgent,
				Action:     framework.ActionCampaignPublished,
				EntityType: "campaign",
				EntityID:   stringData(res.Data, "campaign_id"),
				Rationale:  "campaign published after explicit user confirmation",
				Decision:   &decision,
			})
		}
	} else if t.bumpFailure(ctx, call.Name) {
		return res, true
	}
	return res, false
}

// resumePending handles the turn after a confirmation gate: the user said
// yes, so the deferred call is re-validated with the confirmation satisfied
// and dispatched if the guardrail now allows it.
func (t *turnState) resumePending(ctx context.Context, pending framework.PendingAction) {
	o := t.orch
	t.conv.ClearPendingAction()

	mc, err := o.memory.Assemble(ctx, t.conv)
	if err != nil {
		t.failTurn(ctx, "memory_assembly", err)
		return
	}
	proposed := ProposedCall{Name: pending.Tool, Args: pending.Args, SideEffect: framework.SideEffectMutating}
	if tool, ok := o.registry.Get(pending.Tool); ok {
		proposed.SideEffect = tool.SideEffect()
	}
	decision := Validate(proposed, t.guardrailContext(mc, true))
	o.debugf("confirmed %s -> %s", pending.Tool, decision.Outcome)

	if decision.Outcome == framework.GuardrailBlock {
		t.recordGuardrail(ctx, 0, framework.ToolCall{Name: pending.Tool, Args: pending.Args}, decision, framework.ActionGuardrailBlocked)
		t.finish(ctx, fmt.Sprintf("I still can't do that: %s. I can help adjust the campaign so it qualifies.", decision.Reason))
		return
	}

	call := framework.ToolCall{Name: pending.Tool, Args: pending.Args}
	res, terminated := t.dispatchAllowed(ctx, 0, call, proposed, decision)
	if terminated {
		return
	}
	if res.Success {
		ConcludePublished(t.conv)
		t.finish(ctx, confirmationReply(pending.Tool, res))
		return
	}
	reason := "the platform rejected the request"
	if res.Err != nil {
		reason = res.Err.Message
	}
	t.finish(ctx, fmt.Sprintf("That didn't go through: %s. Nothing was changed; want me to try again or adjust the campaign first?", reason))
}

func confirmationReply(tool string, res *framework.ToolResult) string {
	switch tool {
	case ToolPublishCampaign:
		if id := stringData(res.Data, "campaign_id"); id != "" {
			return fmt.Sprintf("Done -- the campaign is live (id %s). I'll keep an eye on its delivery and flag anything unusual.", id)
		}
		return "Done -- the campaign is live. I'll keep an eye on its delivery and flag anything unusual."
	case ToolAdjustBudget:
		return "Done -- the daily budget has been updated."
	default:
		return "Done -- the action has been carried out."
	}
}

// execute validates the payload against the tool schema and runs the tool.
// Schema mismatches fail before invocation with ToolErrInputInvalid.
func (t *turnState) execute(ctx context.Context, call framework.ToolCall) *framework.ToolResult {
	tool, ok := t.orch.registry.Get(call.Name)
	if !ok {
		return framework.ToolFailure(framework.ToolErrNotFound, fmt.Sprintf("unknown tool %s", call.Name), false)
	}
	if terr := framework.ValidateArgs(tool, call.Args); terr != nil {
		return &framework.ToolResult{Success: false, Err: terr}
	}
	res, err := tool.Execute(ctx, call.Args)
	if err != nil {
		return framework.ToolFailure(framework.ToolErrExecutionFailed, err.Error(), true)
	}
	if res == nil {
		res = framework.ToolSuccess(nil)
	}
	return res
}

// observeResult emits the tool_result event and appends the trace entry.
func (t *turnState) observeResult(ctx context.Context, call framework.ToolCall, res *framework.ToolResult) {
	trace := framework.ToolTrace{Name: call.Name, Input: call.Args, Output: res.Data}
	ev := framework.Event{Type: framework.EventToolResult, Tool: call.Name, Output: res.Data}
	if res.Err != nil {
		trace.Error = res.Err.Error()
		ev.Error = res.Err.Error()
	}
	t.traces = append(t.traces, trace)
	t.emit(ctx, ev)
}

// bumpFailure tracks consecutive failures of one tool within the turn. The
// second consecutive failure terminates the loop with an apology.
func (t *turnState) bumpFailure(ctx context.Context, toolName string) bool {
	t.fails[toolName]++
	if t.fails[toolName] < 2 {
		return false
	}
	t.orch.debugf("tool %s failed twice in conversation %s, terminating turn", toolName, t.conv.ID)
	t.recordAction(ctx, framework.ActivityEntry{
		ID:        fmt.Sprintf("%s:%d:fail:%s", t.conv.ID, t.userSeq, toolName),
		Actor:     framework.ActorAgent,
		Action:    framework.ActionTurnFailed,
		Rationale: fmt.Sprintf("tool %s failed twice in a row", toolName),
	})
	t.finish(ctx, fmt.Sprintf("I'm sorry -- I ran into repeated trouble with %s and stopped rather than guess. Could you try again, or rephrase what you need?", toolName))
	return true
}

// adoptResultRefs copies draft/product references from a tool result into the
// conversation context so later steps and turns see them explicitly.
func (t *turnState) adoptResultRefs(res *framework.ToolResult) {
	if id := stringData(res.Data, "draft_id"); id != "" {
		t.conv.Context[framework.CtxActiveDraftID] = id
	}
	if id := stringData(res.Data, "product_id"); id != "" {
		t.conv.Context[framework.CtxActiveProductID] = id
		if t.conv.State == framework.StateDiscovery {
			t.conv.State = framework.StateIdeation
		}
	}
}

func (t *turnState) guardrailContext(mc *framework.MemoryContext, confirmed bool) GuardrailContext {
	budget := mc.Workspace.DefaultDailyBudget
	if mc.Page != nil && mc.Page.DefaultDailyBudget > 0 {
		budget = mc.Page.DefaultDailyBudget
	}
	return GuardrailContext{
		DefaultDailyBudget: budget,
		AdAccountConnected: mc.Workspace.AdAccountConnected,
		PolicyTerms:        t.orch.config.PolicyTerms,
		UserConfirmed:      confirmed,
	}
}

// recordInvocation appends the decision-log entry for one tool invocation.
// Read-only logging failures are tolerated; callers on the irreversible path
// check the returned error.
func (t *turnState) recordInvocation(ctx context.Context, step, index int, call framework.ToolCall, res *framework.ToolResult, decision *framework.GuardrailDecision) error {
	action := framework.ActionToolInvoked
	rationale := fmt.Sprintf("invoked %s", call.Name)
	if res != nil && !res.Success {
		action = framework.ActionToolFailed
		if res.Err != nil {
			rationale = fmt.Sprintf("%s failed: %s", call.Name, res.Err.Message)
		} else {
			rationale = fmt.Sprintf("%s failed", call.Name)
		}
	}
	entry := framework.ActivityEntry{
		ID:         fmt.Sprintf("%s:%d:%d:%d:%s", t.conv.ID, t.userSeq, step, index, call.Name),
		Actor:      framework.ActorAgent,
		Action:     action,
		EntityType: "tool_call",
		EntityID:   call.Name,
		Rationale:  rationale,
		Decision:   decision,
		Metadata:   map[string]interface{}{"args": call.Args},
	}
	return t.recordAction(ctx, entry)
}

func (t *turnState) recordGuardrail(ctx context.Context, step int, call framework.ToolCall, decision framework.GuardrailDecision, action string) {
	t.recordAction(ctx, framework.ActivityEntry{
		ID:         fmt.Sprintf("%s:%d:%d:gate:%s", t.conv.ID, t.userSeq, step, call.Name),
		Actor:      framework.ActorAgent,
		Action:     action,
		EntityType: "tool_call",
		EntityID:   call.Name,
		Rationale:  decision.Reason,
		Decision:   &decision,
		Metadata:   map[string]interface{}{"args": call.Args},
	})
}

func (t *turnState) recordAction(ctx context.Context, entry framework.ActivityEntry) error {
	entry.ConversationID = t.conv.ID
	err := t.orch.store.Record(ctx, entry)
	if err != nil && err != framework.ErrDuplicateEntry {
		t.orch.debugf("decision log append failed: %v", err)
		return err
	}
	return nil
}

// failTurn terminates the turn with a logged failure and an apology. The user
// always receives a reply, even on failure.
func (t *turnState) failTurn(ctx context.Context, where string, err error) {
	t.recordAction(ctx, framework.ActivityEntry{
		ID:        fmt.Sprintf("%s:%d:failed:%s", t.conv.ID, t.userSeq, where),
		Actor:     framework.ActorAgent,
		Action:    framework.ActionTurnFailed,
		Rationale: fmt.Sprintf("%s: %v", where, err),
	})
	t.finish(ctx, "I'm sorry -- something went wrong on my side and I stopped before making any changes. Please try once more.")
}

// finish persists the agent reply, saves conversation state, and closes the
// turn with message and done events.
func (t *turnState) finish(ctx context.Context, reply string) {
	if reply == "" {
		reply = "I wasn't able to come up with a useful answer for that. Could you rephrase?"
	}
	agentMsg := &framework.ChatMessage{
		ConversationID: t.conv.ID,
		Role:           framework.RoleAgent,
		Content:        reply,
		ToolTrace:      t.traces,
	}
	if err := t.orch.store.AppendMessage(ctx, agentMsg); err != nil {
		t.orch.debugf("append agent message failed: %v", err)
	}
	ConcludePublished(t.conv)
	t.saveConversation(ctx)
	t.emit(ctx, framework.Event{Type: framework.EventMessage, Text: reply})
	t.emit(ctx, framework.Event{Type: framework.EventDone})
}

func (t *turnState) saveConversation(ctx context.Context) {
	if err := t.orch.store.SaveConversation(ctx, t.conv); err != nil {
		t.orch.debugf("save conversation failed: %v", err)
	}
}

// seedMessages builds the chat transcript for the backend: system prompt plus
// the recent window, newest last.
func (t *turnState) seedMessages(persona Persona, mc *framework.MemoryContext, tools []framework.Tool) []framework.Message {
	messages := []framework.Message{
		{Role: "system", Content: BuildSystemPrompt(persona, mc, tools)},
	}
	for _, msg := range mc.RecentMessages {
		role := "user"
		switch msg.Role {
		case framework.RoleAgent:
			role = "assistant"
		case framework.RoleSystem:
			role = "system"
		}
		messages = append(messages, framework.Message{Role: role, Content: msg.Content})
	}
	return messages
}

// toolMessage encodes a tool result as the observation message fed back to
// the backend.
func toolMessage(call framework.ToolCall, res *framework.ToolResult) framework.Message {
	payload := map[string]interface{}{"success": res.Success}
	if len(res.Data) > 0 {
		payload["data"] = res.Data
	}
	if res.Err != nil {
		payload["error"] = map[string]interface{}{
			"kind":      res.Err.Kind,
			"message":   res.Err.Message,
			"retryable": res.Err.Retryable,
		}
	}
	encoded, err := json.Marshal(payload)
	content := string(encoded)
	if err != nil {
		content = fmt.Sprintf("success=%t error=%v", res.Success, res.Err)
	}
	return framework.Message{
		Role:       "tool",
		Name:       call.Name,
		Content:    content,
		ToolCallID: call.ID,
	}
}

func stringData(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}
