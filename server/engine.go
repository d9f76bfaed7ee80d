// Package server exposes the engine over HTTP: conversation CRUD, turn
// submission with server-sent event streaming, and the activity log.
package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/lexcodex/adpilot/agents"
	"github.com/lexcodex/adpilot/framework"
	"github.com/lexcodex/adpilot/persistence"
	"github.com/lexcodex/adpilot/tools"
)

// Engine binds one orchestrator per conversation. Tool registries are
// conversation-scoped, so the orchestrator for a conversation is built on
// first use and reused for every later turn; the per-conversation turn lock
// lives inside it.
type Engine struct {
	store  persistence.Store
	deps   tools.Deps
	config agents.Config
	memory *agents.MemoryScope

	mu    sync.Mutex
	orchs map[string]*agents.Orchestrator
}

// NewEngine wires the orchestration stack over the given collaborators.
// deps.Model must be set; other collaborators fall back to the built-in mocks.
func NewEngine(deps tools.Deps, config agents.Config) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if deps.Model == nil {
		return nil, fmt.Errorf("engine: language model is required")
	}
	if deps.Performance == nil {
		deps.Performance = tools.NewMockPerformanceSource()
	}
	return &Engine{
		store:  deps.Store,
		deps:   deps,
		config: config,
		memory: agents.NewMemoryScope(deps.Store, deps.Performance),
		orchs:  make(map[string]*agents.Orchestrator),
	}, nil
}

// Store exposes the underlying store for read endpoints.
func (e *Engine) Store() persistence.Store { return e.store }

// ProcessTurn routes one user message to the conversation's orchestrator.
func (e *Engine) ProcessTurn(ctx context.Context, conversationID, userText string) (<-chan framework.Event, error) {
	conv, err := e.store.Conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	orch, err := e.orchestratorFor(conv)
	if err != nil {
		return nil, err
	}
	return orch.ProcessTurn(ctx, conversationID, userText)
}

func (e *Engine) orchestratorFor(conv *framework.Conversation) (*agents.Orchestrator, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if orch, ok := e.orchs[conv.ID]; ok {
		return orch, nil
	}
	registry, err := tools.NewRegistry(e.deps, conv)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	orch := agents.NewOrchestrator(e.store, e.deps.Model, registry, e.memory, e.config)
	e.orchs[conv.ID] = orch
	return orch, nil
}
