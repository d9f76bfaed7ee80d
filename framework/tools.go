// Package framework hosts the foundational data structures shared by the
// orchestrator, the tool implementations, and the transport layers: the tool
// contract, the typed event stream, the completion-backend interface, and the
// persisted domain records.
package framework

import (
	"context"
	"fmt"
	"sync"
)

// SideEffect classifies what a tool invocation can change. The orchestrator
// consults this class before dispatch: read-only tools run immediately (and
// may fan out concurrently), mutating and irreversible tools pass through the
// guardrail validator one at a time.
type SideEffect string

const (
	SideEffectReadOnly     SideEffect = "read_only"
	SideEffectMutating     SideEffect = "mutating"
	SideEffectIrreversible SideEffect = "irreversible"
)

// Tool defines a capability the agent can invoke. The metadata doubles as the
// schema the completion backend reasons about when selecting a call.
type Tool interface {
	Name() string
	Description() string
	SideEffect() SideEffect
	Parameters() []ToolParameter
	Execute(ctx context.Context, args map[string]interface{}) (*ToolResult, error)
}

// ToolParameter describes an argument the tool accepts.
type ToolParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     interface{}
}

// ToolError is the structured failure a tool returns instead of a payload.
type ToolError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Tool error kinds, mirroring the engine's error taxonomy.
const (
	ToolErrInputInvalid    = "tool_input_invalid"
	ToolErrExecutionFailed = "tool_execution_failed"
	ToolErrNotFound        = "not_found"
	ToolErrUnavailable     = "unavailable"
)

// ToolResult is returned by every tool execution: either a success payload or
// a structured error, never both.
type ToolResult struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Err     *ToolError             `json:"error,omitempty"`
}

// ToolFailure builds a failed result with a structured error attached.
func ToolFailure(kind, message string, retryable bool) *ToolResult {
	return &ToolResult{
		Success: false,
		Err:     &ToolError{Kind: kind, Message: message, Retryable: retryable},
	}
}

// ToolSuccess builds a successful result around a payload.
func ToolSuccess(data map[string]interface{}) *ToolResult {
	return &ToolResult{Success: true, Data: data}
}

// ToolRegistry maintains the static catalog of callable capabilities. The
// orchestrator keeps one registry per conversation so persona bundles can
// select subsets without re-registering tools.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry builds a registry instance.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *ToolRegistry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name())
	}
	r.tools[tool.Name()] = tool
	return nil
}

// Get fetches a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// All returns all registered tools.
func (r *ToolRegistry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		res = append(res, t)
	}
	return res
}

// Subset returns the tools whose names appear in the provided list, skipping
// unknown names. Persona bundles use this to narrow the catalog.
func (r *ToolRegistry) Subset(names []string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Tool, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			res = append(res, t)
		}
	}
	return res
}

// ValidateArgs checks a proposed input payload against the tool's declared
// parameters. A schema mismatch fails here, before any dispatch happens.
func ValidateArgs(tool Tool, args map[string]interface{}) *ToolError {
	for _, param := range tool.Parameters() {
		val, present := args[param.Name]
		if !present {
			if param.Required {
				return &ToolError{
					Kind:    ToolErrInputInvalid,
					Message: fmt.Sprintf("missing required argument %q for %s", param.Name, tool.Name()),
				}
			}
			continue
		}
		if !typeMatches(param.Type, val) {
			return &ToolError{
				Kind:    ToolErrInputInvalid,
				Message: fmt.Sprintf("argument %q for %s must be %s", param.Name, tool.Name(), param.Type),
			}
		}
	}
	return nil
}

func typeMatches(declared string, val interface{}) bool {
	switch declared {
	case "string":
		_, ok := val.(string)
		return ok
	case "number":
		switch val.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "array":
		switch val.(type) {
		case []interface{}, []string:
			return true
		}
		return false
	case "object":
		_, ok := val.(map[string]interface{})
		return ok
	default:
		return true
	}
}
