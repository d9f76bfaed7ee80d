package framework

import "time"

// EventType enumerates the discrete events a turn emits, in the order they
// occur. Consumers must treat the stream as append-only and terminal at
// EventDone.
type EventType string

const (
	EventThinking   EventType = "thinking"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventMessage    EventType = "message"
	EventDone       EventType = "done"
)

// Event is one entry in the ordered stream produced by a turn. The
// orchestrator writes events to a channel and the transport layer (SSE, TUI)
// reads from it, so orchestration logic stays decoupled from any specific
// transport.
type Event struct {
	Type           EventType              `json:"type"`
	ConversationID string                 `json:"conversation_id"`
	Timestamp      time.Time              `json:"timestamp"`
	Text           string                 `json:"text,omitempty"`
	Delta          bool                   `json:"delta,omitempty"`
	Tool           string                 `json:"tool,omitempty"`
	Input          map[string]interface{} `json:"input,omitempty"`
	Output         map[string]interface{} `json:"output,omitempty"`
	Error          string                 `json:"error,omitempty"`
}
