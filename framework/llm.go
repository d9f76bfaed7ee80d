package framework

import "context"

// LLMOptions configures completion backend calls. Keeping the options struct
// inside the framework avoids hard-coding provider specific fields in agent
// code.
type LLMOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Stop        []string
	Stream      bool
}

// ToolCall encodes a function invocation requested by the completion backend.
type ToolCall struct {
	ID   string                 `json:"id,omitempty"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// LLMResponse is the result of a completion backend invocation.
type LLMResponse struct {
	Text         string         `json:"text,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Usage        map[string]int `json:"usage,omitempty"`
	ToolCalls    []ToolCall     `json:"tool_calls,omitempty"`
}

// Message is used for chat-like interactions with the backend.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// LanguageModel provides the required completion backend capabilities. The
// orchestrator only depends on this interface, so tests can substitute a
// scripted backend and the transport can swap providers via configuration.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string, options *LLMOptions) (*LLMResponse, error)
	GenerateStream(ctx context.Context, prompt string, options *LLMOptions) (<-chan string, error)
	Chat(ctx context.Context, messages []Message, options *LLMOptions) (*LLMResponse, error)
	ChatWithTools(ctx context.Context, messages []Message, tools []Tool, options *LLMOptions) (*LLMResponse, error)
}
