package llm

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/lexcodex/adpilot/framework"
)

// LoggedModel wraps a LanguageModel and logs prompt and response previews.
// Wired in when the serve or chat command runs with debug enabled.
type LoggedModel struct {
	Inner  framework.LanguageModel
	Logger *log.Logger
}

// NewLoggedModel wraps the inner model. A nil logger uses the default logger.
func NewLoggedModel(inner framework.LanguageModel, logger *log.Logger) *LoggedModel {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggedModel{Inner: inner, Logger: logger}
}

func (m *LoggedModel) Generate(ctx context.Context, prompt string, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	m.Logger.Printf("[llm] generate prompt (%d chars): %s", len(prompt), clip(prompt, 1024))
	resp, err := m.Inner.Generate(ctx, prompt, options)
	m.logResponse("generate", resp, err)
	return resp, err
}

func (m *LoggedModel) GenerateStream(ctx context.Context, prompt string, options *framework.LLMOptions) (<-chan string, error) {
	m.Logger.Printf("[llm] generate_stream prompt (%d chars): %s", len(prompt), clip(prompt, 1024))
	ch, err := m.Inner.GenerateStream(ctx, prompt, options)
	if err != nil {
		m.Logger.Printf("[llm] generate_stream error: %v", err)
	}
	return ch, err
}

func (m *LoggedModel) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	m.logMessages("chat", messages, nil)
	resp, err := m.Inner.Chat(ctx, messages, options)
	m.logResponse("chat", resp, err)
	return resp, err
}

func (m *LoggedModel) ChatWithTools(ctx context.Context, messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	m.logMessages("chat_with_tools", messages, tools)
	resp, err := m.Inner.ChatWithTools(ctx, messages, tools, options)
	m.logResponse("chat_with_tools", resp, err)
	return resp, err
}

func (m *LoggedModel) logMessages(kind string, messages []framework.Message, tools []framework.Tool) {
	roles := make([]string, 0, len(messages))
	for _, msg := range messages {
		roles = append(roles, msg.Role)
	}
	if len(tools) > 0 {
		names := make([]string, 0, len(tools))
		for _, t := range tools {
			names = append(names, t.Name())
		}
		m.Logger.Printf("[llm] %s: %d messages (%s), tools: %s",
			kind, len(messages), strings.Join(roles, ","), strings.Join(names, ","))
		return
	}
	m.Logger.Printf("[llm] %s: %d messages (%s)", kind, len(messages), strings.Join(roles, ","))
}

func (m *LoggedModel) logResponse(kind string, resp *framework.LLMResponse, err error) {
	if err != nil {
		m.Logger.Printf("[llm] %s error: %v", kind, err)
		return
	}
	if resp == nil {
		return
	}
	if len(resp.ToolCalls) > 0 {
		calls, _ := json.Marshal(resp.ToolCalls)
		m.Logger.Printf("[llm] %s response: %s tool_calls=%s", kind, clip(resp.Text, 512), clip(string(calls), 1024))
		return
	}
	m.Logger.Printf("[llm] %s response: %s", kind, clip(resp.Text, 1024))
}

func clip(s string, max int) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
