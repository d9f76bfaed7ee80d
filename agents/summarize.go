package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexcodex/adpilot/framework"
)

// SummarizeTranscript returns a transcript summarizer backed by the
// completion model, used when archiving legacy conversations.
func SummarizeTranscript(model framework.LanguageModel) func(ctx context.Context, transcript string) (string, error) {
	return func(ctx context.Context, transcript string) (string, error) {
		prompt := fmt.Sprintf(
			"Summarize this advertising conversation in at most five sentences. "+
				"Keep campaign names, budgets, and decisions; drop greetings and small talk.\n\n%s",
			transcript)
		resp, err := model.Generate(ctx, prompt, &framework.LLMOptions{Temperature: 0.2})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.Text), nil
	}
}
