package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

func newFeed(width, height int) viewport.Model {
	feed := viewport.New(width, height)
	feed.SetContent(welcomeStyle.Render("Connected. Ask about performance, or start drafting an ad."))
	return feed
}

// View satisfies tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}
	status := m.scopeLabel()
	if m.streaming {
		status = m.spinner.View() + " thinking · " + status
	}
	var b strings.Builder
	b.WriteString(m.feed.View())
	b.WriteString("\n")
	b.WriteString(statusStyle.Width(m.width).Render(status))
	b.WriteString("\n")
	b.WriteString(promptBarStyle.Width(m.width).Render(m.input.View()))
	return b.String()
}

func (m *Model) refreshFeed() {
	if !m.ready {
		return
	}
	var rows []string
	for _, line := range m.lines {
		rows = append(rows, renderLine(line, m.width))
	}
	if len(rows) == 0 {
		rows = append(rows, welcomeStyle.Render("Connected. Ask about performance, or start drafting an ad."))
	}
	m.feed.SetContent(strings.Join(rows, "\n"))
	m.feed.GotoBottom()
}

func renderLine(line feedLine, width int) string {
	stamp := line.when.Format("15:04")
	body := lipgloss.NewStyle().Width(max(width-10, 20)).Render(line.text)
	switch line.kind {
	case lineUser:
		return fmt.Sprintf("%s %s\n%s", userLabelStyle.Render("you"), stamp, body)
	case lineAgent:
		return fmt.Sprintf("%s %s\n%s", agentLabelStyle.Render("agent"), stamp, body)
	case lineThinking:
		return thinkingStyle.Render(line.text)
	case lineTool:
		return toolStyle.Render(line.text)
	case lineToolOK:
		return toolOKStyle.Render(line.text)
	case lineError:
		return errorStyle.Render(line.text)
	default:
		return thinkingStyle.Render(line.text)
	}
}
