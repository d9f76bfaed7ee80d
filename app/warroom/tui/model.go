// Package tui is the war-room chat client: one terminal session bound to one
// conversation, streaming the agent's events as they happen.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/adpilot/framework"
	"github.com/lexcodex/adpilot/server"
)

// Run starts the chat client over the given conversation.
func Run(ctx context.Context, engine *server.Engine, conv *framework.Conversation) error {
	if engine == nil {
		return fmt.Errorf("engine is required")
	}
	model := NewModel(engine, conv)
	program := tea.NewProgram(
		model,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}

// feedLine is one rendered row in the transcript feed.
type feedLine struct {
	kind kindTag
	text string
	when time.Time
}

type kindTag int

const (
	lineUser kindTag = iota
	lineAgent
	lineThinking
	lineTool
	lineToolOK
	lineError
	lineSystem
)

// Model coordinates the feed viewport, the prompt bar, and the status line.
type Model struct {
	engine *server.Engine
	conv   *framework.Conversation

	feed    viewport.Model
	input   textinput.Model
	spinner spinner.Model

	lines []feedLine

	width  int
	height int
	ready  bool

	streaming bool
	events    <-chan framework.Event
	err       error
}

// NewModel builds the initial TUI state.
func NewModel(engine *server.Engine, conv *framework.Conversation) *Model {
	input := textinput.New()
	input.Placeholder = "Ask about performance, or start drafting an ad..."
	input.Focus()
	input.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		engine:  engine,
		conv:    conv,
		input:   input,
		spinner: sp,
	}
}

// Init satisfies tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) scopeLabel() string {
	if m.conv.Scope == framework.ScopePage {
		title := m.conv.Title
		if title == "" {
			title = m.conv.PageID
		}
		return fmt.Sprintf("war room · %s", title)
	}
	return "account overview"
}
