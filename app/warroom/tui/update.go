package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/adpilot/framework"
)

type turnStartedMsg struct {
	events <-chan framework.Event
}

type turnEventMsg struct {
	event framework.Event
}

type turnClosedMsg struct{}

type turnErrMsg struct {
	err error
}

// Update satisfies tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		feedHeight := msg.Height - 4
		if feedHeight < 3 {
			feedHeight = 3
		}
		if !m.ready {
			m.feed = newFeed(msg.Width, feedHeight)
			m.ready = true
		} else {
			m.feed.Width = msg.Width
			m.feed.Height = feedHeight
		}
		m.input.Width = msg.Width - 4
		m.refreshFeed()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.streaming {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			m.appendLine(lineUser, text)
			return m, tea.Batch(m.spinner.Tick, m.submitTurn(text))
		}

	case turnStartedMsg:
		m.streaming = true
		m.events = msg.events
		return m, waitForEvent(msg.events)

	case turnEventMsg:
		m.applyEvent(msg.event)
		return m, waitForEvent(m.events)

	case turnClosedMsg:
		m.streaming = false
		m.events = nil
		return m, nil

	case turnErrMsg:
		m.streaming = false
		if msg.err != nil {
			if msg.err == framework.ErrTurnInFlight {
				m.appendLine(lineSystem, "still working on the previous message, one moment")
			} else {
				m.appendLine(lineError, msg.err.Error())
			}
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.streaming {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.ready {
		m.feed, cmd = m.feed.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) submitTurn(text string) tea.Cmd {
	return func() tea.Msg {
		events, err := m.engine.ProcessTurn(context.Background(), m.conv.ID, text)
		if err != nil {
			return turnErrMsg{err: err}
		}
		return turnStartedMsg{events: events}
	}
}

func waitForEvent(events <-chan framework.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return turnClosedMsg{}
		}
		return turnEventMsg{event: event}
	}
}

func (m *Model) applyEvent(event framework.Event) {
	switch event.Type {
	case framework.EventThinking:
		m.appendLine(lineThinking, event.Text)
	case framework.EventToolCall:
		m.appendLine(lineTool, "→ "+event.Tool)
	case framework.EventToolResult:
		if event.Error != "" {
			m.appendLine(lineError, "✗ "+event.Tool+": "+event.Error)
		} else {
			m.appendLine(lineToolOK, "✓ "+event.Tool)
		}
	case framework.EventMessage:
		m.appendLine(lineAgent, event.Text)
	case framework.EventDone:
		if event.Error != "" {
			m.appendLine(lineError, event.Error)
		}
	}
}

func (m *Model) appendLine(kind kindTag, text string) {
	if text == "" {
		return
	}
	m.lines = append(m.lines, feedLine{kind: kind, text: text, when: time.Now()})
	m.refreshFeed()
}
