package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("39")
	colorAccent  = lipgloss.Color("86")
	colorSuccess = lipgloss.Color("42")
	colorWarning = lipgloss.Color("220")
	colorError   = lipgloss.Color("196")
	colorDim     = lipgloss.Color("241")

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	agentLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	thinkingStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)

	toolStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	toolOKStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	promptBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Padding(0, 1)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)
)
