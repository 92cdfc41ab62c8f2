package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("69"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	answerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))
)
