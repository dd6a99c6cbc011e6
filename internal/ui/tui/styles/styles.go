package styles

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colours
	Accent  = lipgloss.Color("#7D56F4")
	Muted   = lipgloss.Color("#AAAAAA")
	Success = lipgloss.Color("#43BF6D")
	Danger  = lipgloss.Color("#F25D5D")
	AdColor = lipgloss.Color("#F2C94C")

	// Text styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(Accent).
		Padding(0, 1)

	Info = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#DEDEDE"))

	Url = lipgloss.NewStyle().
		Foreground(Success).
		Underline(true)

	FilterStatus = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC")).
			Padding(0, 2)

	// Player styles
	Status = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF"))

	Error = lipgloss.NewStyle().
		Bold(true).
		Foreground(Danger)

	AdBadge = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#000000")).
		Background(AdColor).
		Padding(0, 1)

	Notice = lipgloss.NewStyle().
		Foreground(Muted).
		Italic(true)
)

// Layout helpers
func Header(width int, title string) string {
	return Title.
		Width(width).
		Align(lipgloss.Center).
		Render(title)
}

func ContentBox(width int, content string, padding int) string {
	return lipgloss.NewStyle().
		Width(width).
		Padding(padding).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#555555")).
		Render(content)
}

func CenteredView(width int, height int, content string) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}

func CenteredText(width int, text string) string {
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Render(text)
}
