package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/PizzaHomicide/adplay/internal/log"
	"github.com/PizzaHomicide/adplay/internal/ui/tui/styles"
)

// LoadingModel is shown while a playback session starts, e.g. while mpv opens the source
type LoadingModel struct {
	width, height int
	title         string
	message       string
	contextInfo   string
	spinner       spinner.Model
	startTime     time.Time
	now           func() time.Time
}

// NewLoadingModel creates a new loading model with the required message
func NewLoadingModel(message string) *LoadingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Accent)

	return &LoadingModel{
		message:   message,
		spinner:   s,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// WithTitle adds an optional title to the loading box
func (m *LoadingModel) WithTitle(title string) *LoadingModel {
	m.title = title
	return m
}

// WithContextInfo adds additional context information, such as the source being opened
func (m *LoadingModel) WithContextInfo(info string) *LoadingModel {
	m.contextInfo = info
	return m
}

func (m *LoadingModel) ViewType() View {
	return ViewLoading
}

func (m *LoadingModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *LoadingModel) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		// Keys are ignored until the session is up, ctrl+c is handled by the app model
		return m, Handled("loading:ignored")
	}

	log.Trace("Loading model ignored message", "message", fmt.Sprintf("%T", msg))
	return m, nil
}

// Elapsed returns how long the loading screen has been shown
func (m *LoadingModel) Elapsed() time.Duration {
	return m.now().Sub(m.startTime)
}

func (m *LoadingModel) View() string {
	contentWidth := min(m.width-20, 80)
	if contentWidth < 40 {
		contentWidth = min(m.width-4, 40)
	}

	spinnerStyle := lipgloss.NewStyle().
		Foreground(styles.Accent).
		Bold(true).
		PaddingRight(1)
	messageStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true)
	centerStyle := lipgloss.NewStyle().
		Width(contentWidth - 6).
		Align(lipgloss.Center)

	var b strings.Builder
	b.WriteString(centerStyle.Render(spinnerStyle.Render(m.spinner.View()) + " " + messageStyle.Render(m.message)))

	if m.contextInfo != "" {
		contextStyle := lipgloss.NewStyle().
			Foreground(styles.Muted).
			Italic(true).
			Width(contentWidth - 6).
			Align(lipgloss.Center)
		b.WriteString("\n\n")
		b.WriteString(contextStyle.Render(m.contextInfo))
	}

	// mpv can take a while to resolve remote sources, so say how long it has been
	if elapsed := m.Elapsed(); elapsed >= 3*time.Second {
		b.WriteString("\n\n")
		b.WriteString(centerStyle.Render(styles.Notice.Render(fmt.Sprintf("Waiting for %s", elapsed.Truncate(time.Second)))))
	}

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Accent).
		Padding(2, 3).
		Width(contentWidth)

	view := boxStyle.Render(b.String())
	if m.title != "" {
		titleStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(styles.Accent).
			Padding(0, 2).
			Align(lipgloss.Center).
			Width(contentWidth)
		view = lipgloss.JoinVertical(lipgloss.Center, titleStyle.Render(m.title), view)
	}

	return styles.CenteredView(m.width, m.height, view)
}

func (m *LoadingModel) Resize(width, height int) {
	m.width = width
	m.height = height
}
