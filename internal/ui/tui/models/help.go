package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	kb "github.com/PizzaHomicide/adplay/internal/ui/tui/keybindings"
	"github.com/PizzaHomicide/adplay/internal/ui/tui/styles"
)

type helpSection struct {
	title   string
	context kb.ContextName
}

// helpPage is the help shown for one view
type helpPage struct {
	title       string
	description string
	sections    []helpSection
}

var helpPages = map[View]helpPage{
	ViewCatalog: {
		title: "Catalog",
		description: "The catalog lists the videos configured under 'catalog' in the config file.  " +
			"Videos can also be added with 'adplay add <source-uri> [title]'.\n\n" +
			"Select a video and press enter to start playback in mpv.  " +
			"Search filters the list by title or source.",
		sections: []helpSection{
			{title: "Catalog commands:", context: kb.ContextCatalog},
			{title: "When in search mode:", context: kb.ContextSearchMode},
		},
	},
	ViewPlayer: {
		title: "Player",
		description: "The player controls the video playing in the mpv window.\n\n" +
			"Ads may play before the video, at its midpoint and after it ends.  Each break plays once per video.  " +
			"The controls are hidden while an ad plays.  Skippable ads can be skipped once their countdown ends.\n\n" +
			"If the video fails to play the error is shown here and playback can be retried from where it stopped.",
		sections: []helpSection{
			{title: "Player commands:", context: kb.ContextPlayer},
		},
	},
}

var defaultHelpPage = helpPage{
	title:       "General",
	description: "adplay plays videos in mpv with ad breaks, controlled from the terminal.",
}

// HelpModel displays contextual help with scrolling
type HelpModel struct {
	width, height int
	page          helpPage
	viewport      viewport.Model
}

// NewHelpModel creates a new help model for the given view
func NewHelpModel(view View) *HelpModel {
	page, ok := helpPages[view]
	if !ok {
		page = defaultHelpPage
	}
	return &HelpModel{
		page:     page,
		viewport: viewport.New(0, 0),
	}
}

func (m *HelpModel) ViewType() View {
	return ViewHelp
}

func (m *HelpModel) Init() tea.Cmd {
	if m.width > 0 && m.height > 0 {
		m.updateContent()
	}
	return nil
}

func (m *HelpModel) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
	case tea.KeyMsg:
		switch kb.GetActionByKey(msg, kb.ContextHelp) {
		case kb.ActionMoveUp, kb.ActionMoveDown, kb.ActionPageUp, kb.ActionPageDown:
			m.viewport, cmd = m.viewport.Update(msg)
		case kb.ActionMoveTop:
			m.viewport.GotoTop()
		case kb.ActionMoveBottom:
			m.viewport.GotoBottom()
		}
	}
	return m, cmd
}

func (m *HelpModel) Resize(width, height int) {
	m.width = width
	m.height = height

	// Leave room for the borders, header and footer
	m.viewport.Width = max(width-4, 1)
	m.viewport.Height = max(height-10, 1)

	m.updateContent()
}

func (m *HelpModel) updateContent() {
	m.viewport.SetContent(m.content())
	m.viewport.GotoTop()
}

func (m *HelpModel) View() string {
	header := styles.Header(m.width, "Help: "+m.page.title)
	scrollText := "↑/↓: Scroll • PgUp/PgDn: Page scroll • Home/End: Goto top/bottom • esc: Return"
	footer := styles.CenteredText(m.width, styles.Info.Render(scrollText))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		"",
		styles.ContentBox(m.width-2, m.viewport.View(), 1),
		"",
		footer,
	)
}

// content builds the page text: description, global keys, then the view's own keys without repeating global ones
func (m *HelpModel) content() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(styles.Accent)

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.page.title))
	b.WriteString("\n\n")
	b.WriteString(m.page.description)
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render("Keybindings"))
	b.WriteString("\n\n")
	b.WriteString(formatBindings("Global commands:", kb.ContextBindings[kb.ContextGlobal], nil))

	global := make(map[kb.Action]bool)
	for _, binding := range kb.ContextBindings[kb.ContextGlobal] {
		global[binding.Action] = true
	}
	for _, section := range m.page.sections {
		skip := global
		if section.context == kb.ContextSearchMode {
			// Search mode reuses esc with a different meaning, so list everything
			skip = nil
		}
		b.WriteString("\n")
		b.WriteString(formatBindings(section.title, kb.ContextBindings[section.context], skip))
	}
	return b.String()
}

// formatBindings renders one section of bindings with the descriptions aligned
func formatBindings(title string, bindings []kb.Binding, skip map[kb.Action]bool) string {
	type row struct{ keys, help string }
	var rows []row
	keyWidth := 0
	for _, binding := range bindings {
		if skip[binding.Action] {
			continue
		}
		keys := helpKeyName(binding.KeyMap.Primary)
		if binding.KeyMap.Secondary != "" {
			keys += " or " + helpKeyName(binding.KeyMap.Secondary)
		}
		keyWidth = max(keyWidth, runewidth.StringWidth(keys))
		rows = append(rows, row{keys: keys, help: binding.KeyMap.Help})
	}
	if len(rows) == 0 {
		return ""
	}

	bold := lipgloss.NewStyle().Bold(true)
	var b strings.Builder
	b.WriteString(bold.Render(title))
	b.WriteString("\n\n")
	for _, r := range rows {
		padding := strings.Repeat(" ", keyWidth-runewidth.StringWidth(r.keys))
		b.WriteString(fmt.Sprintf("• %s%s : %s\n", bold.Render(r.keys), padding, r.help))
	}
	return b.String()
}

func helpKeyName(key string) string {
	if key == " " {
		return "space"
	}
	return key
}
