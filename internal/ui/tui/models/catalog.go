package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mattn/go-runewidth"

	"github.com/PizzaHomicide/adplay/internal/config"
	"github.com/PizzaHomicide/adplay/internal/log"
	"github.com/PizzaHomicide/adplay/internal/ui/tui/components"
	kb "github.com/PizzaHomicide/adplay/internal/ui/tui/keybindings"
	"github.com/PizzaHomicide/adplay/internal/ui/tui/styles"
	"github.com/PizzaHomicide/adplay/internal/ui/tui/util"
)

// CatalogModel lists the configured videos and lets the user pick one to play
type CatalogModel struct {
	width, height  int
	entries        []config.CatalogEntry
	filtered       []config.CatalogEntry
	cursor         int
	searchInput    textinput.Model
	searchMode     bool
	viewportOffset int // For scrolling
	status         string
}

// NewCatalogModel creates the catalog view
func NewCatalogModel(entries []config.CatalogEntry) *CatalogModel {
	input := textinput.New()
	input.Placeholder = "Filter videos..."
	input.Width = 30
	input.SetValue("")

	return &CatalogModel{
		searchInput: input,
		entries:     entries,
		filtered:    entries,
	}
}

func (m *CatalogModel) ViewType() View {
	return ViewCatalog
}

// Selected returns the entry under the cursor
func (m *CatalogModel) Selected() *config.CatalogEntry {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return nil
	}
	return &m.filtered[m.cursor]
}

// SetStatus shows an error line above the list, e.g. when the last video failed to start.  An empty string clears it.
func (m *CatalogModel) SetStatus(status string) {
	m.status = status
}

// Searching reports whether key presses go to the search box
func (m *CatalogModel) Searching() bool {
	return m.searchMode
}

func (m *CatalogModel) Init() tea.Cmd {
	return nil
}

func (m *CatalogModel) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// If in search mode, handle input differently
		if cmd := m.handleSearchModeKeyMsg(msg); cmd != nil {
			return m, cmd
		}

		if cmd := m.handleKeyMsg(msg); cmd != nil {
			return m, cmd
		}
	}

	return m, nil
}

func (m *CatalogModel) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch kb.GetActionByKey(msg, kb.ContextCatalog) {
	case kb.ActionPlaySelected:
		selected := m.Selected()
		if selected == nil {
			return Handled("catalog:play:empty")
		}
		entry := *selected
		log.Info("Catalog entry selected", "title", entry.Title, "source", entry.Source)
		return func() tea.Msg {
			return PlayEntryMsg{Entry: entry}
		}
	case kb.ActionEnableSearch:
		m.searchMode = true
		m.searchInput.Focus()
		return Handled("search:enable")
	case kb.ActionMoveDown:
		if len(m.filtered) > 0 && m.cursor < len(m.filtered)-1 {
			m.cursor++
			m.ensureCursorVisible()
		}
		return Handled("cursor_move:down")
	case kb.ActionMoveUp:
		if m.cursor > 0 {
			m.cursor--
			m.ensureCursorVisible()
		}
		return Handled("cursor_move:up")
	case kb.ActionPageDown:
		m.cursor = min(m.cursor+m.pageSize(), len(m.filtered)-1)
		m.ensureCursorVisible()
		return Handled("cursor_move:pgdown")
	case kb.ActionPageUp:
		m.cursor = max(m.cursor-m.pageSize(), 0)
		m.ensureCursorVisible()
		return Handled("cursor_move:pgup")
	case kb.ActionMoveTop:
		m.cursor = 0
		m.ensureCursorVisible()
		return Handled("cursor_move:top")
	case kb.ActionMoveBottom:
		m.cursor = len(m.filtered) - 1
		m.ensureCursorVisible()
		return Handled("cursor_move:bottom")
	}

	return nil
}

func (m *CatalogModel) handleSearchModeKeyMsg(msg tea.KeyMsg) tea.Cmd {
	if !m.searchMode {
		return nil
	}
	switch kb.GetActionByKey(msg, kb.ContextSearchMode) {
	case kb.ActionBack:
		// Cancels search, clearing the filter
		m.searchMode = false
		m.searchInput.SetValue("")
		m.searchInput.Blur()
		m.applyFilter()
		return Handled("search:exit")
	case kb.ActionSearchComplete:
		m.searchMode = false
		m.searchInput.Blur()
		m.applyFilter()
		return Handled("search:apply")
	}

	// Let the text input model handle other keys
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)

	// Apply filters as we type
	m.applyFilter()

	if cmd == nil {
		cmd = Handled("search:input")
	}
	return cmd
}

// applyFilter filters the catalog on title and source
func (m *CatalogModel) applyFilter() {
	query := m.searchInput.Value()
	if query == "" {
		m.filtered = m.entries
		m.ensureCursorVisible()
		return
	}

	var filtered []config.CatalogEntry
	for _, entry := range m.entries {
		if fuzzy.MatchFold(query, entry.Title) || fuzzy.MatchFold(query, entry.Source) {
			filtered = append(filtered, entry)
		}
	}
	m.filtered = filtered
	m.ensureCursorVisible()
}

func (m *CatalogModel) pageSize() int {
	return max(m.height-11, 1)
}

// ensureCursorVisible adjusts the viewport offset to keep the cursor visible
func (m *CatalogModel) ensureCursorVisible() {
	if len(m.filtered) == 0 {
		m.cursor = 0
		m.viewportOffset = 0
		return
	}

	m.cursor = max(0, min(m.cursor, len(m.filtered)-1))

	visibleCount := min(len(m.filtered), m.visibleRows())
	if len(m.filtered) <= visibleCount {
		m.viewportOffset = 0
		return
	}

	if m.cursor < m.viewportOffset {
		m.viewportOffset = m.cursor
	}
	if m.cursor >= m.viewportOffset+visibleCount {
		m.viewportOffset = max(0, m.cursor-visibleCount+1)
	}
	m.viewportOffset = min(m.viewportOffset, max(0, len(m.filtered)-visibleCount))
}

// visibleRows is the number of entries that fit between the header and the footer
func (m *CatalogModel) visibleRows() int {
	return max(m.height-11, 1)
}

func (m *CatalogModel) View() string {
	header := styles.Header(m.width, "adplay - Catalog")
	content := m.renderList()

	if m.searchMode {
		searchPrompt := styles.Title.Render("Search: ") + m.searchInput.View()
		content = lipgloss.JoinVertical(lipgloss.Left, searchPrompt, content)
	} else if m.searchInput.Value() != "" {
		filterLine := styles.FilterStatus.Render("Filter: " + m.searchInput.Value())
		content = lipgloss.JoinVertical(lipgloss.Left, filterLine, content)
	}
	if m.status != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, styles.Error.Render(m.status), content)
	}

	footer := components.KeyBindingsBar(m.width, []components.KeyBinding{
		{Key: "↑/↓", Desc: "Navigate"},
		{Key: "enter", Desc: "Play"},
		{Key: "/", Desc: "Search"},
		{Key: "ctrl+h", Desc: "Help"},
		{Key: "ctrl+c", Desc: "Quit"},
	})

	return fmt.Sprintf("%s\n\n%s\n\n%s", header, content, footer)
}

func (m *CatalogModel) Resize(width, height int) {
	m.width = width
	m.height = height
	m.ensureCursorVisible()
}

func (m *CatalogModel) renderList() string {
	if len(m.filtered) == 0 {
		if m.searchInput.Value() != "" {
			return styles.CenteredText(m.width, "No videos match your filter")
		}
		return styles.CenteredText(m.width, "The catalog is empty.  Add entries under 'catalog' in the config file.")
	}

	visibleCount := min(len(m.filtered), m.visibleRows())
	startIdx := m.viewportOffset
	endIdx := min(startIdx+visibleCount, len(m.filtered))

	rowWidth := max(m.width-4, 10)
	selectedStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(styles.Accent).
		Width(rowWidth).
		Padding(0, 1)
	normalStyle := lipgloss.NewStyle().
		Width(rowWidth).
		Padding(0, 1)

	var b strings.Builder
	for i := startIdx; i < endIdx; i++ {
		row := m.formatEntry(m.filtered[i], rowWidth-2)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(row))
		} else {
			b.WriteString(normalStyle.Render(row))
		}
		b.WriteString("\n")
	}

	if len(m.filtered) > visibleCount {
		pagination := fmt.Sprintf("Showing %d-%d of %d", startIdx+1, endIdx, len(m.filtered))
		b.WriteString(styles.CenteredText(rowWidth, pagination))
	}

	return styles.ContentBox(m.width-2, b.String(), 1)
}

// formatEntry renders the title in a fixed column followed by the source
func (m *CatalogModel) formatEntry(entry config.CatalogEntry, width int) string {
	titleWidth := min(40, width/2)
	title := util.TruncateString(entry.Title, titleWidth)
	padded := title + strings.Repeat(" ", max(0, titleWidth-runewidth.StringWidth(title)))

	sourceWidth := max(width-titleWidth-1, 5)
	source := styles.Url.Render(util.TruncateString(entry.Source, sourceWidth))
	return padded + " " + source
}
