package models

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/PizzaHomicide/adplay/internal/config"
	"github.com/PizzaHomicide/adplay/internal/log"
	kb "github.com/PizzaHomicide/adplay/internal/ui/tui/keybindings"
)

// AppModel is the main application model that coordinates all child models.  It is the high level wrapper.
type AppModel struct {
	ctx     context.Context
	config  *config.Config
	starter Starter
	// initial is set when a source was given on the command line.  The app quits once its playback ends.
	initial *config.CatalogEntry

	activeView    View  // Track the current active 'main view'
	activeModal   Modal // Track the current active 'modal overlay' if any
	width, height int

	// Models used for various views
	catalogModel *CatalogModel
	loadingModel *LoadingModel
	playerModel  *PlayerModel
	helpModel    *HelpModel
}

// NewAppModel creates a new instance of the main application model
func NewAppModel(ctx context.Context, cfg *config.Config, starter Starter, initial *config.CatalogEntry) AppModel {
	m := AppModel{
		ctx:          ctx,
		config:       cfg,
		starter:      starter,
		initial:      initial,
		activeView:   ViewCatalog,
		activeModal:  ModalNone,
		catalogModel: NewCatalogModel(cfg.Catalog),
		helpModel:    NewHelpModel(ViewCatalog),
	}
	if initial != nil {
		m.showLoading(*initial)
	}
	return m
}

func (m AppModel) Init() tea.Cmd {
	log.Info("Initialising adplay TUI")

	if m.initial != nil {
		log.Debug("Source given on the command line.  Starting playback immediately", "source", m.initial.Source)
		return tea.Batch(m.loadingModel.Init(), m.startCmd(*m.initial))
	}
	return m.catalogModel.Init()
}

// Update handles messages and updates the models as appropriate
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch kb.GetActionByKey(msg, kb.ContextGlobal) {
		case kb.ActionQuit:
			log.Info("Quit command received.  Shutting down...")
			return m, m.quit()
		case kb.ActionToggleHelp:
			log.Debug("Help requested", "active_view", m.activeView)
			// Disable/toggle modal if one already active
			if m.activeModal != ModalNone {
				m.activeModal = ModalNone
				return m, nil
			}
			m.activeModal = ModalHelp
			m.helpModel = NewHelpModel(m.activeView)
			m.helpModel.Resize(m.width, m.height)
			return m, m.helpModel.Init()
		case kb.ActionBack:
			// Handle closing modal when esc is pressed if any is active
			if m.activeModal != ModalNone {
				m.activeModal = ModalNone
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		log.Debug("Window size changed", "old_width", m.width, "new_width", msg.Width, "old_height", m.height, "new_height", msg.Height)
		m.width = msg.Width
		m.height = msg.Height

		// Propagate new window size to all views so they are aware and can render correctly
		m.catalogModel.Resize(msg.Width, msg.Height)
		m.helpModel.Resize(msg.Width, msg.Height)
		if m.loadingModel != nil {
			m.loadingModel.Resize(msg.Width, msg.Height)
		}
		if m.playerModel != nil {
			m.playerModel.Resize(msg.Width, msg.Height)
		}
		return m, nil

	case HandledMsg:
		log.Trace("Message handled", "action", msg.Action)
		return m, nil

	case PlayEntryMsg:
		m.catalogModel.SetStatus("")
		return m, m.startSession(msg.Entry)

	case SessionStartedMsg:
		log.Info("Playback started", "title", msg.Entry.Title, "source", msg.Entry.Source)
		m.loadingModel = nil
		m.playerModel = NewPlayerModel(msg.Session)
		m.playerModel.Resize(m.width, m.height)
		m.activeView = ViewPlayer
		m.activeModal = ModalNone
		return m, m.playerModel.Init()

	case SessionErrorMsg:
		log.Error("Failed to start playback", "title", msg.Entry.Title, "source", msg.Entry.Source, "error", msg.Error)
		m.loadingModel = nil
		m.activeView = ViewCatalog
		m.catalogModel.SetStatus("Could not play " + msg.Entry.Title + ": " + msg.Error.Error())
		return m, nil

	case SessionEndedMsg:
		if m.playerModel == nil || msg.Session != m.playerModel.Session() {
			return m, nil
		}
		log.Info("Playback ended", "title", m.playerModel.snap.Title)
		m.playerModel = nil
		m.activeModal = ModalNone
		if m.initial != nil {
			return m, tea.Quit
		}
		m.activeView = ViewCatalog
		return m, nil
	}

	// Prioritise delegating messages to a modal if one is active.  Snapshots still go to the player so it keeps
	// listening for updates.
	if m.activeModal == ModalHelp {
		if _, isKey := msg.(tea.KeyMsg); isKey {
			return m.updateHelpModal(msg)
		}
		if _, isMouse := msg.(tea.MouseMsg); isMouse {
			return m.updateHelpModal(msg)
		}
	}

	// Delegate message processing to the active view
	switch m.activeView {
	case ViewCatalog:
		model, cmd := m.catalogModel.Update(msg)
		m.catalogModel = model.(*CatalogModel)
		return m, cmd
	case ViewLoading:
		if m.loadingModel != nil {
			model, cmd := m.loadingModel.Update(msg)
			m.loadingModel = model.(*LoadingModel)
			return m, cmd
		}
	case ViewPlayer:
		if m.playerModel != nil {
			model, cmd := m.playerModel.Update(msg)
			m.playerModel = model.(*PlayerModel)
			return m, cmd
		}
	}

	return m, nil
}

func (m AppModel) View() string {
	// If there is an active modal it takes presedence
	if m.activeModal == ModalHelp {
		return m.helpModel.View()
	}

	switch m.activeView {
	case ViewCatalog:
		return m.catalogModel.View()
	case ViewLoading:
		if m.loadingModel != nil {
			return m.loadingModel.View()
		}
	case ViewPlayer:
		if m.playerModel != nil {
			return m.playerModel.View()
		}
	}
	return "Unknown view\nPress ctrl+c to quit."
}

// startSession switches to the loading view and starts playback of entry in the background
func (m *AppModel) startSession(entry config.CatalogEntry) tea.Cmd {
	m.showLoading(entry)
	return tea.Batch(m.loadingModel.Init(), m.startCmd(entry))
}

func (m *AppModel) showLoading(entry config.CatalogEntry) {
	m.loadingModel = NewLoadingModel("Opening video...").
		WithTitle(entry.Title).
		WithContextInfo(entry.Source)
	m.loadingModel.Resize(m.width, m.height)
	m.activeView = ViewLoading
}

// startCmd starts the session off the update loop as mpv can take a while to come up
func (m AppModel) startCmd(entry config.CatalogEntry) tea.Cmd {
	ctx, starter := m.ctx, m.starter
	return func() tea.Msg {
		session, err := starter.Start(ctx, entry.Title, entry.Source)
		if err != nil {
			return SessionErrorMsg{Entry: entry, Error: err}
		}
		return SessionStartedMsg{Session: session, Entry: entry}
	}
}

// quit stops any running session before quitting so the mpv windows are closed
func (m AppModel) quit() tea.Cmd {
	if m.playerModel == nil {
		return tea.Quit
	}
	session := m.playerModel.Session()
	return func() tea.Msg {
		session.Close()
		return tea.Quit()
	}
}

func (m AppModel) updateHelpModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := m.helpModel.Update(msg)
	m.helpModel = model.(*HelpModel)
	return m, cmd
}
