package models

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/PizzaHomicide/adplay/internal/config"
	"github.com/PizzaHomicide/adplay/internal/service"
)

// HandledMsg is returned by models that consumed a key so the app model stops delegating it
type HandledMsg struct {
	Action string
}

// Handled returns a command reporting that action was handled
func Handled(action string) tea.Cmd {
	return func() tea.Msg {
		return HandledMsg{Action: action}
	}
}

// PlayEntryMsg is sent when a catalog entry was chosen for playback
type PlayEntryMsg struct {
	Entry config.CatalogEntry
}

// SessionStartedMsg is sent once the content surface has been started
type SessionStartedMsg struct {
	Session Session
	Entry   config.CatalogEntry
}

// SessionErrorMsg is sent when a session could not be started
type SessionErrorMsg struct {
	Entry config.CatalogEntry
	Error error
}

// SnapshotMsg carries the latest session snapshot
type SnapshotMsg struct {
	Session  Session
	Snapshot service.Snapshot
}

// SessionEndedMsg is sent when the content surface went away, e.g. the mpv window was closed
type SessionEndedMsg struct {
	Session Session
}

// NoticeMsg is a short message shown in the player footer
type NoticeMsg struct {
	Text  string
	Error bool
}
