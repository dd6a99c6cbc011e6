package models

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/PizzaHomicide/adplay/internal/playback"
	"github.com/PizzaHomicide/adplay/internal/service"
)

// Session is the playback session the player view controls
type Session interface {
	Snapshot() service.Snapshot
	Updates() <-chan service.Snapshot
	Done() <-chan struct{}
	Dispatch(intent playback.Event) (playback.State, error)
	SkipAd() error
	ShareMessage() string
	Close()
}

// Starter starts playback sessions
type Starter interface {
	Start(ctx context.Context, title, source string) (Session, error)
}

// StarterFunc adapts a function to Starter
type StarterFunc func(ctx context.Context, title, source string) (Session, error)

func (f StarterFunc) Start(ctx context.Context, title, source string) (Session, error) {
	return f(ctx, title, source)
}

// waitForSnapshot blocks until the session publishes a snapshot or ends
func waitForSnapshot(s Session) tea.Cmd {
	return func() tea.Msg {
		select {
		case snap := <-s.Updates():
			return SnapshotMsg{Session: s, Snapshot: snap}
		case <-s.Done():
			return SessionEndedMsg{Session: s}
		}
	}
}
