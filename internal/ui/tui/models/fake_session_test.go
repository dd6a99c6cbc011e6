package models

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/PizzaHomicide/adplay/internal/playback"
	"github.com/PizzaHomicide/adplay/internal/service"
)

type fakeSession struct {
	mu      sync.Mutex
	snap    service.Snapshot
	intents []playback.Event
	skipErr error
	skips   int
	closed  int

	updates chan service.Snapshot
	done    chan struct{}
}

func newFakeSession(state playback.State) *fakeSession {
	return &fakeSession{
		snap: service.Snapshot{
			SessionID: "test-session",
			Title:     "Big Buck Bunny",
			Source:    "https://example.com/bunny.mp4",
			State:     state,
		},
		updates: make(chan service.Snapshot, 1),
		done:    make(chan struct{}),
	}
}

func (f *fakeSession) Snapshot() service.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSession) Updates() <-chan service.Snapshot { return f.updates }
func (f *fakeSession) Done() <-chan struct{}            { return f.done }

func (f *fakeSession) Dispatch(intent playback.Event) (playback.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed > 0 {
		return f.snap.State, errors.New("closed")
	}
	f.intents = append(f.intents, intent)
	if _, ok := intent.(playback.TogglePlay); ok {
		f.snap.State.Playing = !f.snap.State.Playing
	}
	return f.snap.State, nil
}

func (f *fakeSession) SkipAd() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skips++
	return f.skipErr
}

func (f *fakeSession) ShareMessage() string {
	return "Enjoy Watching: " + f.snap.Source
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed == 0 {
		close(f.done)
	}
	f.closed++
}

func (f *fakeSession) recorded() []playback.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]playback.Event(nil), f.intents...)
}

type fakeStarter struct {
	session Session
	err     error
	calls   []string
}

func (f *fakeStarter) Start(_ context.Context, title, source string) (Session, error) {
	f.calls = append(f.calls, title+"|"+source)
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+h":
		return tea.KeyMsg{Type: tea.KeyCtrlH}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}
