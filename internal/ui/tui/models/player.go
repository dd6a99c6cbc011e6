package models

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/PizzaHomicide/adplay/internal/log"
	"github.com/PizzaHomicide/adplay/internal/playback"
	"github.com/PizzaHomicide/adplay/internal/service"
	"github.com/PizzaHomicide/adplay/internal/ui/tui/components"
	kb "github.com/PizzaHomicide/adplay/internal/ui/tui/keybindings"
	"github.com/PizzaHomicide/adplay/internal/ui/tui/styles"
	"github.com/PizzaHomicide/adplay/internal/ui/tui/util"
)

var playerLabels = map[kb.Action]string{
	kb.ActionTogglePlay:     "Play/Pause",
	kb.ActionSkipBackward:   "Back",
	kb.ActionSkipForward:    "Forward",
	kb.ActionSeekPercent:    "Seek",
	kb.ActionSkipAd:         "Skip ad",
	kb.ActionShare:          "Share",
	kb.ActionRetry:          "Retry",
	kb.ActionToggleControls: "Controls",
	kb.ActionBack:           "Stop",
}

// PlayerModel is the controls overlay of a running playback session
type PlayerModel struct {
	width, height int
	session       Session
	snap          service.Snapshot
	spinner       spinner.Model
	bar           progress.Model
	notice        string
	noticeErr     bool

	// copyText writes to the system clipboard.  Replaced in tests.
	copyText func(string) error
}

// NewPlayerModel creates the overlay for session
func NewPlayerModel(session Session) *PlayerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Accent)

	return &PlayerModel{
		session:  session,
		snap:     session.Snapshot(),
		spinner:  s,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		copyText: clipboard.WriteAll,
	}
}

func (m *PlayerModel) ViewType() View {
	return ViewPlayer
}

// Session returns the session this overlay controls
func (m *PlayerModel) Session() Session {
	return m.session
}

func (m *PlayerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForSnapshot(m.session))
}

func (m *PlayerModel) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SnapshotMsg:
		if msg.Session != m.session {
			return m, nil
		}
		m.snap = msg.Snapshot
		return m, waitForSnapshot(m.session)
	case NoticeMsg:
		m.notice = msg.Text
		m.noticeErr = msg.Error
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m *PlayerModel) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	if fraction, ok := kb.SeekFraction(msg); ok {
		duration := m.snap.State.Duration
		if duration <= 0 {
			return Handled("seek:unknown_duration")
		}
		m.dispatch(playback.SeekTo{Value: fraction * duration})
		return Handled("seek:percent")
	}

	switch kb.GetActionByKey(msg, kb.ContextPlayer) {
	case kb.ActionTogglePlay:
		m.dispatch(playback.TogglePlay{})
		return Handled("player:toggle")
	case kb.ActionSkipBackward:
		m.dispatch(playback.Skip{Direction: playback.Backward})
		return Handled("player:skip_backward")
	case kb.ActionSkipForward:
		m.dispatch(playback.Skip{Direction: playback.Forward})
		return Handled("player:skip_forward")
	case kb.ActionToggleControls:
		m.dispatch(playback.ToggleControls{})
		return Handled("player:controls")
	case kb.ActionRetry:
		m.dispatch(playback.Retry{})
		return Handled("player:retry")
	case kb.ActionSkipAd:
		return m.skipAd()
	case kb.ActionShare:
		return m.share()
	case kb.ActionBack:
		session := m.session
		log.Info("Stopping playback", "title", m.snap.Title)
		return func() tea.Msg {
			session.Close()
			return SessionEndedMsg{Session: session}
		}
	}
	return nil
}

// dispatch sends an intent and keeps the resulting state so the view does not wait for the next snapshot
func (m *PlayerModel) dispatch(intent playback.Event) {
	state, err := m.session.Dispatch(intent)
	if err != nil {
		log.Debug("Intent dropped", "intent", fmt.Sprintf("%T", intent), "error", err)
		return
	}
	m.snap.State = state
}

func (m *PlayerModel) skipAd() tea.Cmd {
	if !m.snap.State.AdActive() {
		return Handled("ad:skip:none")
	}
	err := m.session.SkipAd()
	if err == nil {
		return Handled("ad:skip")
	}
	log.Debug("Ad skip refused", "error", err)
	text := "This ad cannot be skipped yet"
	return func() tea.Msg {
		return NoticeMsg{Text: text}
	}
}

func (m *PlayerModel) share() tea.Cmd {
	message := m.session.ShareMessage()
	copyText := m.copyText
	return func() tea.Msg {
		if err := copyText(message); err != nil {
			log.Warn("Failed to copy share message to clipboard", "error", err)
			return NoticeMsg{Text: "Could not copy to clipboard: " + err.Error(), Error: true}
		}
		log.Info("Share message copied", "message", message)
		return NoticeMsg{Text: "Copied: " + message}
	}
}

func (m *PlayerModel) Resize(width, height int) {
	m.width = width
	m.height = height
	m.bar.Width = max(width-24, 10)
}

func (m *PlayerModel) View() string {
	header := styles.Header(m.width, "adplay - "+m.snap.Title)

	var body string
	state := m.snap.State
	switch {
	case m.snap.Closed:
		body = styles.CenteredText(m.width, styles.Notice.Render("The player window was closed"))
	case state.AdActive():
		body = m.renderAd()
	case !state.ShowControls:
		body = styles.CenteredText(m.width, styles.Notice.Render("Controls hidden, press tab to show them"))
	default:
		body = m.renderControls()
	}

	var footer string
	if state.AdActive() {
		footer = components.KeyBindingsBar(m.width, components.BarFor(kb.ContextPlayer, playerLabels,
			kb.ActionSkipAd, kb.ActionShare, kb.ActionBack))
	} else {
		footer = components.KeyBindingsBar(m.width, components.BarFor(kb.ContextPlayer, playerLabels,
			kb.ActionTogglePlay, kb.ActionSkipBackward, kb.ActionSkipForward, kb.ActionShare,
			kb.ActionToggleControls, kb.ActionBack))
	}

	parts := []string{header, "", body, ""}
	if m.notice != "" {
		style := styles.Notice
		if m.noticeErr {
			style = styles.Error
		}
		parts = append(parts, styles.CenteredText(m.width, style.Render(m.notice)), "")
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderAd shows the ad banner in place of the controls
func (m *PlayerModel) renderAd() string {
	ad := m.snap.Ad
	state := m.snap.State

	badge := styles.AdBadge.Render("AD")
	if ad.Count > 1 && ad.Index > 0 {
		badge = styles.AdBadge.Render(fmt.Sprintf("AD %d of %d", ad.Index, ad.Count))
	}

	lines := []string{badge}
	if !state.AdPlaying {
		lines = append(lines, m.spinner.View()+" Loading ad...")
	} else {
		if ad.Title != "" {
			lines = append(lines, styles.Status.Render(ad.Title))
		}
		if ad.Duration > 0 {
			remaining := max(ad.Duration-ad.Time, 0)
			lines = append(lines, styles.Info.Render("Content resumes in "+util.FormatPlaybackTime(remaining)))
		}
		switch {
		case !ad.Skippable:
			lines = append(lines, styles.Notice.Render("This ad cannot be skipped"))
		case ad.SkipIn > 0:
			lines = append(lines, styles.Notice.Render(fmt.Sprintf("Skip in %.0fs", ad.SkipIn)))
		default:
			key := kb.GetActionKey(kb.ActionSkipAd, kb.ContextBindings[kb.ContextPlayer])
			lines = append(lines, styles.Status.Render(fmt.Sprintf("Press %s to skip", key)))
		}
	}
	return styles.ContentBox(m.width-2, strings.Join(lines, "\n"), 1)
}

func (m *PlayerModel) renderControls() string {
	state := m.snap.State

	var status string
	switch state.Phase() {
	case playback.PhaseBuffering:
		status = m.spinner.View() + " Buffering"
	case playback.PhaseFailed:
		status = styles.Error.Render("Playback error")
	case playback.PhaseEnded:
		status = "■ Ended"
	case playback.PhaseContentPlaying:
		status = "▶ Playing"
	default:
		status = "⏸ Paused"
	}

	var fraction float64
	if state.Duration > 0 {
		fraction = state.Progress / state.Duration
	}
	timing := fmt.Sprintf("%s / %s", util.FormatPlaybackTime(state.Progress), util.FormatPlaybackTime(state.Duration))

	lines := []string{
		styles.Status.Render(status),
		m.bar.ViewAs(fraction) + "  " + timing,
	}
	if state.ContentErr != nil {
		lines = append(lines, "", styles.Error.Render("Error: "+state.ContentErr.Error()))
		key := kb.GetActionKey(kb.ActionRetry, kb.ContextBindings[kb.ContextPlayer])
		lines = append(lines, styles.Notice.Render(fmt.Sprintf("Press %s to retry", key)))
	}
	return styles.ContentBox(m.width-2, strings.Join(lines, "\n"), 1)
}
