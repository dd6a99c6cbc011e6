package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/PizzaHomicide/adplay/internal/ads"
	"github.com/PizzaHomicide/adplay/internal/log"
	"github.com/PizzaHomicide/adplay/internal/playback"
	"github.com/PizzaHomicide/adplay/internal/surface"
)

// ErrSessionClosed is returned by intents sent to a closed session
var ErrSessionClosed = errors.New("playback session closed")

// AdPlayer is the ad surface a session drives
type AdPlayer interface {
	playback.AdSurface
	Events() <-chan ads.Event
	Skip() error
	Close() error
}

// AdInfo describes the ad currently on screen
type AdInfo struct {
	Active    bool
	Title     string
	Index     int
	Count     int
	Time      float64
	Duration  float64
	Skippable bool
	SkipIn    float64
}

// Snapshot is everything the controls overlay renders
type Snapshot struct {
	SessionID string
	Title     string
	Source    string
	State     playback.State
	Ad        AdInfo
	// Closed is set once the content surface went away, e.g. the viewer closed the mpv window
	Closed bool
}

// Session is one playback of a content source with its ads
type Session struct {
	ID     string
	Title  string
	Source string

	content    surface.Surface
	ads        AdPlayer
	controller *playback.Controller
	logger     *log.Scoped

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once

	mu      sync.Mutex // guards ad and closed
	ad      AdInfo
	closed  bool
	updates chan Snapshot
}

func newSession(title, source string, content surface.Surface, adPlayer AdPlayer) *Session {
	id := uuid.NewString()
	return &Session{
		ID:      id,
		Title:   title,
		Source:  source,
		content: content,
		ads:     adPlayer,
		logger:  log.Session(id),
		done:    make(chan struct{}),
		updates: make(chan Snapshot, 1),
	}
}

// start loads the content and begins pumping surface events into the controller
func (s *Session) start(ctx context.Context, opts playback.Options) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	opts.Logger = s.logger
	opts.Observers = append(opts.Observers, playback.ObserverFunc(func(_, _ playback.State, _ playback.Event) {
		s.publish()
	}))
	s.controller = playback.NewController(ctx, s.content, s.ads, opts)

	s.logger.Info("Starting playback session", "title", s.Title, "source", s.Source)
	events, err := s.content.Load(ctx, s.Source)
	if err != nil {
		cancel()
		s.controller.Close()
		return fmt.Errorf("failed to load %q: %w", s.Source, err)
	}

	s.wg.Add(2)
	go s.pumpContent(events)
	go s.pumpAds(ctx)
	s.publish()
	return nil
}

// Updates delivers snapshots after every change.  Only the latest snapshot is kept for a slow reader.
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

// Done is closed once the content surface went away or the session was closed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns the current view of the session
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID: s.ID,
		Title:     s.Title,
		Source:    s.Source,
		State:     s.controller.State(),
		Ad:        s.ad,
		Closed:    s.closed,
	}
}

// Dispatch forwards a user intent (TogglePlay, Skip, SeekTo, ToggleControls, Retry) to the controller
func (s *Session) Dispatch(intent playback.Event) (playback.State, error) {
	select {
	case <-s.done:
		return s.controller.State(), ErrSessionClosed
	default:
	}
	return s.controller.Dispatch(intent), nil
}

// SkipAd skips the current ad if its skip offset has passed
func (s *Session) SkipAd() error {
	return s.ads.Skip()
}

// ShareMessage is the text handed to the clipboard by the share intent
func (s *Session) ShareMessage() string {
	return "Enjoy Watching: " + s.Source
}

// Close stops both surfaces and waits for the event pumps to exit
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing playback session")
		s.cancel()
		s.controller.Close()

		if err := s.ads.Stop(); err != nil {
			s.logger.Warn("Failed to stop ad player", "error", err)
		}
		if err := s.content.Stop(); err != nil {
			s.logger.Warn("Failed to stop content surface", "error", err)
		}
		s.content.Cleanup()

		s.wg.Wait()
		s.finish()
	})
}

func (s *Session) finish() {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.publish()
		close(s.done)
	})
}

// publish replaces any unread snapshot with the current one
func (s *Session) publish() {
	snap := s.Snapshot()
	for {
		select {
		case s.updates <- snap:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}

func (s *Session) pumpContent(events <-chan surface.Event) {
	defer s.wg.Done()
	// The channel closes when the session context is cancelled or mpv is gone
	defer s.finish()

	for ev := range events {
		var pe playback.Event
		switch ev.Type {
		case surface.EventLoaded:
			pe = playback.ContentLoaded{Duration: ev.Duration}
		case surface.EventProgress:
			pe = playback.ContentProgress{Time: ev.Time}
		case surface.EventBuffer:
			pe = playback.ContentBuffer{Buffering: ev.Buffering}
		case surface.EventSeeked:
			pe = playback.ContentSeeked{}
		case surface.EventEnded:
			pe = playback.ContentEnded{}
		case surface.EventError:
			s.logger.Warn("Content playback failed", "error", ev.Err)
			pe = playback.ContentFailed{Err: ev.Err}
		case surface.EventClosed:
			s.logger.Info("Content surface closed")
			return
		default:
			continue
		}
		s.controller.Dispatch(pe)
	}
}

func (s *Session) pumpAds(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.ads.Events():
			s.handleAdEvent(ev)
		}
	}
}

func (s *Session) handleAdEvent(ev ads.Event) {
	var kind playback.AdEventKind
	switch ev.Type {
	case ads.EventLoaded:
		kind = playback.AdLoaded
		s.setAd(AdInfo{Active: true, Count: ev.Count})
	case ads.EventStarted, ads.EventProgress:
		info := AdInfo{
			Active:   true,
			Index:    ev.Index,
			Count:    ev.Count,
			Time:     ev.Time,
			Duration: ev.Duration,
			SkipIn:   ev.SkipIn,
		}
		if ev.Ad != nil {
			info.Title = ev.Ad.Title
			info.Skippable = ev.Ad.Skippable
		}
		s.setAd(info)
		if ev.Type == ads.EventProgress {
			s.publish()
			return
		}
		kind = playback.AdStarted
	case ads.EventSkipped:
		kind = playback.AdSkipped
		s.setAd(AdInfo{})
	case ads.EventCompleted:
		kind = playback.AdCompleted
		s.setAd(AdInfo{})
	case ads.EventAllAdsCompleted:
		kind = playback.AdAllAdsCompleted
		s.setAd(AdInfo{})
	case ads.EventError:
		s.logger.Warn("Ad failed, resuming content", "error", ev.Err)
		kind = playback.AdError
		s.setAd(AdInfo{})
	default:
		return
	}
	s.controller.Dispatch(playback.AdEvent{Kind: kind, Err: ev.Err})
}

func (s *Session) setAd(info AdInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ad = info
}
