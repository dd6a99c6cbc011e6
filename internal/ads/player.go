package ads

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PizzaHomicide/adplay/internal/log"
	"github.com/PizzaHomicide/adplay/internal/surface"
)

// EventType is an ad lifecycle event.  The values follow the IMA SDK event names.
type EventType string

const (
	EventLoaded          EventType = "LOADED"
	EventStarted         EventType = "STARTED"
	EventProgress        EventType = "AD_PROGRESS"
	EventSkipped         EventType = "SKIPPED"
	EventCompleted       EventType = "COMPLETED"
	EventAllAdsCompleted EventType = "ALL_ADS_COMPLETED"
	EventError           EventType = "ERROR"
)

// Event is reported by the Player on its event channel
type Event struct {
	Type EventType
	Err  error
	// Ad is the ad the event refers to, nil for request level errors
	Ad *Ad
	// Position within the pod, 1 based
	Index int
	Count int
	// Time and Duration of the current ad in seconds, set for EventProgress and EventStarted
	Time     float64
	Duration float64
	// SkipIn is the number of seconds until the ad can be skipped, 0 once it can
	SkipIn float64
}

// Resolver turns an ad tag into the ads to play
type Resolver interface {
	Resolve(ctx context.Context, tagURL string) (Pod, error)
}

// SurfaceFactory creates the surface an ad is shown on
type SurfaceFactory func() (surface.Surface, error)

// Player plays the ads of one tag at a time on a dedicated surface
type Player struct {
	resolver     Resolver
	tracker      *Tracker
	newSurface   SurfaceFactory
	startTimeout time.Duration
	events       chan Event

	mu     sync.Mutex
	run    *adRun
	closed bool
}

// adRun is one Play call
type adRun struct {
	cancel context.CancelFunc
	done   chan struct{}
	skip   chan struct{}

	// guarded by Player.mu
	ad       *Ad
	position float64
}

// NewPlayer creates an ad player
func NewPlayer(resolver Resolver, tracker *Tracker, newSurface SurfaceFactory, startTimeout time.Duration) *Player {
	if startTimeout <= 0 {
		startTimeout = 20 * time.Second
	}
	return &Player{
		resolver:     resolver,
		tracker:      tracker,
		newSurface:   newSurface,
		startTimeout: startTimeout,
		events:       make(chan Event, 32),
	}
}

// Events returns the channel ad lifecycle events are delivered on.  It is never closed.
func (p *Player) Events() <-chan Event {
	return p.events
}

// Play starts resolving and playing the ads of tagURL.  It returns immediately; failures after this point are
// reported as EventError.  A previous ad still playing is stopped first.
func (p *Player) Play(ctx context.Context, tagURL string) error {
	if err := p.Stop(); err != nil {
		log.Warn("Failed to stop previous ad", "error", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPlayerClosed
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &adRun{
		cancel: cancel,
		done:   make(chan struct{}),
		skip:   make(chan struct{}, 1),
	}
	p.run = run

	go func() {
		defer close(run.done)
		defer cancel()
		p.playTag(runCtx, run, tagURL)
	}()
	return nil
}

// Stop stops the current ad and waits for its surface to close.  It is a no-op when no ad is playing.
func (p *Player) Stop() error {
	p.mu.Lock()
	run := p.run
	p.run = nil
	p.mu.Unlock()

	if run == nil {
		return nil
	}
	run.cancel()
	<-run.done
	return nil
}

// Skip skips the current ad once its skip offset has passed
func (p *Player) Skip() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	run := p.run
	if run == nil || run.ad == nil {
		return ErrNoActiveAd
	}
	if !run.ad.Skippable {
		return fmt.Errorf("%w: the creative has no skip offset", ErrNotSkippable)
	}
	if remaining := run.ad.SkipOffset.Seconds() - run.position; remaining > 0 {
		return fmt.Errorf("%w: %.0fs remaining", ErrNotSkippable, remaining)
	}

	select {
	case run.skip <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the current ad and waits for outstanding tracking beacons
func (p *Player) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	err := p.Stop()
	p.tracker.Wait()
	return err
}

// emit delivers an event unless the run was stopped, so Stop never waits on a reader
func (p *Player) emit(ctx context.Context, ev Event) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}

func (p *Player) setCurrent(run *adRun, ad *Ad, position float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	run.ad = ad
	run.position = position
}

// playTag resolves tagURL and plays the resulting pod
func (p *Player) playTag(ctx context.Context, run *adRun, tagURL string) {
	pod, err := p.resolver.Resolve(ctx, tagURL)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("Ad request failed", "tag_url", tagURL, "error", err)
		p.emit(ctx, Event{Type: EventError, Err: err})
		return
	}

	log.Info("Ad pod resolved", "tag_url", tagURL, "ads", len(pod))
	p.emit(ctx, Event{Type: EventLoaded, Count: len(pod)})

	for i := range pod {
		ad := &pod[i]
		outcome, err := p.playAd(ctx, run, ad, i+1, len(pod))
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			log.Warn("Ad playback failed", "ad_id", ad.ID, "error", err)
			code := errorCode(err)
			if code == codeUndefined {
				code = codeMediaProblem
			}
			p.tracker.Fire("error", ad.ErrorURLs, Macros{ErrorCode: code, Asset: ad.MediaURL})
			p.emit(ctx, Event{Type: EventError, Err: err, Ad: ad, Index: i + 1, Count: len(pod)})
			return
		case outcome == EventSkipped:
			p.emit(ctx, Event{Type: EventSkipped, Ad: ad, Index: i + 1, Count: len(pod)})
			return
		}
	}

	last := &pod[len(pod)-1]
	p.emit(ctx, Event{Type: EventCompleted, Ad: last, Index: len(pod), Count: len(pod)})
	p.emit(ctx, Event{Type: EventAllAdsCompleted, Count: len(pod)})
}

// playAd plays one ad to its end.  It returns EventCompleted or EventSkipped.
func (p *Player) playAd(ctx context.Context, run *adRun, ad *Ad, index, count int) (EventType, error) {
	surf, err := p.newSurface()
	if err != nil {
		return "", fmt.Errorf("error creating ad surface: %w", err)
	}
	defer surf.Cleanup()

	events, err := surf.Load(ctx, ad.MediaURL)
	if err != nil {
		return "", fmt.Errorf("error loading ad media: %w", err)
	}
	defer func() {
		if err := surf.Stop(); err != nil {
			log.Debug("Failed to stop ad surface", "error", err)
		}
	}()

	p.setCurrent(run, ad, 0)
	defer p.setCurrent(run, nil, 0)

	startTimer := time.NewTimer(p.startTimeout)
	defer startTimer.Stop()

	q := quartiles{}
	started := false
	duration := ad.Duration.Seconds()
	position := 0.0

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case <-startTimer.C:
			if !started {
				return "", ErrStartTimeout
			}

		case <-run.skip:
			p.tracker.Fire("skip", ad.Tracking["skip"], Macros{Playhead: seconds(position), Asset: ad.MediaURL})
			return EventSkipped, nil

		case ev, ok := <-events:
			if !ok {
				// The surface went away without reporting why
				if started {
					return EventSkipped, nil
				}
				return "", errors.New("ad surface closed before the ad started")
			}

			switch ev.Type {
			case surface.EventLoaded:
				if ev.Duration > 0 {
					duration = ev.Duration
				}
				if !started {
					started = true
					startTimer.Stop()
					p.tracker.Fire("impression", ad.Impressions, Macros{Asset: ad.MediaURL})
					p.tracker.Fire("creativeView", ad.Tracking["creativeView"], Macros{Asset: ad.MediaURL})
					p.tracker.Fire("start", ad.Tracking["start"], Macros{Asset: ad.MediaURL})
					log.Info("Ad started", "ad_id", ad.ID, "title", ad.Title, "index", index, "count", count)
					p.emit(ctx, Event{Type: EventStarted, Ad: ad, Index: index, Count: count, Duration: duration,
						SkipIn: skipIn(ad, 0)})
				}

			case surface.EventProgress:
				position = ev.Time
				p.setCurrent(run, ad, position)
				for _, name := range q.crossed(position, duration) {
					p.tracker.Fire(name, ad.Tracking[name], Macros{Playhead: seconds(position), Asset: ad.MediaURL})
				}
				p.emit(ctx, Event{Type: EventProgress, Ad: ad, Index: index, Count: count, Time: position,
					Duration: duration, SkipIn: skipIn(ad, position)})

			case surface.EventEnded:
				p.tracker.Fire("complete", ad.Tracking["complete"], Macros{Playhead: seconds(duration), Asset: ad.MediaURL})
				return EventCompleted, nil

			case surface.EventClosed:
				// The viewer closed the ad window
				p.tracker.Fire("close", ad.Tracking["close"], Macros{Playhead: seconds(position), Asset: ad.MediaURL})
				if !started {
					return "", errors.New("ad window closed before the ad started")
				}
				return EventSkipped, nil

			case surface.EventError:
				return "", fmt.Errorf("ad surface error: %w", ev.Err)
			}
		}
	}
}

// quartiles tracks which progress beacons have been sent for an ad
type quartiles struct {
	sent [3]bool
}

var quartileEvents = [3]string{"firstQuartile", "midpoint", "thirdQuartile"}

func (q *quartiles) crossed(position, duration float64) []string {
	if duration <= 0 {
		return nil
	}
	var names []string
	for i := range q.sent {
		if !q.sent[i] && position >= duration*float64(i+1)/4 {
			q.sent[i] = true
			names = append(names, quartileEvents[i])
		}
	}
	return names
}

func skipIn(ad *Ad, position float64) float64 {
	if !ad.Skippable {
		return 0
	}
	if remaining := ad.SkipOffset.Seconds() - position; remaining > 0 {
		return remaining
	}
	return 0
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
