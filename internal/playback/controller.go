package playback

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PizzaHomicide/adplay/internal/log"
)

const (
	defaultSkipStep   = 10.0
	defaultSeekSettle = 100 * time.Millisecond
)

// ContentSurface is the part of the content video surface the controller commands
type ContentSurface interface {
	Play() error
	Pause() error
	Seek(seconds float64) error
	Reload(at float64) error
}

// AdSurface loads and plays the ad for a tag URL.  Its lifecycle events are fed back through Dispatch as AdEvent.
type AdSurface interface {
	Play(ctx context.Context, tagURL string) error
	Stop() error
}

// Observer is told about every transition, after the surfaces were commanded
type Observer interface {
	Observe(prev, next State, ev Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(prev, next State, ev Event)

func (f ObserverFunc) Observe(prev, next State, ev Event) { f(prev, next, ev) }

// Options configure a Controller
type Options struct {
	Slots []SlotConfig
	// SkipStep is the distance of a skip forward/backward in seconds
	SkipStep float64
	// SeekSettle is how long a seek may take before the prior playing intent is restored without an acknowledgement
	// from the surface
	SeekSettle time.Duration
	Observers  []Observer
	Logger     *log.Scoped
}

// Controller owns the playback State of one session.  Every event goes through Dispatch, which applies the
// transition under a lock and then commands the surfaces.
type Controller struct {
	ctx       context.Context
	content   ContentSurface
	ads       AdSurface
	settle    time.Duration
	observers []Observer
	logger    *log.Scoped

	mu        sync.Mutex
	machine   machine
	state     State
	played    PlayedAds
	seekTimer *time.Timer
	closed    bool

	// Effects of each transition queue up here and a single goroutine at a time runs them, so surface commands
	// reach the surfaces in transition order
	queue   []transition
	running bool
}

// transition is one applied event waiting for its effects to run
type transition struct {
	prev, next State
	ev         Event
	effects    []effect
}

// NewController creates a controller for a new session.  ctx bounds the ad loads it starts.
func NewController(ctx context.Context, content ContentSurface, ads AdSurface, opts Options) *Controller {
	if opts.SkipStep <= 0 {
		opts.SkipStep = defaultSkipStep
	}
	if opts.SeekSettle <= 0 {
		opts.SeekSettle = defaultSeekSettle
	}
	if opts.Logger == nil {
		opts.Logger = log.Session("")
	}

	return &Controller{
		ctx:       ctx,
		content:   content,
		ads:       ads,
		settle:    opts.SeekSettle,
		observers: opts.Observers,
		logger:    opts.Logger,
		machine: machine{
			slots:    opts.Slots,
			skipStep: opts.SkipStep,
		},
		state:  NewState(),
		played: PlayedAds{},
	}
}

// State returns the current snapshot
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PlayedAds returns a copy of the slots that already fired this session
func (c *Controller) PlayedAds() PlayedAds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.played.clone()
}

// Close stops the pending seek timer.  Events dispatched afterwards are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopSeekTimer()
	c.closed = true
}

// Dispatch applies ev and returns the resulting state.  Surface commands run after the lock is released, in the
// order the transitions produced them.  If another goroutine is already running commands, for example a surface
// callback dispatching from inside a command, the commands of ev are queued behind it and Dispatch returns without
// waiting for them.
func (c *Controller) Dispatch(ev Event) State {
	c.mu.Lock()
	if c.closed {
		state := c.state
		c.mu.Unlock()
		return state
	}
	prev := c.state
	next, played, effects := c.machine.apply(prev, c.played, ev)
	c.state, c.played = next, played
	// Timers change under the lock so a superseded restore can never fire
	effects = c.applyTimerEffects(effects)
	c.queue = append(c.queue, transition{prev: prev, next: next, ev: ev, effects: effects})
	if c.running {
		c.mu.Unlock()
		return next
	}
	c.running = true
	c.mu.Unlock()

	c.drain()
	return c.State()
}

// drain runs queued transitions until the queue is empty.  Only the goroutine that set c.running calls it.
func (c *Controller) drain() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 || c.closed {
			c.queue = nil
			c.running = false
			c.mu.Unlock()
			return
		}
		t := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.logTransition(t.prev, t.next, t.ev)
		followUps := c.run(t.effects)

		for _, o := range c.observers {
			o.Observe(t.prev, t.next, t.ev)
		}

		// Queued behind anything dispatched meanwhile and run by this loop
		for _, followUp := range followUps {
			c.Dispatch(followUp)
		}
	}
}

// applyTimerEffects executes the seek timer effects and returns the remaining ones.  Must hold c.mu.
func (c *Controller) applyTimerEffects(effects []effect) []effect {
	remaining := effects[:0:0]
	for _, eff := range effects {
		switch e := eff.(type) {
		case armSeekTimer:
			c.stopSeekTimer()
			generation := e.generation
			c.seekTimer = time.AfterFunc(c.settle, func() {
				c.Dispatch(SeekSettled{Generation: generation})
			})
		case cancelSeekTimer:
			c.stopSeekTimer()
		default:
			remaining = append(remaining, eff)
		}
	}
	return remaining
}

// stopSeekTimer must hold c.mu
func (c *Controller) stopSeekTimer() {
	if c.seekTimer != nil {
		c.seekTimer.Stop()
		c.seekTimer = nil
	}
}

// run commands the surfaces and returns events to dispatch next
func (c *Controller) run(effects []effect) []Event {
	var followUps []Event
	for _, eff := range effects {
		var err error
		switch e := eff.(type) {
		case pauseContent:
			err = c.content.Pause()
		case resumeContent:
			err = c.content.Play()
		case seekContent:
			err = c.content.Seek(e.to)
		case reloadContent:
			err = c.content.Reload(e.at)
		case loadAd:
			c.logger.Info("Requesting ad", "slot", e.slot.String(), "tag_url", e.tagURL)
			if err = c.ads.Play(c.ctx, e.tagURL); err != nil {
				// The ad surface will never report anything for this request
				followUps = append(followUps, AdEvent{Kind: AdError, Err: err})
			}
		case stopAd:
			err = c.ads.Stop()
		}
		if err != nil {
			c.logger.Warn("Surface command failed", "command", eventName(eff), "error", err)
		}
	}
	return followUps
}

func (c *Controller) logTransition(prev, next State, ev Event) {
	if prev.Phase() != next.Phase() {
		c.logger.Info("Playback phase changed",
			"from", prev.Phase(),
			"to", next.Phase(),
			"event", eventName(ev),
			"current_ad", next.CurrentAd.String(),
			"progress", next.Progress)
		return
	}
	c.logger.Trace("Playback event applied", "event", eventName(ev), "phase", next.Phase(), "progress", next.Progress)
}

// eventName returns the unqualified type name of an event or effect for logs
func eventName(v any) string {
	name := fmt.Sprintf("%T", v)
	return name[strings.LastIndex(name, ".")+1:]
}
