package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/PizzaHomicide/adplay/internal/ads"
	"github.com/PizzaHomicide/adplay/internal/config"
	"github.com/PizzaHomicide/adplay/internal/playback"
	"github.com/PizzaHomicide/adplay/internal/surface"
)

type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) add(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, fmt.Sprintf(format, args...))
}

func (c *calls) contains(call string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.log {
		if l == call {
			return true
		}
	}
	return false
}

// fakeContent forwards events sent on in until the session context ends, like the mpv surface does
type fakeContent struct {
	calls   *calls
	in      chan surface.Event
	loadErr error
}

func (f *fakeContent) Load(ctx context.Context, uri string) (<-chan surface.Event, error) {
	f.calls.add("content.load %s", uri)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make(chan surface.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-f.in:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeContent) Play() error             { f.calls.add("content.play"); return nil }
func (f *fakeContent) Pause() error            { f.calls.add("content.pause"); return nil }
func (f *fakeContent) Seek(s float64) error    { f.calls.add("content.seek %g", s); return nil }
func (f *fakeContent) Reload(at float64) error { f.calls.add("content.reload %g", at); return nil }
func (f *fakeContent) Stop() error             { f.calls.add("content.stop"); return nil }
func (f *fakeContent) Cleanup()                {}

type fakeAdPlayer struct {
	calls   *calls
	events  chan ads.Event
	skipErr error
}

func (f *fakeAdPlayer) Play(_ context.Context, tagURL string) error {
	f.calls.add("ad.play %s", tagURL)
	return nil
}
func (f *fakeAdPlayer) Stop() error              { return nil }
func (f *fakeAdPlayer) Events() <-chan ads.Event { return f.events }
func (f *fakeAdPlayer) Skip() error              { return f.skipErr }
func (f *fakeAdPlayer) Close() error             { return nil }

type harness struct {
	calls   *calls
	content *fakeContent
	ads     *fakeAdPlayer
	svc     *PlaybackService
}

func newHarness() *harness {
	cfg := config.Config{
		Ads: config.AdsConfig{
			PreRollTag:      "https://ads.example.com/pre",
			MidRollTag:      config.AdTagDisabled,
			PostRollTag:     "https://ads.example.com/post",
			MidRollFraction: 0.5,
		},
		Controls: config.ControlsConfig{SkipStepSeconds: 10, SeekSettleMillis: 20},
	}
	h := &harness{calls: &calls{}}
	h.content = &fakeContent{calls: h.calls, in: make(chan surface.Event)}
	h.ads = &fakeAdPlayer{calls: h.calls, events: make(chan ads.Event)}
	h.svc = NewPlaybackService(&cfg, nil)
	h.svc.newContent = func() (surface.Surface, error) { return h.content, nil }
	h.svc.newAds = func() AdPlayer { return h.ads }
	return h
}

// waitFor reads snapshots until cond holds
func waitFor(t *testing.T, s *Session, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if snap := s.Snapshot(); cond(snap) {
			return snap
		}
		select {
		case <-s.Updates():
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("condition not reached, last snapshot %+v", s.Snapshot())
		}
	}
}

func TestSessionPlaysPreRollThenContent(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness()

	s, err := h.svc.Start(context.Background(), "Family Matter", "https://cdn.example.com/content.m3u8")
	require.NoError(t, err)
	defer s.Close()
	assert.NotEmpty(t, s.ID)

	h.content.in <- surface.Event{Type: surface.EventLoaded, Duration: 100}
	waitFor(t, s, func(snap Snapshot) bool { return snap.State.Phase() == playback.PhaseAdLoading })
	assert.True(t, h.calls.contains("ad.play https://ads.example.com/pre"))

	h.ads.events <- ads.Event{Type: ads.EventLoaded, Count: 1}
	h.ads.events <- ads.Event{Type: ads.EventStarted, Ad: &ads.Ad{Title: "Sample", Skippable: true}, Index: 1, Count: 1, Duration: 15, SkipIn: 5}
	snap := waitFor(t, s, func(snap Snapshot) bool { return snap.State.AdPlaying })
	assert.Equal(t, AdInfo{Active: true, Title: "Sample", Index: 1, Count: 1, Duration: 15, Skippable: true, SkipIn: 5}, snap.Ad)
	assert.False(t, snap.State.ShowControls)

	h.ads.events <- ads.Event{Type: ads.EventProgress, Ad: &ads.Ad{Title: "Sample", Skippable: true}, Index: 1, Count: 1, Time: 6, Duration: 15}
	waitFor(t, s, func(snap Snapshot) bool { return snap.Ad.Time == 6 })

	h.ads.events <- ads.Event{Type: ads.EventCompleted}
	snap = waitFor(t, s, func(snap Snapshot) bool { return snap.State.Phase() == playback.PhaseContentPlaying })
	assert.False(t, snap.Ad.Active)
	assert.True(t, h.calls.contains("content.seek 0"))
	assert.True(t, h.calls.contains("content.play"))

	h.content.in <- surface.Event{Type: surface.EventProgress, Time: 60}
	snap = waitFor(t, s, func(snap Snapshot) bool { return snap.State.Progress == 60 })
	assert.Equal(t, playback.SlotNone, snap.State.CurrentAd, "the mid-roll slot is disabled")
}

func TestSessionClosesWithContentWindow(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness()

	s, err := h.svc.Start(context.Background(), "", "file:///tmp/video.mp4")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "file:///tmp/video.mp4", s.Title)

	h.content.in <- surface.Event{Type: surface.EventClosed}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session not done after the content surface closed")
	}
	assert.True(t, s.Snapshot().Closed)

	_, err = s.Dispatch(playback.TogglePlay{})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionContentErrorAndRetry(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness()
	h.svc.config.Ads.PreRollTag = config.AdTagDisabled

	s, err := h.svc.Start(context.Background(), "Video", "https://cdn.example.com/v.mp4")
	require.NoError(t, err)
	defer s.Close()

	h.content.in <- surface.Event{Type: surface.EventLoaded, Duration: 100}
	h.content.in <- surface.Event{Type: surface.EventProgress, Time: 30}
	h.content.in <- surface.Event{Type: surface.EventError, Err: errors.New("loading failed")}
	waitFor(t, s, func(snap Snapshot) bool { return snap.State.Phase() == playback.PhaseFailed })

	state, err := s.Dispatch(playback.Retry{})
	require.NoError(t, err)
	assert.NoError(t, state.ContentErr)
	assert.True(t, h.calls.contains("content.reload 30"))
}

func TestSessionUserIntents(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness()
	h.svc.config.Ads.PreRollTag = config.AdTagDisabled
	h.ads.skipErr = ads.ErrNotSkippable

	s, err := h.svc.Start(context.Background(), "Video", "https://cdn.example.com/v.mp4")
	require.NoError(t, err)
	defer s.Close()

	h.content.in <- surface.Event{Type: surface.EventLoaded, Duration: 100}
	waitFor(t, s, func(snap Snapshot) bool { return snap.State.Duration == 100 })

	state, err := s.Dispatch(playback.Skip{Direction: playback.Forward})
	require.NoError(t, err)
	assert.Equal(t, 10.0, state.Progress)

	h.content.in <- surface.Event{Type: surface.EventSeeked}
	waitFor(t, s, func(snap Snapshot) bool { return snap.State.Playing && !snap.State.Seek.Active })

	assert.ErrorIs(t, s.SkipAd(), ads.ErrNotSkippable)
	assert.Equal(t, "Enjoy Watching: https://cdn.example.com/v.mp4", s.ShareMessage())
}

func TestStartFailsWhenContentCannotLoad(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness()
	h.content.loadErr = errors.New("mpv not found")

	_, err := h.svc.Start(context.Background(), "Video", "https://cdn.example.com/v.mp4")
	assert.ErrorContains(t, err, "mpv not found")

	_, err = h.svc.Start(context.Background(), "Video", "")
	assert.Error(t, err)
}

func TestSlotsFromConfig(t *testing.T) {
	slots := Slots(config.AdsConfig{
		PreRollTag:      "pre",
		MidRollTag:      "mid",
		PostRollTag:     "off",
		MidRollFraction: 0.25,
	})

	require.Len(t, slots, 2)
	assert.Equal(t, playback.PreRoll, slots[0].Slot)
	assert.Equal(t, playback.MidRoll, slots[1].Slot)
	assert.Equal(t, 0.25, slots[1].Trigger.Fraction)
}
