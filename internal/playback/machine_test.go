package playback

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allTags = map[Slot]string{
	PreRoll:  "https://ads.example.com/pre",
	MidRoll:  "https://ads.example.com/mid",
	PostRoll: "https://ads.example.com/post",
}

func newMachine(tags map[Slot]string) *machine {
	return &machine{slots: DefaultSlots(tags, 0.5), skipStep: 10}
}

// contentAt is a session that is playing content with every slot still available
func contentAt(progress, duration float64) State {
	s := NewState()
	s.Progress = progress
	s.Duration = duration
	return s
}

func diffState(t *testing.T, want, got State) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateErrors()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultSlots(t *testing.T) {
	slots := DefaultSlots(map[Slot]string{PreRoll: "pre", PostRoll: "post"}, 0.4)
	want := []SlotConfig{
		{Slot: PreRoll, TagURL: "pre", Trigger: Trigger{Kind: TriggerOnLoad}},
		{Slot: PostRoll, TagURL: "post", Trigger: Trigger{Kind: TriggerOnEnd}},
	}
	assert.Equal(t, want, slots)
	assert.Len(t, DefaultSlots(allTags, 0.5), 3)
}

func TestLoadTriggersPreRoll(t *testing.T) {
	m := newMachine(allTags)

	s, played, effects := m.apply(NewState(), PlayedAds{}, ContentLoaded{Duration: 100})

	want := NewState()
	want.Duration = 100
	want.CurrentAd = PreRoll
	want.AdLoaded = true
	want.Playing = false
	want.ShowControls = false
	diffState(t, want, s)
	assert.True(t, played[PreRoll])
	assert.Equal(t, []effect{pauseContent{}, loadAd{slot: PreRoll, tagURL: allTags[PreRoll]}}, effects)
}

func TestLoadWithoutPreRollKeepsPlaying(t *testing.T) {
	m := newMachine(map[Slot]string{MidRoll: "mid"})

	s, played, effects := m.apply(NewState(), PlayedAds{}, ContentLoaded{Duration: 100})

	assert.Equal(t, PhaseContentPlaying, s.Phase())
	assert.Equal(t, 100.0, s.Duration)
	assert.Empty(t, played)
	assert.Empty(t, effects)
}

func TestLoadSanitizesDuration(t *testing.T) {
	m := newMachine(nil)
	for _, d := range []float64{math.NaN(), math.Inf(1), -5} {
		s, _, _ := m.apply(NewState(), PlayedAds{}, ContentLoaded{Duration: d})
		assert.Zero(t, s.Duration, "duration %v", d)
	}
}

func TestAdStartedHidesControls(t *testing.T) {
	m := newMachine(allTags)
	s, played, _ := m.apply(NewState(), PlayedAds{}, ContentLoaded{Duration: 100})

	for _, kind := range []AdEventKind{AdLoaded, AdStarted} {
		got, _, effects := m.apply(s, played, AdEvent{Kind: kind})
		assert.True(t, got.AdPlaying, kind)
		assert.False(t, got.AdLoaded, kind)
		assert.False(t, got.Playing, kind)
		assert.False(t, got.ShowControls, kind)
		assert.Equal(t, PreRoll, got.CurrentAd)
		assert.Empty(t, effects)
	}
}

func TestStaleAdStartIgnored(t *testing.T) {
	m := newMachine(allTags)
	s := contentAt(10, 100)

	got, _, effects := m.apply(s, PlayedAds{PreRoll: true}, AdEvent{Kind: AdStarted})

	diffState(t, s, got)
	assert.Empty(t, effects)
}

func TestPreRollCompletedResumesContent(t *testing.T) {
	m := newMachine(allTags)
	s, played, _ := m.apply(NewState(), PlayedAds{}, ContentLoaded{Duration: 100})
	s, played, _ = m.apply(s, played, AdEvent{Kind: AdStarted})

	got, _, effects := m.apply(s, played, AdEvent{Kind: AdCompleted})

	assert.False(t, got.AdPlaying)
	assert.Equal(t, SlotNone, got.CurrentAd)
	assert.True(t, got.ShowControls)
	assert.True(t, got.Playing)
	assert.Equal(t, []effect{stopAd{}, seekContent{to: 0}, resumeContent{}}, effects)
}

func TestSkippedAndAllCompletedBehaveLikeCompleted(t *testing.T) {
	m := newMachine(allTags)
	for _, kind := range []AdEventKind{AdSkipped, AdAllAdsCompleted} {
		s := contentAt(50, 100)
		s.CurrentAd = MidRoll
		s.AdPlaying = true
		s.Playing = false
		s.ShowControls = false

		got, _, effects := m.apply(s, PlayedAds{PreRoll: true, MidRoll: true}, AdEvent{Kind: kind})

		assert.Equal(t, PhaseContentPlaying, got.Phase(), kind)
		assert.Equal(t, []effect{stopAd{}, seekContent{to: 50}, resumeContent{}}, effects, kind)
	}
}

func TestSecondCompletionIsNoop(t *testing.T) {
	m := newMachine(allTags)
	s := contentAt(50, 100)

	got, _, effects := m.apply(s, PlayedAds{MidRoll: true}, AdEvent{Kind: AdAllAdsCompleted})

	diffState(t, s, got)
	assert.Empty(t, effects)
}

func TestMidRollFiresOnce(t *testing.T) {
	m := newMachine(allTags)
	s := contentAt(40, 100)
	played := PlayedAds{PreRoll: true}

	s, played, effects := m.apply(s, played, ContentProgress{Time: 49.9})
	assert.Empty(t, effects)
	assert.Equal(t, 49.9, s.Progress)

	s, played, effects = m.apply(s, played, ContentProgress{Time: 50})
	require.Equal(t, []effect{pauseContent{}, loadAd{slot: MidRoll, tagURL: allTags[MidRoll]}}, effects)
	assert.True(t, played[MidRoll])
	assert.Equal(t, MidRoll, s.CurrentAd)
	assert.Equal(t, 50.0, s.Progress)

	s, played, _ = m.apply(s, played, AdEvent{Kind: AdCompleted})
	s, _, effects = m.apply(s, played, ContentProgress{Time: 60})
	assert.Empty(t, effects)
	assert.Equal(t, SlotNone, s.CurrentAd)
	assert.Equal(t, 60.0, s.Progress)
}

func TestMidRollNeedsDuration(t *testing.T) {
	m := newMachine(allTags)
	s := NewState()

	for _, tick := range []float64{0, 1, 1000} {
		var effects []effect
		s, _, effects = m.apply(s, PlayedAds{}, ContentProgress{Time: tick})
		assert.Empty(t, effects, "tick %v", tick)
	}
	assert.Equal(t, SlotNone, s.CurrentAd)
}

func TestMidRollNotDuringAnotherAd(t *testing.T) {
	m := newMachine(allTags)
	s := contentAt(60, 100)
	s.CurrentAd = PreRoll
	s.AdPlaying = true

	got, played, effects := m.apply(s, PlayedAds{PreRoll: true}, ContentProgress{Time: 70})

	assert.Empty(t, effects)
	assert.False(t, played[MidRoll])
	assert.Equal(t, PreRoll, got.CurrentAd)
}

func TestProgressClamped(t *testing.T) {
	m := newMachine(nil)
	s := contentAt(10, 100)

	s, _, _ = m.apply(s, PlayedAds{}, ContentProgress{Time: -3})
	assert.Zero(t, s.Progress)

	s, _, _ = m.apply(s, PlayedAds{}, ContentProgress{Time: 250})
	assert.Equal(t, 100.0, s.Progress)

	s, _, _ = m.apply(s, PlayedAds{}, ContentProgress{Time: math.NaN()})
	assert.Zero(t, s.Progress)
}

func TestEndTriggersPostRoll(t *testing.T) {
	m := newMachine(allTags)
	s := contentAt(99.5, 100)
	played := PlayedAds{PreRoll: true, MidRoll: true}

	s, played, effects := m.apply(s, played, ContentEnded{})

	assert.Equal(t, []effect{pauseContent{}, loadAd{slot: PostRoll, tagURL: allTags[PostRoll]}}, effects)
	assert.True(t, played[PostRoll])
	assert.Equal(t, PhaseAdLoading, s.Phase())
	assert.Equal(t, 100.0, s.Progress)
	assert.True(t, s.Ended)

	s, played, _ = m.apply(s, played, AdEvent{Kind: AdStarted})
	s, _, effects = m.apply(s, played, AdEvent{Kind: AdCompleted})

	assert.False(t, s.Playing, "post-roll ends the session")
	assert.True(t, s.ShowControls)
	assert.Equal(t, PhaseEnded, s.Phase())
	assert.Equal(t, []effect{stopAd{}, pauseContent{}}, effects, "no resume seek after the post-roll")
}

func TestEndWithoutPostRoll(t *testing.T) {
	m := newMachine(map[Slot]string{PreRoll: "pre"})
	s, _, effects := m.apply(contentAt(99, 100), PlayedAds{PreRoll: true}, ContentEnded{})

	assert.Empty(t, effects)
	assert.Equal(t, PhaseEnded, s.Phase())
}

func TestBuffering(t *testing.T) {
	m := newMachine(nil)
	s := contentAt(10, 100)

	s, _, effects := m.apply(s, PlayedAds{}, ContentBuffer{Buffering: true})
	assert.True(t, s.Buffering)
	assert.False(t, s.Playing)
	assert.Equal(t, PhaseBuffering, s.Phase())
	assert.Empty(t, effects)

	s, _, effects = m.apply(s, PlayedAds{}, ContentBuffer{Buffering: false})
	assert.False(t, s.Buffering)
	assert.True(t, s.Playing)
	assert.Equal(t, []effect{resumeContent{}}, effects)
}

func TestBufferEndDuringAdKeepsContentPaused(t *testing.T) {
	m := newMachine(allTags)
	s, played, _ := m.apply(NewState(), PlayedAds{}, ContentLoaded{Duration: 100})
	s, _, effects := m.apply(s, played, ContentBuffer{Buffering: false})

	assert.False(t, s.Playing)
	assert.Empty(t, effects)
}

func TestAdErrorFailsOpen(t *testing.T) {
	m := newMachine(allTags)
	s, played, _ := m.apply(NewState(), PlayedAds{}, ContentLoaded{Duration: 100})

	got, _, effects := m.apply(s, played, AdEvent{Kind: AdError, Err: errors.New("vast: no ads")})

	assert.True(t, got.Playing)
	assert.True(t, got.ShowControls)
	assert.False(t, got.AdActive())
	assert.Equal(t, SlotNone, got.CurrentAd)
	assert.Equal(t, []effect{stopAd{}, resumeContent{}}, effects)
}

func TestTogglePlay(t *testing.T) {
	m := newMachine(nil)
	s := contentAt(10, 100)

	s, _, effects := m.apply(s, PlayedAds{}, TogglePlay{})
	assert.False(t, s.Playing)
	assert.Equal(t, []effect{pauseContent{}}, effects)

	s, _, effects = m.apply(s, PlayedAds{}, TogglePlay{})
	assert.True(t, s.Playing)
	assert.Equal(t, []effect{resumeContent{}}, effects)
}

func TestTogglePlayIgnoredDuringAd(t *testing.T) {
	m := newMachine(allTags)
	s, played, _ := m.apply(NewState(), PlayedAds{}, ContentLoaded{Duration: 100})

	got, _, effects := m.apply(s, played, TogglePlay{})

	diffState(t, s, got)
	assert.Empty(t, effects)
}

func TestTogglePlayIgnoredWhileContentCannotPlay(t *testing.T) {
	m := newMachine(nil)

	buffering := contentAt(10, 100)
	buffering.Buffering = true
	buffering.Playing = false

	ended := contentAt(100, 100)
	ended.Ended = true
	ended.Playing = false

	failed := contentAt(10, 100)
	failed.ContentErr = errors.New("stream unavailable")
	failed.Playing = false

	for name, s := range map[string]State{"buffering": buffering, "ended": ended, "failed": failed} {
		t.Run(name, func(t *testing.T) {
			got, _, effects := m.apply(s, PlayedAds{}, TogglePlay{})
			diffState(t, s, got)
			assert.Empty(t, effects)
		})
	}
}

func TestSkipClampsToBounds(t *testing.T) {
	m := newMachine(nil)

	forward, _, effects := m.apply(contentAt(95, 100), PlayedAds{}, Skip{Direction: Forward})
	assert.Equal(t, 100.0, forward.Progress)
	assert.Equal(t, 100.0, forward.Seek.Target)
	assert.Equal(t, seekContent{to: 100}, effects[1])

	backward, _, effects := m.apply(contentAt(5, 100), PlayedAds{}, Skip{Direction: Backward})
	assert.Zero(t, backward.Progress)
	assert.Equal(t, seekContent{to: 0}, effects[1])
}

func TestSkipPausesThenRestoresIntent(t *testing.T) {
	m := newMachine(nil)

	s, _, effects := m.apply(contentAt(30, 100), PlayedAds{}, Skip{Direction: Forward})
	assert.False(t, s.Playing)
	assert.Equal(t, PendingSeek{Active: true, Generation: 1, Target: 40, ResumePlaying: true}, s.Seek)
	assert.Equal(t, []effect{pauseContent{}, seekContent{to: 40}, armSeekTimer{generation: 1}}, effects)

	s, _, effects = m.apply(s, PlayedAds{}, ContentSeeked{})
	assert.True(t, s.Playing)
	assert.False(t, s.Seek.Active)
	assert.Equal(t, []effect{cancelSeekTimer{}, resumeContent{}}, effects)
}

func TestSkipWhilePausedStaysPaused(t *testing.T) {
	m := newMachine(nil)
	paused := contentAt(30, 100)
	paused.Playing = false

	s, _, _ := m.apply(paused, PlayedAds{}, Skip{Direction: Backward})
	s, _, effects := m.apply(s, PlayedAds{}, SeekSettled{Generation: s.Seek.Generation})

	assert.False(t, s.Playing)
	assert.Equal(t, 20.0, s.Progress)
	assert.Equal(t, []effect{cancelSeekTimer{}}, effects)
}

func TestRapidSkipsKeepOriginalIntent(t *testing.T) {
	m := newMachine(nil)

	s, _, _ := m.apply(contentAt(30, 100), PlayedAds{}, Skip{Direction: Forward})
	first := s.Seek.Generation
	s, _, _ = m.apply(s, PlayedAds{}, Skip{Direction: Forward})

	assert.Equal(t, 50.0, s.Progress)
	assert.True(t, s.Seek.ResumePlaying, "second skip must not capture the paused state of the first")

	// The first seek's timer is stale
	stale, _, effects := m.apply(s, PlayedAds{}, SeekSettled{Generation: first})
	assert.False(t, stale.Playing)
	assert.True(t, stale.Seek.Active)
	assert.Empty(t, effects)

	s, _, _ = m.apply(s, PlayedAds{}, SeekSettled{Generation: s.Seek.Generation})
	assert.True(t, s.Playing)
}

func TestProgressIgnoredWhileSeekPending(t *testing.T) {
	m := newMachine(nil)
	s, _, _ := m.apply(contentAt(30, 100), PlayedAds{}, SeekTo{Value: 80})

	s, _, _ = m.apply(s, PlayedAds{}, ContentProgress{Time: 30.5})

	assert.Equal(t, 80.0, s.Progress)
}

func TestSeekToResumes(t *testing.T) {
	m := newMachine(nil)
	paused := contentAt(30, 100)
	paused.Playing = false

	s, _, effects := m.apply(paused, PlayedAds{}, SeekTo{Value: 250})
	assert.Equal(t, 100.0, s.Progress)
	assert.Equal(t, []effect{pauseContent{}, seekContent{to: 100}, armSeekTimer{generation: 1}}, effects)

	s, _, _ = m.apply(s, PlayedAds{}, SeekSettled{Generation: 1})
	assert.True(t, s.Playing)
}

func TestSeekIgnoredWithoutDurationOrDuringAd(t *testing.T) {
	m := newMachine(allTags)

	_, _, effects := m.apply(NewState(), PlayedAds{}, SeekTo{Value: 10})
	assert.Empty(t, effects)

	s, played, _ := m.apply(NewState(), PlayedAds{}, ContentLoaded{Duration: 100})
	_, _, effects = m.apply(s, played, Skip{Direction: Forward})
	assert.Empty(t, effects)
}

func TestAdTriggerSupersedesSeekRestore(t *testing.T) {
	m := newMachine(allTags)
	played := PlayedAds{PreRoll: true, MidRoll: true}

	// Seek to the very end; the end event arrives before the seek is acknowledged
	s, _, _ := m.apply(contentAt(90, 100), played, SeekTo{Value: 100})
	require.True(t, s.Seek.Active)

	s, _, effects := m.apply(s, played, ContentEnded{})

	assert.False(t, s.Seek.Active)
	assert.Equal(t, []effect{cancelSeekTimer{}, pauseContent{}, loadAd{slot: PostRoll, tagURL: allTags[PostRoll]}}, effects)

	// A settle for the superseded seek changes nothing
	got, _, effects := m.apply(s, played, SeekSettled{Generation: 1})
	diffState(t, s, got)
	assert.Empty(t, effects)
}

func TestToggleControls(t *testing.T) {
	m := newMachine(allTags)
	s := contentAt(10, 100)

	s, _, _ = m.apply(s, PlayedAds{}, ToggleControls{})
	assert.False(t, s.ShowControls)
	s, _, _ = m.apply(s, PlayedAds{}, ToggleControls{})
	assert.True(t, s.ShowControls)

	ad, played, _ := m.apply(NewState(), PlayedAds{}, ContentLoaded{Duration: 100})
	ad, _, _ = m.apply(ad, played, ToggleControls{})
	assert.False(t, ad.ShowControls, "controls stay hidden while an ad is active")
}

func TestContentFailureAndRetry(t *testing.T) {
	m := newMachine(nil)
	failure := errors.New("mpv failed to play file: loading failed")

	s, _, _ := m.apply(contentAt(42, 100), PlayedAds{}, ContentFailed{Err: failure})
	assert.Equal(t, PhaseFailed, s.Phase())
	assert.False(t, s.Playing)
	assert.ErrorIs(t, s.ContentErr, failure)

	_, _, effects := m.apply(s, PlayedAds{}, TogglePlay{})
	assert.Empty(t, effects, "toggling is meaningless until the content is reloaded")

	s, _, effects = m.apply(s, PlayedAds{}, Retry{})
	assert.NoError(t, s.ContentErr)
	assert.True(t, s.Playing)
	assert.Equal(t, []effect{reloadContent{at: 42}}, effects)

	_, _, effects = m.apply(s, PlayedAds{}, Retry{})
	assert.Empty(t, effects, "retry without an error does nothing")
}

func TestPlayedAdsNotMutatedInPlace(t *testing.T) {
	m := newMachine(allTags)
	before := PlayedAds{}

	_, after, _ := m.apply(NewState(), before, ContentLoaded{Duration: 100})

	assert.Empty(t, before)
	assert.True(t, after[PreRoll])
}
