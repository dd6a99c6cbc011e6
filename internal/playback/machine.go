package playback

import "math"

// effect is a command for the surfaces or the seek timer produced by a transition.  The controller executes effects
// after the state has been replaced.
type effect interface {
	isEffect()
}

type pauseContent struct{}
type resumeContent struct{}
type seekContent struct{ to float64 }
type reloadContent struct{ at float64 }
type loadAd struct {
	slot   Slot
	tagURL string
}
type stopAd struct{}
type armSeekTimer struct{ generation uint64 }
type cancelSeekTimer struct{}

func (pauseContent) isEffect()    {}
func (resumeContent) isEffect()   {}
func (seekContent) isEffect()     {}
func (reloadContent) isEffect()   {}
func (loadAd) isEffect()          {}
func (stopAd) isEffect()          {}
func (armSeekTimer) isEffect()    {}
func (cancelSeekTimer) isEffect() {}

// machine holds the transition rules.  apply is the only place State and PlayedAds change, so marking a slot as
// played and requesting its ad always happen in the same transition.
type machine struct {
	slots    []SlotConfig
	skipStep float64
	seekSeq  uint64
}

func (m *machine) apply(s State, played PlayedAds, ev Event) (State, PlayedAds, []effect) {
	var effects []effect

	switch e := ev.(type) {
	case ContentLoaded:
		s.Duration = sanitizeTime(e.Duration)
		s.Progress = clampTime(s.Progress, s.Duration)
		s.Ended = false
		if slot, ok := m.due(TriggerOnLoad, s, played, 0); ok {
			s, played, effects = m.requestAd(s, played, slot)
		}

	case ContentProgress:
		// The surface can still report pre-seek positions until the seek lands
		if s.Seek.Active {
			break
		}
		s.Progress = clampTime(sanitizeTime(e.Time), s.Duration)
		if slot, ok := m.due(TriggerAtFraction, s, played, s.Progress); ok {
			s, played, effects = m.requestAd(s, played, slot)
		}

	case ContentEnded:
		if s.Duration > 0 {
			s.Progress = s.Duration
		}
		s.Ended = true
		if slot, ok := m.due(TriggerOnEnd, s, played, 0); ok {
			s, played, effects = m.requestAd(s, played, slot)
		} else if !s.AdActive() {
			s.Playing = false
		}

	case ContentBuffer:
		s.Buffering = e.Buffering
		if s.Seek.Active || s.Ended || s.AdActive() || s.ContentErr != nil {
			break
		}
		s.Playing = !e.Buffering
		if !e.Buffering {
			effects = append(effects, resumeContent{})
		}

	case ContentFailed:
		s.ContentErr = e.Err
		s.Playing = false
		s.Buffering = false
		if s.Seek.Active {
			s.Seek = PendingSeek{}
			effects = append(effects, cancelSeekTimer{})
		}

	case ContentSeeked:
		if s.Seek.Active {
			s, effects = m.settle(s)
		}

	case SeekSettled:
		if s.Seek.Active && s.Seek.Generation == e.Generation {
			s, effects = m.settle(s)
		}

	case AdEvent:
		s, effects = m.applyAdEvent(s, e)

	case TogglePlay:
		if s.AdActive() || s.Buffering || s.ContentErr != nil || s.Ended {
			break
		}
		if s.Seek.Active {
			// An explicit toggle wins over the intent captured by the pending seek
			s.Seek = PendingSeek{}
			effects = append(effects, cancelSeekTimer{})
		}
		s.Playing = !s.Playing
		if s.Playing {
			effects = append(effects, resumeContent{})
		} else {
			effects = append(effects, pauseContent{})
		}

	case Skip:
		if !canSeek(s) {
			break
		}
		resume := s.Playing
		if s.Seek.Active {
			// Rapid repeated skips keep the intent from before the first one
			resume = s.Seek.ResumePlaying
		}
		target := clampTime(s.Progress+float64(e.Direction)*m.skipStep, s.Duration)
		s, effects = m.seek(s, target, resume)

	case SeekTo:
		if !canSeek(s) {
			break
		}
		s, effects = m.seek(s, clampTime(sanitizeTime(e.Value), s.Duration), true)

	case ToggleControls:
		if !s.AdActive() {
			s.ShowControls = !s.ShowControls
		}

	case Retry:
		if s.ContentErr == nil {
			break
		}
		s.ContentErr = nil
		s.Playing = true
		s.Buffering = false
		effects = append(effects, reloadContent{at: s.Progress})
	}

	return normalize(s), played, effects
}

func (m *machine) applyAdEvent(s State, e AdEvent) (State, []effect) {
	switch e.Kind {
	case AdLoaded, AdStarted:
		// Late events from an ad that was already stopped
		if s.CurrentAd == SlotNone {
			return s, nil
		}
		s.AdPlaying = true
		s.AdLoaded = false
		s.Playing = false
		s.ShowControls = false
		return s, nil

	case AdSkipped, AdCompleted, AdAllAdsCompleted:
		if s.CurrentAd == SlotNone {
			return s, nil
		}
		slot := s.CurrentAd
		s = clearAd(s)
		s.ShowControls = true
		if slot == PostRoll {
			// The post-roll closes the session, there is nothing to go back to
			s.Playing = false
			return s, []effect{stopAd{}, pauseContent{}}
		}
		s.Playing = true
		return s, []effect{stopAd{}, seekContent{to: s.Progress}, resumeContent{}}

	case AdError:
		// Fail open: an ad problem must never keep the viewer from the content
		s = clearAd(s)
		s.Playing = true
		s.ShowControls = true
		return s, []effect{stopAd{}, resumeContent{}}
	}
	return s, nil
}

// due returns the first configured slot of the given trigger kind that may fire now
func (m *machine) due(kind TriggerKind, s State, played PlayedAds, at float64) (SlotConfig, bool) {
	if s.AdActive() {
		return SlotConfig{}, false
	}
	for _, slot := range m.slots {
		if slot.Trigger.Kind != kind || slot.TagURL == "" || played[slot.Slot] {
			continue
		}
		if kind == TriggerAtFraction && (s.Duration <= 0 || at < s.Duration*slot.Trigger.Fraction) {
			continue
		}
		return slot, true
	}
	return SlotConfig{}, false
}

func (m *machine) requestAd(s State, played PlayedAds, slot SlotConfig) (State, PlayedAds, []effect) {
	played = played.clone()
	played[slot.Slot] = true

	var effects []effect
	if s.Seek.Active {
		// The ad supersedes the restore, the completion handler resumes playback itself
		s.Seek = PendingSeek{}
		effects = append(effects, cancelSeekTimer{})
	}

	s.CurrentAd = slot.Slot
	s.AdLoaded = true
	s.AdPlaying = false
	s.Playing = false
	s.ShowControls = false

	effects = append(effects, pauseContent{}, loadAd{slot: slot.Slot, tagURL: slot.TagURL})
	return s, played, effects
}

func (m *machine) seek(s State, target float64, resume bool) (State, []effect) {
	m.seekSeq++
	s.Seek = PendingSeek{
		Active:        true,
		Generation:    m.seekSeq,
		Target:        target,
		ResumePlaying: resume,
	}
	s.Playing = false
	s.Progress = target
	if target < s.Duration {
		s.Ended = false
	}
	return s, []effect{pauseContent{}, seekContent{to: target}, armSeekTimer{generation: m.seekSeq}}
}

func (m *machine) settle(s State) (State, []effect) {
	s.Playing = s.Seek.ResumePlaying
	s.Seek = PendingSeek{}
	effects := []effect{cancelSeekTimer{}}
	if s.Playing {
		effects = append(effects, resumeContent{})
	}
	return s, effects
}

func canSeek(s State) bool {
	return !s.AdActive() && s.Duration > 0 && s.ContentErr == nil
}

func clearAd(s State) State {
	s.AdPlaying = false
	s.AdLoaded = false
	s.CurrentAd = SlotNone
	return s
}

// normalize enforces the invariants every transition must leave behind
func normalize(s State) State {
	if s.CurrentAd == SlotNone {
		s.AdPlaying = false
		s.AdLoaded = false
	}
	if s.AdActive() {
		s.Playing = false
		s.ShowControls = false
	}
	if s.Buffering {
		s.Playing = false
	}
	return s
}

// sanitizeTime maps values a surface should never report (NaN, infinities, negatives) to zero
func sanitizeTime(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// clampTime limits t to [0, duration].  The upper bound only applies once the duration is known.
func clampTime(t, duration float64) float64 {
	if t < 0 {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}
