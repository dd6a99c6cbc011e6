package playback

// Phase is the coarse state derived from a State, used for display and logging
type Phase string

const (
	PhaseContentPlaying Phase = "content_playing"
	PhaseContentPaused  Phase = "content_paused"
	PhaseBuffering      Phase = "buffering"
	PhaseAdLoading      Phase = "ad_loading"
	PhaseAdPlaying      Phase = "ad_playing"
	PhaseEnded          Phase = "ended"
	PhaseFailed         Phase = "failed"
)

// Phases lists every phase
var Phases = []Phase{
	PhaseContentPlaying,
	PhaseContentPaused,
	PhaseBuffering,
	PhaseAdLoading,
	PhaseAdPlaying,
	PhaseEnded,
	PhaseFailed,
}

// PendingSeek is a seek that was issued to the content surface and not yet acknowledged
type PendingSeek struct {
	Active     bool
	Generation uint64
	Target     float64
	// ResumePlaying is the playing intent restored once the seek settles
	ResumePlaying bool
}

// State is a snapshot of a playback session.  It is replaced as a whole on every transition and safe to share.
type State struct {
	Playing      bool
	Progress     float64 // seconds, within [0, Duration] once Duration is known
	Duration     float64 // seconds, 0 until the content reported its length
	ShowControls bool
	AdPlaying    bool
	AdLoaded     bool
	CurrentAd    Slot
	Buffering    bool
	Ended        bool
	ContentErr   error
	Seek         PendingSeek
}

// NewState returns the state of a session that has not loaded anything yet
func NewState() State {
	return State{
		Playing:      true,
		ShowControls: true,
	}
}

// AdActive reports whether an ad is loading or playing
func (s State) AdActive() bool {
	return s.AdPlaying || s.AdLoaded
}

func (s State) Phase() Phase {
	switch {
	case s.AdPlaying:
		return PhaseAdPlaying
	case s.AdLoaded:
		return PhaseAdLoading
	case s.ContentErr != nil:
		return PhaseFailed
	case s.Buffering:
		return PhaseBuffering
	case s.Ended && !s.Playing:
		return PhaseEnded
	case s.Playing:
		return PhaseContentPlaying
	default:
		return PhaseContentPaused
	}
}
