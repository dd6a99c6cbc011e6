// Package metrics provides Prometheus metrics for ad insertion and playback.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/PizzaHomicide/adplay/internal/playback"
)

// No session ids in labels, slots and phases are the only dimensions.

// Playback holds the collectors fed by a playback controller
type Playback struct {
	// Counters

	// AdRequests counts ad tag requests, by slot
	AdRequests *prometheus.CounterVec
	// AdImpressions counts ads that started playing, by slot
	AdImpressions *prometheus.CounterVec
	// AdErrors counts ad requests that failed open, by slot
	AdErrors *prometheus.CounterVec
	// AdSkips counts ads skipped by the viewer, by slot
	AdSkips *prometheus.CounterVec
	// AdCompletions counts ads that played to the end, by slot
	AdCompletions *prometheus.CounterVec
	// Seeks counts user seeks, by kind (skip, seek_to)
	Seeks *prometheus.CounterVec
	// BufferStalls counts transitions into buffering
	BufferStalls prometheus.Counter
	// ContentErrors counts content surface failures
	ContentErrors prometheus.Counter
	// Sessions counts started playback sessions
	Sessions prometheus.Counter

	// Gauges

	// Phase is 1 for the phase the current session is in and 0 for every other phase
	Phase *prometheus.GaugeVec
}

// New registers the playback collectors with reg
func New(reg prometheus.Registerer) *Playback {
	f := promauto.With(reg)
	return &Playback{
		AdRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adplay_ad_requests_total",
			Help: "Total number of ad tag requests, by slot.",
		}, []string{"slot"}),
		AdImpressions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adplay_ad_impressions_total",
			Help: "Total number of ads that started playing, by slot.",
		}, []string{"slot"}),
		AdErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adplay_ad_errors_total",
			Help: "Total number of failed ad requests or playbacks, by slot.",
		}, []string{"slot"}),
		AdSkips: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adplay_ad_skips_total",
			Help: "Total number of ads skipped by the viewer, by slot.",
		}, []string{"slot"}),
		AdCompletions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adplay_ad_completions_total",
			Help: "Total number of ads played to the end, by slot.",
		}, []string{"slot"}),
		Seeks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adplay_seeks_total",
			Help: "Total number of user seeks, by kind.",
		}, []string{"kind"}),
		BufferStalls: f.NewCounter(prometheus.CounterOpts{
			Name: "adplay_buffer_stalls_total",
			Help: "Total number of times content playback stalled to buffer.",
		}),
		ContentErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "adplay_content_errors_total",
			Help: "Total number of content playback failures.",
		}),
		Sessions: f.NewCounter(prometheus.CounterOpts{
			Name: "adplay_sessions_total",
			Help: "Total number of started playback sessions.",
		}),
		Phase: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "adplay_playback_phase",
			Help: "Current playback phase of the active session (1 = active).",
		}, []string{"phase"}),
	}
}

// SessionStarted records a new playback session
func (m *Playback) SessionStarted() {
	m.Sessions.Inc()
	m.setPhase(playback.NewState().Phase())
}

// Observe implements playback.Observer
func (m *Playback) Observe(prev, next playback.State, ev playback.Event) {
	if prev.CurrentAd == playback.SlotNone && next.CurrentAd != playback.SlotNone {
		m.AdRequests.WithLabelValues(next.CurrentAd.String()).Inc()
	}

	switch e := ev.(type) {
	case playback.AdEvent:
		if prev.CurrentAd == playback.SlotNone {
			break
		}
		slot := prev.CurrentAd.String()
		switch e.Kind {
		case playback.AdLoaded, playback.AdStarted:
			if !prev.AdPlaying && next.AdPlaying {
				m.AdImpressions.WithLabelValues(slot).Inc()
			}
		case playback.AdSkipped:
			m.AdSkips.WithLabelValues(slot).Inc()
		case playback.AdCompleted, playback.AdAllAdsCompleted:
			m.AdCompletions.WithLabelValues(slot).Inc()
		case playback.AdError:
			m.AdErrors.WithLabelValues(slot).Inc()
		}

	case playback.Skip:
		if next.Seek.Generation != prev.Seek.Generation {
			m.Seeks.WithLabelValues("skip").Inc()
		}
	case playback.SeekTo:
		if next.Seek.Generation != prev.Seek.Generation {
			m.Seeks.WithLabelValues("seek_to").Inc()
		}

	case playback.ContentBuffer:
		if e.Buffering && !prev.Buffering {
			m.BufferStalls.Inc()
		}
	case playback.ContentFailed:
		m.ContentErrors.Inc()
	}

	if prev.Phase() != next.Phase() {
		m.setPhase(next.Phase())
	}
}

func (m *Playback) setPhase(current playback.Phase) {
	for _, phase := range playback.Phases {
		v := 0.0
		if phase == current {
			v = 1
		}
		m.Phase.WithLabelValues(string(phase)).Set(v)
	}
}
