package service

import (
	"context"
	"fmt"

	"github.com/PizzaHomicide/adplay/internal/ads"
	"github.com/PizzaHomicide/adplay/internal/config"
	"github.com/PizzaHomicide/adplay/internal/log"
	"github.com/PizzaHomicide/adplay/internal/metrics"
	"github.com/PizzaHomicide/adplay/internal/playback"
	"github.com/PizzaHomicide/adplay/internal/surface"
)

// PlaybackService starts playback sessions with the configured surfaces, ad tags and controls
type PlaybackService struct {
	config  *config.Config
	metrics *metrics.Playback

	// Factories are replaceable for tests
	newContent func() (surface.Surface, error)
	newAds     func() AdPlayer
}

// NewPlaybackService creates a service whose sessions play on mpv.  m may be nil when metrics are disabled.
func NewPlaybackService(cfg *config.Config, m *metrics.Playback) *PlaybackService {
	vast := ads.NewClient(cfg.Ads)
	return &PlaybackService{
		config:  cfg,
		metrics: m,
		newContent: func() (surface.Surface, error) {
			return surface.New(cfg, surface.Options{Name: "content", KeepOpen: true})
		},
		newAds: func() AdPlayer {
			return ads.NewPlayer(vast, ads.NewTracker(nil), func() (surface.Surface, error) {
				return surface.New(cfg, surface.Options{Name: "ad"})
			}, cfg.Ads.StartTimeout())
		},
	}
}

// Slots builds the ad slot table from the ads configuration.  Disabled slots are left out.
func Slots(cfg config.AdsConfig) []playback.SlotConfig {
	tags := map[playback.Slot]string{}
	for _, slot := range playback.Slots {
		tags[slot] = cfg.AdTag(slot.String())
	}
	return playback.DefaultSlots(tags, cfg.MidRollFraction)
}

// Start loads source on a new content surface and returns the running session
func (s *PlaybackService) Start(ctx context.Context, title, source string) (*Session, error) {
	if source == "" {
		return nil, fmt.Errorf("no source to play")
	}
	if title == "" {
		title = source
	}

	content, err := s.newContent()
	if err != nil {
		return nil, fmt.Errorf("failed to create content surface: %w", err)
	}
	adPlayer := s.newAds()

	session := newSession(title, source, content, adPlayer)

	opts := playback.Options{
		Slots:      Slots(s.config.Ads),
		SkipStep:   s.config.Controls.SkipStepSeconds,
		SeekSettle: s.config.Controls.SeekSettle(),
	}
	if s.metrics != nil {
		opts.Observers = append(opts.Observers, s.metrics)
	}

	if err := session.start(ctx, opts); err != nil {
		if cerr := adPlayer.Close(); cerr != nil {
			log.Warn("Failed to close ad player", "error", cerr)
		}
		content.Cleanup()
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SessionStarted()
	}

	log.Info("Playback session started", "session_id", session.ID, "title", title)
	return session, nil
}
