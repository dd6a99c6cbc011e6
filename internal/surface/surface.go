package surface

import (
	"context"
	"errors"
)

// EventType represents the type of event reported by a video surface
type EventType string

const (
	// EventLoaded is sent once per loaded file, when its duration is known
	EventLoaded EventType = "loaded"
	// EventProgress reports the playhead position
	EventProgress EventType = "progress"
	// EventBuffer reports the surface entering or leaving a stall
	EventBuffer EventType = "buffer"
	// EventSeeked is sent when playback restarts after a seek (or after the initial load)
	EventSeeked EventType = "seeked"
	// EventEnded indicates the media reached its end
	EventEnded EventType = "ended"
	// EventError indicates the surface failed to play the media
	EventError EventType = "error"
	// EventClosed indicates the surface went away, e.g. the user closed the mpv window.  No events follow it.
	EventClosed EventType = "closed"
)

var (
	// ErrNotConnected is returned by commands issued before the IPC connection is established
	ErrNotConnected = errors.New("not connected to mpv")
)

// Event represents an event from a video surface
type Event struct {
	Type      EventType
	Time      float64 // Playhead in seconds for EventProgress
	Duration  float64 // Media length in seconds for EventLoaded
	Buffering bool    // For EventBuffer
	Err       error   // For EventError
}

// Surface is a controllable video output.  Content and ads each get their own instance.
type Surface interface {
	// Load starts playback of the given URI and returns a channel of surface events.  The channel is closed when the
	// surface stops or ctx is cancelled.
	Load(ctx context.Context, uri string) (<-chan Event, error)

	Play() error
	Pause() error
	// Seek moves the playhead to an absolute position in seconds.  Completion is reported by EventSeeked.
	Seek(seconds float64) error
	// Reload reopens the current URI and resumes from the given position.  Used to recover from playback errors.
	Reload(at float64) error

	// Stop stops the current playback
	Stop() error

	// Cleanup performs any necessary cleanup
	Cleanup()
}
