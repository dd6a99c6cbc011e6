package playback

// Event is anything the controller reacts to: content surface reports, ad lifecycle events, user intents and
// internal timers.
type Event interface {
	isEvent()
}

// ContentLoaded is reported once the content duration is known
type ContentLoaded struct{ Duration float64 }

// ContentProgress reports the content playhead in seconds
type ContentProgress struct{ Time float64 }

// ContentEnded is reported when the content reaches its end
type ContentEnded struct{}

// ContentBuffer reports the content surface entering or leaving a stall
type ContentBuffer struct{ Buffering bool }

// ContentFailed is reported when the content surface cannot play the source
type ContentFailed struct{ Err error }

// ContentSeeked is reported when the content surface finished a seek
type ContentSeeked struct{}

// AdEventKind enumerates the ad lifecycle events
type AdEventKind string

const (
	AdLoaded          AdEventKind = "LOADED"
	AdStarted         AdEventKind = "STARTED"
	AdSkipped         AdEventKind = "SKIPPED"
	AdCompleted       AdEventKind = "COMPLETED"
	AdAllAdsCompleted AdEventKind = "ALL_ADS_COMPLETED"
	AdError           AdEventKind = "ERROR"
)

// AdEvent is an ad lifecycle event from the ad surface
type AdEvent struct {
	Kind AdEventKind
	Err  error
}

// TogglePlay is the user flipping between play and pause
type TogglePlay struct{}

// Direction of a skip
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// Skip is the user jumping forward or backward by the configured step
type Skip struct{ Direction Direction }

// SeekTo is the user releasing the seek bar at Value seconds
type SeekTo struct{ Value float64 }

// SeekSettled fires when a seek's settle timeout elapses without the surface acknowledging it
type SeekSettled struct{ Generation uint64 }

// ToggleControls shows or hides the controls overlay
type ToggleControls struct{}

// Retry reloads the content after a content error
type Retry struct{}

func (ContentLoaded) isEvent()   {}
func (ContentProgress) isEvent() {}
func (ContentEnded) isEvent()    {}
func (ContentBuffer) isEvent()   {}
func (ContentFailed) isEvent()   {}
func (ContentSeeked) isEvent()   {}
func (AdEvent) isEvent()         {}
func (TogglePlay) isEvent()      {}
func (Skip) isEvent()            {}
func (SeekTo) isEvent()          {}
func (SeekSettled) isEvent()     {}
func (ToggleControls) isEvent()  {}
func (Retry) isEvent()           {}
