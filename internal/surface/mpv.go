package surface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/PizzaHomicide/adplay/internal/config"
	"github.com/PizzaHomicide/adplay/internal/log"
)

// Property observer ids
const (
	propDuration = iota + 1
	propTimePos
	propPausedForCache
	propEOFReached
)

// progressInterval limits how often EventProgress is emitted.  mpv reports time-pos on every frame.
const progressInterval = 0.25

// Options customise a surface instance
type Options struct {
	// Name identifies the surface in logs and in the IPC socket path, e.g. "content" or "ad"
	Name string
	// KeepOpen keeps mpv running at the end of the file.  Content needs this so the post-roll can play before the
	// session ends; ads let mpv exit.
	KeepOpen bool
}

// MPVSurface implements Surface on top of an mpv child process
type MPVSurface struct {
	config     *config.Config
	opts       Options
	socketPath string

	mu        sync.Mutex // guards ipcClient, cmd, uri and startAt
	ipcClient *MPVIPCClient
	cmd       *exec.Cmd
	uri       string
	startAt   float64
}

// NewMPVSurface creates a new mpv surface.  Nothing is started until Load is called.
func NewMPVSurface(cfg *config.Config, opts Options) *MPVSurface {
	socketPath := fmt.Sprintf("%s-%s-%d", cfg.Player.SocketPath, opts.Name, os.Getpid())
	return &MPVSurface{
		config:     cfg,
		opts:       opts,
		socketPath: socketPath,
		ipcClient:  NewMPVIPCClient(socketPath),
	}
}

// args builds the mpv command line for uri
func (p *MPVSurface) args(uri string) []string {
	keepOpen := "no"
	if p.opts.KeepOpen {
		keepOpen = "yes"
	}

	args := []string{
		"--no-terminal",                      // Disable terminal control, the TUI owns the terminal
		"--force-window=immediate",           // Show the window while the stream is still opening
		"--keep-open=" + keepOpen,            // Whether to exit when playback is complete
		"--input-ipc-server=" + p.socketPath, // Set IPC socket path
		"--title=adplay: " + p.opts.Name,
	}

	// Add any additional configured arguments
	if p.config.Player.Args != "" {
		args = append(args, ParseArgs(p.config.Player.Args)...)
	}

	// The media URI is the final argument
	return append(args, uri)
}

// Load starts mpv on uri and returns the surface's event channel
func (p *MPVSurface) Load(ctx context.Context, uri string) (<-chan Event, error) {
	log.Info("Starting mpv surface", "surface", p.opts.Name, "uri", uri)

	mpvPath := p.config.Player.Path
	if mpvPath == "" {
		mpvPath = "mpv"
	}

	// A stale socket from a crashed run would make WaitForConnection connect to nothing
	_ = os.Remove(p.socketPath)

	cmd := exec.Command(mpvPath, p.args(uri)...)
	setupPlayerProcess(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mpv: %w", err)
	}

	// Every process gets a fresh client as the event channel of the previous one is closed when mpv exits
	ipc := NewMPVIPCClient(p.socketPath)

	p.mu.Lock()
	p.cmd = cmd
	p.uri = uri
	p.ipcClient = ipc
	p.mu.Unlock()

	// Reap the process so it does not linger as a zombie once it exits
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug("mpv exited", "surface", p.opts.Name, "error", err)
		}
	}()

	events := make(chan Event, 16)

	go func() {
		defer close(events)

		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := ipc.WaitForConnection(connCtx, 40, 250*time.Millisecond); err != nil {
			log.Error("Failed to connect to mpv", "surface", p.opts.Name, "error", err)
			sendEvent(ctx, events, Event{Type: EventError, Err: err})
			return
		}

		if err := p.observe(); err != nil {
			log.Error("Failed to observe mpv properties", "surface", p.opts.Name, "error", err)
			sendEvent(ctx, events, Event{Type: EventError, Err: err})
			return
		}

		p.monitor(ctx, ipc.Events(), events)
	}()

	return events, nil
}

// observe subscribes to the properties the monitor translates into surface events
func (p *MPVSurface) observe() error {
	props := []struct {
		id   int
		name string
	}{
		{propDuration, "duration"},
		{propTimePos, "time-pos"},
		{propPausedForCache, "paused-for-cache"},
		{propEOFReached, "eof-reached"},
	}
	for _, prop := range props {
		if err := p.client().ObserveProperty(prop.id, prop.name); err != nil {
			return fmt.Errorf("observing %s: %w", prop.name, err)
		}
	}
	return nil
}

// monitor translates raw mpv events into surface events until the mpv stream ends or ctx is cancelled
func (p *MPVSurface) monitor(ctx context.Context, mpvEvents <-chan MPVEvent, out chan<- Event) {
	var (
		loaded       bool
		ended        bool
		buffering    bool
		lastProgress = -1.0
	)

	for {
		select {
		case <-ctx.Done():
			log.Debug("Context cancelled, stopping mpv monitoring", "surface", p.opts.Name)
			return
		case event, ok := <-mpvEvents:
			if !ok {
				log.Debug("mpv event channel closed", "surface", p.opts.Name)
				sendEvent(ctx, out, Event{Type: EventClosed})
				return
			}

			switch event.Event {
			case "file-loaded":
				loaded, ended, lastProgress = false, false, -1
				p.applyStartPosition()

			case "playback-restart":
				sendEvent(ctx, out, Event{Type: EventSeeked})

			case "end-file":
				switch event.Reason {
				case "eof":
					if !ended {
						ended = true
						sendEvent(ctx, out, Event{Type: EventEnded})
					}
				case "error":
					sendEvent(ctx, out, Event{Type: EventError, Err: fmt.Errorf("mpv failed to play file: %s", event.FileError)})
				default:
					// stop/quit/redirect are caused by our own commands
					log.Debug("mpv file closed", "surface", p.opts.Name, "reason", event.Reason)
				}

			case "property-change":
				switch event.Name {
				case "duration":
					if duration, ok := decodeFloat(event.Data); ok && duration > 0 && !loaded {
						loaded = true
						log.Debug("mpv reported duration", "surface", p.opts.Name, "duration", duration)
						sendEvent(ctx, out, Event{Type: EventLoaded, Duration: duration})
					}
				case "time-pos":
					if pos, ok := decodeFloat(event.Data); ok && (pos < lastProgress || pos-lastProgress >= progressInterval) {
						lastProgress = pos
						sendEvent(ctx, out, Event{Type: EventProgress, Time: pos})
					}
				case "paused-for-cache":
					if stalled, ok := decodeBool(event.Data); ok && stalled != buffering {
						buffering = stalled
						sendEvent(ctx, out, Event{Type: EventBuffer, Buffering: stalled})
					}
				case "eof-reached":
					if eof, ok := decodeBool(event.Data); ok && eof && !ended {
						ended = true
						sendEvent(ctx, out, Event{Type: EventEnded})
					}
				}
			}
		}
	}
}

// applyStartPosition seeks to the position requested by Reload once the reopened file is loaded
func (p *MPVSurface) applyStartPosition() {
	p.mu.Lock()
	at := p.startAt
	p.startAt = 0
	p.mu.Unlock()

	if at > 0 {
		if err := p.Seek(at); err != nil {
			log.Warn("Failed to restore position after reload", "surface", p.opts.Name, "at", at, "error", err)
		}
	}
}

func sendEvent(ctx context.Context, out chan<- Event, event Event) {
	select {
	case out <- event:
	case <-ctx.Done():
	}
}

// decodeFloat reads a numeric property value.  mpv sends null while a property is unavailable.
func decodeFloat(data json.RawMessage) (float64, bool) {
	var value *float64
	if err := json.Unmarshal(data, &value); err != nil || value == nil {
		return 0, false
	}
	if math.IsNaN(*value) || math.IsInf(*value, 0) {
		return 0, false
	}
	return *value, true
}

func decodeBool(data json.RawMessage) (bool, bool) {
	var value *bool
	if err := json.Unmarshal(data, &value); err != nil || value == nil {
		return false, false
	}
	return *value, true
}

func (p *MPVSurface) client() *MPVIPCClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ipcClient
}

// Play resumes playback
func (p *MPVSurface) Play() error {
	return p.client().SendCommand("set_property", "pause", false)
}

// Pause pauses playback
func (p *MPVSurface) Pause() error {
	return p.client().SendCommand("set_property", "pause", true)
}

// Seek moves to an absolute position in seconds
func (p *MPVSurface) Seek(seconds float64) error {
	return p.client().SendCommand("seek", strconv.FormatFloat(seconds, 'f', 3, 64), "absolute")
}

// Reload reopens the current file and seeks to at once it has loaded
func (p *MPVSurface) Reload(at float64) error {
	p.mu.Lock()
	uri := p.uri
	p.startAt = at
	p.mu.Unlock()

	if uri == "" {
		return fmt.Errorf("nothing loaded on surface %s", p.opts.Name)
	}
	log.Info("Reloading mpv surface", "surface", p.opts.Name, "at", at)
	if err := p.client().SendCommand("loadfile", uri, "replace"); err != nil {
		return err
	}
	return p.Play()
}

// Stop stops playback if it's active
func (p *MPVSurface) Stop() error {
	// Ask mpv to quit politely first so it can release the window
	ipc := p.client()
	_ = ipc.SendCommand("quit")
	_ = ipc.Close()

	p.mu.Lock()
	cmd := p.cmd
	p.cmd = nil
	p.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		log.Info("Stopping mpv", "surface", p.opts.Name)
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
	}

	return nil
}

// Cleanup performs any necessary cleanup
func (p *MPVSurface) Cleanup() {
	if err := p.Stop(); err != nil {
		log.Warn("Failed to stop mpv", "surface", p.opts.Name, "error", err)
	}

	// Remove socket file if it exists (Unix only)
	if _, err := os.Stat(p.socketPath); err == nil {
		if err := os.Remove(p.socketPath); err != nil {
			log.Warn("Failed to remove mpv socket file", "path", p.socketPath, "error", err)
		}
	}
}
