package surface

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/PizzaHomicide/adplay/internal/log"
)

// MPVIPCClient provides communication with a running MPV instance
type MPVIPCClient struct {
	socketPath string

	mu        sync.Mutex // guards conn and requestID
	conn      net.Conn
	requestID int

	events chan MPVEvent
}

// MPVEvent is a single line received from mpv.  Command replies carry a request id and an error string, everything
// else is an asynchronous event.
type MPVEvent struct {
	Event     string          `json:"event,omitempty"`
	ID        int             `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	FileError string          `json:"file_error,omitempty"`
	RequestID int             `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// NewMPVIPCClient creates a new MPV IPC client
func NewMPVIPCClient(socketPath string) *MPVIPCClient {
	return &MPVIPCClient{
		socketPath: socketPath,
		events:     make(chan MPVEvent, 100),
	}
}

// Connect establishes a connection with MPV.  The transport is platform specific, see dialIPC.
func (c *MPVIPCClient) Connect(ctx context.Context) error {
	log.Debug("Connecting to mpv", "path", c.socketPath)
	conn, err := dialIPC(ctx, c.socketPath)
	if err != nil {
		return fmt.Errorf("failed to connect to mpv at %s: %w", c.socketPath, err)
	}
	c.attach(conn)
	return nil
}

// attach starts reading events from an established connection
func (c *MPVIPCClient) attach(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	go c.readEvents(conn)
}

// WaitForConnection attempts to connect to MPV with retries
func (c *MPVIPCClient) WaitForConnection(ctx context.Context, maxAttempts int, retryDelay time.Duration) error {
	log.Debug("Waiting for mpv to create socket", "socket_path", c.socketPath, "max_attempts", maxAttempts)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Check if socket file exists for unix sockets
		if runtime.GOOS != "windows" {
			if _, err := os.Stat(c.socketPath); os.IsNotExist(err) {
				log.Trace("mpv socket does not exist yet", "attempt", attempt, "path", c.socketPath)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(retryDelay):
					continue
				}
			}
		}

		err := c.Connect(ctx)
		if err == nil {
			log.Info("Successfully connected to mpv", "attempt", attempt, "path", c.socketPath)
			return nil
		}

		log.Debug("Failed to connect to mpv", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
			// Continue and retry
		}
	}

	return fmt.Errorf("failed to connect to mpv after %d attempts", maxAttempts)
}

// Close closes the connection to MPV
func (c *MPVIPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// readEvents continuously reads events from MPV until the connection closes
func (c *MPVIPCClient) readEvents(conn net.Conn) {
	defer close(c.events)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		log.Trace("Raw mpv line", "data", string(line))

		var event MPVEvent
		if err := json.Unmarshal(line, &event); err != nil {
			log.Warn("Failed to unmarshal mpv event", "error", err)
			continue
		}

		// Command replies are only interesting when they failed
		if event.Event == "" {
			if event.Error != "" && event.Error != "success" {
				log.Warn("mpv command failed", "request_id", event.RequestID, "error", event.Error)
			}
			continue
		}

		c.events <- event
	}

	if err := scanner.Err(); err != nil {
		log.Debug("Stopped reading from mpv socket", "error", err)
	}
}

// Events returns the channel for MPV events.  It is closed when the connection ends.
func (c *MPVIPCClient) Events() <-chan MPVEvent {
	return c.events
}

// SendCommand sends a command to MPV without waiting for the reply
func (c *MPVIPCClient) SendCommand(cmd ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	c.requestID++
	data, err := json.Marshal(map[string]any{
		"command":    cmd,
		"request_id": c.requestID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}

	return nil
}

// ObserveProperty starts observing an MPV property.  Changes arrive as property-change events tagged with id.
func (c *MPVIPCClient) ObserveProperty(id int, name string) error {
	return c.SendCommand("observe_property", id, name)
}
