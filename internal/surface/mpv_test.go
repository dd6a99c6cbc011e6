package surface

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/PizzaHomicide/adplay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testConfig() *config.Config {
	return &config.Config{
		Player: config.PlayerConfig{
			Type:       "mpv",
			Path:       "mpv",
			Args:       `--mute --title="custom title"`,
			SocketPath: "/tmp/adplay-test",
		},
	}
}

// fakeMPV is the far end of an IPC connection.  It records commands and lets tests push events.
type fakeMPV struct {
	t        *testing.T
	conn     net.Conn
	commands chan []any
}

func newConnectedSurface(t *testing.T) (*MPVSurface, *fakeMPV) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	s := NewMPVSurface(testConfig(), Options{Name: "content", KeepOpen: true})
	s.ipcClient.attach(clientConn)

	f := &fakeMPV{t: t, conn: serverConn, commands: make(chan []any, 32)}
	go func() {
		scanner := bufio.NewScanner(serverConn)
		for scanner.Scan() {
			var msg struct {
				Command []any `json:"command"`
			}
			if err := json.Unmarshal(scanner.Bytes(), &msg); err == nil {
				f.commands <- msg.Command
			}
		}
		close(f.commands)
	}()

	t.Cleanup(func() {
		_ = serverConn.Close()
		_ = clientConn.Close()
	})
	return s, f
}

func (f *fakeMPV) send(line string) {
	f.t.Helper()
	_, err := f.conn.Write([]byte(line + "\n"))
	require.NoError(f.t, err)
}

func (f *fakeMPV) nextCommand() []any {
	f.t.Helper()
	select {
	case cmd := <-f.commands:
		return cmd
	case <-time.After(time.Second):
		f.t.Fatal("timed out waiting for mpv command")
		return nil
	}
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for surface event")
		return Event{}
	}
}

func TestMonitorTranslatesMPVEvents(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, f := newConnectedSurface(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Event, 16)
	done := make(chan struct{})
	go func() {
		s.monitor(ctx, s.ipcClient.Events(), out)
		close(done)
	}()

	f.send(`{"event":"file-loaded"}`)
	f.send(`{"event":"property-change","id":1,"name":"duration","data":null}`)
	f.send(`{"event":"property-change","id":1,"name":"duration","data":120.5}`)
	assert.Equal(t, Event{Type: EventLoaded, Duration: 120.5}, nextEvent(t, out))

	// A second duration report for the same file is not a new load
	f.send(`{"event":"property-change","id":1,"name":"duration","data":121}`)

	f.send(`{"event":"property-change","id":2,"name":"time-pos","data":1.0}`)
	assert.Equal(t, Event{Type: EventProgress, Time: 1.0}, nextEvent(t, out))

	// Below the progress interval, dropped
	f.send(`{"event":"property-change","id":2,"name":"time-pos","data":1.1}`)
	f.send(`{"event":"property-change","id":2,"name":"time-pos","data":1.5}`)
	assert.Equal(t, Event{Type: EventProgress, Time: 1.5}, nextEvent(t, out))

	// Backwards jumps are always reported
	f.send(`{"event":"property-change","id":2,"name":"time-pos","data":0.2}`)
	assert.Equal(t, Event{Type: EventProgress, Time: 0.2}, nextEvent(t, out))

	f.send(`{"event":"property-change","id":3,"name":"paused-for-cache","data":true}`)
	assert.Equal(t, Event{Type: EventBuffer, Buffering: true}, nextEvent(t, out))
	f.send(`{"event":"property-change","id":3,"name":"paused-for-cache","data":true}`)
	f.send(`{"event":"property-change","id":3,"name":"paused-for-cache","data":false}`)
	assert.Equal(t, Event{Type: EventBuffer, Buffering: false}, nextEvent(t, out))

	f.send(`{"event":"playback-restart"}`)
	assert.Equal(t, Event{Type: EventSeeked}, nextEvent(t, out))

	// Command replies never surface as events
	f.send(`{"request_id":3,"error":"success"}`)

	f.send(`{"event":"property-change","id":4,"name":"eof-reached","data":true}`)
	assert.Equal(t, Event{Type: EventEnded}, nextEvent(t, out))
	// end-file after eof-reached must not report a second end
	f.send(`{"event":"end-file","reason":"eof"}`)

	f.send(`{"event":"end-file","reason":"error","file_error":"loading failed"}`)
	ev := nextEvent(t, out)
	assert.Equal(t, EventError, ev.Type)
	assert.ErrorContains(t, ev.Err, "loading failed")

	// mpv going away closes the stream with EventClosed
	require.NoError(t, f.conn.Close())
	assert.Equal(t, Event{Type: EventClosed}, nextEvent(t, out))
	<-done
}

func TestCommandsAreSentAsJSONLines(t *testing.T) {
	s, f := newConnectedSurface(t)

	require.NoError(t, s.Pause())
	assert.Equal(t, []any{"set_property", "pause", true}, f.nextCommand())

	require.NoError(t, s.Play())
	assert.Equal(t, []any{"set_property", "pause", false}, f.nextCommand())

	require.NoError(t, s.Seek(42.5))
	assert.Equal(t, []any{"seek", "42.500", "absolute"}, f.nextCommand())
}

func TestReloadSeeksAfterFileLoaded(t *testing.T) {
	s, f := newConnectedSurface(t)
	s.uri = "https://example.com/video.mp4"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan Event, 16)
	go s.monitor(ctx, s.ipcClient.Events(), out)

	require.NoError(t, s.Reload(33))
	assert.Equal(t, []any{"loadfile", "https://example.com/video.mp4", "replace"}, f.nextCommand())
	assert.Equal(t, []any{"set_property", "pause", false}, f.nextCommand())

	f.send(`{"event":"file-loaded"}`)
	assert.Equal(t, []any{"seek", "33.000", "absolute"}, f.nextCommand())
}

func TestReloadWithoutLoadFails(t *testing.T) {
	s := NewMPVSurface(testConfig(), Options{Name: "content"})
	assert.Error(t, s.Reload(10))
}

func TestCommandBeforeConnect(t *testing.T) {
	s := NewMPVSurface(testConfig(), Options{Name: "ad"})
	assert.ErrorIs(t, s.Play(), ErrNotConnected)
}

func TestArgs(t *testing.T) {
	s := NewMPVSurface(testConfig(), Options{Name: "ad", KeepOpen: false})
	args := s.args("https://example.com/ad.mp4")

	assert.Contains(t, args, "--keep-open=no")
	assert.Contains(t, args, "--mute")
	assert.Contains(t, args, "--title=custom title")
	assert.Equal(t, "https://example.com/ad.mp4", args[len(args)-1])
	assert.True(t, strings.HasPrefix(s.socketPath, "/tmp/adplay-test-ad-"))

	content := NewMPVSurface(testConfig(), Options{Name: "content", KeepOpen: true})
	assert.Contains(t, content.args("x"), "--keep-open=yes")
}

func TestNewRejectsUnknownPlayer(t *testing.T) {
	cfg := testConfig()
	cfg.Player.Type = "vlc"
	_, err := New(cfg, Options{Name: "content"})
	assert.Error(t, err)

	cfg.Player.Type = "mpv"
	s, err := New(cfg, Options{Name: "content"})
	require.NoError(t, err)
	assert.IsType(t, &MPVSurface{}, s)
}
