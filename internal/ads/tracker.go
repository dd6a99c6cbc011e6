package ads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PizzaHomicide/adplay/internal/log"
)

const beaconTimeout = 5 * time.Second

// Macros are the values substituted into tracking URLs
type Macros struct {
	ErrorCode int
	Playhead  time.Duration
	Asset     string
}

// Tracker fires VAST tracking beacons.  Beacons are best effort: failures are logged and never reported to the
// caller.
type Tracker struct {
	http *http.Client
	now  func() time.Time
	wg   sync.WaitGroup
}

// NewTracker creates a tracker sharing the given HTTP client
func NewTracker(client *http.Client) *Tracker {
	if client == nil {
		client = &http.Client{Timeout: beaconTimeout}
	}
	return &Tracker{http: client, now: time.Now}
}

// Fire sends a GET request to every URL in the background
func (t *Tracker) Fire(event string, urls []string, m Macros) {
	for _, raw := range urls {
		target := t.expand(raw, m)
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if err := t.ping(target); err != nil {
				log.Debug("Tracking beacon failed", "event", event, "url", target, "error", err)
				return
			}
			log.Trace("Tracking beacon sent", "event", event, "url", target)
		}()
	}
}

// Wait blocks until every beacon in flight has completed
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) ping(target string) error {
	// Beacons outlive the ad that fired them, e.g. the skip beacon is sent while the ad is being stopped
	ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("beacon returned status %d", resp.StatusCode)
	}
	return nil
}

func (t *Tracker) expand(raw string, m Macros) string {
	now := t.now()
	code := ""
	if m.ErrorCode > 0 {
		code = strconv.Itoa(m.ErrorCode)
	}
	return strings.NewReplacer(
		"[ERRORCODE]", code,
		"[CONTENTPLAYHEAD]", formatPlayhead(m.Playhead),
		"[ADPLAYHEAD]", formatPlayhead(m.Playhead),
		"[ASSETURI]", escape(m.Asset),
		"[CACHEBUSTING]", cacheBuster(now),
		"[TIMESTAMP]", escape(now.UTC().Format(time.RFC3339)),
	).Replace(raw)
}

// formatPlayhead renders HH:MM:SS.mmm
func formatPlayhead(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
