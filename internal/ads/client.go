package ads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PizzaHomicide/adplay/internal/config"
	"github.com/PizzaHomicide/adplay/internal/log"
)

const (
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxWrapperDepth = 5
	userAgent              = "adplay (VAST client)"
)

// Client fetches ad tags and resolves them to playable ads, following wrappers
type Client struct {
	http     *http.Client
	maxDepth int
	now      func() time.Time
}

// NewClient creates a VAST client from the ads configuration
func NewClient(cfg config.AdsConfig) *Client {
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	depth := cfg.MaxWrapperDepth
	if depth <= 0 {
		depth = defaultMaxWrapperDepth
	}

	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          8,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   3 * time.Second,
				ResponseHeaderTimeout: timeout,
			},
		},
		maxDepth: depth,
		now:      time.Now,
	}
}

// Resolve fetches tagURL and returns the ads to play, in order.  Wrapper tracking is merged into the ads it wraps.
func (c *Client) Resolve(ctx context.Context, tagURL string) (Pod, error) {
	return c.resolve(ctx, tagURL, 0, nil)
}

// resolve walks one level of the wrapper chain.  parent carries the tracking collected from the wrappers above.
func (c *Client) resolve(ctx context.Context, tagURL string, depth int, parent *Ad) (Pod, error) {
	if depth > c.maxDepth {
		return nil, fmt.Errorf("%w: more than %d wrappers", ErrWrapperLimit, c.maxDepth)
	}

	doc, err := c.fetch(ctx, tagURL)
	if err != nil {
		return nil, err
	}
	if len(doc.Ads) == 0 {
		return nil, ErrNoAds
	}

	var pod Pod
	var lastErr error
	for _, raw := range doc.orderedAds() {
		ads, err := c.resolveAd(ctx, raw, depth, parent)
		if err != nil {
			// Wrapper limits and cancellation end the whole request, anything else only drops this ad
			if errors.Is(err, ErrWrapperLimit) || ctx.Err() != nil {
				return nil, err
			}
			log.Debug("Skipping unplayable ad", "ad_id", raw.ID, "depth", depth, "error", err)
			lastErr = err
			continue
		}
		pod = append(pod, ads...)
		if raw.Sequence == 0 {
			// Stand-alone ads are alternatives, only the first playable one is used
			break
		}
	}

	if len(pod) == 0 {
		if lastErr == nil {
			lastErr = ErrNoLinearAd
		}
		return nil, lastErr
	}
	return pod, nil
}

func (c *Client) resolveAd(ctx context.Context, raw vastAd, depth int, parent *Ad) (Pod, error) {
	switch {
	case raw.Wrapper != nil:
		w := raw.Wrapper
		next := strings.TrimSpace(w.VASTAdTagURI)
		if next == "" {
			return nil, fmt.Errorf("%w: wrapper %q has no VASTAdTagURI", ErrNoAds, raw.ID)
		}
		carried := mergeTracking(parent, w.Impressions, w.Errors, linear(w.Creatives))
		return c.resolve(ctx, next, depth+1, carried)

	case raw.InLine != nil:
		in := raw.InLine
		lin := linear(in.Creatives)
		if lin == nil {
			return nil, ErrNoLinearAd
		}
		media, ok := pickMedia(lin.MediaFiles)
		if !ok {
			return nil, fmt.Errorf("%w: no supported media file in ad %q", ErrNoLinearAd, raw.ID)
		}

		ad := mergeTracking(parent, in.Impressions, in.Errors, lin)
		ad.ID = raw.ID
		ad.Title = strings.TrimSpace(in.AdTitle)
		ad.Sequence = raw.Sequence
		ad.MediaURL = media.URL
		ad.ClickThrough = strings.TrimSpace(lin.ClickThrough)
		if d, err := parseTimecode(lin.Duration); err == nil {
			ad.Duration = d
		}
		ad.SkipOffset, ad.Skippable = parseSkipOffset(lin.SkipOffset, ad.Duration)
		return Pod{*ad}, nil

	default:
		return nil, ErrNoLinearAd
	}
}

// mergeTracking returns a copy of parent with the given beacons added
func mergeTracking(parent *Ad, impressions, errorURLs []string, lin *vastLinear) *Ad {
	ad := &Ad{Tracking: map[string][]string{}}
	if parent != nil {
		ad.Impressions = append(ad.Impressions, parent.Impressions...)
		ad.ErrorURLs = append(ad.ErrorURLs, parent.ErrorURLs...)
		for event, urls := range parent.Tracking {
			ad.Tracking[event] = append([]string(nil), urls...)
		}
	}
	ad.Impressions = append(ad.Impressions, trimAll(impressions)...)
	ad.ErrorURLs = append(ad.ErrorURLs, trimAll(errorURLs)...)
	if lin != nil {
		for _, t := range lin.TrackingEvents {
			if u := strings.TrimSpace(t.URL); u != "" && t.Event != "" {
				ad.Tracking[t.Event] = append(ad.Tracking[t.Event], u)
			}
		}
		if clicks := trimAll(lin.ClickTracking); len(clicks) > 0 {
			ad.Tracking["click"] = append(ad.Tracking["click"], clicks...)
		}
	}
	return ad
}

// fetch downloads and parses one VAST document
func (c *Client) fetch(ctx context.Context, tagURL string) (*vastDoc, error) {
	tagURL = c.expandTag(tagURL)
	log.Debug("Fetching ad tag", "url", tagURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tagURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating ad request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error requesting ad tag: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, ErrNoAds
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ad server returned status %d", resp.StatusCode)
	}

	return decodeVAST(resp.Body)
}

// expandTag fills the cache busting parameters ad servers expect to be set by the player
func (c *Client) expandTag(tagURL string) string {
	now := c.now()
	tagURL = strings.NewReplacer(
		"[TIMESTAMP]", url.QueryEscape(now.UTC().Format(time.RFC3339)),
		"[CACHEBUSTING]", cacheBuster(now),
	).Replace(tagURL)

	u, err := url.Parse(tagURL)
	if err != nil {
		return tagURL
	}
	q := u.Query()
	if v, ok := q["correlator"]; ok && (len(v) == 0 || v[0] == "") {
		q.Set("correlator", strconv.FormatInt(now.UnixNano(), 10))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// cacheBuster is the 8 digit random number VAST asks for, derived from the clock
func cacheBuster(now time.Time) string {
	return fmt.Sprintf("%08d", now.UnixNano()%100000000)
}

func escape(s string) string {
	return url.QueryEscape(s)
}
