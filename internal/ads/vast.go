package ads

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxVASTSize bounds a single ad response.  Real responses are a few KB.
const maxVASTSize = 2 * 1024 * 1024

// VAST documents as served by ad servers.  Only the parts needed for linear video ads are modelled.
type vastDoc struct {
	XMLName xml.Name `xml:"VAST"`
	Version string   `xml:"version,attr"`
	Ads     []vastAd `xml:"Ad"`
	Errors  []string `xml:"Error"`
}

type vastAd struct {
	ID       string       `xml:"id,attr"`
	Sequence int          `xml:"sequence,attr"`
	InLine   *vastInLine  `xml:"InLine"`
	Wrapper  *vastWrapper `xml:"Wrapper"`
}

type vastInLine struct {
	AdTitle     string         `xml:"AdTitle"`
	Impressions []string       `xml:"Impression"`
	Errors      []string       `xml:"Error"`
	Creatives   []vastCreative `xml:"Creatives>Creative"`
}

type vastWrapper struct {
	VASTAdTagURI string         `xml:"VASTAdTagURI"`
	Impressions  []string       `xml:"Impression"`
	Errors       []string       `xml:"Error"`
	Creatives    []vastCreative `xml:"Creatives>Creative"`
}

type vastCreative struct {
	ID     string      `xml:"id,attr"`
	Linear *vastLinear `xml:"Linear"`
}

type vastLinear struct {
	SkipOffset     string          `xml:"skipoffset,attr"`
	Duration       string          `xml:"Duration"`
	TrackingEvents []vastTracking  `xml:"TrackingEvents>Tracking"`
	MediaFiles     []vastMediaFile `xml:"MediaFiles>MediaFile"`
	ClickThrough   string          `xml:"VideoClicks>ClickThrough"`
	ClickTracking  []string        `xml:"VideoClicks>ClickTracking"`
}

type vastTracking struct {
	Event string `xml:"event,attr"`
	URL   string `xml:",chardata"`
}

type vastMediaFile struct {
	Delivery     string `xml:"delivery,attr"`
	Type         string `xml:"type,attr"`
	Width        int    `xml:"width,attr"`
	Height       int    `xml:"height,attr"`
	Bitrate      int    `xml:"bitrate,attr"`
	APIFramework string `xml:"apiFramework,attr"`
	URL          string `xml:",chardata"`
}

// Ad is a playable linear ad with all tracking collected along its wrapper chain
type Ad struct {
	ID       string
	Title    string
	Sequence int
	MediaURL string
	Duration time.Duration
	// Skippable is false when the creative has no skipoffset
	Skippable  bool
	SkipOffset time.Duration

	Impressions  []string
	ErrorURLs    []string
	ClickThrough string
	// Tracking maps VAST tracking event names (start, firstQuartile, complete, skip, ...) to beacon URLs
	Tracking map[string][]string
}

// Pod is the ordered list of ads returned for one ad tag
type Pod []Ad

// decodeVAST parses a VAST response body
func decodeVAST(r io.Reader) (*vastDoc, error) {
	var doc vastDoc
	dec := xml.NewDecoder(io.LimitReader(r, maxVASTSize))
	dec.Strict = true
	// No entity expansion
	dec.Entity = map[string]string{}

	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVAST, err)
	}
	if doc.XMLName.Local != "VAST" {
		return nil, fmt.Errorf("%w: missing VAST root element", ErrInvalidVAST)
	}
	return &doc, nil
}

// orderedAds returns the ads of a pod in play order.  VAST 3 ads with a sequence attribute form a pod; without
// sequences the first ad is the one to play.
func (d *vastDoc) orderedAds() []vastAd {
	var pod []vastAd
	for _, ad := range d.Ads {
		if ad.Sequence > 0 {
			pod = append(pod, ad)
		}
	}
	if len(pod) == 0 {
		return d.Ads
	}
	sort.SliceStable(pod, func(i, j int) bool { return pod[i].Sequence < pod[j].Sequence })
	return pod
}

// linear returns the first linear creative
func linear(creatives []vastCreative) *vastLinear {
	for _, c := range creatives {
		if c.Linear != nil {
			return c.Linear
		}
	}
	return nil
}

// pickMedia chooses the media file mpv should play.  Progressive mp4 is preferred, VPAID and flash creatives are
// never chosen.
func pickMedia(files []vastMediaFile) (vastMediaFile, bool) {
	var best vastMediaFile
	bestScore := -1
	for _, f := range files {
		f.URL = strings.TrimSpace(f.URL)
		if f.URL == "" || strings.EqualFold(f.APIFramework, "VPAID") {
			continue
		}
		mimeType := strings.ToLower(f.Type)
		if strings.Contains(mimeType, "javascript") || strings.Contains(mimeType, "flash") {
			continue
		}

		score := 0
		if mimeType == "video/mp4" {
			score += 4
		}
		if f.Delivery == "" || strings.EqualFold(f.Delivery, "progressive") {
			score += 2
		}
		if score > bestScore || (score == bestScore && f.Width > best.Width) {
			best, bestScore = f, score
		}
	}
	return best, bestScore >= 0
}

// parseTimecode parses a VAST HH:MM:SS or HH:MM:SS.mmm value
func parseTimecode(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timecode %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timecode %q: %w", s, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid timecode %q: %w", s, err)
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timecode %q: %w", s, err)
	}
	if hours < 0 || minutes < 0 || seconds < 0 {
		return 0, fmt.Errorf("invalid timecode %q", s)
	}
	total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	return total + time.Duration(seconds*float64(time.Second)), nil
}

// parseSkipOffset handles both the timecode and the percentage form of skipoffset.  The percentage needs the
// creative duration.
func parseSkipOffset(s string, duration time.Duration) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(pct, 64)
		if err != nil || v < 0 || v > 100 {
			return 0, false
		}
		return time.Duration(float64(duration) * v / 100), true
	}
	offset, err := parseTimecode(s)
	if err != nil {
		return 0, false
	}
	return offset, true
}

func trimAll(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
