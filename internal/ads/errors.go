package ads

import (
	"context"
	"errors"
)

var (
	// ErrNoAds is returned when the ad server had nothing to serve for a tag
	ErrNoAds = errors.New("no ads returned")
	// ErrNoLinearAd is returned when none of the ads contains a playable linear creative
	ErrNoLinearAd = errors.New("no playable linear ad")
	// ErrWrapperLimit is returned when a wrapper chain is deeper than the configured limit
	ErrWrapperLimit = errors.New("wrapper limit reached")
	// ErrInvalidVAST is returned for responses that are not VAST XML
	ErrInvalidVAST = errors.New("invalid VAST response")
	// ErrStartTimeout is returned when the ad media does not start in time
	ErrStartTimeout = errors.New("ad did not start in time")
	// ErrNotSkippable is returned by Skip before the skip offset or for creatives that cannot be skipped
	ErrNotSkippable = errors.New("ad is not skippable yet")
	// ErrNoActiveAd is returned by Skip when no ad is playing
	ErrNoActiveAd = errors.New("no ad playing")
	// ErrPlayerClosed is returned by Play after Close
	ErrPlayerClosed = errors.New("ad player closed")
)

// VAST error codes reported through the [ERRORCODE] macro
const (
	codeXMLParse        = 100
	codeWrapperTimeout  = 301
	codeWrapperLimit    = 302
	codeNoAdsAfterWrap  = 303
	codeLinearTimeout   = 402
	codeNoSupportedFile = 403
	codeMediaProblem    = 405
	codeUndefined       = 900
)

// errorCode maps an ad failure to the VAST error code reported to the ad server
func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidVAST):
		return codeXMLParse
	case errors.Is(err, context.DeadlineExceeded):
		return codeWrapperTimeout
	case errors.Is(err, ErrWrapperLimit):
		return codeWrapperLimit
	case errors.Is(err, ErrNoAds):
		return codeNoAdsAfterWrap
	case errors.Is(err, ErrStartTimeout):
		return codeLinearTimeout
	case errors.Is(err, ErrNoLinearAd):
		return codeNoSupportedFile
	default:
		return codeUndefined
	}
}
