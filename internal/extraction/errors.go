package extraction

import "errors"

// Error kinds surfaced or consumed by the pipeline. Callers match them with errors.Is.
var (
	// ErrInvalidURL means the URL has no parsable host; no network call is made.
	ErrInvalidURL = errors.New("invalid url")
	// ErrFetch is a transport failure or non-success status on the direct path.
	ErrFetch = errors.New("direct fetch failed")
	// ErrRender is a failure of the headless browser path.
	ErrRender = errors.New("headless render failed")
	// ErrRenderFailure is the terminal error recorded when the headless tier failed.
	ErrRenderFailure = errors.New("render failure")
	// ErrEmptyResult means extraction produced no usable text.
	ErrEmptyResult = errors.New("no content extracted")
	// ErrInsufficientContent means text was extracted but fell below the acceptance threshold.
	ErrInsufficientContent = errors.New("insufficient content extracted")
	// ErrRateLimitTimeout means admission was not granted within the caller's budget.
	ErrRateLimitTimeout = errors.New("rate limit timeout")
	// ErrRobotsDisallowed means robots.txt forbids fetching the URL.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	// ErrRendererDisabled indicates headless rendering has been disabled via configuration.
	ErrRendererDisabled = errors.New("renderer disabled")
)

// IsHardFailure reports whether err must be surfaced to the caller instead of
// being folded into a Result.
func IsHardFailure(err error) bool {
	return errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrRateLimitTimeout)
}
