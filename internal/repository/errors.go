package repository

import "errors"

var (
	// ErrJobNotFound is returned for lookups against an unknown job or
	// conversation key.
	ErrJobNotFound = errors.New("job not found")

	// ErrDriverGone signals that the underlying browser session died.
	// The locator aborts on it; the orchestrator restarts the session
	// rather than retrying in place.
	ErrDriverGone = errors.New("fetch driver session is gone")

	// ErrNavigationFailed wraps page-load failures in the fetch driver.
	ErrNavigationFailed = errors.New("navigation failed")

	// ErrCacheMiss is returned when no selector cache has been
	// persisted yet.
	ErrCacheMiss = errors.New("selector cache not found")
)
