package planning

import (
	"errors"
	"fmt"
)

// Planning failures fall into a small taxonomy that the API layer maps to
// HTTP status codes. Everything below the API speaks these errors.
var (
	// ErrInvalidInput covers bad airport codes, infeasible fuel or leg
	// constraints, and altitudes below the terrain safety margin.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDataUnavailable covers missing static datasets (e.g., airspace file).
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrUpstreamService covers failures of external providers.
	ErrUpstreamService = errors.New("upstream service error")

	// ErrCapacityExceeded means the admission gate is saturated.
	ErrCapacityExceeded = errors.New("planner at capacity; try again shortly")

	// ErrDeadlineExceeded means the global or a phase deadline tripped.
	ErrDeadlineExceeded = errors.New("planning exceeded server timeout")

	// ErrCancelled means the client disconnected or cancelled explicitly.
	ErrCancelled = errors.New("planning cancelled")
)

// StatusCode maps a taxonomy error to the HTTP status the API reports.
// 499 mirrors the nginx convention for client-closed requests.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrInvalidInput):
		return 400
	case errors.Is(err, ErrCancelled):
		return 499
	case errors.Is(err, ErrCapacityExceeded):
		return 503
	case errors.Is(err, ErrDataUnavailable):
		return 503
	case errors.Is(err, ErrUpstreamService):
		return 503
	case errors.Is(err, ErrDeadlineExceeded):
		return 504
	default:
		return 500
	}
}

// InvalidInputf wraps ErrInvalidInput with a caller-facing detail message.
func InvalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Detail extracts the human-readable portion of a taxonomy error, falling
// back to the full error string.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
