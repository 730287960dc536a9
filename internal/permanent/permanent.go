package permanent

import (
	"errors"
	"fmt"
	"net/http"
)

// Error marks delivery failures that another attempt cannot fix.
// Params: wrapped root cause and optional HTTP status reported by the platform.
// Returns: typed non-retryable error marker.
type Error struct {
	Err    error
	Status int
}

// Error returns wrapped error message.
func (e Error) Error() string {
	if e.Err == nil {
		if e.Status > 0 {
			return fmt.Sprintf("permanent failure: status %d", e.Status)
		}
		return "permanent failure"
	}
	return e.Err.Error()
}

// Unwrap exposes wrapped cause for errors.Is/errors.As.
func (e Error) Unwrap() error {
	return e.Err
}

// Mark wraps error with permanent marker.
// Params: source error.
// Returns: wrapped error or nil.
func Mark(err error) error {
	if err == nil {
		return nil
	}
	return Error{Err: err}
}

// FromStatus marks err permanent when HTTP status is a client error other than 408/429.
// Params: platform response status and the error built for it.
// Returns: marked error for non-retryable statuses, err unchanged otherwise.
func FromStatus(status int, err error) error {
	if err == nil {
		return nil
	}
	if !IsPermanentStatus(status) {
		return err
	}
	return Error{Err: err, Status: status}
}

// IsPermanentStatus reports whether repeating a request with this status is pointless.
// Params: HTTP status code.
// Returns: true for 4xx except request timeout and rate limit.
func IsPermanentStatus(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	return status != http.StatusRequestTimeout && status != http.StatusTooManyRequests
}

// Is reports whether error chain carries permanent marker.
// Params: candidate error.
// Returns: true when retries must stop.
func Is(err error) bool {
	if err == nil {
		return false
	}
	var tagged Error
	return errors.As(err, &tagged)
}

// StatusOf returns HTTP status attached to the permanent marker.
// Params: candidate error.
// Returns: status code or zero when absent.
func StatusOf(err error) int {
	var tagged Error
	if errors.As(err, &tagged) {
		return tagged.Status
	}
	return 0
}
