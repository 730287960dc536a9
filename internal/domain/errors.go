package domain

import "errors"

var (
	// ErrFeedUnavailable marks transport, status, or decode failures of the server list.
	ErrFeedUnavailable = errors.New("server feed unavailable")
	// ErrChannelUnresolvable marks a rule target channel that cannot be reached.
	ErrChannelUnresolvable = errors.New("channel unresolvable")
	// ErrStoreUnavailable marks rule store read failures.
	ErrStoreUnavailable = errors.New("rule store unavailable")
)
