// Package flood provides windowed attempt counters used to throttle
// brute-force verification attempts. Counters are keyed by an event
// name plus an identifier (an IP address or a user id) and only count
// events inside a trailing time window.
package flood

import "time"

// Guard records and evaluates flood events.
//
// Implementations must keep counters monotonically non-decreasing
// within a window under concurrent registration; losing events loosens
// rate limiting and is not acceptable, while an occasional extra event
// only tightens it.
type Guard interface {
	// IsAllowed reports whether fewer than threshold events for
	// (name, identifier) fall within the trailing window.
	IsAllowed(name string, threshold int, window time.Duration, identifier string) (bool, error)

	// Register records one event for (name, identifier) at the current
	// time. Implementations bound storage of events older than window.
	Register(name string, window time.Duration, identifier string) error

	// Clear removes all events for (name, identifier).
	Clear(name, identifier string) error
}
