// Package system provides a real clock implementation.
package system

import "time"

// Clock implements watch.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time at millisecond precision, the resolution card
// timestamps are rendered with.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
