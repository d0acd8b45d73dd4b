// Package throttle limits how many submissions one person can start within
// a sliding window. Moderators are flooded otherwise: every submission is
// copied to each of them.
package throttle

import "time"

// Result describes the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the oldest counted submission leaves the window.
	ResetAt time.Time
}
