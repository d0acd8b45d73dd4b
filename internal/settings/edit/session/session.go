// Package session holds the per-moderator "awaiting replacement text"
// state of the setting editor.
//
// A moderator has at most one pending edit. Begin overwrites any earlier
// one. Claim deletes the entry only if it still targets the expected key,
// so two text messages racing for the same edit apply it once.
package session

import "time"

// DefaultTTL bounds how long an unanswered edit prompt stays active.
const DefaultTTL = 15 * time.Minute
