// Package persona keeps a bounded, rolling profile of the account owner's own
// writing. Style samples feed the persona prompt that lets the assistant
// answer in the owner's voice; the message history is kept for context.
//
// The profile is process-wide state with an explicit lifecycle:
// Load once at startup, mutate through Observe, persist after every mutation.
package persona

import (
	"context"
	"errors"
	"time"
)

const (
	// MaxStyleSamples caps the style sample log (oldest dropped first).
	MaxStyleSamples = 50

	// MaxHistory caps the message history log (oldest dropped first).
	MaxHistory = 100

	// MinObservedLength is the minimum length (in characters) of a message
	// worth observing at all.
	MinObservedLength = 10

	// MinStyleSampleLength is the length a message must exceed to be kept
	// as a style sample.
	MinStyleSampleLength = 30

	// MinSamplesForPersona is the number of style samples needed before
	// persona replies are allowed.
	MinSamplesForPersona = 5

	// RoleUser is the role recorded for observed messages.
	RoleUser = "user"
)

// ErrNoProfile is returned by a ProfileStore when nothing has been saved yet.
var ErrNoProfile = errors.New("persona: no saved profile")

// HistoryEntry is one observed message.
type HistoryEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Profile is the owner's rolling persona.
type Profile struct {
	StyleSamples   []string       `json:"styleSamples"`
	MessageHistory []HistoryEntry `json:"messageHistory"`
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return &Profile{}
	}
	out := &Profile{}
	if len(p.StyleSamples) > 0 {
		out.StyleSamples = append([]string(nil), p.StyleSamples...)
	}
	if len(p.MessageHistory) > 0 {
		out.MessageHistory = append([]HistoryEntry(nil), p.MessageHistory...)
	}
	return out
}

// normalize enforces the caps on a profile read from storage, keeping the
// most recent entries.
func (p *Profile) normalize() {
	if n := len(p.StyleSamples); n > MaxStyleSamples {
		p.StyleSamples = append([]string(nil), p.StyleSamples[n-MaxStyleSamples:]...)
	}
	if n := len(p.MessageHistory); n > MaxHistory {
		p.MessageHistory = append([]HistoryEntry(nil), p.MessageHistory[n-MaxHistory:]...)
	}
}

// appendCapped appends v and drops the oldest entries beyond limit.
func appendCapped[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if over := len(s) - limit; over > 0 {
		// Copy down instead of reslicing so the backing array doesn't grow forever.
		n := copy(s, s[over:])
		clear(s[n:])
		s = s[:n]
	}
	return s
}

// ProfileStore persists a Profile.
type ProfileStore interface {
	// Load returns the saved profile, or ErrNoProfile when none exists.
	Load(ctx context.Context) (*Profile, error)

	// Save replaces the saved profile.
	Save(ctx context.Context, p *Profile) error
}
