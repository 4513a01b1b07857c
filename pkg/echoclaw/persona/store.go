package persona

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"
)

// Store owns the in-memory Profile and flushes it to a ProfileStore after
// every mutation. The in-memory profile is authoritative for the process
// lifetime; persistence is best effort.
type Store struct {
	backend ProfileStore
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	profile *Profile
	version uint64

	// saveMu serializes writes to the backend; saved is the version of the
	// last snapshot written. Readers never take it.
	saveMu sync.Mutex
	saved  uint64
}

// NewStore creates a persona store backed by the given ProfileStore.
// The profile starts empty until Load is called.
func NewStore(backend ProfileStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger.With("component", "persona"),
		now:     time.Now,
		profile: &Profile{},
	}
}

// Load replaces the in-memory profile with the persisted one. A missing or
// unreadable profile leaves an empty profile in place and is not an error.
func (s *Store) Load(ctx context.Context) {
	loaded := &Profile{}

	if s.backend != nil {
		p, err := s.backend.Load(ctx)
		switch {
		case errors.Is(err, ErrNoProfile):
			s.logger.Debug("no saved persona profile, starting empty")
		case err != nil:
			s.logger.Warn("failed to load persona profile, starting empty", "error", err)
		case p != nil:
			loaded = p.Clone()
			loaded.normalize()
		}
	}

	s.mu.Lock()
	s.profile = loaded
	s.mu.Unlock()

	s.logger.Info("persona profile loaded",
		"samples", len(loaded.StyleSamples),
		"history", len(loaded.MessageHistory))
}

// Observe records one of the owner's own messages. Messages shorter than
// MinObservedLength are ignored; longer than MinStyleSampleLength also
// become style samples. A snapshot is saved after the in-memory update,
// outside the profile lock, so readers never wait on storage; a failed save
// is logged and otherwise ignored.
func (s *Store) Observe(ctx context.Context, text string) {
	n := utf8.RuneCountInString(text)
	if n < MinObservedLength {
		return
	}

	s.mu.Lock()
	if n > MinStyleSampleLength {
		s.profile.StyleSamples = appendCapped(s.profile.StyleSamples, text, MaxStyleSamples)
	}
	s.profile.MessageHistory = appendCapped(s.profile.MessageHistory, HistoryEntry{
		Role:      RoleUser,
		Content:   text,
		Timestamp: s.now(),
	}, MaxHistory)
	s.version++
	version := s.version
	snapshot := s.profile.Clone()
	s.mu.Unlock()

	if s.backend != nil {
		s.persist(ctx, version, snapshot)
	}
}

// persist writes snapshot unless a newer one has already been written.
func (s *Store) persist(ctx context.Context, version uint64, snapshot *Profile) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if version <= s.saved {
		s.logger.Debug("skipping stale persona snapshot", "version", version, "saved", s.saved)
		return
	}
	if err := s.backend.Save(ctx, snapshot); err != nil {
		s.logger.Error("failed to persist persona profile", "error", err)
		return
	}
	s.saved = version
}

// SampleCount returns the number of stored style samples.
func (s *Store) SampleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profile.StyleSamples)
}

// Eligible reports whether enough samples exist for persona replies.
func (s *Store) Eligible() bool {
	return s.SampleCount() >= MinSamplesForPersona
}

// StyleSamples returns up to limit samples in insertion order, oldest first.
func (s *Store) StyleSamples(limit int) []string {
	if limit <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	samples := s.profile.StyleSamples
	if len(samples) > limit {
		samples = samples[:limit]
	}
	return append([]string(nil), samples...)
}

// Snapshot returns a deep copy of the current profile.
func (s *Store) Snapshot() *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Clone()
}
