package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryBackend is an in-memory ProfileStore that counts saves.
type memoryBackend struct {
	mu      sync.Mutex
	saved   *Profile
	saves   int
	loadErr error
	saveErr error
}

func (m *memoryBackend) Load(_ context.Context) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.saved == nil {
		return nil, ErrNoProfile
	}
	return m.saved.Clone(), nil
}

func (m *memoryBackend) Save(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = p.Clone()
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return t0 }
}

// sample returns a distinct message longer than MinStyleSampleLength.
func sample(i int) string {
	return fmt.Sprintf("this is style sample number %03d from the owner", i)
}

func TestObserve_ShortTextIgnored(t *testing.T) {
	backend := &memoryBackend{}
	s := NewStore(backend, testLogger())

	for _, text := range []string{"", "hi", "ok thanks", "123456789"} {
		s.Observe(context.Background(), text)
	}

	snap := s.Snapshot()
	assert.Empty(t, snap.StyleSamples)
	assert.Empty(t, snap.MessageHistory)
	assert.Equal(t, 0, backend.saves, "short text must not be persisted")
}

func TestObserve_MediumTextOnlyHistory(t *testing.T) {
	backend := &memoryBackend{}
	s := NewStore(backend, testLogger())
	s.now = fixedClock()

	texts := []string{
		"exactly 10",                     // 10 runes
		"a message of thirty chars....",  // 29 runes
		"a message of exactly thirty ch", // 30 runes
	}
	for _, text := range texts {
		s.Observe(context.Background(), text)
	}

	snap := s.Snapshot()
	assert.Empty(t, snap.StyleSamples)
	require.Len(t, snap.MessageHistory, len(texts))
	for i, e := range snap.MessageHistory {
		assert.Equal(t, RoleUser, e.Role)
		assert.Equal(t, texts[i], e.Content)
		assert.Equal(t, fixedClock()(), e.Timestamp)
	}
	assert.Equal(t, len(texts), backend.saves)
}

func TestObserve_LongTextBecomesSample(t *testing.T) {
	s := NewStore(&memoryBackend{}, testLogger())

	text := strings.Repeat("x", 31)
	s.Observe(context.Background(), text)

	assert.Equal(t, 1, s.SampleCount())
	assert.Equal(t, []string{text}, s.StyleSamples(5))
	assert.Len(t, s.Snapshot().MessageHistory, 1)
}

func TestObserve_CountsRunesNotBytes(t *testing.T) {
	s := NewStore(&memoryBackend{}, testLogger())

	// 9 runes, 18 bytes.
	s.Observe(context.Background(), "ééééééééé")
	assert.Empty(t, s.Snapshot().MessageHistory)
}

func TestObserve_FIFOEviction(t *testing.T) {
	s := NewStore(&memoryBackend{}, testLogger())

	const total = 130
	for i := 0; i < total; i++ {
		s.Observe(context.Background(), sample(i))
	}

	snap := s.Snapshot()
	require.Len(t, snap.StyleSamples, MaxStyleSamples)
	require.Len(t, snap.MessageHistory, MaxHistory)

	want := make([]string, 0, MaxStyleSamples)
	for i := total - MaxStyleSamples; i < total; i++ {
		want = append(want, sample(i))
	}
	if diff := cmp.Diff(want, snap.StyleSamples); diff != "" {
		t.Errorf("style samples mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, sample(total-MaxHistory), snap.MessageHistory[0].Content)
	assert.Equal(t, sample(total-1), snap.MessageHistory[MaxHistory-1].Content)
}

func TestStyleSamples_OldestFirst(t *testing.T) {
	s := NewStore(&memoryBackend{}, testLogger())
	for i := 0; i < 8; i++ {
		s.Observe(context.Background(), sample(i))
	}

	assert.Equal(t, []string{sample(0), sample(1), sample(2), sample(3), sample(4)}, s.StyleSamples(5))
	assert.Len(t, s.StyleSamples(100), 8)
	assert.Nil(t, s.StyleSamples(0))

	// The returned slice is a copy.
	got := s.StyleSamples(1)
	got[0] = "mutated"
	assert.Equal(t, sample(0), s.StyleSamples(1)[0])
}

func TestEligible(t *testing.T) {
	s := NewStore(&memoryBackend{}, testLogger())
	for i := 0; i < MinSamplesForPersona-1; i++ {
		s.Observe(context.Background(), sample(i))
	}
	assert.False(t, s.Eligible())

	s.Observe(context.Background(), sample(99))
	assert.True(t, s.Eligible())
}

func TestObserve_SaveFailureKeepsMemoryState(t *testing.T) {
	backend := &memoryBackend{saveErr: errors.New("disk full")}
	s := NewStore(backend, testLogger())

	s.Observe(context.Background(), sample(1))

	assert.Equal(t, 1, backend.saves)
	assert.Equal(t, 1, s.SampleCount())
}

// gatedBackend holds every Save until release is closed.
type gatedBackend struct {
	memoryBackend
	started chan struct{}
	release chan struct{}
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gatedBackend) Save(ctx context.Context, p *Profile) error {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.release
	return g.memoryBackend.Save(ctx, p)
}

func TestObserve_ReadersDoNotWaitOnSave(t *testing.T) {
	backend := newGatedBackend()
	s := NewStore(backend, testLogger())

	done := make(chan struct{})
	go func() {
		s.Observe(context.Background(), sample(0))
		close(done)
	}()

	select {
	case <-backend.started:
	case <-time.After(2 * time.Second):
		t.Fatal("save never started")
	}

	counts := make(chan int, 1)
	go func() {
		_ = s.StyleSamples(5)
		_ = s.Snapshot()
		counts <- s.SampleCount()
	}()

	select {
	case n := <-counts:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("reads blocked behind a pending save")
	}

	close(backend.release)
	<-done

	saved, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, saved.StyleSamples, 1)
}

func TestObserve_LatestSnapshotIsPersisted(t *testing.T) {
	backend := newGatedBackend()
	s := NewStore(backend, testLogger())
	s.now = fixedClock()

	var wg sync.WaitGroup
	observe := func(i int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Observe(context.Background(), sample(i))
		}()
	}

	observe(0)
	<-backend.started
	observe(1)
	observe(2)

	require.Eventually(t, func() bool { return s.SampleCount() == 3 }, 2*time.Second, 5*time.Millisecond)
	close(backend.release)
	wg.Wait()

	saved, err := backend.Load(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(s.Snapshot(), saved); diff != "" {
		t.Errorf("persisted profile is not the latest (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing profile starts empty", func(t *testing.T) {
		s := NewStore(&memoryBackend{}, testLogger())
		s.Load(context.Background())
		assert.Equal(t, 0, s.SampleCount())
	})

	t.Run("corrupt profile starts empty", func(t *testing.T) {
		s := NewStore(&memoryBackend{loadErr: errors.New("bad json")}, testLogger())
		s.Observe(context.Background(), sample(1))
		s.Load(context.Background())
		assert.Equal(t, 0, s.SampleCount())
	})

	t.Run("nil backend", func(t *testing.T) {
		s := NewStore(nil, testLogger())
		s.Load(context.Background())
		s.Observe(context.Background(), sample(1))
		assert.Equal(t, 1, s.SampleCount())
	})

	t.Run("oversized profile is trimmed to caps", func(t *testing.T) {
		p := &Profile{}
		for i := 0; i < MaxStyleSamples+5; i++ {
			p.StyleSamples = append(p.StyleSamples, sample(i))
		}
		s := NewStore(&memoryBackend{saved: p}, testLogger())
		s.Load(context.Background())

		got := s.StyleSamples(MaxStyleSamples + 5)
		require.Len(t, got, MaxStyleSamples)
		assert.Equal(t, sample(5), got[0])
	})

	t.Run("twice yields identical profile", func(t *testing.T) {
		backend := &memoryBackend{}
		writer := NewStore(backend, testLogger())
		for i := 0; i < 7; i++ {
			writer.Observe(context.Background(), sample(i))
		}

		s := NewStore(backend, testLogger())
		s.Load(context.Background())
		first := s.Snapshot()
		s.Load(context.Background())
		second := s.Snapshot()

		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("profiles differ after reload (-first +second):\n%s", diff)
		}
		assert.Equal(t, 7, len(first.StyleSamples))
	})
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "persona.json")
	fs := NewFileStore(path)

	_, err := fs.Load(context.Background())
	require.ErrorIs(t, err, ErrNoProfile)

	s := NewStore(fs, testLogger())
	s.now = fixedClock()
	for i := 0; i < 3; i++ {
		s.Observe(context.Background(), sample(i))
	}

	reloaded := NewStore(fs, testLogger())
	reloaded.Load(context.Background())
	if diff := cmp.Diff(s.Snapshot(), reloaded.Snapshot()); diff != "" {
		t.Errorf("reloaded profile mismatch (-want +got):\n%s", diff)
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	t.Run("corrupt file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
		_, err := fs.Load(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoProfile)
	})
}
