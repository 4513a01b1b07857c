package persona

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/storage"
)

func TestSQLiteStore(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "echoclaw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	backend := NewSQLiteStore(db)

	_, err = backend.Load(context.Background())
	require.ErrorIs(t, err, ErrNoProfile)

	s := NewStore(backend, testLogger())
	s.now = fixedClock()
	s.Observe(context.Background(), "short but observed")
	for i := 0; i < 4; i++ {
		s.Observe(context.Background(), sample(i))
	}

	reloaded := NewStore(backend, testLogger())
	reloaded.Load(context.Background())

	if diff := cmp.Diff(s.Snapshot(), reloaded.Snapshot()); diff != "" {
		t.Errorf("reloaded profile mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, reloaded.SampleCount())
	assert.Len(t, reloaded.Snapshot().MessageHistory, 5)
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	backend := NewSQLiteStore(db)
	ctx := context.Background()

	require.NoError(t, backend.Save(ctx, &Profile{StyleSamples: []string{"a", "b", "c"}}))
	require.NoError(t, backend.Save(ctx, &Profile{StyleSamples: []string{"d"}}))

	p, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, p.StyleSamples)
	assert.Empty(t, p.MessageHistory)
}
