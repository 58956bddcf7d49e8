package offsets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetUnseen(t *testing.T) {
	s := NewStore()
	e, ok := s.Get("/var/log/app.log")
	assert.False(t, ok)
	assert.Equal(t, Entry{}, e)
	assert.Zero(t, s.Offset("/var/log/app.log"))
}

func TestStoreSetMonotonic(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set("a", Entry{Offset: 10}))
	require.NoError(t, s.Set("a", Entry{Offset: 10, Severity: "ERROR"}))
	require.NoError(t, s.Set("a", Entry{Offset: 42}))

	err := s.Set("a", Entry{Offset: 5})
	assert.True(t, errors.Is(err, ErrRegression))
	assert.Equal(t, uint64(42), s.Offset("a"))

	s.Reset("a", 7)
	e, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, Entry{FileID: 7}, e)

	require.NoError(t, s.Set("a", Entry{Offset: 3, FileID: 7}))
	assert.Equal(t, 1, s.Len())

	s.Forget("a")
	assert.Zero(t, s.Len())
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set("a", Entry{Offset: 1}))

	snap := s.Snapshot()
	snap["a"] = Entry{Offset: 99}
	assert.Equal(t, uint64(1), s.Offset("a"))

	s.Restore(map[string]Entry{"b": {Offset: 2}})
	assert.Zero(t, s.Offset("a"))
	assert.Equal(t, uint64(2), s.Offset("b"))
}

func TestStoreLockSerialisesPath(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("/shared.log")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestFileCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "offsets.json")
	cp := NewFileCheckpoint(path)

	entries, err := cp.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	s := NewStore()
	require.NoError(t, s.Set("/var/log/app.log", Entry{Offset: 42, FileID: 9, InContinuation: true, Severity: "ERROR"}))
	require.NoError(t, s.Flush(ctx, cp))

	loaded, err := NewFileCheckpoint(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]Entry{
		"/var/log/app.log": {Offset: 42, FileID: 9, InContinuation: true, Severity: "ERROR"},
	}, loaded)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileCheckpointCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewFileCheckpoint(path).Load(context.Background())
	assert.Error(t, err)
}

func TestFlushWithoutCheckpointer(t *testing.T) {
	assert.NoError(t, NewStore().Flush(context.Background(), nil))
}

func TestStoreForgetDropsEntryAndLock(t *testing.T) {
	s := NewStore()
	unlock := s.Lock("/a.log")
	require.NoError(t, s.Set("/a.log", Entry{Offset: 10, FileID: 7}))
	unlock()
	require.NoError(t, s.Set("/b.log", Entry{Offset: 3}))

	s.Forget("/a.log")

	_, seen := s.Get("/a.log")
	assert.False(t, seen)
	assert.Equal(t, []string{"/b.log"}, s.Paths())
	s.locksMu.Lock()
	assert.NotContains(t, s.locks, "/a.log")
	s.locksMu.Unlock()
}

func TestStoreFindByFileID(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set("/logs/app.log", Entry{Offset: 42, FileID: 99, Severity: "ERROR"}))
	require.NoError(t, s.Set("/logs/other.log", Entry{Offset: 5}))

	path, e, ok := s.FindByFileID(99, "/logs/app.1.log")
	require.True(t, ok)
	assert.Equal(t, "/logs/app.log", path)
	assert.Equal(t, uint64(42), e.Offset)

	_, _, ok = s.FindByFileID(99, "/logs/app.log")
	assert.False(t, ok)
	_, _, ok = s.FindByFileID(0, "")
	assert.False(t, ok)
}
