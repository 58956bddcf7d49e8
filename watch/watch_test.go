package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b"), 0755))

	got := watchDirs([]string{
		filepath.Join(root, "a", "IvsAgent*.log"),
		filepath.Join(root, "a", "IvsSync*.log"),
		filepath.Join(root, "*", "wazuh-install.log"),
	})
	assert.Equal(t, []string{filepath.Join(root, "a"), filepath.Join(root, "b")}, got)
}

func TestNotifierWakesOnWrite(t *testing.T) {
	dir := t.TempDir()
	n, err := New([]string{filepath.Join(dir, "*.log"), filepath.Join(dir, "missing", "*.log")})
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, n.Dirs())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	// Give the watcher a moment before generating events.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "IvsAgent.log"), []byte("line\n"), 0644))

	select {
	case <-n.Wake():
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for wake signal")
	}
}
