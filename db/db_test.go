package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-pg/migrations/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logcount/offsets"
)

// Requires a scratch database, e.g.
// LOGCOUNT_TEST_PG_ADDR=localhost:5432 LOGCOUNT_TEST_PG_USER=postgres go test ./db
func testCheckpoint(t *testing.T) *Checkpoint {
	t.Helper()
	addr := os.Getenv("LOGCOUNT_TEST_PG_ADDR")
	if addr == "" {
		t.Skip("LOGCOUNT_TEST_PG_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cp, err := Connect(ctx, &Config{
		Addr:     addr,
		Database: os.Getenv("LOGCOUNT_TEST_PG_DATABASE"),
		User:     os.Getenv("LOGCOUNT_TEST_PG_USER"),
		Password: os.Getenv("LOGCOUNT_TEST_PG_PASSWORD"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		cp.Migrate("reset")
		cp.Close()
	})
	require.NoError(t, cp.EnsureSchema())
	return cp
}

func TestCheckpointRoundTrip(t *testing.T) {
	cp := testCheckpoint(t)
	ctx := context.Background()

	require.NoError(t, cp.Save(ctx, map[string]offsets.Entry{
		"/var/log/a.log": {Offset: 10, FileID: 1},
		"/var/log/b.log": {Offset: 20, FileID: 2, InContinuation: true, Severity: "ERROR"},
	}))
	require.NoError(t, cp.Save(ctx, map[string]offsets.Entry{
		"/var/log/a.log": {Offset: 15, FileID: 1},
	}))

	loaded, err := cp.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]offsets.Entry{
		"/var/log/a.log": {Offset: 15, FileID: 1},
	}, loaded)
}

func TestCheckpointKeepsState(t *testing.T) {
	cp := testCheckpoint(t)
	ctx := context.Background()

	want := map[string]offsets.Entry{
		"/var/log/b.log": {Offset: 20, FileID: 2, InContinuation: true, Severity: "ERROR"},
	}
	require.NoError(t, cp.Save(ctx, want))

	loaded, err := cp.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, loaded)
}

func TestSaveEmptyIsNoop(t *testing.T) {
	var cp Checkpoint
	assert.NoError(t, cp.Save(context.Background(), nil))
}

func TestMigrationsRegistered(t *testing.T) {
	var ms []*migrations.Migration
	require.NotPanics(t, func() { ms = Migrations().Migrations() })
	require.Len(t, ms, 1)
	assert.Equal(t, int64(1), ms[0].Version)
	assert.True(t, ms[0].UpTx)
	assert.NotNil(t, ms[0].Up)
	assert.NotNil(t, ms[0].Down)
}
