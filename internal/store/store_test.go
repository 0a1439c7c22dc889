package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_BusyTimeout(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"), WithBusyTimeout(250*time.Millisecond))
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("busy_timeout", "250"))
	assert.False(t, s.ReadOnly())
}

func TestOpen_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	ctx := t.Context()

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteRun(ctx, createTestRun("run-1")))
	require.NoError(t, w.Close())

	s, err := Open(path, ReadOnly())
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.ReadOnly())
	assert.NoError(t, s.verifyPragma("query_only", "1"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.Error(t, s.WriteRun(ctx, createTestRun("run-2")), "writes are rejected")
}

func TestOpen_ReadOnlyRefusesMissingOrForeignFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.db"), ReadOnly())
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "missing.db"))
	assert.True(t, os.IsNotExist(statErr), "a read-only open never creates the file")

	other := filepath.Join(dir, "other.db")
	s, err := Open(other)
	require.NoError(t, err)
	_, err = s.DB().Exec(`DROP TABLE events`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(other, ReadOnly())
	assert.ErrorContains(t, err, `missing table "events"`)
}

func TestOpen_CreatesTables(t *testing.T) {
	s := createTestStore(t)

	for _, table := range []string{"runs", "frames", "samples", "events"} {
		var name string
		err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}

	var index string
	err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_samples_actor'`).Scan(&index)
	require.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	ctx := t.Context()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestOpen_MigratesVersionZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.DB().Exec(`DROP INDEX idx_samples_actor`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`PRAGMA user_version = 0`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.verifyPragma("user_version", "1"))

	var index string
	err = s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_samples_actor'`).Scan(&index)
	assert.NoError(t, err)
}

func TestClose_Nil(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}
