package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOpen(t *testing.T) {
	t.Run("opens database successfully", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		conn, err := Open(dbPath, nil)
		require.NoError(t, err)
		require.NotNil(t, conn)
		defer conn.Close()

		// Verify WAL mode enabled
		var journalMode string
		err = conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
		require.NoError(t, err)
		assert.Equal(t, "wal", journalMode)

		// Verify foreign keys enabled
		var foreignKeys int
		err = conn.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys)
		require.NoError(t, err)
		assert.Equal(t, 1, foreignKeys)

		// Verify busy timeout set
		var busyTimeout int
		err = conn.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout)
		require.NoError(t, err)
		assert.Equal(t, SQLiteBusyTimeoutMS, busyTimeout)
	})

	t.Run("accepts a logger", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		conn, err := Open(dbPath, zaptest.NewLogger(t).Sugar())
		require.NoError(t, err)
		defer conn.Close()
	})
}

func TestIsDatabaseClosed(t *testing.T) {
	assert.False(t, IsDatabaseClosed(nil))
	assert.True(t, IsDatabaseClosed(ErrDatabaseClosed))

	dbPath := filepath.Join(t.TempDir(), "test.db")
	conn, err := Open(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	err = conn.QueryRow("SELECT 1").Scan(new(int))
	require.Error(t, err)
	assert.True(t, IsDatabaseClosed(err))
}
