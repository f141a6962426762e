package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenForTesting(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	assert.NoError(t, db.Ping())
}

func TestMigrationsApply(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	var tableName string

	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='snapshots'").Scan(&tableName)
	assert.NoError(t, err)
	assert.Equal(t, "snapshots", tableName)

	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='diagnostics'").Scan(&tableName)
	assert.NoError(t, err)
	assert.Equal(t, "diagnostics", tableName)
}

func TestOpenForTestingIsolated(t *testing.T) {
	a, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })
	b, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, b.Close()) })

	_, err = a.Exec("INSERT INTO snapshots (key, content) VALUES ('k', x'00')")
	require.NoError(t, err)

	var n int
	require.NoError(t, b.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&n))
	assert.Zero(t, n)
}

func TestOpenFileReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renobudget.db")

	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO snapshots (key, content) VALUES ('k', x'00')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&n))
	assert.Equal(t, 1, n)
}
