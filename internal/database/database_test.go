package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openTemp(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open(Config{Path: filepath.Join(t.TempDir(), "nested", "zd.db")}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestOpenAppliesMigrations(t *testing.T) {
	conn := openTemp(t)

	for _, table := range []string{"zones", "raw_records", "density_runs", "zone_counts", "migrations"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	// second run is a no-op
	mm := NewMigrationManager(conn, zaptest.NewLogger(t))
	require.NoError(t, mm.RunMigrations())
	applied, err := mm.GetAppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 2: true}, applied)
}

func TestLoadMigrationsOrdersAndSkips(t *testing.T) {
	files := fstest.MapFS{
		"002_second.sql": {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"001_first.sql":  {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"notes.txt":      {Data: []byte("ignored")},
		"bad.sql":        {Data: []byte("ignored")},
	}
	mm := NewMigrationManagerFS(nil, files, zaptest.NewLogger(t))

	migrations, err := mm.LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "002_second", migrations[1].Name)
}

func TestFailedMigrationRollsBack(t *testing.T) {
	conn := openTemp(t)
	files := fstest.MapFS{
		"010_broken.sql": {Data: []byte("CREATE TABLE ok_table (id INTEGER); NOT SQL;")},
	}
	mm := NewMigrationManagerFS(conn, files, zaptest.NewLogger(t))

	assert.Error(t, mm.RunMigrations())
	applied, err := mm.GetAppliedMigrations()
	require.NoError(t, err)
	assert.False(t, applied[10])
}

func TestWithTx(t *testing.T) {
	conn := openTemp(t)

	err := WithTx(conn, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO raw_records (entity_id) VALUES ('a')")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTx(conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO raw_records (entity_id) VALUES ('b')"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM raw_records").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{}, nil)
	assert.Error(t, err)
}
