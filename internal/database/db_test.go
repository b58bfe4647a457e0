package database

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "inventory.db")
	db, err := Open(Options{Driver: DriverSQLite, SQLitePath: path})
	require.NoError(t, err)
	defer db.Close()

	// a second run must be a no-op
	require.NoError(t, Migrate(db, DriverSQLite))

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 2, applied)

	for _, table := range []string{"units", "staff"} {
		var n int
		err := db.QueryRow("SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "oracle"})
	assert.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, got)
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN("app", "secret", "db", "3306", "inventory")
	assert.Equal(t, "app:secret@tcp(db:3306)/inventory?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true", dsn)

	// optimistic updates rely on matched-row counts
	assert.Contains(t, mysqlDSN("app", "", "db", "3306", "inventory"), "clientFoundRows=true")
	assert.True(t, strings.HasPrefix(mysqlDSN("app", "", "db", "3306", "inventory"), "app@tcp("))
}
