package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateDatabase_SQLite(t *testing.T) {
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, MigrateDatabase(db))
	// Second run must skip existing indexes.
	require.NoError(t, MigrateDatabase(db))

	assert.True(t, db.Migrator().HasTable("tasks"))
	assert.True(t, db.Migrator().HasTable("invitations"))
	assert.NoError(t, Ping(db))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "dsn")
	require.Error(t, err)
}
