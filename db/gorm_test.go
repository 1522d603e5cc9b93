package db

import (
	"context"
	"testing"

	"albumapi/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(&config.Config{
		DBHost:     "db.internal",
		DBPort:     "3307",
		DBUser:     "music",
		DBPassword: "p@ss:word",
		DBName:     "catalogue",
	})

	assert.Contains(t, dsn, "music:p@ss:word@tcp(db.internal:3307)/catalogue?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "music.db?_foreign_keys=on", sqliteDSN("music.db"))
	assert.Equal(t, "file:x?mode=memory&_foreign_keys=on", sqliteDSN("file:x?mode=memory"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "oracle"})
	assert.ErrorContains(t, err, `unsupported database driver "oracle"`)
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	gdb, err := Open(&config.Config{
		DBDriver:   "sqlite",
		SQLitePath: "file:db_open_test?mode=memory&cache=shared",
		DBLogLevel: "silent",
	})
	require.NoError(t, err)
	defer Close(gdb)

	require.NoError(t, AutoMigrate(gdb))
	require.NoError(t, Ping(context.Background(), gdb))
	assert.True(t, gdb.Migrator().HasTable("albums"))
	assert.True(t, gdb.Migrator().HasTable("tracks"))

	var fk int
	require.NoError(t, gdb.Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)
}

func TestAutoMigrateNil(t *testing.T) {
	assert.Error(t, AutoMigrate(nil))
	assert.NoError(t, Close(nil))
}
