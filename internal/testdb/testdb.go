// Package testdb opens throwaway in-memory SQLite stores for tests.
package testdb

import (
	"testing"

	"albumapi/config"
	"albumapi/db"
	"albumapi/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// New returns a migrated, empty store closed when the test ends.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := &config.Config{
		DBDriver:   "sqlite",
		SQLitePath: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		DBLogLevel: "silent",
	}
	gdb, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })

	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return gdb
}

// SeedAnti stores the album used throughout the tests:
// "Anti" by Rihanna with "Desperado" (1, 4s) and "Love on the brain" (2, 3s).
func SeedAnti(t testing.TB, gdb *gorm.DB) *model.Album {
	t.Helper()

	album := &model.Album{
		AlbumName: "Anti",
		Artist:    "Rihanna",
		Tracks: []model.Track{
			{Title: "Desperado", Order: 1, Duration: 4},
			{Title: "Love on the brain", Order: 2, Duration: 3},
		},
	}
	if err := gdb.Create(album).Error; err != nil {
		t.Fatalf("seeding album: %v", err)
	}
	return album
}

// Count returns the number of rows of m.
func Count(t testing.TB, gdb *gorm.DB, m interface{}) int64 {
	t.Helper()

	var n int64
	if err := gdb.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	return n
}
