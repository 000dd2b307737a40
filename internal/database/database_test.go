package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sporewatch/sightingmap/internal/config"
	"github.com/sporewatch/sightingmap/internal/model"
)

func TestConnectSqlite_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sightings.db")
	m := NewManager(zerolog.Nop())

	require.NoError(t, m.ConnectSqlite(path))
	t.Cleanup(func() { m.Close() })

	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&model.Sighting{}))
	assert.True(t, m.DB.Migrator().HasTable(&model.Snapshot{}))
	assert.True(t, m.DB.Migrator().HasTable(&model.Selection{}))
}

func TestConnect_FallsBackToSqlite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.db")
	m := NewManager(zerolog.Nop())

	err := m.Connect(config.StorageConfig{
		SQLite: config.SQLiteConfig{Path: path},
		DB:     config.DBConfig{Host: "127.0.0.1", Port: "1", Username: "x", Password: "x", Database: "x"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	assert.True(t, m.ShouldSaveLocal)
	assert.Equal(t, "sqlite", m.DB.Dialector.Name())
}

func TestSetup_NotConnected(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.Error(t, m.Setup())
}

func TestDumpToDisk(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSqlite(filepath.Join(dir, "live.db")))
	t.Cleanup(func() { m.Close() })
	require.NoError(t, m.Setup())
	require.NoError(t, m.DB.Create(&model.Sighting{SightingID: "1", Lat: 1, Lng: 2, FungiName: "x"}).Error)

	backup := filepath.Join(dir, "backup.db")
	require.NoError(t, os.WriteFile(backup, []byte("stale"), 0644))
	require.NoError(t, m.DumpToDisk(backup))

	copyDB, err := GetSqliteDB(backup)
	require.NoError(t, err)
	var count int64
	require.NoError(t, copyDB.Model(&model.Sighting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpSqliteToDisk_NoPath(t *testing.T) {
	assert.ErrorIs(t, DumpSqliteToDisk(nil, ""), ErrNoDumpPath)
}

func TestClose_NotConnected(t *testing.T) {
	assert.NoError(t, NewManager(zerolog.Nop()).Close())
}
