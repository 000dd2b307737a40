// Package factory opens the storage.Store selected by configuration.
package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sporewatch/sightingmap/internal/config"
	"github.com/sporewatch/sightingmap/internal/database"
	"github.com/sporewatch/sightingmap/internal/storage"
	gormstorage "github.com/sporewatch/sightingmap/internal/storage/gorm"
	"github.com/sporewatch/sightingmap/internal/storage/memory"
	sqlitestorage "github.com/sporewatch/sightingmap/internal/storage/sqlite"
)

// NewStore creates a storage backend based on configuration. The returned
// store still needs Init.
func NewStore(cfg config.StorageConfig, log zerolog.Logger) (storage.Store, error) {
	switch cfg.Type {
	case "postgres":
		m := database.NewManager(log)
		if err := m.Connect(cfg); err != nil {
			return nil, err
		}
		return &managedStore{Backend: gormstorage.New(m.DB, log), manager: m}, nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			Path:           cfg.SQLite.Path,
			BackupPath:     cfg.SQLite.BackupPath,
			BackupInterval: cfg.SQLite.BackupInterval,
		}, log)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// managedStore closes the connection owned by its manager.
type managedStore struct {
	*gormstorage.Backend
	manager *database.Manager
}

func (s *managedStore) Close() error {
	return s.manager.Close()
}
