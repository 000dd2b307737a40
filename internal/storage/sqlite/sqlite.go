// Package sqlitestorage implements storage.Store on a sqlite file with
// optional periodic backups via VACUUM INTO. Everything else is the GORM
// backend.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sporewatch/sightingmap/internal/database"
	gormstorage "github.com/sporewatch/sightingmap/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path           string // database file, empty for in-memory
	BackupPath     string
	BackupInterval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	manager  *database.Manager
	cfg      Config
	log      zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	done     sync.WaitGroup
}

// New opens the sqlite database described by cfg.
func New(cfg Config, log zerolog.Logger) (*Backend, error) {
	m := database.NewManager(log)
	if err := m.ConnectSqlite(cfg.Path); err != nil {
		return nil, fmt.Errorf("open sqlite storage: %w", err)
	}

	return &Backend{
		Backend:  gormstorage.New(m.DB, log),
		manager:  m,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
	}, nil
}

// Init migrates the schema and starts the backup goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.BackupPath != "" && b.cfg.BackupInterval > 0 {
		b.done.Add(1)
		go b.backupLoop()
	}

	return nil
}

// Close stops the backup goroutine and closes the database.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.done.Wait()
	return b.manager.Close()
}

// Backup writes a point-in-time copy to the configured backup path.
func (b *Backend) Backup() error {
	return b.manager.DumpToDisk(b.cfg.BackupPath)
}

func (b *Backend) backupLoop() {
	defer b.done.Done()

	ticker := time.NewTicker(b.cfg.BackupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Backup(); err != nil {
				b.log.Error().Err(err).Str("path", b.cfg.BackupPath).Msg("SQLite backup failed")
			}
		}
	}
}
