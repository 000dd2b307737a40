// Package gormstorage implements storage.Store on top of GORM. It serves both
// the sqlite and the postgres dialects.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/sporewatch/sightingmap/internal/model"
	"github.com/sporewatch/sightingmap/internal/model/convert"
	"github.com/sporewatch/sightingmap/internal/storage"
	"github.com/sporewatch/sightingmap/pkg/core"
)

const selectionBatchSize = 500

// Backend stores everything in the tables of internal/model.
type Backend struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New creates a backend over db. The caller owns the connection.
func New(db *gorm.DB, log zerolog.Logger) *Backend {
	return &Backend{db: db, log: log}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	b.log.Debug().Str("dialect", b.db.Dialector.Name()).Msg("Storage schema ready")
	return nil
}

// Close is a no-op; the connection belongs to the database manager.
func (b *Backend) Close() error {
	return nil
}

// ListSightings returns every sighting in insertion order.
func (b *Backend) ListSightings(ctx context.Context) ([]core.Sighting, error) {
	var rows []model.Sighting
	if err := b.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sightings: %w", err)
	}
	return lo.Map(rows, func(r model.Sighting, _ int) core.Sighting {
		return convert.SightingToCore(r)
	}), nil
}

// AddSighting stores a validated sighting. Ids are unique.
func (b *Backend) AddSighting(ctx context.Context, s core.Sighting) error {
	if err := s.Validate(); err != nil {
		return err
	}

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&model.Sighting{}).Where("sighting_id = ?", s.ID.String()).Count(&existing).Error; err != nil {
			return fmt.Errorf("check sighting %s: %w", s.ID, err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateSighting, s.ID)
		}

		row := convert.SightingToGorm(s)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert sighting %s: %w", s.ID, err)
		}
		return nil
	})
}

// SaveSnapshot stores the published sightings as one JSON column.
func (b *Backend) SaveSnapshot(ctx context.Context, takenAt time.Time, sightings []core.Sighting) (core.Snapshot, error) {
	snap := core.Snapshot{TakenAt: takenAt.UTC(), Sightings: sightings}
	row, err := convert.SnapshotToGorm(snap)
	if err != nil {
		return core.Snapshot{}, err
	}
	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return core.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	snap.ID = row.ID
	return snap, nil
}

// LatestSnapshot returns the most recently stored snapshot.
func (b *Backend) LatestSnapshot(ctx context.Context) (core.Snapshot, error) {
	var row model.Snapshot
	err := b.db.WithContext(ctx).Order("taken_at desc").Order("id desc").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Snapshot{}, storage.ErrNoSnapshot
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return convert.SnapshotToCore(row)
}

// RecordSelections inserts selections in batches.
func (b *Backend) RecordSelections(ctx context.Context, selections []core.Selection) error {
	if len(selections) == 0 {
		return nil
	}
	rows := lo.Map(selections, func(s core.Selection, _ int) model.Selection {
		return convert.SelectionToGorm(s)
	})
	if err := b.db.WithContext(ctx).CreateInBatches(&rows, selectionBatchSize).Error; err != nil {
		return fmt.Errorf("insert %d selections: %w", len(rows), err)
	}
	return nil
}

// CountSelections returns how often id was selected.
func (b *Backend) CountSelections(ctx context.Context, id core.SightingID) (int64, error) {
	var n int64
	err := b.db.WithContext(ctx).Model(&model.Selection{}).Where("sighting_id = ?", id.String()).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count selections for %s: %w", id, err)
	}
	return n, nil
}
