package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"painel-pcm-backend/internal/diff"
	"painel-pcm-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot, changed []string) error
	LatestSnapshot(ctx context.Context) (*model.Snapshot, error)
	Units(ctx context.Context) ([]model.ManagementUnit, error)
	Changes(ctx context.Context, key string, limit int) ([]model.ActivityChange, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// SaveSnapshot replaces the persisted snapshot and appends changed records to the change log.
func (s *gormStore) SaveSnapshot(ctx context.Context, snap model.Snapshot, changed []string) error {
	if err := s.upsertUnits(ctx, snap.Records); err != nil {
		return fmt.Errorf("failed to process management units: %w", err)
	}

	changedSet := make(map[string]struct{}, len(changed))
	for _, k := range changed {
		changedSet[k] = struct{}{}
	}

	rows := make([]model.ActivityRow, 0, len(snap.Records))
	var changes []model.ActivityChange
	for i, r := range snap.Records {
		payload, err := json.Marshal(r)
		if err != nil {
			log.Printf("Error encoding record %q: %v", r.Key(), err)
			continue
		}
		rows = append(rows, model.ActivityRow{
			SnapshotID:     snap.ID,
			Position:       i,
			Key:            r.Key(),
			ManagementUnit: strings.TrimSpace(r.ManagementUnit),
			Date:           r.Date,
			StatusCode:     r.StatusCode,
			Payload:        string(payload),
			FetchedAt:      snap.FetchedAt,
		})

		if _, ok := changedSet[r.Key()]; ok {
			changes = append(changes, model.ActivityChange{
				Key:            r.Key(),
				SnapshotID:     snap.ID,
				ObservedAt:     snap.FetchedAt,
				ManagementUnit: strings.TrimSpace(r.ManagementUnit),
				Payload:        diff.Canonical(r),
			})
			// Only the first occurrence of a duplicated key is logged.
			delete(changedSet, r.Key())
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meta := model.SnapshotMeta{
			ID:              snap.ID,
			FetchedAt:       snap.FetchedAt,
			SourceUpdatedAt: snap.SourceUpdatedAt,
			RecordCount:     len(rows),
		}
		if err := tx.Create(&meta).Error; err != nil {
			return fmt.Errorf("failed to save snapshot %s: %w", snap.ID, err)
		}

		// The hot table only ever holds the latest snapshot.
		if err := tx.Where("snapshot_id <> ?", snap.ID).Delete(&model.ActivityRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear previous activity rows: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(&rows, 200).Error; err != nil {
				return fmt.Errorf("failed to insert activity rows: %w", err)
			}
		}

		if len(changes) > 0 {
			log.Printf("Archiving %d changed activities...", len(changes))
			if err := tx.CreateInBatches(&changes, 200).Error; err != nil {
				return fmt.Errorf("failed to archive changed activities: %w", err)
			}
		}
		return nil
	})
}

// LatestSnapshot loads the most recently saved snapshot, or nil when none exists.
func (s *gormStore) LatestSnapshot(ctx context.Context) (*model.Snapshot, error) {
	var metas []model.SnapshotMeta
	if err := s.db.WithContext(ctx).Order("fetched_at DESC").Limit(1).Find(&metas).Error; err != nil {
		return nil, fmt.Errorf("failed to load snapshot metadata: %w", err)
	}
	if len(metas) == 0 {
		return nil, nil
	}
	meta := metas[0]

	var rows []model.ActivityRow
	if err := s.db.WithContext(ctx).Where("snapshot_id = ?", meta.ID).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load activity rows: %w", err)
	}

	snap := &model.Snapshot{
		ID:              meta.ID,
		FetchedAt:       meta.FetchedAt,
		SourceUpdatedAt: meta.SourceUpdatedAt,
		Records:         make([]model.Record, 0, len(rows)),
	}
	for _, row := range rows {
		var r model.Record
		if err := json.Unmarshal([]byte(row.Payload), &r); err != nil {
			log.Printf("Warning: skipping unreadable activity row %d: %v", row.ID, err)
			continue
		}
		snap.Records = append(snap.Records, r)
	}
	return snap, nil
}

// Units lists every management unit seen so far, by name.
func (s *gormStore) Units(ctx context.Context) ([]model.ManagementUnit, error) {
	var units []model.ManagementUnit
	if err := s.db.WithContext(ctx).Order("name").Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// Changes returns the most recent logged versions of a record, newest first.
func (s *gormStore) Changes(ctx context.Context, key string, limit int) ([]model.ActivityChange, error) {
	if limit <= 0 {
		limit = 50
	}
	var changes []model.ActivityChange
	err := s.db.WithContext(ctx).
		Where("record_key = ?", key).
		Order("observed_at DESC").
		Limit(limit).
		Find(&changes).Error
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (s *gormStore) upsertUnits(ctx context.Context, records []model.Record) error {
	toUpsert := make(map[string]model.ManagementUnit)
	for _, r := range records {
		name := strings.TrimSpace(r.ManagementUnit)
		if name == "" || name == "-" {
			continue
		}
		if _, exists := toUpsert[name]; !exists {
			toUpsert[name] = model.ManagementUnit{Name: name}
		}
	}

	if len(toUpsert) == 0 {
		return nil
	}

	units := make([]model.ManagementUnit, 0, len(toUpsert))
	for _, u := range toUpsert {
		units = append(units, u)
	}

	log.Printf("Batch upserting %d management units...", len(units))
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&units).Error; err != nil {
		return fmt.Errorf("batch upsert management units failed: %w", err)
	}
	return nil
}

// DeleteSubscription removes a push subscription together with its unit mappings.
func DeleteSubscription(ctx context.Context, db *gorm.DB, endpoint string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM subscription_unit_mapping WHERE push_subscription_endpoint = ?", endpoint).Error; err != nil {
			return fmt.Errorf("failed to delete unit mappings: %w", err)
		}
		return tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error
	})
}
