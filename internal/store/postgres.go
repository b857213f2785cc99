package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fabriclens/engine/internal/models"
	appErr "github.com/fabriclens/engine/pkg/errors"
)

// PostgresStore persists the property graph in PostgreSQL. Upserts rely on
// ON CONFLICT(id) DO UPDATE, which gives the merge semantics the loader
// contract requires.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore wraps an open gorm connection.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ GraphStore = (*PostgresStore)(nil)

// Migrate creates or updates the store tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&NodeRow{}, &EdgeRow{}, &SnapshotRow{})
}

func (s *PostgresStore) UpsertNodes(ctx context.Context, rows []NodeRow) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "upsert nodes failed")
	}
	return nil
}

func (s *PostgresStore) UpsertEdges(ctx context.Context, rows []EdgeRow) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "upsert edges failed")
	}
	return nil
}

// Clear wipes all graph rows inside one transaction. Used only by explicit
// full-refresh loads.
func (s *PostgresStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&EdgeRow{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&NodeRow{}).Error
	})
	if err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "clear graph failed")
	}
	return nil
}

func (s *PostgresStore) CountNodes(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&NodeRow{}).Count(&n).Error; err != nil {
		return 0, appErr.Wrap(err, appErr.CodeUnavailable, "count nodes failed")
	}
	return n, nil
}

func (s *PostgresStore) CountEdges(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&EdgeRow{}).Count(&n).Error; err != nil {
		return 0, appErr.Wrap(err, appErr.CodeUnavailable, "count edges failed")
	}
	return n, nil
}

// LoadGraph reads every row back into a snapshot, ordered by id for
// deterministic output.
func (s *PostgresStore) LoadGraph(ctx context.Context) (*models.LineageGraph, error) {
	var nodes []NodeRow
	if err := s.db.WithContext(ctx).Order("id").Find(&nodes).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "load nodes failed")
	}
	var edges []EdgeRow
	if err := s.db.WithContext(ctx).Order("id").Find(&edges).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "load edges failed")
	}
	return graphFromRows(nodes, edges)
}
