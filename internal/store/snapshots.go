package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fabriclens/engine/internal/models"
	appErr "github.com/fabriclens/engine/pkg/errors"
)

// SnapshotRow archives one built snapshot as a versioned jsonb payload.
type SnapshotRow struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Version   int            `gorm:"not null;index:idx_lineage_snapshot_version,unique" json:"version"`
	Source    string         `gorm:"type:varchar(512)" json:"source"`
	Payload   datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Stats     datatypes.JSON `gorm:"type:jsonb" json:"stats"`
	IsCurrent bool           `gorm:"not null;default:false;index" json:"is_current"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName maps the row to its table.
func (SnapshotRow) TableName() string { return "lineage_snapshots" }

// SnapshotRepository archives built snapshots with version history, so a
// prior graph stays inspectable after a refresh.
type SnapshotRepository interface {
	Save(ctx context.Context, g *models.LineageGraph, stats *models.GraphStats) (*SnapshotRow, error)
	Current(ctx context.Context) (*SnapshotRow, error)
	GetByVersion(ctx context.Context, version int) (*SnapshotRow, error)
	List(ctx context.Context) ([]SnapshotRow, error)
	SetCurrent(ctx context.Context, version int) error
}

type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository returns the gorm-backed archive.
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// Save stores the snapshot as the next version and marks it current.
func (r *snapshotRepository) Save(ctx context.Context, g *models.LineageGraph, stats *models.GraphStats) (*SnapshotRow, error) {
	payload, err := json.Marshal(g)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "marshal snapshot payload")
	}
	statsPayload, err := json.Marshal(stats)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "marshal snapshot stats")
	}

	var row *SnapshotRow
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxVersion int
		if err := tx.Model(&SnapshotRow{}).Select("COALESCE(MAX(version), 0)").Scan(&maxVersion).Error; err != nil {
			return err
		}
		if err := tx.Model(&SnapshotRow{}).Where("is_current = true").Update("is_current", false).Error; err != nil {
			return err
		}
		row = &SnapshotRow{
			Version:   maxVersion + 1,
			Source:    g.Source,
			Payload:   datatypes.JSON(payload),
			Stats:     datatypes.JSON(statsPayload),
			IsCurrent: true,
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "save snapshot failed")
	}
	return row, nil
}

func (r *snapshotRepository) Current(ctx context.Context) (*SnapshotRow, error) {
	var row SnapshotRow
	if err := r.db.WithContext(ctx).Where("is_current = true").First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.New(appErr.CodeNotFound, "no current snapshot")
		}
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "get current snapshot failed")
	}
	return &row, nil
}

func (r *snapshotRepository) GetByVersion(ctx context.Context, version int) (*SnapshotRow, error) {
	var row SnapshotRow
	if err := r.db.WithContext(ctx).Where("version = ?", version).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.Newf(appErr.CodeNotFound, "snapshot version %d not found", version)
		}
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "get snapshot version failed")
	}
	return &row, nil
}

func (r *snapshotRepository) List(ctx context.Context) ([]SnapshotRow, error) {
	var out []SnapshotRow
	if err := r.db.WithContext(ctx).Order("version DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "list snapshots failed")
	}
	return out, nil
}

// SetCurrent marks the specified version as current and clears the previous
// flag in a transaction.
func (r *snapshotRepository) SetCurrent(ctx context.Context, version int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&SnapshotRow{}).Where("is_current = true").Update("is_current", false).Error; err != nil {
			return err
		}
		res := tx.Model(&SnapshotRow{}).Where("version = ?", version).Update("is_current", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return appErr.Newf(appErr.CodeNotFound, "snapshot version %d not found", version)
		}
		return nil
	})
	if err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return err
		}
		return appErr.Wrap(err, appErr.CodeUnavailable, "set current snapshot failed")
	}
	return nil
}
