package repository

import (
	"context"

	"github.com/aman-churiwal/gen-broker/internal/models"
	"github.com/aman-churiwal/gen-broker/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TierRepository struct {
	db *storage.Postgres
}

func NewTierRepository(db *storage.Postgres) *TierRepository {
	return &TierRepository{db: db}
}

// Retrieves the tier record for a client
func (r *TierRepository) FindByClient(ctx context.Context, clientID string) (*models.TierRecord, error) {
	var record models.TierRecord
	err := r.db.DB.WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&record).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &record, err
}

// Upserts the tier record for a client
func (r *TierRepository) Save(ctx context.Context, record *models.TierRecord) error {
	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}},
			UpdateAll: true,
		}).
		Create(record).Error
}

// Counts active records per tier kind
func (r *TierRepository) CountByKind(ctx context.Context, kind string) (int64, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.TierRecord{}).
		Where("tier_kind = ?", kind).
		Count(&count).Error

	return count, err
}
