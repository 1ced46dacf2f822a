package repository

import (
	"context"

	"github.com/aman-churiwal/gen-broker/internal/models"
	"github.com/aman-churiwal/gen-broker/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UsageRepository struct {
	db *storage.Postgres
}

func NewUsageRepository(db *storage.Postgres) *UsageRepository {
	return &UsageRepository{db: db}
}

// Retrieves the usage window for a client
func (r *UsageRepository) FindByClient(ctx context.Context, clientID string) (*models.UsageWindow, error) {
	var window models.UsageWindow
	err := r.db.DB.WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&window).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &window, err
}

// Upserts the usage window for a client
func (r *UsageRepository) Save(ctx context.Context, window *models.UsageWindow) error {
	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}},
			UpdateAll: true,
		}).
		Create(window).Error
}
