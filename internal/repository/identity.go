package repository

import (
	"context"

	"github.com/aman-churiwal/gen-broker/internal/models"
	"github.com/aman-churiwal/gen-broker/internal/storage"
	"gorm.io/gorm"
)

type IdentityRepository struct {
	db *storage.Postgres
}

func NewIdentityRepository(db *storage.Postgres) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// Inserts a new client identity
func (r *IdentityRepository) Create(ctx context.Context, identity *models.ClientIdentity) error {
	return r.db.DB.WithContext(ctx).Create(identity).Error
}

// Retrieves an identity by id
func (r *IdentityRepository) Find(ctx context.Context, id string) (*models.ClientIdentity, error) {
	var identity models.ClientIdentity
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&identity).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &identity, err
}
