package repository

import (
	"context"

	"github.com/aman-churiwal/gen-broker/internal/errs"
	"github.com/aman-churiwal/gen-broker/internal/models"
	"github.com/aman-churiwal/gen-broker/internal/storage"
	"gorm.io/gorm"
)

type CredentialRepository struct {
	db *storage.Postgres
}

func NewCredentialRepository(db *storage.Postgres) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Retrieves the live credential record for a tier
func (r *CredentialRepository) FindByTier(ctx context.Context, tierKind string) (*models.CredentialRecord, error) {
	var record models.CredentialRecord
	err := r.db.DB.WithContext(ctx).
		Where("tier_kind = ?", tierKind).
		First(&record).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &record, err
}

// Swap replaces the tier's credential only if the stored version still matches
// expectVersion. Another broker instance renewing past that version makes the
// swap fail with ErrVersionConflict; the caller should re-read instead of
// overwriting the fresher record.
func (r *CredentialRepository) Swap(ctx context.Context, record *models.CredentialRecord, expectVersion int64) error {
	if expectVersion == 0 {
		err := r.db.DB.WithContext(ctx).Create(record).Error
		if err != nil {
			// A concurrent instance inserted the first record
			var existing models.CredentialRecord
			findErr := r.db.DB.WithContext(ctx).
				Where("tier_kind = ?", record.TierKind).
				First(&existing).Error
			if findErr == nil {
				return errs.ErrVersionConflict
			}
			return err
		}
		return nil
	}

	result := r.db.DB.WithContext(ctx).
		Model(&models.CredentialRecord{}).
		Where("tier_kind = ? AND version = ?", record.TierKind, expectVersion).
		Updates(map[string]interface{}{
			"value":      record.Value,
			"issued_at":  record.IssuedAt,
			"expires_at": record.ExpiresAt,
			"version":    record.Version,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errs.ErrVersionConflict
	}

	return nil
}
