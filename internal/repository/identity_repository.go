package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"daily-tracker/internal/model"
)

// IdentityRepository persists anonymous identities.
type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// GetOrCreate returns the uid bound to installKey, binding newUID when the key
// is seen for the first time.
func (r *IdentityRepository) GetOrCreate(ctx context.Context, installKey string, newUID func() string) (string, error) {
	var identity model.Identity
	db := r.db.WithContext(ctx)
	err := db.Where("install_key = ?", installKey).First(&identity).Error
	switch {
	case err == nil:
		return identity.UID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		identity = model.Identity{InstallKey: installKey, UID: newUID()}
		if err := db.Create(&identity).Error; err != nil {
			return "", fmt.Errorf("create identity: %w", err)
		}
		return identity.UID, nil
	default:
		return "", fmt.Errorf("find identity: %w", err)
	}
}
