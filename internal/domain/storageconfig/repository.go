package storageconfig

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	GetActiveByOrg(ctx context.Context, orgID int64) (*StorageConfig, error)
	// Activate persists cfg as the organization's single active config,
	// deactivating any prior active row in the same transaction.
	Activate(ctx context.Context, cfg *StorageConfig) error
	ListByOrg(ctx context.Context, orgID int64) ([]*StorageConfig, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetActiveByOrg(ctx context.Context, orgID int64) (*StorageConfig, error) {
	var cfg StorageConfig
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND active = ?", orgID, true).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) Activate(ctx context.Context, cfg *StorageConfig) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&StorageConfig{}).
			Where("org_id = ? AND active = ?", cfg.OrgID, true).
			Update("active", false).Error; err != nil {
			return err
		}
		cfg.Active = true
		return tx.Create(cfg).Error
	})
}

func (r *repository) ListByOrg(ctx context.Context, orgID int64) ([]*StorageConfig, error) {
	var configs []*StorageConfig
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&configs).Error
	return configs, err
}
