package postgres

import (
	"context"
	"fmt"

	"platformBrain/business/brain"
	"platformBrain/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FeatureFlagRepository struct {
	DB *gorm.DB
}

var _ brain.FlagRepository = (*FeatureFlagRepository)(nil)

func NewFeatureFlagRepository(db *gorm.DB) *FeatureFlagRepository {
	return &FeatureFlagRepository{DB: db}
}

func (r *FeatureFlagRepository) ListFlags(ctx context.Context) ([]domain.FeatureFlag, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var flags []domain.FeatureFlag
	if err := r.DB.WithContext(ctx).Order("feature_key").Find(&flags).Error; err != nil {
		return nil, fmt.Errorf("failed to query brain_feature_flags: %w", err)
	}
	return flags, nil
}

func (r *FeatureFlagRepository) UpsertFlag(ctx context.Context, flag domain.FeatureFlag) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "feature_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_enabled", "config", "updated_at"}),
		}).
		Create(&flag).Error
}
