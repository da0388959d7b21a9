package postgres

import (
	"context"
	"errors"
	"fmt"

	"platformBrain/business/dispatcher"
	"platformBrain/domain"

	"gorm.io/gorm"
)

type DiscountRepository struct {
	DB *gorm.DB
}

var _ dispatcher.DiscountRepository = (*DiscountRepository)(nil)

func NewDiscountRepository(db *gorm.DB) *DiscountRepository {
	return &DiscountRepository{DB: db}
}

func (r *DiscountRepository) FindByCode(ctx context.Context, tenantID uint, code string) (domain.Discount, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Discount{}, false, fmt.Errorf("context error: %w", err)
	}

	var d domain.Discount
	err := r.DB.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Discount{}, false, nil
	}
	if err != nil {
		return domain.Discount{}, false, fmt.Errorf("failed to query discounts: %w", err)
	}
	return d, true, nil
}

func (r *DiscountRepository) CreateDiscount(ctx context.Context, d *domain.Discount) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if err := r.DB.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create discount: %w", err)
	}
	return nil
}

func (r *DiscountRepository) RecordUsage(ctx context.Context, u *domain.DiscountUsage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to record discount usage: %w", err)
	}
	return nil
}
