package postgres

import (
	"context"
	"fmt"

	"platformBrain/business/decision"
	"platformBrain/domain"

	"gorm.io/gorm"
)

type RuleRepository struct {
	DB *gorm.DB
}

var _ decision.RuleRepository = (*RuleRepository)(nil)

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{DB: db}
}

// ActiveRules returns the tenant's active rules, highest priority first and
// newest first among equal priorities.
func (r *RuleRepository) ActiveRules(ctx context.Context, tenantID uint) ([]domain.RuleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rules []domain.RuleRecord
	if err := r.DB.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("priority DESC").
		Order("created_at DESC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to query brain_rules: %w", err)
	}

	return rules, nil
}

// ListRules returns every rule of the tenant, active or not, for admin views.
func (r *RuleRepository) ListRules(ctx context.Context, tenantID uint) ([]domain.RuleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rules []domain.RuleRecord
	if err := r.DB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("priority DESC").
		Order("created_at DESC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to query brain_rules: %w", err)
	}

	return rules, nil
}
