package postgres

import (
	"context"
	"fmt"

	"platformBrain/business/decision"
	"platformBrain/domain"

	"gorm.io/gorm"
)

type DecisionLogRepository struct {
	DB *gorm.DB
}

var _ decision.DecisionLogRepository = (*DecisionLogRepository)(nil)

func NewDecisionLogRepository(db *gorm.DB) *DecisionLogRepository {
	return &DecisionLogRepository{DB: db}
}

// SaveDecisions appends audit rows. Rows are never updated.
func (r *DecisionLogRepository) SaveDecisions(ctx context.Context, logs []domain.DecisionLog) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(logs) == 0 {
		return nil
	}

	if err := r.DB.WithContext(ctx).Create(&logs).Error; err != nil {
		return fmt.Errorf("failed to save decision logs: %w", err)
	}

	return nil
}

func (r *DecisionLogRepository) ListDecisions(ctx context.Context, filter domain.DecisionLogFilter) ([]domain.DecisionLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := r.DB.WithContext(ctx).Where("tenant_id = ?", filter.TenantID)
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.RuleID != 0 {
		q = q.Where("rule_id = ?", filter.RuleID)
	}
	if filter.Mode != "" {
		q = q.Where("execution_mode = ?", filter.Mode)
	}

	var logs []domain.DecisionLog
	if err := q.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to query brain_decision_logs: %w", err)
	}

	return logs, nil
}
