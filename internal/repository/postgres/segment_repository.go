package postgres

import (
	"context"
	"fmt"

	"platformBrain/business/decision"
	"platformBrain/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SegmentRepository struct {
	DB *gorm.DB
}

var _ decision.SegmentChecker = (*SegmentRepository)(nil)

func NewSegmentRepository(db *gorm.DB) *SegmentRepository {
	return &SegmentRepository{DB: db}
}

func (r *SegmentRepository) IsMember(ctx context.Context, tenantID, userID uint, segmentID uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}

	var n int64
	if err := r.DB.WithContext(ctx).
		Model(&domain.SegmentMember{}).
		Where("tenant_id = ? AND segment_id = ? AND user_id = ?", tenantID, segmentID, userID).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to query user_segment_members: %w", err)
	}
	return n > 0, nil
}

func (r *SegmentRepository) AddMember(ctx context.Context, tenantID, userID uint, segmentID uint64) error {
	row := domain.SegmentMember{
		TenantID:  tenantID,
		SegmentID: segmentID,
		UserID:    userID,
	}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}
