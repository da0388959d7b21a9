package postgres

import (
	"context"
	"fmt"

	"platformBrain/business/dispatcher"
	"platformBrain/business/recommendation"
	"platformBrain/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecommendationRepository struct {
	DB *gorm.DB
}

var (
	_ dispatcher.RecommendationRepository     = (*RecommendationRepository)(nil)
	_ recommendation.RecommendationRepository = (*RecommendationRepository)(nil)
)

func NewRecommendationRepository(db *gorm.DB) *RecommendationRepository {
	return &RecommendationRepository{DB: db}
}

// UpsertRecommendation keeps one row per (tenant, user, product); a repeat
// recommendation refreshes reason, score and timestamp.
func (r *RecommendationRepository) UpsertRecommendation(ctx context.Context, rec domain.UserRecommendation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"},
				{Name: "user_id"},
				{Name: "product_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"reason", "source", "score", "updated_at"}),
		}).
		Create(&rec).Error
}

func (r *RecommendationRepository) ListForUser(ctx context.Context, tenantID, userID uint, limit int) ([]domain.UserRecommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rows []domain.UserRecommendation
	if err := r.DB.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("score DESC").
		Order("updated_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query user_recommendations: %w", err)
	}
	return rows, nil
}
