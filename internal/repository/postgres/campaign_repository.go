package postgres

import (
	"context"
	"fmt"
	"time"

	"platformBrain/business/dispatcher"
	"platformBrain/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CampaignRepository struct {
	DB *gorm.DB
}

var _ dispatcher.CampaignRepository = (*CampaignRepository)(nil)

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{DB: db}
}

// MarkShown records an impression, bumping shown_count on repeats.
func (r *CampaignRepository) MarkShown(ctx context.Context, tenantID, userID uint, campaignID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	row := domain.CampaignImpression{
		TenantID:    tenantID,
		UserID:      userID,
		CampaignID:  campaignID,
		ShownCount:  1,
		FirstShown:  at,
		LastShownAt: at,
	}
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"},
				{Name: "user_id"},
				{Name: "campaign_id"},
			},
			DoUpdates: clause.Assignments(map[string]any{
				"shown_count":   gorm.Expr("campaign_impressions.shown_count + 1"),
				"last_shown_at": at,
			}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to mark campaign shown: %w", err)
	}
	return nil
}
