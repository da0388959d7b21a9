package postgres

import (
	"context"
	"fmt"

	"platformBrain/business/dispatcher"
	"platformBrain/domain"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	DB *gorm.DB
}

var _ dispatcher.NotificationSink = (*NotificationRepository)(nil)

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{DB: db}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if err := r.DB.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}
