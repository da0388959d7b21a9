package postgres

import (
	"context"
	"fmt"

	"platformBrain/business/orders"
	"platformBrain/domain"

	"gorm.io/gorm"
)

type OrdersRepository struct {
	DB *gorm.DB
}

var _ orders.OrdersRepository = (*OrdersRepository)(nil)

func NewOrdersRepository(db *gorm.DB) *OrdersRepository {
	return &OrdersRepository{
		DB: db,
	}
}

// CreateOrders inserts all lines of one checkout atomically.
func (r *OrdersRepository) CreateOrders(ctx context.Context, rows []domain.Orders) ([]domain.Orders, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orders: %w", err)
	}

	return rows, nil
}

func (r *OrdersRepository) ListOrders(ctx context.Context, tenantID, userID uint) ([]domain.Orders, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var out []domain.Orders
	err := r.DB.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return out, nil
}
