package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"platformBrain/business/eventadapter"
	"platformBrain/domain"
	"platformBrain/pkg/logger"

	"github.com/google/uuid"
)

var ErrEmptyOrder = errors.New("order has no items")

type OrdersRepository interface {
	CreateOrders(ctx context.Context, rows []domain.Orders) ([]domain.Orders, error)
	ListOrders(ctx context.Context, tenantID, userID uint) ([]domain.Orders, error)
}

// Tracker is the platform brain's fire-and-forget entry point.
type Tracker interface {
	Track(ctx context.Context, raw domain.RawEvent) bool
}

type OrdersService struct {
	orderRepo OrdersRepository
	tracker   Tracker
	now       func() time.Time
	newRef    func() string
}

func NewOrdersService(orderRepo OrdersRepository, tracker Tracker) *OrdersService {
	return &OrdersService{
		orderRepo: orderRepo,
		tracker:   tracker,
		now:       time.Now,
		newRef:    uuid.NewString,
	}
}

// CreateOrder stores one row per item under a single order ref, then reports
// the purchase to the brain. Tracking never affects the order outcome.
func (s *OrdersService) CreateOrder(ctx context.Context, actor eventadapter.Actor, req domain.CreateOrderRequest) ([]domain.Orders, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	now := s.now()
	ref := s.newRef()
	rows := make([]domain.Orders, 0, len(req.Items))
	for _, item := range req.Items {
		rows = append(rows, domain.Orders{
			OrderRef:      ref,
			TenantID:      actor.TenantID,
			UserID:        actor.UserID,
			ProductID:     item.ProductID,
			CategoryID:    item.CategoryID,
			Quantity:      item.Quantity,
			PriceEach:     item.PriceEach,
			Subtotal:      item.PriceEach * float64(item.Quantity),
			OrderStatus:   domain.OrderStatusPending,
			PaymentMethod: req.PaymentMethod,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	created, err := s.orderRepo.CreateOrders(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("create orders: %w", err)
	}

	if s.tracker != nil {
		for _, ev := range eventadapter.FromPurchase(actor, created) {
			if !s.tracker.Track(ctx, ev) {
				logger.Debug("purchase event not tracked", "tenant_id", actor.TenantID, "user_id", actor.UserID)
			}
		}
	}

	return created, nil
}

func (s *OrdersService) ListOrders(ctx context.Context, tenantID, userID uint) ([]domain.Orders, error) {
	return s.orderRepo.ListOrders(ctx, tenantID, userID)
}
