package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"platformBrain/business/decision"
	"platformBrain/business/eventadapter"
	"platformBrain/business/userstate"
	"platformBrain/domain"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HistoryRepository is both the sink for canonical events and the query
// surface the user state engine scores from.
type HistoryRepository struct {
	DB *gorm.DB
}

var (
	_ eventadapter.HistorySink    = (*HistoryRepository)(nil)
	_ userstate.HistoryRepository = (*HistoryRepository)(nil)
)

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{DB: db}
}

// ---- Events ----

func (r *HistoryRepository) SaveEvent(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	row := domain.BehaviorEvent{
		EventID:    event.ID,
		TenantID:   event.TenantID,
		DeviceID:   event.DeviceID,
		SessionID:  event.SessionID,
		EventType:  event.EventType,
		Properties: datatypes.JSONMap(event.Properties),
		CreatedAt:  event.Timestamp,
	}
	if event.UserID != 0 {
		uid := event.UserID
		row.UserID = &uid
	}
	if v, ok := decision.Number(event.Properties[domain.PropProductID]); ok && v > 0 {
		id := uint64(v)
		row.ProductID = &id
	}
	if v, ok := decision.Number(event.Properties[domain.PropCategoryID]); ok && v > 0 {
		id := uint64(v)
		row.CategoryID = &id
	}
	if v, ok := decision.Number(event.Properties[domain.PropPrice]); ok && v >= 0 {
		row.Price = &v
	}

	if err := r.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save behavior event: %w", err)
	}
	return nil
}

// ---- State queries ----

func (r *HistoryRepository) EventCountsByType(ctx context.Context, tenantID, userID uint, since time.Time) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rows []struct {
		EventType string `gorm:"column:event_type"`
		Count     int64  `gorm:"column:count"`
	}
	if err := r.DB.WithContext(ctx).
		Model(&domain.BehaviorEvent{}).
		Select("event_type, COUNT(*) AS count").
		Where("tenant_id = ? AND user_id = ? AND created_at >= ?", tenantID, userID, since).
		Group("event_type").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count behavior events: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.EventType] = row.Count
	}
	return out, nil
}

// cartItemsQuery unions the host cart snapshot with products whose latest
// cart event is still an add. A removal or a purchase takes a product out.
const cartItemsQuery = `
SELECT COUNT(DISTINCT product_id) FROM (
	SELECT product_id FROM cart_items
	WHERE tenant_id = ? AND user_id = ?
	UNION
	SELECT product_id FROM (
		SELECT DISTINCT ON (product_id) product_id, event_type
		FROM user_behavior_events
		WHERE tenant_id = ? AND user_id = ? AND product_id IS NOT NULL AND event_type IN ?
		ORDER BY product_id, created_at DESC, id DESC
	) last_cart_event
	WHERE event_type = ?
) cart`

// CountCartItems returns the number of distinct products in the cart.
func (r *HistoryRepository) CountCartItems(ctx context.Context, tenantID, userID uint) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	var n int64
	if err := r.DB.WithContext(ctx).
		Raw(cartItemsQuery,
			tenantID, userID,
			tenantID, userID,
			[]string{domain.EventCartAdd, domain.EventCartRemove, domain.EventPurchase},
			domain.EventCartAdd,
		).
		Scan(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count cart items: %w", err)
	}
	return n, nil
}

// CountOrdersSince counts checkouts, not lines.
func (r *HistoryRepository) CountOrdersSince(ctx context.Context, tenantID, userID uint, since time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	var n int64
	if err := r.DB.WithContext(ctx).
		Model(&domain.Orders{}).
		Where("tenant_id = ? AND user_id = ? AND created_at >= ?", tenantID, userID, since).
		Distinct("order_ref").
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

func (r *HistoryRepository) CategoryEngagement(ctx context.Context, tenantID, userID uint, since time.Time) ([]domain.CategoryCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rows []domain.CategoryCount
	if err := r.DB.WithContext(ctx).
		Model(&domain.BehaviorEvent{}).
		Select(
			"category_id, "+
				"COUNT(*) FILTER (WHERE event_type = ?) AS views, "+
				"COUNT(*) FILTER (WHERE event_type = ?) AS purchases",
			domain.EventProductView, domain.EventPurchase,
		).
		Where("tenant_id = ? AND user_id = ? AND created_at >= ?", tenantID, userID, since).
		Where("category_id IS NOT NULL").
		Where("event_type IN ?", []string{domain.EventProductView, domain.EventPurchase}).
		Group("category_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate category engagement: %w", err)
	}
	return rows, nil
}

func (r *HistoryRepository) AverageViewedPrice(ctx context.Context, tenantID, userID uint, since time.Time) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, fmt.Errorf("context error: %w", err)
	}

	var avg sql.NullFloat64
	if err := r.DB.WithContext(ctx).
		Model(&domain.BehaviorEvent{}).
		Select("AVG(price)").
		Where("tenant_id = ? AND user_id = ? AND created_at >= ?", tenantID, userID, since).
		Where("event_type = ? AND price IS NOT NULL AND price > 0", domain.EventProductView).
		Scan(&avg).Error; err != nil {
		return 0, false, fmt.Errorf("failed to average viewed price: %w", err)
	}
	return avg.Float64, avg.Valid, nil
}

// AverageOrderValue averages the unit price of ordered lines so it compares
// like for like with viewed prices.
func (r *HistoryRepository) AverageOrderValue(ctx context.Context, tenantID, userID uint, since time.Time) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, fmt.Errorf("context error: %w", err)
	}

	var avg sql.NullFloat64
	if err := r.DB.WithContext(ctx).
		Model(&domain.Orders{}).
		Select("AVG(price_each)").
		Where("tenant_id = ? AND user_id = ? AND created_at >= ?", tenantID, userID, since).
		Scan(&avg).Error; err != nil {
		return 0, false, fmt.Errorf("failed to average order value: %w", err)
	}
	return avg.Float64, avg.Valid, nil
}
