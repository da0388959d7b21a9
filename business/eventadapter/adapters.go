package eventadapter

import (
	"platformBrain/domain"
)

// Adapters turn host call-site data into raw events. They only build input;
// nothing here touches the pipeline.

type Actor struct {
	TenantID  uint
	UserID    uint
	DeviceID  string
	SessionID string
}

func (a Actor) raw(eventType string, props map[string]any) domain.RawEvent {
	return domain.RawEvent{
		TenantID:   a.TenantID,
		UserID:     a.UserID,
		DeviceID:   a.DeviceID,
		SessionID:  a.SessionID,
		EventType:  eventType,
		Properties: props,
	}
}

func FromProductView(a Actor, productID, categoryID uint64, price float64) domain.RawEvent {
	return a.raw(domain.EventProductView, map[string]any{
		domain.PropProductID:  productID,
		domain.PropCategoryID: categoryID,
		domain.PropPrice:      price,
	})
}

func FromCartAdd(a Actor, productID uint64, quantity int, price, cartValue float64) domain.RawEvent {
	return a.raw(domain.EventCartAdd, map[string]any{
		domain.PropProductID: productID,
		domain.PropQuantity:  quantity,
		domain.PropPrice:     price,
		domain.PropCartValue: cartValue,
	})
}

// FromPurchase emits one purchase event per order line so category and
// price aggregates see every product.
func FromPurchase(a Actor, orders []domain.Orders) []domain.RawEvent {
	var total float64
	for _, o := range orders {
		total += o.Subtotal
	}

	out := make([]domain.RawEvent, 0, len(orders))
	for _, o := range orders {
		props := map[string]any{
			domain.PropOrderID:   o.ID,
			domain.PropOrderRef:  o.OrderRef,
			domain.PropProductID: o.ProductID,
			domain.PropPrice:     o.PriceEach,
			domain.PropQuantity:  o.Quantity,
			domain.PropCartValue: total,
		}
		if o.CategoryID != 0 {
			props[domain.PropCategoryID] = o.CategoryID
		}
		out = append(out, a.raw(domain.EventPurchase, props))
	}
	return out
}

func FromSearch(a Actor, query string, resultCount int) domain.RawEvent {
	return a.raw(domain.EventSearch, map[string]any{
		domain.PropQuery: query,
		"result_count":   resultCount,
	})
}
