package domain

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// canonical event types
const (
	EventProductView = "product_view"
	EventCartAdd     = "cart_add"
	EventCartRemove  = "cart_remove"
	EventPurchase    = "purchase"
	EventSearch      = "search"
	EventPageView    = "page_view"
)

// legacy event names emitted by older call sites
var eventTypeAliases = map[string]string{
	"view_product":       EventProductView,
	"product_viewed":     EventProductView,
	"add_to_cart":        EventCartAdd,
	"cart_added":         EventCartAdd,
	"remove_from_cart":   EventCartRemove,
	"order":              EventPurchase,
	"order_completed":    EventPurchase,
	"checkout_completed": EventPurchase,
	"search_query":       EventSearch,
}

// CanonicalEventType lower-cases, snake-cases and resolves legacy aliases.
// Events and event_type rule conditions both go through it.
func CanonicalEventType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.ReplaceAll(t, "-", "_")
	t = strings.ReplaceAll(t, " ", "_")
	if alias, ok := eventTypeAliases[t]; ok {
		return alias
	}
	return t
}

// canonical property keys
const (
	PropProductID  = "product_id"
	PropCategoryID = "category_id"
	PropPrice      = "price"
	PropQuantity   = "quantity"
	PropOrderID    = "order_id"
	PropOrderRef   = "order_ref"
	PropCartValue  = "cart_value"
	PropQuery      = "query"
)

// RawEvent is what host call sites hand to the brain. Properties are free-form.
type RawEvent struct {
	TenantID   uint           `json:"tenant_id"`
	UserID     uint           `json:"user_id,omitempty"`
	DeviceID   string         `json:"device_id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	EventType  string         `json:"event_type" validate:"required"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
}

// Event is the canonical, immutable event record. UserID 0 means anonymous.
type Event struct {
	ID         string         `json:"id"`
	TenantID   uint           `json:"tenant_id"`
	UserID     uint           `json:"user_id,omitempty"`
	DeviceID   string         `json:"device_id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	EventType  string         `json:"event_type"`
	Properties map[string]any `json:"properties"`
	Timestamp  time.Time      `json:"timestamp"`
}

// BehaviorEvent is the behavioral history row the normalizer forwards to.
type BehaviorEvent struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	EventID    string            `gorm:"column:event_id;not null" json:"event_id"`
	TenantID   uint              `gorm:"column:tenant_id;not null" json:"tenant_id"`
	UserID     *uint             `gorm:"column:user_id" json:"user_id,omitempty"`
	DeviceID   string            `gorm:"column:device_id" json:"device_id,omitempty"`
	SessionID  string            `gorm:"column:session_id" json:"session_id,omitempty"`
	EventType  string            `gorm:"column:event_type;not null" json:"event_type"`
	ProductID  *uint64           `gorm:"column:product_id" json:"product_id,omitempty"`
	CategoryID *uint64           `gorm:"column:category_id" json:"category_id,omitempty"`
	Price      *float64          `gorm:"column:price;type:numeric" json:"price,omitempty"`
	Properties datatypes.JSONMap `gorm:"column:properties;type:jsonb" json:"properties"`
	CreatedAt  time.Time         `gorm:"column:created_at" json:"created_at"`
}

func (BehaviorEvent) TableName() string {
	return "user_behavior_events"
}
