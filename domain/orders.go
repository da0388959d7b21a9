package domain

import "time"

const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
)

// Orders is one order line. Lines of the same checkout share OrderRef, so
// order counts are taken over distinct refs, not rows.
type Orders struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	OrderRef      string    `gorm:"column:order_ref;type:uuid;not null" json:"order_ref"`
	TenantID      uint      `gorm:"column:tenant_id;not null" json:"tenant_id"`
	UserID        uint      `gorm:"column:user_id;not null" json:"user_id"`
	ProductID     uint64    `gorm:"column:product_id;not null" json:"product_id" validate:"required"`
	CategoryID    uint64    `gorm:"column:category_id" json:"category_id,omitempty"`
	Quantity      int       `gorm:"column:quantity;not null" json:"quantity" validate:"required,min=1"`
	PriceEach     float64   `gorm:"column:price_each;type:numeric" json:"price_each" validate:"required,gt=0"`
	Subtotal      float64   `gorm:"column:subtotal;type:numeric" json:"subtotal"`
	OrderStatus   string    `gorm:"column:order_status;not null" json:"order_status"`
	PaymentMethod string    `gorm:"column:payment_method" json:"payment_method"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Orders) TableName() string {
	return "orders"
}

type CreateOrderRequest struct {
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string             `json:"payment_method"`
}

type OrderItemRequest struct {
	ProductID  uint64  `json:"product_id" validate:"required"`
	CategoryID uint64  `json:"category_id"`
	Quantity   int     `json:"quantity" validate:"required,min=1"`
	PriceEach  float64 `json:"price_each" validate:"required,gt=0"`
}
