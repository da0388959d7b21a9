package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Rows written by the action dispatcher and read by the owning subsystems.

type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	TenantID  uint              `gorm:"column:tenant_id;not null" json:"tenant_id"`
	UserID    uint              `gorm:"column:user_id;not null" json:"user_id"`
	Title     string            `gorm:"column:title;not null" json:"title"`
	Message   string            `gorm:"column:message" json:"message"`
	Type      string            `gorm:"column:type;not null" json:"type"`
	Data      datatypes.JSONMap `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	IsRead    bool              `gorm:"column:is_read;not null;default:false" json:"is_read"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

type Discount struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	TenantID  uint       `gorm:"column:tenant_id;not null" json:"tenant_id"`
	Code      string     `gorm:"column:code;not null" json:"code"`
	Percent   float64    `gorm:"column:percent;type:numeric" json:"percent"`
	Amount    float64    `gorm:"column:amount;type:numeric" json:"amount"`
	IsActive  bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	UserID    *uint      `gorm:"column:user_id" json:"user_id,omitempty"`
	ExpiresAt *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Discount) TableName() string {
	return "discounts"
}

func (d Discount) UsableAt(now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if d.ExpiresAt != nil && !d.ExpiresAt.After(now) {
		return false
	}
	return d.Percent > 0 || d.Amount > 0
}

type DiscountUsage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   uint      `gorm:"column:tenant_id;not null" json:"tenant_id"`
	DiscountID uint      `gorm:"column:discount_id;not null" json:"discount_id"`
	UserID     uint      `gorm:"column:user_id;not null" json:"user_id"`
	Source     string    `gorm:"column:source;not null" json:"source"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (DiscountUsage) TableName() string {
	return "discount_usages"
}

type CampaignImpression struct {
	TenantID    uint      `gorm:"column:tenant_id;primaryKey" json:"tenant_id"`
	UserID      uint      `gorm:"column:user_id;primaryKey" json:"user_id"`
	CampaignID  string    `gorm:"column:campaign_id;primaryKey" json:"campaign_id"`
	ShownCount  int       `gorm:"column:shown_count;not null;default:1" json:"shown_count"`
	FirstShown  time.Time `gorm:"column:first_shown_at" json:"first_shown_at"`
	LastShownAt time.Time `gorm:"column:last_shown_at" json:"last_shown_at"`
}

func (CampaignImpression) TableName() string {
	return "campaign_impressions"
}

const RecommendationSourceBrain = "platform_brain"

type UserRecommendation struct {
	TenantID  uint      `gorm:"column:tenant_id;primaryKey" json:"tenant_id"`
	UserID    uint      `gorm:"column:user_id;primaryKey" json:"user_id"`
	ProductID uint64    `gorm:"column:product_id;primaryKey" json:"product_id"`
	Reason    string    `gorm:"column:reason" json:"reason"`
	Source    string    `gorm:"column:source;not null" json:"source"`
	Score     float64   `gorm:"column:score;not null;default:0" json:"score"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (UserRecommendation) TableName() string {
	return "user_recommendations"
}

// HomepageConfig is cache-only; the homepage renderer reads it by (tenant, user).
type HomepageConfig struct {
	TenantID         uint             `json:"tenant_id"`
	UserID           uint             `json:"user_id"`
	FeaturedProducts []uint64         `json:"featured_products"`
	Banners          []map[string]any `json:"banners"`
	Sections         []string         `json:"sections"`
	RuleID           uint             `json:"rule_id,omitempty"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type SegmentMember struct {
	TenantID  uint      `gorm:"column:tenant_id;primaryKey"`
	SegmentID uint64    `gorm:"column:segment_id;primaryKey"`
	UserID    uint      `gorm:"column:user_id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (SegmentMember) TableName() string {
	return "user_segment_members"
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  uint      `gorm:"column:tenant_id;not null" json:"tenant_id"`
	UserID    uint      `gorm:"column:user_id;not null" json:"user_id"`
	ProductID uint64    `gorm:"column:product_id;not null" json:"product_id"`
	Quantity  int       `gorm:"column:quantity;not null;default:1" json:"quantity"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (CartItem) TableName() string {
	return "cart_items"
}
