package domain

import "time"

// state signal names, also used as cache sub-keys
const (
	SignalReadiness        = "readiness"
	SignalAffinity         = "affinity"
	SignalPriceSensitivity = "price_sensitivity"
)

const (
	DefaultReadinessScore   = 0
	DefaultPriceSensitivity = 50
)

type CategoryAffinity struct {
	CategoryID      uint64  `json:"category_id"`
	EngagementScore float64 `json:"engagement_score"`
	ViewCount       int64   `json:"view_count"`
	PurchaseCount   int64   `json:"purchase_count"`
}

// UserState is the computed snapshot for one (tenant, user). Degraded lists
// signals whose history query failed; they hold defaults and must not satisfy
// any rule condition.
type UserState struct {
	TenantID         uint               `json:"tenant_id"`
	UserID           uint               `json:"user_id"`
	ReadinessScore   int                `json:"readiness_score"`
	ActivityAffinity []CategoryAffinity `json:"activity_affinity"`
	PriceSensitivity int                `json:"price_sensitivity"`
	Degraded         []string           `json:"degraded,omitempty"`
	ComputedAt       time.Time          `json:"computed_at"`
}

func (s *UserState) IsDegraded(signal string) bool {
	if s == nil {
		return true
	}
	for _, d := range s.Degraded {
		if d == signal {
			return true
		}
	}
	return false
}

// Affinity returns the entry for a category, if the user engaged with it.
func (s *UserState) Affinity(categoryID uint64) (CategoryAffinity, bool) {
	if s == nil {
		return CategoryAffinity{}, false
	}
	for _, a := range s.ActivityAffinity {
		if a.CategoryID == categoryID {
			return a, true
		}
	}
	return CategoryAffinity{}, false
}

// CategoryCount is the grouped history row affinity is computed from.
type CategoryCount struct {
	CategoryID uint64 `gorm:"column:category_id"`
	Views      int64  `gorm:"column:views"`
	Purchases  int64  `gorm:"column:purchases"`
}
