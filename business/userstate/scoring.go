package userstate

import (
	"math"
	"sort"

	"platformBrain/domain"
)

type ReadinessInputs struct {
	Activity  int64 // events in the activity window
	CartItems int64 // distinct products in the cart
	Orders    int64 // orders in the signal window
	Recent    int64 // events in the recency window
}

// Readiness is the capped, linearly scaled sum of the four components,
// rounded and clamped to [0,100].
func (c Config) Readiness(in ReadinessInputs) int {
	total := linear(in.Activity, c.ActivitySaturation, c.ActivityCap) +
		linear(in.CartItems, c.CartSaturation, c.CartCap) +
		linear(in.Orders, c.PurchaseSaturation, c.PurchaseCap) +
		linear(in.Recent, c.RecencySaturation, c.RecencyCap)

	return clamp(int(math.Round(total)), 0, 100)
}

func linear(v, saturation int64, capPts float64) float64 {
	if v <= 0 || saturation <= 0 || capPts <= 0 {
		return 0
	}
	if v >= saturation {
		return capPts
	}
	return float64(v) / float64(saturation) * capPts
}

// Affinity ranks categories by weighted engagement, highest first. Equal
// scores fall back to the lower category id so the order is deterministic.
func (c Config) Affinity(rows []domain.CategoryCount) []domain.CategoryAffinity {
	out := make([]domain.CategoryAffinity, 0, len(rows))
	for _, r := range rows {
		if r.CategoryID == 0 {
			continue
		}
		out = append(out, domain.CategoryAffinity{
			CategoryID:      r.CategoryID,
			EngagementScore: c.ViewWeight*float64(r.Views) + c.PurchaseWeight*float64(r.Purchases),
			ViewCount:       r.Views,
			PurchaseCount:   r.Purchases,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EngagementScore != out[j].EngagementScore {
			return out[i].EngagementScore > out[j].EngagementScore
		}
		return out[i].CategoryID < out[j].CategoryID
	})

	if c.AffinityLimit > 0 && len(out) > c.AffinityLimit {
		out = out[:c.AffinityLimit]
	}
	return out
}

// PriceSensitivity compares what the user looks at with what the user buys.
// Missing data on either side stays neutral.
func (c Config) PriceSensitivity(avgViewed float64, hasViews bool, avgOrder float64, hasOrders bool) int {
	if !hasViews || !hasOrders || avgViewed <= 0 || avgOrder <= 0 {
		return domain.DefaultPriceSensitivity
	}

	ratio := avgViewed / avgOrder
	switch {
	case ratio > c.PriceHighRatio:
		return c.PriceSensitiveScore
	case ratio < c.PriceLowRatio:
		return c.PriceInsensitiveScore
	default:
		return domain.DefaultPriceSensitivity
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
