package userstate

import (
	"time"

	"platformBrain/pkg/config"
)

// Config holds the scoring heuristics. The values are tuning knobs, not
// contracts: readiness must stay bounded, monotonic and recency weighted.
type Config struct {
	TTL time.Duration
	// ComputeTimeout bounds one shared signal computation.
	ComputeTimeout time.Duration

	ActivityWindow time.Duration
	SignalWindow   time.Duration
	RecencyWindow  time.Duration

	ActivityCap        float64
	ActivitySaturation int64
	CartCap            float64
	CartSaturation     int64
	PurchaseCap        float64
	PurchaseSaturation int64
	RecencyCap         float64
	RecencySaturation  int64

	ViewWeight     float64
	PurchaseWeight float64
	AffinityLimit  int

	PriceHighRatio        float64
	PriceLowRatio         float64
	PriceSensitiveScore   int
	PriceInsensitiveScore int
}

func DefaultConfig() Config {
	return Config{
		TTL:            10 * time.Minute,
		ComputeTimeout: 5 * time.Second,

		ActivityWindow: 30 * 24 * time.Hour,
		SignalWindow:   90 * 24 * time.Hour,
		RecencyWindow:  7 * 24 * time.Hour,

		ActivityCap:        30,
		ActivitySaturation: 50,
		CartCap:            25,
		CartSaturation:     5,
		PurchaseCap:        30,
		PurchaseSaturation: 3,
		RecencyCap:         15,
		RecencySaturation:  5,

		ViewWeight:     0.5,
		PurchaseWeight: 2,
		AffinityLimit:  10,

		PriceHighRatio:        1.2,
		PriceLowRatio:         0.8,
		PriceSensitiveScore:   75,
		PriceInsensitiveScore: 25,
	}
}

// FromBrainConfig overlays the environment driven settings on the defaults.
func FromBrainConfig(bc config.BrainConfig) Config {
	cfg := DefaultConfig()

	if bc.StateTTL > 0 {
		cfg.TTL = bc.StateTTL
	}
	if bc.ActivityWindowDays > 0 {
		cfg.ActivityWindow = days(bc.ActivityWindowDays)
	}
	if bc.SignalWindowDays > 0 {
		cfg.SignalWindow = days(bc.SignalWindowDays)
	}
	if bc.RecencyWindowDays > 0 {
		cfg.RecencyWindow = days(bc.RecencyWindowDays)
	}
	if bc.PriceHighRatio > 0 {
		cfg.PriceHighRatio = bc.PriceHighRatio
	}
	if bc.PriceLowRatio > 0 {
		cfg.PriceLowRatio = bc.PriceLowRatio
	}

	return cfg
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
