package userstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"platformBrain/domain"
	"platformBrain/pkg/logger"

	"golang.org/x/sync/singleflight"
)

var ErrMissingUser = errors.New("user id is required")

// HistoryRepository is the behavioral and order history query surface.
type HistoryRepository interface {
	EventCountsByType(ctx context.Context, tenantID, userID uint, since time.Time) (map[string]int64, error)
	CountCartItems(ctx context.Context, tenantID, userID uint) (int64, error)
	CountOrdersSince(ctx context.Context, tenantID, userID uint, since time.Time) (int64, error)
	CategoryEngagement(ctx context.Context, tenantID, userID uint, since time.Time) ([]domain.CategoryCount, error)
	AverageViewedPrice(ctx context.Context, tenantID, userID uint, since time.Time) (float64, bool, error)
	AverageOrderValue(ctx context.Context, tenantID, userID uint, since time.Time) (float64, bool, error)
}

// Cache is a byte cache with per-key TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Service struct {
	history HistoryRepository
	cache   Cache
	cfg     Config
	group   singleflight.Group
	now     func() time.Time
}

func NewService(history HistoryRepository, cache Cache, cfg Config) *Service {
	return &Service{
		history: history,
		cache:   cache,
		cfg:     cfg,
		now:     time.Now,
	}
}

func StateKey(tenantID, userID uint, signal string) string {
	return fmt.Sprintf("brain:state:%d:%d:%s", tenantID, userID, signal)
}

// GetUserState composes the three signals. A failing signal keeps its
// default and is listed in Degraded; only a missing user or a dead context
// is an error.
func (s *Service) GetUserState(ctx context.Context, tenantID, userID uint) (*domain.UserState, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if userID == 0 {
		return nil, ErrMissingUser
	}

	state := &domain.UserState{
		TenantID:         tenantID,
		UserID:           userID,
		ReadinessScore:   domain.DefaultReadinessScore,
		ActivityAffinity: []domain.CategoryAffinity{},
		PriceSensitivity: domain.DefaultPriceSensitivity,
	}

	if v, err := cached(ctx, s, StateKey(tenantID, userID, domain.SignalReadiness), func(ctx context.Context) (int, error) {
		return s.computeReadiness(ctx, tenantID, userID)
	}); err != nil {
		s.degrade(state, domain.SignalReadiness, err)
	} else {
		state.ReadinessScore = v
	}

	if v, err := cached(ctx, s, StateKey(tenantID, userID, domain.SignalAffinity), func(ctx context.Context) ([]domain.CategoryAffinity, error) {
		return s.computeAffinity(ctx, tenantID, userID)
	}); err != nil {
		s.degrade(state, domain.SignalAffinity, err)
	} else if v != nil {
		state.ActivityAffinity = v
	}

	if v, err := cached(ctx, s, StateKey(tenantID, userID, domain.SignalPriceSensitivity), func(ctx context.Context) (int, error) {
		return s.computePriceSensitivity(ctx, tenantID, userID)
	}); err != nil {
		s.degrade(state, domain.SignalPriceSensitivity, err)
	} else {
		state.PriceSensitivity = v
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	state.ComputedAt = s.now().UTC()
	return state, nil
}

// Refresh drops the cached signals and recomputes them.
func (s *Service) Refresh(ctx context.Context, tenantID, userID uint) error {
	if userID == 0 {
		return ErrMissingUser
	}

	if s.cache != nil {
		keys := []string{
			StateKey(tenantID, userID, domain.SignalReadiness),
			StateKey(tenantID, userID, domain.SignalAffinity),
			StateKey(tenantID, userID, domain.SignalPriceSensitivity),
		}
		if err := s.cache.Delete(ctx, keys...); err != nil {
			logger.Warn("failed to invalidate user state", "tenant_id", tenantID, "user_id", userID, "error", err)
		}
	}

	state, err := s.GetUserState(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	if len(state.Degraded) > 0 {
		return fmt.Errorf("refresh degraded signals: %v", state.Degraded)
	}
	return nil
}

func (s *Service) degrade(state *domain.UserState, signal string, err error) {
	state.Degraded = append(state.Degraded, signal)
	stateSignalErrorsTotal.WithLabelValues(signal).Inc()
	logger.Warn("user state signal unavailable",
		"tenant_id", state.TenantID,
		"user_id", state.UserID,
		"signal", signal,
		"error", err,
	)
}

func (s *Service) computeReadiness(ctx context.Context, tenantID, userID uint) (int, error) {
	now := s.now()

	activity, err := s.history.EventCountsByType(ctx, tenantID, userID, now.Add(-s.cfg.ActivityWindow))
	if err != nil {
		return 0, fmt.Errorf("activity counts: %w", err)
	}
	recent, err := s.history.EventCountsByType(ctx, tenantID, userID, now.Add(-s.cfg.RecencyWindow))
	if err != nil {
		return 0, fmt.Errorf("recent counts: %w", err)
	}
	cartItems, err := s.history.CountCartItems(ctx, tenantID, userID)
	if err != nil {
		return 0, fmt.Errorf("cart items: %w", err)
	}
	orders, err := s.history.CountOrdersSince(ctx, tenantID, userID, now.Add(-s.cfg.SignalWindow))
	if err != nil {
		return 0, fmt.Errorf("orders: %w", err)
	}

	return s.cfg.Readiness(ReadinessInputs{
		Activity:  sum(activity),
		CartItems: cartItems,
		Orders:    orders,
		Recent:    sum(recent),
	}), nil
}

func (s *Service) computeAffinity(ctx context.Context, tenantID, userID uint) ([]domain.CategoryAffinity, error) {
	rows, err := s.history.CategoryEngagement(ctx, tenantID, userID, s.now().Add(-s.cfg.SignalWindow))
	if err != nil {
		return nil, fmt.Errorf("category engagement: %w", err)
	}
	return s.cfg.Affinity(rows), nil
}

func (s *Service) computePriceSensitivity(ctx context.Context, tenantID, userID uint) (int, error) {
	since := s.now().Add(-s.cfg.SignalWindow)

	viewed, hasViews, err := s.history.AverageViewedPrice(ctx, tenantID, userID, since)
	if err != nil {
		return 0, fmt.Errorf("average viewed price: %w", err)
	}
	ordered, hasOrders, err := s.history.AverageOrderValue(ctx, tenantID, userID, since)
	if err != nil {
		return 0, fmt.Errorf("average order value: %w", err)
	}

	return s.cfg.PriceSensitivity(viewed, hasViews, ordered, hasOrders), nil
}

// cached short-circuits to the cached value, otherwise computes once per key
// across concurrent callers and writes the result back with the state TTL.
// Cache failures are logged and treated as misses. The shared computation
// runs detached from any one caller, so a caller that gives up only stops
// waiting.
func cached[T any](ctx context.Context, s *Service, key string, compute func(context.Context) (T, error)) (T, error) {
	var zero T

	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			logger.Warn("state cache read failed", "key", key, "error", err)
		case ok:
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				stateCacheTotal.WithLabelValues("hit").Inc()
				return v, nil
			}
			logger.Warn("discarding unreadable state cache entry", "key", key)
		}
	}
	stateCacheTotal.WithLabelValues("miss").Inc()

	ch := s.group.DoChan(key, func() (any, error) {
		timeout := s.cfg.ComputeTimeout
		if timeout <= 0 {
			timeout = DefaultConfig().ComputeTimeout
		}
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		val, err := compute(cctx)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			raw, err := json.Marshal(val)
			if err == nil {
				err = s.cache.Set(cctx, key, raw, s.cfg.TTL)
			}
			if err != nil {
				logger.Warn("state cache write failed", "key", key, "error", err)
			}
		}
		return val, nil
	})

	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("context error: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

func sum(counts map[string]int64) int64 {
	var n int64
	for _, c := range counts {
		n += c
	}
	return n
}
