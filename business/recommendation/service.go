package recommendation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"platformBrain/business/dispatcher"
	"platformBrain/domain"
	"platformBrain/pkg/logger"
)

type RecommendationRepository interface {
	ListForUser(ctx context.Context, tenantID, userID uint, limit int) ([]domain.UserRecommendation, error)
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// Service is the read side of what the dispatcher writes: the
// recommendation widget and the homepage renderer.
type Service struct {
	repo  RecommendationRepository
	cache Cache
}

func NewService(repo RecommendationRepository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// GetRecommendations returns the user's stored recommendations, best first.
func (s *Service) GetRecommendations(
	ctx context.Context,
	tenantID, userID uint,
	limit int,
) ([]domain.UserRecommendation, error) {

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	rows, err := s.repo.ListForUser(ctx, tenantID, userID, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.UserRecommendation{}
	}
	return rows, nil
}

// Homepage returns the personalized homepage, or an empty default when none
// is cached. A cache failure degrades to the default.
func (s *Service) Homepage(ctx context.Context, tenantID, userID uint) (domain.HomepageConfig, bool) {
	def := domain.HomepageConfig{
		TenantID:         tenantID,
		UserID:           userID,
		FeaturedProducts: []uint64{},
		Banners:          []map[string]any{},
		Sections:         []string{},
		UpdatedAt:        time.Now().UTC(),
	}
	if s.cache == nil {
		return def, false
	}

	raw, ok, err := s.cache.Get(ctx, dispatcher.HomepageKey(tenantID, userID))
	if err != nil {
		logger.Warn("homepage cache read failed", "tenant_id", tenantID, "user_id", userID, "error", err)
		return def, false
	}
	if !ok {
		return def, false
	}

	var cfg domain.HomepageConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		logger.Warn("unreadable homepage cache entry", "tenant_id", tenantID, "user_id", userID, "error", err)
		return def, false
	}
	return cfg, true
}
