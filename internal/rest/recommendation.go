package rest

import (
	"context"
	"net/http"

	"platformBrain/domain"
	"platformBrain/pkg/logger"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type (
	RecommendationHandler struct {
		service RecommendationService
	}

	RecommendationService interface {
		GetRecommendations(ctx context.Context, tenantID, userID uint, limit int) ([]domain.UserRecommendation, error)
		Homepage(ctx context.Context, tenantID, userID uint) (domain.HomepageConfig, bool)
	}

	HomepageResponse struct {
		Personalized bool                  `json:"personalized"`
		Homepage     domain.HomepageConfig `json:"homepage"`
	}
)

func NewRecommendationHandler(service RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{service: service}
}

// GET /api/v1/recommendations?limit=10
func (h *RecommendationHandler) GetRecommendations(c echo.Context) error {
	tenantID, userID, err := actor(c)
	if err != nil {
		return err
	}

	recs, err := h.service.GetRecommendations(c.Request().Context(), tenantID, userID, queryInt(c, "limit", 10))
	if err != nil {
		logger.Error("Failed to get recommendations", "tenant_id", tenantID, "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to load recommendations"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(recs))
}

// GET /api/v1/homepage
func (h *RecommendationHandler) GetHomepage(c echo.Context) error {
	tenantID, userID, err := actor(c)
	if err != nil {
		return err
	}

	cfg, personalized := h.service.Homepage(c.Request().Context(), tenantID, userID)
	return c.JSON(http.StatusOK, fres.Response.StatusOK(HomepageResponse{
		Personalized: personalized,
		Homepage:     cfg,
	}))
}
