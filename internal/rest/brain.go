package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"platformBrain/business/brain"
	"platformBrain/domain"
	"platformBrain/pkg/logger"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	BrainHandler struct {
		validate *validator.Validate
		brain    BrainService
	}

	BrainService interface {
		Track(ctx context.Context, raw domain.RawEvent) bool
		GetUserState(ctx context.Context, tenantID, userID uint) (*domain.UserState, error)
		Suggestions(ctx context.Context, tenantID, userID uint, limit int) ([]domain.Decision, error)
	}

	TrackResponse struct {
		Accepted bool `json:"accepted"`
	}
)

func NewBrainHandler(brainService BrainService) *BrainHandler {
	return &BrainHandler{
		validate: validator.New(),
		brain:    brainService,
	}
}

// POST /api/v1/brain/events
// Always answers 202; the pipeline outcome never reaches the caller.
func (h *BrainHandler) TrackEvent(c echo.Context) error {
	tenantID, userID, err := actor(c)
	if err != nil {
		return err
	}

	var request domain.RawEvent
	if err := c.Bind(&request); err != nil {
		logger.Debug("invalid event body", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	// identity comes from the token, never from the body
	request.TenantID = tenantID
	request.UserID = userID
	if request.DeviceID == "" {
		request.DeviceID = c.Request().Header.Get(HeaderDeviceID)
	}

	accepted := h.brain.Track(c.Request().Context(), request)
	return c.JSON(http.StatusAccepted, TrackResponse{Accepted: accepted})
}

// GET /api/v1/brain/users/:id/state
func (h *BrainHandler) GetUserState(c echo.Context) error {
	tenantID, _, err := actor(c)
	if err != nil {
		return err
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid user id"})
	}

	state, err := h.brain.GetUserState(c.Request().Context(), tenantID, uint(id))
	if errors.Is(err, brain.ErrStateDisabled) {
		return c.JSON(http.StatusServiceUnavailable, ResponseError{Message: err.Error()})
	}
	if err != nil {
		logger.Error("Failed to get user state", "tenant_id", tenantID, "user_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to load user state"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(state))
}

// GET /api/v1/brain/suggestions?limit=20
func (h *BrainHandler) GetSuggestions(c echo.Context) error {
	tenantID, userID, err := actor(c)
	if err != nil {
		return err
	}
	if userID == 0 {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "user not authenticated"})
	}

	decisions, err := h.brain.Suggestions(c.Request().Context(), tenantID, userID, queryInt(c, "limit", 20))
	if err != nil {
		logger.Error("Failed to get suggestions", "tenant_id", tenantID, "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to load suggestions"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(decisions))
}
