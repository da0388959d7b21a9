package rest

import (
	"context"
	"net/http"
	"slices"
	"time"

	"platformBrain/business/brain"
	"platformBrain/domain"
	"platformBrain/pkg/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
)

type (
	BrainAdminHandler struct {
		flagRepo  FlagStore
		flags     FlagReloader
		rules     RuleLister
		decisions DecisionLister
	}

	FlagStore interface {
		ListFlags(ctx context.Context) ([]domain.FeatureFlag, error)
		UpsertFlag(ctx context.Context, flag domain.FeatureFlag) error
	}

	FlagReloader interface {
		RefreshFeatureFlags(ctx context.Context) (brain.Flags, error)
		Flags() brain.Flags
	}

	RuleLister interface {
		ListRules(ctx context.Context, tenantID uint) ([]domain.RuleRecord, error)
	}

	DecisionLister interface {
		ListDecisions(ctx context.Context, filter domain.DecisionLogFilter) ([]domain.DecisionLog, error)
	}

	FlagUpdate struct {
		FeatureKey string         `json:"feature_key"`
		IsEnabled  bool           `json:"is_enabled"`
		Config     map[string]any `json:"config,omitempty"`
	}

	RuleView struct {
		Rule        domain.RuleRecord `json:"rule"`
		DecodeError string            `json:"decode_error,omitempty"`
	}
)

func NewBrainAdminHandler(
	flagRepo FlagStore,
	flags FlagReloader,
	rules RuleLister,
	decisions DecisionLister,
) *BrainAdminHandler {
	return &BrainAdminHandler{
		flagRepo:  flagRepo,
		flags:     flags,
		rules:     rules,
		decisions: decisions,
	}
}

// GET /api/v1/admin/brain/flags
// Returns the stored rows and the snapshot the pipeline is running on.
func (h *BrainAdminHandler) GetFlags(c echo.Context) error {
	rows, err := h.flagRepo.ListFlags(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"flags":   rows,
		"current": h.flags.Flags(),
	})
}

// PUT /api/v1/admin/brain/flags
// body: {"feature_key": "...", "is_enabled": true, "config": {...}}
func (h *BrainAdminHandler) UpsertFlag(c echo.Context) error {
	ctx := c.Request().Context()

	var body FlagUpdate
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "invalid body: " + err.Error(),
		})
	}
	if !slices.Contains(domain.FlagKeys, body.FeatureKey) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "unknown feature_key",
		})
	}
	if mode, ok := body.Config["executionMode"].(string); ok && !domain.ExecutionMode(mode).Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "invalid executionMode",
		})
	}

	flag := domain.FeatureFlag{
		FeatureKey: body.FeatureKey,
		IsEnabled:  body.IsEnabled,
		Config:     datatypes.JSONMap(body.Config),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := h.flagRepo.UpsertFlag(ctx, flag); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}

	current, err := h.flags.RefreshFeatureFlags(ctx)
	if err != nil {
		logger.Warn("flag reload after update failed", "feature_key", body.FeatureKey, "error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"flag":    flag,
		"current": current,
	})
}

// POST /api/v1/admin/brain/flags/reload
func (h *BrainAdminHandler) ReloadFlags(c echo.Context) error {
	current, err := h.flags.RefreshFeatureFlags(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"error":   err.Error(),
			"current": current,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"current": current,
	})
}

// GET /api/v1/admin/brain/rules
// Malformed rules are listed with their decode error.
func (h *BrainAdminHandler) ListRules(c echo.Context) error {
	tenantID, _, err := actor(c)
	if err != nil {
		return err
	}

	rows, err := h.rules.ListRules(c.Request().Context(), tenantID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}

	out := make([]RuleView, 0, len(rows))
	for _, r := range rows {
		v := RuleView{Rule: r}
		if _, err := r.Decode(); err != nil {
			v.DecodeError = err.Error()
		}
		out = append(out, v)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"rules": out,
	})
}

// GET /api/v1/admin/brain/decisions?user_id=1&rule_id=2&mode=execute&limit=50
func (h *BrainAdminHandler) ListDecisions(c echo.Context) error {
	tenantID, _, err := actor(c)
	if err != nil {
		return err
	}

	userID, err := queryUint(c, "user_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user_id"})
	}
	ruleID, err := queryUint(c, "rule_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid rule_id"})
	}
	mode := domain.ExecutionMode(c.QueryParam("mode"))
	if mode != "" && !mode.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid mode"})
	}

	logs, err := h.decisions.ListDecisions(c.Request().Context(), domain.DecisionLogFilter{
		TenantID: tenantID,
		UserID:   userID,
		RuleID:   ruleID,
		Mode:     mode,
		Limit:    queryInt(c, "limit", 100),
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"decisions": logs,
	})
}
