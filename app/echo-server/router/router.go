package router

import (
	"net/http"

	"platformBrain/internal/middleware"
	"platformBrain/internal/rest"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupBrainRoutes(api *echo.Group, handler *rest.BrainHandler) {
	brain := api.Group("/brain")

	brain.POST("/events", handler.TrackEvent, middleware.OptionalAuth(), middleware.TenantContext())
	brain.GET("/users/:id/state", handler.GetUserState,
		middleware.AuthMiddleware(), middleware.TenantContext(), middleware.SelfOrAdmin())
	brain.GET("/suggestions", handler.GetSuggestions, middleware.AuthMiddleware(), middleware.TenantContext())
}

func SetupRecommendationRoutes(api *echo.Group, handler *rest.RecommendationHandler) {
	authRequired := []echo.MiddlewareFunc{middleware.AuthMiddleware(), middleware.TenantContext()}
	api.GET("/recommendations", handler.GetRecommendations, authRequired...)
	api.GET("/homepage", handler.GetHomepage, authRequired...)
}

func SetOrdersRoutes(api *echo.Group, ordersHandler *rest.OrdersHandler) {
	orders := api.Group("/orders", middleware.AuthMiddleware(), middleware.TenantContext())
	orders.POST("", ordersHandler.CreateOrder)
	orders.GET("", ordersHandler.ListOrders)
}

func SetBrainAdminRoutes(api *echo.Group, handler *rest.BrainAdminHandler) {
	admin := api.Group("/admin/brain",
		middleware.AuthMiddleware(), middleware.AdminOnly(), middleware.TenantContext())

	admin.GET("/flags", handler.GetFlags)
	admin.PUT("/flags", handler.UpsertFlag)
	admin.POST("/flags/reload", handler.ReloadFlags)
	admin.GET("/rules", handler.ListRules)
	admin.GET("/decisions", handler.ListDecisions)
}

// SetupOpsRoutes mounts /metrics and /healthz outside the API prefix.
func SetupOpsRoutes(e *echo.Echo, ready func() error) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		if ready != nil {
			if err := ready(); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": err.Error()})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
}
