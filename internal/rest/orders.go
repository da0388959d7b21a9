package rest

import (
	"context"
	"errors"
	"net/http"

	"platformBrain/business/eventadapter"
	"platformBrain/business/orders"
	"platformBrain/domain"
	"platformBrain/pkg/logger"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	OrdersHandler struct {
		validate      *validator.Validate
		ordersService OrdersService
	}

	OrdersService interface {
		CreateOrder(ctx context.Context, actor eventadapter.Actor, req domain.CreateOrderRequest) ([]domain.Orders, error)
		ListOrders(ctx context.Context, tenantID, userID uint) ([]domain.Orders, error)
	}
)

func NewOrdersHandler(ordersService OrdersService) *OrdersHandler {
	return &OrdersHandler{
		validate:      validator.New(),
		ordersService: ordersService,
	}
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(c echo.Context) error {
	tenantID, userID, err := actor(c)
	if err != nil {
		return err
	}

	var request domain.CreateOrderRequest
	if err := c.Bind(&request); err != nil {
		logger.Debug("Invalid request body", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	created, err := h.ordersService.CreateOrder(c.Request().Context(), eventadapter.Actor{
		TenantID: tenantID,
		UserID:   userID,
		DeviceID: c.Request().Header.Get(HeaderDeviceID),
	}, request)
	if errors.Is(err, orders.ErrEmptyOrder) {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err != nil {
		logger.Error("Failed to create order", "tenant_id", tenantID, "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to create order"})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(created))
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(c echo.Context) error {
	tenantID, userID, err := actor(c)
	if err != nil {
		return err
	}

	list, err := h.ordersService.ListOrders(c.Request().Context(), tenantID, userID)
	if err != nil {
		logger.Error("Failed to list orders", "tenant_id", tenantID, "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to list orders"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(list))
}
