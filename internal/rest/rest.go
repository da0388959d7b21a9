package rest

import (
	"net/http"
	"strconv"

	"platformBrain/internal/middleware"

	"github.com/labstack/echo/v4"
)

// HeaderDeviceID identifies the client device for anonymous tracking.
const HeaderDeviceID = "X-Device-ID"

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

// actor reads the tenant and authenticated user set by the middleware chain.
// userID is 0 for anonymous requests.
func actor(c echo.Context) (tenantID, userID uint, err error) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "missing tenant")
	}
	userID, _ = middleware.UserID(c)
	return tenantID, userID, nil
}

func queryInt(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryUint(c echo.Context, name string) (uint, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(n), nil
}
