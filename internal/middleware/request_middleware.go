package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"platformBrain/business/brain"
	"platformBrain/pkg/logger"
	"platformBrain/pkg/metrics"

	jsonres "platformBrain/pkg/response"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const HeaderRequestID = "X-Request-ID"

// RequestContext assigns a request id, echoes it back and threads it into the
// request context as the trace id the brain logs with.
func RequestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(HeaderRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, id)
			c.SetRequest(req.WithContext(brain.WithTraceID(req.Context(), id)))
			return next(c)
		}
	}
}

// Observe records latency and status per route template.
func Observe() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := c.Response().Status

			metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()

			logger.Debug("http request",
				"method", method,
				"route", route,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(HeaderRequestID),
			)
			return nil
		}
	}
}

// Recover turns handler panics into a 500 envelope.
func Recover() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic in handler",
						"panic", fmt.Sprint(r),
						"route", c.Path(),
						"stack", string(debug.Stack()),
					)
					err = c.JSON(http.StatusInternalServerError, jsonres.Error(
						"INTERNAL_ERROR", "Internal server error", nil,
					))
				}
			}()
			return next(c)
		}
	}
}
