package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"platformBrain/pkg/logger"
	"platformBrain/pkg/utils"

	jsonres "platformBrain/pkg/response"

	"github.com/labstack/echo/v4"
)

const (
	ctxUserID   = "user_id"
	ctxRole     = "role"
	ctxTenantID = "tenant_id"
	ctxToken    = "token"

	HeaderTenantID = "X-Tenant-ID"
)

var errNoBearer = errors.New("missing authorization header")

// AuthMiddleware requires a valid bearer JWT.
func AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := authenticate(c); err != nil {
				return reject(c, err)
			}
			return next(c)
		}
	}
}

// OptionalAuth authenticates when an Authorization header is present and lets
// anonymous requests through untouched. A present but invalid token is still
// rejected.
func OptionalAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				return next(c)
			}
			if err := authenticate(c); err != nil {
				return reject(c, err)
			}
			return next(c)
		}
	}
}

type authError struct {
	status int
	code   string
	msg    string
}

func (e *authError) Error() string { return e.msg }

func reject(c echo.Context, err error) error {
	var ae *authError
	if errors.As(err, &ae) {
		return c.JSON(ae.status, jsonres.Error(ae.code, ae.msg, nil))
	}
	return c.JSON(http.StatusUnauthorized, jsonres.Error("UNAUTHORIZED", err.Error(), nil))
}

func authenticate(c echo.Context) error {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return &authError{http.StatusUnauthorized, "UNAUTHORIZED", errNoBearer.Error()}
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return &authError{http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format"}
	}

	tokenString := tokenParts[1]

	claims, err := utils.ParseJWT(tokenString)
	if err != nil {
		logger.Debug("failed to parse JWT", "error", err)
		return &authError{http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token"}
	}

	expAt, err := claims.GetExpirationTime()
	if err != nil || expAt == nil {
		return &authError{http.StatusForbidden, "FORBIDDEN", "Status Forbidden"}
	}
	if time.Now().After(expAt.Time) {
		return &authError{http.StatusForbidden, "FORBIDDEN", "Token expired"}
	}

	userIDUint, err := strconv.ParseUint(claims.UserID, 10, 64)
	if err != nil || userIDUint == 0 {
		logger.Warn("invalid user ID in token", "user_id", claims.UserID)
		return &authError{http.StatusForbidden, "FORBIDDEN", "Invalid user ID in token"}
	}

	if claims.TenantID != "" {
		tenantUint, err := strconv.ParseUint(claims.TenantID, 10, 64)
		if err != nil || tenantUint == 0 {
			return &authError{http.StatusForbidden, "FORBIDDEN", "Invalid tenant ID in token"}
		}
		c.Set(ctxTenantID, uint(tenantUint))
	}

	c.Set(ctxUserID, uint(userIDUint))
	c.Set(ctxRole, claims.Role)
	c.Set(ctxToken, tokenString)
	return nil
}

// TenantContext resolves the tenant for the request. The token's tenant wins;
// anonymous callers must send X-Tenant-ID. A header that contradicts the
// token is rejected.
func TenantContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := strings.TrimSpace(c.Request().Header.Get(HeaderTenantID))

			var fromHeader uint
			if header != "" {
				v, err := strconv.ParseUint(header, 10, 64)
				if err != nil || v == 0 {
					return c.JSON(http.StatusBadRequest, jsonres.Error(
						"BAD_REQUEST", "Invalid tenant header", nil,
					))
				}
				fromHeader = uint(v)
			}

			if fromToken, ok := c.Get(ctxTenantID).(uint); ok {
				if fromHeader != 0 && fromHeader != fromToken {
					return c.JSON(http.StatusForbidden, jsonres.Error(
						"FORBIDDEN", "Tenant mismatch", nil,
					))
				}
				return next(c)
			}

			if fromHeader == 0 {
				return c.JSON(http.StatusBadRequest, jsonres.Error(
					"BAD_REQUEST", "Missing tenant", nil,
				))
			}
			c.Set(ctxTenantID, fromHeader)
			return next(c)
		}
	}
}

func AdminOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !IsAdmin(c) {
				return c.JSON(http.StatusForbidden, jsonres.Error(
					"FORBIDDEN", "Admin access required", nil,
				))
			}

			return next(c)
		}
	}
}

func SelfOrAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			loggedInUserID, ok := UserID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "User not authenticated", nil,
				))
			}

			if IsAdmin(c) {
				return next(c)
			}

			requestedIDUint, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil {
				return c.JSON(http.StatusBadRequest, jsonres.Error(
					"BAD_REQUEST", "Invalid user ID", nil,
				))
			}

			if uint(requestedIDUint) != loggedInUserID {
				return c.JSON(http.StatusForbidden, jsonres.Error(
					"FORBIDDEN", "You can only access your own data", nil,
				))
			}

			return next(c)
		}
	}
}

// ---- Accessors ----

func UserID(c echo.Context) (uint, bool) {
	v, ok := c.Get(ctxUserID).(uint)
	return v, ok && v != 0
}

func TenantID(c echo.Context) (uint, bool) {
	v, ok := c.Get(ctxTenantID).(uint)
	return v, ok && v != 0
}

func IsAdmin(c echo.Context) bool {
	role, ok := c.Get(ctxRole).(string)
	return ok && strings.EqualFold(role, "ADMIN")
}
