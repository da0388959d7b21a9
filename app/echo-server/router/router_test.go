package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"platformBrain/internal/rest"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestSetupOpsRoutes(t *testing.T) {
	e := echo.New()
	var readyErr error
	SetupOpsRoutes(e, func() error { return readyErr })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	readyErr = errors.New("db down")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	e := echo.New()
	api := e.Group("/api/v1")
	SetOrdersRoutes(api, rest.NewOrdersHandler(nil))
	SetBrainAdminRoutes(api, rest.NewBrainAdminHandler(nil, nil, nil, nil))
	SetupRecommendationRoutes(api, rest.NewRecommendationHandler(nil))

	for _, path := range []string{"/api/v1/orders", "/api/v1/admin/brain/flags", "/api/v1/homepage"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}
