package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"platformBrain/business/brain"
	"platformBrain/business/eventadapter"
	"platformBrain/business/orders"
	"platformBrain/domain"
	"platformBrain/internal/middleware"
	"platformBrain/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func init() {
	utils.SetJWTSecret("rest-test-secret")
}

// ---- fakes ----

type fakeBrain struct {
	tracked  []domain.RawEvent
	accept   bool
	state    *domain.UserState
	stateErr error
	suggest  []domain.Decision
}

func (f *fakeBrain) Track(_ context.Context, raw domain.RawEvent) bool {
	f.tracked = append(f.tracked, raw)
	return f.accept
}

func (f *fakeBrain) GetUserState(_ context.Context, tenantID, userID uint) (*domain.UserState, error) {
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	return f.state, nil
}

func (f *fakeBrain) Suggestions(_ context.Context, tenantID, userID uint, limit int) ([]domain.Decision, error) {
	return f.suggest, nil
}

type fakeOrders struct {
	actor eventadapter.Actor
	req   domain.CreateOrderRequest
	err   error
}

func (f *fakeOrders) CreateOrder(_ context.Context, a eventadapter.Actor, req domain.CreateOrderRequest) ([]domain.Orders, error) {
	f.actor, f.req = a, req
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Orders{{ID: 1, TenantID: a.TenantID, UserID: a.UserID}}, nil
}

func (f *fakeOrders) ListOrders(context.Context, uint, uint) ([]domain.Orders, error) {
	return []domain.Orders{}, nil
}

type fakeFlags struct {
	rows     []domain.FeatureFlag
	upserted []domain.FeatureFlag
	reloads  int
}

func (f *fakeFlags) ListFlags(context.Context) ([]domain.FeatureFlag, error) { return f.rows, nil }
func (f *fakeFlags) UpsertFlag(_ context.Context, flag domain.FeatureFlag) error {
	f.upserted = append(f.upserted, flag)
	return nil
}
func (f *fakeFlags) RefreshFeatureFlags(context.Context) (brain.Flags, error) {
	f.reloads++
	return brain.Flags{Platform: true, Mode: domain.ModeLogOnly}, nil
}
func (f *fakeFlags) Flags() brain.Flags { return brain.Flags{Mode: domain.ModeLogOnly} }

type fakeRules struct{ rows []domain.RuleRecord }

func (f fakeRules) ListRules(context.Context, uint) ([]domain.RuleRecord, error) { return f.rows, nil }

type fakeDecisions struct{ filter domain.DecisionLogFilter }

func (f *fakeDecisions) ListDecisions(_ context.Context, filter domain.DecisionLogFilter) ([]domain.DecisionLog, error) {
	f.filter = filter
	return []domain.DecisionLog{}, nil
}

// ---- helpers ----

func bearer(t *testing.T, userID, role, tenant string) string {
	t.Helper()
	tok, err := utils.GenerateJWT(userID, role, tenant)
	require.NoError(t, err)
	return "Bearer " + tok
}

// serve runs h behind the same auth and tenant middleware the router uses.
func serve(method, target, body string, headers map[string]string, h echo.HandlerFunc, params ...string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	chain := middleware.OptionalAuth()(middleware.TenantContext()(h))
	if err := chain(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

// ---- tests ----

func TestBrainHandler_TrackEvent(t *testing.T) {
	fb := &fakeBrain{accept: true}
	h := NewBrainHandler(fb)

	rec := serve(http.MethodPost, "/api/v1/brain/events",
		`{"event_type":"add_to_cart","user_id":99,"tenant_id":42,"properties":{"productId":5}}`,
		map[string]string{"Authorization": bearer(t, "7", "customer", "3")},
		h.TrackEvent)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, fb.tracked, 1)
	assert.Equal(t, uint(3), fb.tracked[0].TenantID)
	assert.Equal(t, uint(7), fb.tracked[0].UserID)
	assert.Equal(t, "add_to_cart", fb.tracked[0].EventType)

	var resp TrackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
}

func TestBrainHandler_TrackEventAnonymous(t *testing.T) {
	fb := &fakeBrain{accept: false}
	h := NewBrainHandler(fb)

	rec := serve(http.MethodPost, "/api/v1/brain/events",
		`{"event_type":"product_view","user_id":99}`,
		map[string]string{middleware.HeaderTenantID: "5", HeaderDeviceID: "dev-1"},
		h.TrackEvent)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, fb.tracked, 1)
	assert.Zero(t, fb.tracked[0].UserID)
	assert.Equal(t, "dev-1", fb.tracked[0].DeviceID)
	assert.Contains(t, rec.Body.String(), `"accepted":false`)
}

func TestBrainHandler_TrackEventValidation(t *testing.T) {
	fb := &fakeBrain{accept: true}
	h := NewBrainHandler(fb)

	rec := serve(http.MethodPost, "/api/v1/brain/events", `{"properties":{}}`,
		map[string]string{middleware.HeaderTenantID: "5"}, h.TrackEvent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fb.tracked)

	rec = serve(http.MethodPost, "/api/v1/brain/events", `{"event_type":"x"}`, nil, h.TrackEvent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrainHandler_GetUserState(t *testing.T) {
	auth := map[string]string{"Authorization": bearer(t, "7", "customer", "3")}

	fb := &fakeBrain{state: &domain.UserState{TenantID: 3, UserID: 7, ReadinessScore: 60}}
	rec := serve(http.MethodGet, "/", "", auth, NewBrainHandler(fb).GetUserState, "id", "7")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"readiness_score":60`)

	fb = &fakeBrain{stateErr: brain.ErrStateDisabled}
	rec = serve(http.MethodGet, "/", "", auth, NewBrainHandler(fb).GetUserState, "id", "7")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	fb = &fakeBrain{stateErr: errors.New("db down")}
	rec = serve(http.MethodGet, "/", "", auth, NewBrainHandler(fb).GetUserState, "id", "7")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(http.MethodGet, "/", "", auth, NewBrainHandler(fb).GetUserState, "id", "abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrainHandler_GetSuggestions(t *testing.T) {
	fb := &fakeBrain{suggest: []domain.Decision{{ID: "d1", RuleID: 2, Matched: true}}}
	h := NewBrainHandler(fb)

	rec := serve(http.MethodGet, "/?limit=5", "",
		map[string]string{"Authorization": bearer(t, "7", "customer", "3")}, h.GetSuggestions)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"d1"`)

	rec = serve(http.MethodGet, "/", "", map[string]string{middleware.HeaderTenantID: "3"}, h.GetSuggestions)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrdersHandler_CreateOrder(t *testing.T) {
	auth := map[string]string{"Authorization": bearer(t, "7", "customer", "3"), HeaderDeviceID: "dev-9"}

	fo := &fakeOrders{}
	h := NewOrdersHandler(fo)
	rec := serve(http.MethodPost, "/api/v1/orders",
		`{"items":[{"product_id":1,"category_id":2,"quantity":2,"price_each":9.5}],"payment_method":"card"}`,
		auth, h.CreateOrder)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint(3), fo.actor.TenantID)
	assert.Equal(t, uint(7), fo.actor.UserID)
	assert.Equal(t, "dev-9", fo.actor.DeviceID)
	require.Len(t, fo.req.Items, 1)

	rec = serve(http.MethodPost, "/api/v1/orders", `{"items":[{"product_id":1,"quantity":0,"price_each":1}]}`, auth, h.CreateOrder)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	fo.err = orders.ErrEmptyOrder
	rec = serve(http.MethodPost, "/api/v1/orders", `{"items":[{"product_id":1,"quantity":1,"price_each":1}]}`, auth, h.CreateOrder)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	fo.err = errors.New("db down")
	rec = serve(http.MethodPost, "/api/v1/orders", `{"items":[{"product_id":1,"quantity":1,"price_each":1}]}`, auth, h.CreateOrder)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBrainAdminHandler_Flags(t *testing.T) {
	admin := map[string]string{"Authorization": bearer(t, "1", "admin", "3")}
	ff := &fakeFlags{rows: []domain.FeatureFlag{{FeatureKey: domain.FlagPlatformBrain, IsEnabled: true}}}
	h := NewBrainAdminHandler(ff, ff, fakeRules{}, &fakeDecisions{})

	rec := serve(http.MethodGet, "/", "", admin, h.GetFlags)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.FlagPlatformBrain)

	rec = serve(http.MethodPut, "/", `{"feature_key":"nope","is_enabled":true}`, admin, h.UpsertFlag)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(http.MethodPut, "/", `{"feature_key":"decision_engine_enabled","is_enabled":true,"config":{"executionMode":"yolo"}}`, admin, h.UpsertFlag)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(http.MethodPut, "/", `{"feature_key":"decision_engine_enabled","is_enabled":true,"config":{"executionMode":"execute"}}`, admin, h.UpsertFlag)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ff.upserted, 1)
	assert.Equal(t, datatypes.JSONMap{"executionMode": "execute"}, ff.upserted[0].Config)
	assert.Equal(t, 1, ff.reloads)

	rec = serve(http.MethodPost, "/", "", admin, h.ReloadFlags)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, ff.reloads)
}

func TestBrainAdminHandler_RulesAndDecisions(t *testing.T) {
	admin := map[string]string{"Authorization": bearer(t, "1", "admin", "3")}
	rules := fakeRules{rows: []domain.RuleRecord{
		{ID: 1, Name: "ok", Conditions: datatypes.JSON(`[]`), Actions: datatypes.JSON(`[]`)},
		{ID: 2, Name: "broken", Conditions: datatypes.JSON(`{"type":"readiness_score"}`)},
	}}
	fd := &fakeDecisions{}
	h := NewBrainAdminHandler(&fakeFlags{}, &fakeFlags{}, rules, fd)

	rec := serve(http.MethodGet, "/", "", admin, h.ListRules)
	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Rules []RuleView `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rules, 2)
	assert.Empty(t, body.Rules[0].DecodeError)
	assert.NotEmpty(t, body.Rules[1].DecodeError)

	rec = serve(http.MethodGet, "/?user_id=7&rule_id=2&mode=suggest_only&limit=5", "", admin, h.ListDecisions)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DecisionLogFilter{TenantID: 3, UserID: 7, RuleID: 2, Mode: domain.ModeSuggestOnly, Limit: 5}, fd.filter)

	rec = serve(http.MethodGet, "/?mode=bogus", "", admin, h.ListDecisions)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
