package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"platformBrain/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// ---- fakes ----

type fakeRules struct {
	records []domain.RuleRecord
	err     error
}

func (f *fakeRules) ActiveRules(ctx context.Context, tenantID uint) ([]domain.RuleRecord, error) {
	return f.records, f.err
}

type fakeState struct {
	state *domain.UserState
	err   error
	calls int
}

func (f *fakeState) GetUserState(ctx context.Context, tenantID, userID uint) (*domain.UserState, error) {
	f.calls++
	return f.state, f.err
}

type fakeLogs struct {
	mu   sync.Mutex
	rows []domain.DecisionLog
	err  error
}

func (f *fakeLogs) SaveDecisions(ctx context.Context, logs []domain.DecisionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, logs...)
	return nil
}

func (f *fakeLogs) ListDecisions(ctx context.Context, filter domain.DecisionLogFilter) ([]domain.DecisionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DecisionLog
	for _, r := range f.rows {
		if r.TenantID == filter.TenantID && r.ExecutionMode == filter.Mode {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeSegments struct {
	members map[uint64]bool
	err     error
}

func (f fakeSegments) IsMember(ctx context.Context, tenantID, userID uint, segmentID uint64) (bool, error) {
	return f.members[segmentID], f.err
}

// ---- helpers ----

var baseTime = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func rule(id uint, priority int, created time.Time, conditions string, actions string) domain.RuleRecord {
	if actions == "" {
		actions = `[]`
	}
	return domain.RuleRecord{
		ID:         id,
		TenantID:   1,
		Name:       fmt.Sprintf("rule-%d", id),
		Conditions: datatypes.JSON(conditions),
		Actions:    datatypes.JSON(actions),
		Priority:   priority,
		IsActive:   true,
		CreatedAt:  created,
	}
}

func stateWith(readiness, price int) *fakeState {
	return &fakeState{state: &domain.UserState{
		TenantID:         1,
		UserID:           42,
		ReadinessScore:   readiness,
		PriceSensitivity: price,
		ActivityAffinity: []domain.CategoryAffinity{{CategoryID: 3, EngagementScore: 6}},
	}}
}

func productView() EvalContext {
	return EvalContext{
		TenantID:  1,
		UserID:    42,
		EventType: domain.EventProductView,
		EventData: map[string]any{"product_id": 7, "category_id": 3, "price": 500},
	}
}

func ruleIDs(ds []domain.Decision) []uint {
	out := make([]uint, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.RuleID)
	}
	return out
}

// ---- tests ----

func TestEvaluateRules_ScenarioMatch(t *testing.T) {
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 0, baseTime,
			`[{"type":"readiness_score","operator":">=","value":70}]`,
			`[{"type":"send_notification","params":{"title":"Special offer"}}]`),
	}}
	logs := &fakeLogs{}
	e := NewEngine(rules, stateWith(80, 50), nil, logs)
	e.SetMode(domain.ModeExecute)

	ev, err := e.EvaluateRules(context.Background(), productView())
	require.NoError(t, err)

	require.Len(t, ev.Decisions, 1)
	d := ev.Decisions[0]
	assert.True(t, d.Matched)
	assert.Equal(t, uint(1), d.RuleID)
	require.NotNil(t, d.StateSnapshot)
	assert.Equal(t, 80, d.StateSnapshot.ReadinessScore)
	require.Len(t, d.ConditionResults, 1)
	assert.Equal(t, 80, d.ConditionResults[0].Actual)
	assert.True(t, ev.Executed)

	require.Len(t, logs.rows, 1)
	row := logs.rows[0]
	assert.Equal(t, domain.ModeExecute, row.ExecutionMode)
	assert.True(t, row.Executed)
	assert.Equal(t, domain.EventProductView, row.EventType)
	require.NotNil(t, row.UserID)
	assert.Equal(t, uint(42), *row.UserID)

	var stored domain.Decision
	require.NoError(t, json.Unmarshal(row.DecisionData, &stored))
	require.Len(t, stored.Actions, 1)
	require.NotNil(t, stored.Actions[0].Notification)
	assert.Equal(t, "Special offer", stored.Actions[0].Notification.Title)
}

func TestEvaluateRules_ScenarioNoMatchWritesNothing(t *testing.T) {
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 0, baseTime, `[{"type":"readiness_score","operator":">=","value":95}]`, ""),
	}}
	logs := &fakeLogs{}
	e := NewEngine(rules, stateWith(80, 50), nil, logs)

	ev, err := e.EvaluateRules(context.Background(), productView())
	require.NoError(t, err)

	assert.Empty(t, ev.Decisions)
	assert.Equal(t, 1, ev.EvaluatedRuleCount)
	assert.False(t, ev.Executed)
	assert.Empty(t, logs.rows)
}

func TestEvaluateRules_Disabled(t *testing.T) {
	rules := &fakeRules{err: errors.New("must not be called")}
	e := NewEngine(rules, stateWith(80, 50), nil, &fakeLogs{})
	e.SetEnabled(false)

	ev, err := e.EvaluateRules(context.Background(), productView())
	require.NoError(t, err)
	assert.Empty(t, ev.Decisions)
	assert.Zero(t, ev.EvaluatedRuleCount)
}

func TestEvaluateRules_PriorityOrder(t *testing.T) {
	always := `[{"type":"event_type","value":"product_view"}]`
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 10, baseTime, always, ""),
		rule(2, 5, baseTime, always, ""),
		rule(3, 20, baseTime, always, ""),
	}}
	e := NewEngine(rules, stateWith(0, 50), nil, &fakeLogs{})

	ev, err := e.EvaluateRules(context.Background(), productView())
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 1, 2}, ruleIDs(ev.Decisions))
}

func TestEvaluateRules_PriorityTieNewestFirst(t *testing.T) {
	always := `[{"type":"event_type","value":"product_view"}]`
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 10, baseTime, always, ""),
		rule(2, 10, baseTime.Add(time.Hour), always, ""),
		rule(3, 20, baseTime, always, ""),
	}}
	e := NewEngine(rules, stateWith(0, 50), nil, &fakeLogs{})

	ev, err := e.EvaluateRules(context.Background(), productView())
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 2, 1}, ruleIDs(ev.Decisions))
}

func TestEvaluateRules_FailClosedWithoutState(t *testing.T) {
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 0, baseTime, `[{"type":"readiness_score","operator":">=","value":0}]`, ""),
		rule(2, 0, baseTime, `[{"type":"price_sensitivity","operator":"<=","value":100}]`, ""),
		rule(3, 0, baseTime, `[{"type":"category_affinity","category_id":3,"operator":">=","value":0}]`, ""),
		rule(4, 0, baseTime, `[{"type":"readiness_score","operator":"!=","value":55}]`, ""),
	}}
	state := &fakeState{err: errors.New("history store down")}
	logs := &fakeLogs{}
	e := NewEngine(rules, state, nil, logs)

	ev, err := e.EvaluateRules(context.Background(), productView())
	require.NoError(t, err)

	assert.Empty(t, ev.Decisions)
	assert.Equal(t, 4, ev.EvaluatedRuleCount)
	assert.Equal(t, 1, state.calls, "state is fetched once per evaluation")
	assert.NotEmpty(t, ev.Warnings)
	assert.Empty(t, logs.rows)
}

func TestEvaluateRules_FailClosedOnDegradedSignal(t *testing.T) {
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 0, baseTime, `[{"type":"price_sensitivity","operator":"==","value":50}]`, ""),
		rule(2, 0, baseTime, `[{"type":"readiness_score","operator":">=","value":70}]`, ""),
	}}
	state := stateWith(80, 50)
	state.state.Degraded = []string{domain.SignalPriceSensitivity}
	e := NewEngine(rules, state, nil, &fakeLogs{})

	ev, err := e.EvaluateRules(context.Background(), productView())
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, ruleIDs(ev.Decisions))
}

func TestEvaluateRules_MalformedRuleSkipped(t *testing.T) {
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 0, baseTime, `[{"type":"moon_phase","value":1}]`, ""),
		rule(2, 0, baseTime, `[]`, ""),
		rule(3, 0, baseTime, `[{"type":"event_type","value":"product_view"}]`, ""),
	}}
	e := NewEngine(rules, stateWith(0, 50), nil, &fakeLogs{})

	ev, err := e.EvaluateRules(context.Background(), productView())
	require.NoError(t, err)

	assert.Equal(t, []uint{3}, ruleIDs(ev.Decisions))
	assert.Equal(t, 2, ev.SkippedRuleCount)
	assert.Len(t, ev.Warnings, 2)
}

func TestEvaluateRules_RuleLoadError(t *testing.T) {
	e := NewEngine(&fakeRules{err: errors.New("db down")}, stateWith(0, 50), nil, &fakeLogs{})

	_, err := e.EvaluateRules(context.Background(), productView())
	assert.Error(t, err)
}

func TestEvaluateRules_PersistFailureIsWarning(t *testing.T) {
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 0, baseTime, `[{"type":"event_type","value":"product_view"}]`, ""),
	}}
	e := NewEngine(rules, stateWith(0, 50), nil, &fakeLogs{err: errors.New("insert failed")})

	ev, err := e.EvaluateRules(context.Background(), productView())
	require.NoError(t, err)
	assert.Len(t, ev.Decisions, 1)
	assert.NotEmpty(t, ev.Warnings)
}

func TestEvaluateRules_ExecutedTagFollowsModeAndDispatch(t *testing.T) {
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 0, baseTime, `[{"type":"event_type","value":"product_view"}]`, ""),
	}}

	for _, tc := range []struct {
		mode     domain.ExecutionMode
		dispatch bool
		want     bool
	}{
		{domain.ModeLogOnly, true, false},
		{domain.ModeSuggestOnly, true, false},
		{domain.ModeExecute, true, true},
		{domain.ModeExecute, false, false},
	} {
		logs := &fakeLogs{}
		e := NewEngine(rules, stateWith(0, 50), nil, logs)
		e.SetMode(tc.mode)
		e.SetDispatchEnabled(tc.dispatch)

		_, err := e.EvaluateRules(context.Background(), productView())
		require.NoError(t, err)
		require.Len(t, logs.rows, 1)
		assert.Equal(t, tc.mode, logs.rows[0].ExecutionMode)
		assert.Equal(t, tc.want, logs.rows[0].Executed, "mode=%s dispatch=%v", tc.mode, tc.dispatch)
	}
}

func TestSetMode_InvalidFallsBackToLogOnly(t *testing.T) {
	e := NewEngine(&fakeRules{}, nil, nil, nil)
	e.SetMode(domain.ModeExecute)
	e.SetMode("yolo")
	assert.Equal(t, domain.ModeLogOnly, e.Mode())
}

func TestEvaluateRules_ConditionMapping(t *testing.T) {
	ec := productView()
	ec.EventData["cart_value"] = "250.5"
	segs := fakeSegments{members: map[uint64]bool{4: true}}

	cases := []struct {
		name      string
		condition string
		want      bool
	}{
		{"affinity above", `{"type":"category_affinity","category_id":3,"operator":">","value":5}`, true},
		{"affinity unknown category", `{"type":"category_affinity","category_id":8,"operator":"<","value":5}`, false},
		{"event type not equal", `{"type":"event_type","operator":"!=","value":"purchase"}`, true},
		{"cart value string", `{"type":"cart_value","operator":">=","value":250}`, true},
		{"segment member", `{"type":"user_segment","segment_id":4}`, true},
		{"segment expected non member", `{"type":"user_segment","segment_id":4,"value":false}`, false},
		{"segment not member inverted", `{"type":"user_segment","segment_id":5,"operator":"!="}`, true},
		{"price equals", `{"type":"price_sensitivity","operator":"=","value":50}`, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rules := &fakeRules{records: []domain.RuleRecord{rule(1, 0, baseTime, "["+tc.condition+"]", "")}}
			e := NewEngine(rules, stateWith(80, 50), segs, &fakeLogs{})

			ev, err := e.EvaluateRules(context.Background(), ec)
			require.NoError(t, err)
			assert.Equal(t, tc.want, len(ev.Decisions) == 1)
		})
	}
}

func TestEvaluateRules_CartValueMissingFails(t *testing.T) {
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 0, baseTime, `[{"type":"cart_value","operator":">=","value":0}]`, ""),
	}}
	e := NewEngine(rules, stateWith(80, 50), nil, &fakeLogs{})

	ev, err := e.EvaluateRules(context.Background(), productView())
	require.NoError(t, err)
	assert.Empty(t, ev.Decisions)
}

func TestEvaluateRules_SegmentLookupErrorFails(t *testing.T) {
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 0, baseTime, `[{"type":"user_segment","segment_id":4,"value":false}]`, ""),
	}}
	e := NewEngine(rules, stateWith(80, 50), fakeSegments{err: errors.New("timeout")}, &fakeLogs{})

	ev, err := e.EvaluateRules(context.Background(), productView())
	require.NoError(t, err)
	assert.Empty(t, ev.Decisions)
}

func TestEvaluateRules_AnonymousOnlyEventRules(t *testing.T) {
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 0, baseTime, `[{"type":"event_type","value":"product_view"}]`, ""),
		rule(2, 0, baseTime, `[{"type":"readiness_score","operator":">=","value":0}]`, ""),
	}}
	state := stateWith(80, 50)
	e := NewEngine(rules, state, nil, &fakeLogs{})

	ec := productView()
	ec.UserID = 0
	ev, err := e.EvaluateRules(context.Background(), ec)
	require.NoError(t, err)

	assert.Equal(t, []uint{1}, ruleIDs(ev.Decisions))
	assert.Zero(t, state.calls)
	assert.Empty(t, ev.Warnings)
}

// A conjunction matches iff every condition passes on its own.
func TestEvaluateRules_ConjunctionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const readiness = 60

	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(4)
		conds := make([]string, n)
		wantAll := true
		for j := range conds {
			threshold := rng.Intn(101)
			conds[j] = fmt.Sprintf(`{"type":"readiness_score","operator":">=","value":%d}`, threshold)
			if readiness < threshold {
				wantAll = false
			}
		}

		raw := "[" + strings.Join(conds, ",") + "]"
		rules := &fakeRules{records: []domain.RuleRecord{rule(1, 0, baseTime, raw, "")}}
		e := NewEngine(rules, stateWith(readiness, 50), nil, &fakeLogs{})

		ev, err := e.EvaluateRules(context.Background(), productView())
		require.NoError(t, err)
		assert.Equal(t, wantAll, len(ev.Decisions) == 1, raw)
	}
}

func TestSuggestions(t *testing.T) {
	rules := &fakeRules{records: []domain.RuleRecord{
		rule(1, 0, baseTime, `[{"type":"event_type","value":"product_view"}]`,
			`[{"type":"show_campaign","params":{"campaign_id":"summer"}}]`),
	}}
	logs := &fakeLogs{}
	e := NewEngine(rules, stateWith(0, 50), nil, logs)
	e.SetMode(domain.ModeSuggestOnly)

	_, err := e.EvaluateRules(context.Background(), productView())
	require.NoError(t, err)

	out, err := e.Suggestions(context.Background(), 1, 42, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Actions, 1)
	require.NotNil(t, out[0].Actions[0].Campaign)
	assert.Equal(t, "summer", out[0].Actions[0].Campaign.CampaignID.String())
}

func TestCompare(t *testing.T) {
	assert.True(t, Compare(5, domain.OpGreater, 4))
	assert.False(t, Compare(4, domain.OpGreater, 4))
	assert.True(t, Compare(4, domain.OpGreaterEqual, 4))
	assert.True(t, Compare(3, domain.OpLess, 4))
	assert.True(t, Compare(4, domain.OpLessEqual, 4))
	assert.True(t, Compare(4, domain.OpEqual, 4))
	assert.True(t, Compare(4, domain.OpAssignEqual, 4))
	assert.True(t, Compare(5, domain.OpNotEqual, 4))
	assert.False(t, Compare(5, domain.Operator("~"), 4))
}
