package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"platformBrain/domain"
	"platformBrain/pkg/logger"
	"platformBrain/pkg/tracing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ---- Repository interfaces ----

type RuleRepository interface {
	ActiveRules(ctx context.Context, tenantID uint) ([]domain.RuleRecord, error)
}

type StateProvider interface {
	GetUserState(ctx context.Context, tenantID, userID uint) (*domain.UserState, error)
}

type DecisionLogRepository interface {
	SaveDecisions(ctx context.Context, logs []domain.DecisionLog) error
	ListDecisions(ctx context.Context, filter domain.DecisionLogFilter) ([]domain.DecisionLog, error)
}

// EvalContext is what a single evaluation runs against.
type EvalContext struct {
	TenantID  uint
	UserID    uint
	EventType string
	EventData map[string]any
}

type Evaluation struct {
	Decisions          []domain.Decision    `json:"decisions"`
	EvaluatedRuleCount int                  `json:"evaluated_rule_count"`
	SkippedRuleCount   int                  `json:"skipped_rule_count"`
	Mode               domain.ExecutionMode `json:"execution_mode"`
	Executed           bool                 `json:"executed"`
	Warnings           []string             `json:"warnings,omitempty"`
}

// ---- Engine ----

type Engine struct {
	rules    RuleRepository
	state    StateProvider
	segments SegmentChecker
	logs     DecisionLogRepository

	enabled  atomic.Bool
	dispatch atomic.Bool
	mode     atomic.Value // domain.ExecutionMode

	now   func() time.Time
	newID func() string
}

func NewEngine(
	rules RuleRepository,
	state StateProvider,
	segments SegmentChecker,
	logs DecisionLogRepository,
) *Engine {
	if segments == nil {
		segments = NoopSegmentChecker{}
	}
	e := &Engine{
		rules:    rules,
		state:    state,
		segments: segments,
		logs:     logs,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	e.enabled.Store(true)
	e.dispatch.Store(true)
	e.mode.Store(domain.ModeLogOnly)
	return e
}

func (e *Engine) SetEnabled(enabled bool) {
	e.enabled.Store(enabled)
}

func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// SetMode switches the process-wide execution mode. Invalid modes fall back
// to log_only.
func (e *Engine) SetMode(mode domain.ExecutionMode) {
	if !mode.Valid() {
		logger.Warn("invalid execution mode, using log_only", "mode", mode)
		mode = domain.ModeLogOnly
	}
	e.mode.Store(mode)
}

func (e *Engine) Mode() domain.ExecutionMode {
	return e.mode.Load().(domain.ExecutionMode)
}

// SetDispatchEnabled records whether the dispatcher stage is on, so audit
// rows say whether their actions will really run.
func (e *Engine) SetDispatchEnabled(enabled bool) {
	e.dispatch.Store(enabled)
}

func (e *Engine) willExecute(mode domain.ExecutionMode) bool {
	return mode == domain.ModeExecute && e.dispatch.Load()
}

// EvaluateRules runs every active tenant rule against the event and the
// user's state, highest priority first. Only matched rules produce
// decisions, and those are written to the audit log before returning.
func (e *Engine) EvaluateRules(ctx context.Context, ec EvalContext) (Evaluation, error) {
	mode := e.Mode()
	out := Evaluation{Decisions: []domain.Decision{}, Mode: mode}

	if !e.Enabled() {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("context error: %w", err)
	}

	ctx, span := tracing.StartSpan(ctx, "decision.evaluate",
		tracing.Tenant(ec.TenantID), tracing.User(ec.UserID), tracing.EventType(ec.EventType))
	defer span.End()

	records, err := e.rules.ActiveRules(ctx, ec.TenantID)
	if err != nil {
		return out, fmt.Errorf("load rules: %w", err)
	}

	rules := make([]domain.Rule, 0, len(records))
	for _, rec := range records {
		rule, err := rec.Decode()
		if err == nil && len(rule.Conditions) == 0 {
			err = fmt.Errorf("rule %d has no conditions", rec.ID)
		}
		if err != nil {
			out.SkippedRuleCount++
			out.Warnings = append(out.Warnings, err.Error())
			ruleDecodeErrorsTotal.Inc()
			logger.Warn("skipping malformed rule", "tenant_id", ec.TenantID, "rule_id", rec.ID, "error", err)
			continue
		}
		rules = append(rules, rule)
	}
	SortRules(rules)

	state := &lazyState{provider: e.state, tenantID: ec.TenantID, userID: ec.UserID}

	for _, rule := range rules {
		out.EvaluatedRuleCount++
		d := e.evaluateRule(ctx, rule, ec, state)
		if d.Matched {
			out.Decisions = append(out.Decisions, d)
		}
	}
	if state.err != nil && !errors.Is(state.err, errNoUser) {
		out.Warnings = append(out.Warnings, "user state unavailable: "+state.err.Error())
	}

	rulesEvaluatedTotal.Add(float64(out.EvaluatedRuleCount))
	out.Executed = len(out.Decisions) > 0 && e.willExecute(mode)

	if len(out.Decisions) == 0 {
		return out, nil
	}
	decisionsTotal.WithLabelValues(string(mode)).Add(float64(len(out.Decisions)))

	if err := e.persist(ctx, ec, out.Decisions, mode, out.Executed); err != nil {
		out.Warnings = append(out.Warnings, err.Error())
		logger.Warn("failed to persist decisions", "tenant_id", ec.TenantID, "user_id", ec.UserID, "error", err)
	}

	return out, nil
}

// SortRules orders by priority, then newest first. Equal keys keep the
// store's order.
func SortRules(rules []domain.Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].CreatedAt.After(rules[j].CreatedAt)
	})
}

func (e *Engine) evaluateRule(ctx context.Context, rule domain.Rule, ec EvalContext, state *lazyState) domain.Decision {
	d := domain.Decision{
		ID:               e.newID(),
		RuleID:           rule.ID,
		RuleName:         rule.Name,
		Priority:         rule.Priority,
		ConditionResults: make([]domain.ConditionResult, 0, len(rule.Conditions)),
		Actions:          rule.Actions,
		Timestamp:        e.now().UTC(),
	}

	matched := true
	usedState := false
	for _, c := range rule.Conditions {
		res := e.evaluateCondition(ctx, c, ec, state)
		if c.NeedsState() {
			usedState = true
		}
		if !res.Passed {
			matched = false
		}
		d.ConditionResults = append(d.ConditionResults, res)
	}
	d.Matched = matched

	if usedState {
		if st, err := state.get(ctx); err == nil {
			d.StateSnapshot = &domain.StateSnapshot{
				ReadinessScore:   st.ReadinessScore,
				PriceSensitivity: st.PriceSensitivity,
			}
		}
	}

	return d
}

func (e *Engine) persist(ctx context.Context, ec EvalContext, decisions []domain.Decision, mode domain.ExecutionMode, executed bool) error {
	if e.logs == nil {
		return nil
	}

	eventData, err := json.Marshal(ec.EventData)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}

	var userID *uint
	if ec.UserID != 0 {
		uid := ec.UserID
		userID = &uid
	}

	rows := make([]domain.DecisionLog, 0, len(decisions))
	for _, d := range decisions {
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode decision %s: %w", d.ID, err)
		}
		rows = append(rows, domain.DecisionLog{
			DecisionID:    d.ID,
			TenantID:      ec.TenantID,
			UserID:        userID,
			RuleID:        d.RuleID,
			EventType:     ec.EventType,
			EventData:     datatypes.JSON(eventData),
			DecisionData:  datatypes.JSON(payload),
			ExecutionMode: mode,
			Executed:      executed,
		})
	}

	if err := e.logs.SaveDecisions(ctx, rows); err != nil {
		return fmt.Errorf("save decisions: %w", err)
	}
	return nil
}

// Suggestions returns the user's most recent suggest_only decisions for
// external consumers.
func (e *Engine) Suggestions(ctx context.Context, tenantID, userID uint, limit int) ([]domain.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if e.logs == nil {
		return []domain.Decision{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := e.logs.ListDecisions(ctx, domain.DecisionLogFilter{
		TenantID: tenantID,
		UserID:   userID,
		Mode:     domain.ModeSuggestOnly,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	out := make([]domain.Decision, 0, len(rows))
	for _, row := range rows {
		var d domain.Decision
		if err := json.Unmarshal(row.DecisionData, &d); err != nil {
			logger.Warn("skipping unreadable decision log", "id", row.ID, "error", err)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// lazyState fetches the user state at most once per evaluation, and only if
// some rule needs it.
type lazyState struct {
	provider StateProvider
	tenantID uint
	userID   uint

	once  sync.Once
	state *domain.UserState
	err   error
}

var errNoUser = errors.New("anonymous event has no user state")

func (l *lazyState) get(ctx context.Context) (*domain.UserState, error) {
	l.once.Do(func() {
		switch {
		case l.userID == 0:
			l.err = errNoUser
		case l.provider == nil:
			l.err = fmt.Errorf("user state engine not configured")
		default:
			l.state, l.err = l.provider.GetUserState(ctx, l.tenantID, l.userID)
			if l.err == nil && l.state == nil {
				l.err = fmt.Errorf("user state engine returned no state")
			}
		}
	})
	return l.state, l.err
}
