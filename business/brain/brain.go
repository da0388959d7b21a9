package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"platformBrain/business/decision"
	"platformBrain/business/dispatcher"
	"platformBrain/domain"
	"platformBrain/pkg/logger"
	"platformBrain/pkg/tracing"
	"platformBrain/pkg/workqueue"
)

// ---- Collaborators ----

type EventNormalizer interface {
	Normalize(ctx context.Context, raw domain.RawEvent) (*domain.Event, error)
}

type StateService interface {
	GetUserState(ctx context.Context, tenantID, userID uint) (*domain.UserState, error)
	Refresh(ctx context.Context, tenantID, userID uint) error
}

type Evaluator interface {
	EvaluateRules(ctx context.Context, ec decision.EvalContext) (decision.Evaluation, error)
	SetEnabled(enabled bool)
	SetMode(mode domain.ExecutionMode)
	SetDispatchEnabled(enabled bool)
}

type ActionDispatcher interface {
	DispatchActions(ctx context.Context, d domain.Decision, dc dispatcher.DispatchContext) dispatcher.DispatchResult
}

var ErrStateDisabled = errors.New("user state is disabled")

// Result summarizes one pass through the pipeline. It is the only thing
// ProcessEvent ever hands back; failures are reported in Error.
type Result struct {
	Processed         bool                        `json:"processed"`
	Event             *domain.Event               `json:"event,omitempty"`
	Evaluation        *decision.Evaluation        `json:"evaluation,omitempty"`
	ActionsDispatched bool                        `json:"actions_dispatched"`
	Dispatches        []dispatcher.DispatchResult `json:"dispatches,omitempty"`
	Warnings          []string                    `json:"warnings,omitempty"`
	Reason            string                      `json:"reason,omitempty"`
	Error             string                      `json:"error,omitempty"`
}

// ---- Brain ----

type Brain struct {
	flags      *FlagSet
	normalizer EventNormalizer
	state      StateService
	engine     Evaluator
	dispatcher ActionDispatcher

	events    *workqueue.Queue
	refreshes *workqueue.Queue
}

type Option func(*Brain)

func WithEventQueue(q *workqueue.Queue) Option {
	return func(b *Brain) { b.events = q }
}

func WithRefreshQueue(q *workqueue.Queue) Option {
	return func(b *Brain) { b.refreshes = q }
}

func New(
	flags *FlagSet,
	normalizer EventNormalizer,
	state StateService,
	engine Evaluator,
	dispatcher ActionDispatcher,
	opts ...Option,
) *Brain {
	b := &Brain{
		flags:      flags,
		normalizer: normalizer,
		state:      state,
		engine:     engine,
		dispatcher: dispatcher,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.events == nil {
		b.events = NewQueue("events", 4, 1024, 10*time.Second)
	}
	if b.refreshes == nil {
		b.refreshes = NewQueue("state_refresh", 2, 1024, 10*time.Second)
	}
	return b
}

// NewQueue builds a work queue whose drops are exported as metrics.
func NewQueue(name string, workers, size int, timeout time.Duration) *workqueue.Queue {
	return workqueue.New(name,
		workqueue.WithWorkers(workers),
		workqueue.WithSize(size),
		workqueue.WithJobTimeout(timeout),
		workqueue.WithDropHook(func(name string) {
			queueDroppedTotal.WithLabelValues(name).Inc()
		}),
	)
}

// Initialize loads the feature flags. A load failure leaves everything
// disabled; the error is returned so the caller can log it.
func (b *Brain) Initialize(ctx context.Context) error {
	_, err := b.RefreshFeatureFlags(ctx)
	return err
}

// RefreshFeatureFlags reloads the flags and pushes them into the engine.
func (b *Brain) RefreshFeatureFlags(ctx context.Context) (Flags, error) {
	f, err := b.flags.Load(ctx)
	if err != nil {
		logger.Warn("feature flags unavailable, platform brain disabled", "error", err)
	}
	b.apply(f)

	logger.Info("platform brain flags loaded",
		"platform", f.Platform,
		"event_adapter", f.EventAdapter,
		"user_state", f.UserState,
		"decision_engine", f.DecisionEngine,
		"action_dispatcher", f.ActionDispatcher,
		"mode", f.Mode,
	)
	return f, err
}

func (b *Brain) apply(f Flags) {
	if b.engine == nil {
		return
	}
	b.engine.SetEnabled(f.EngineEnabled())
	b.engine.SetMode(f.Mode)
	b.engine.SetDispatchEnabled(f.DispatchEnabled())
}

func (b *Brain) Flags() Flags {
	return b.flags.Current()
}

func (b *Brain) Start() {
	b.events.Start()
	b.refreshes.Start()
}

// Stop drains queued events first, since they may schedule refreshes.
func (b *Brain) Stop() {
	b.events.Stop()
	b.refreshes.Stop()
}

// Track hands an event to the pipeline without waiting for it. Only the
// trace id is taken from ctx; the pipeline runs on its own context. It
// reports false when the event was not accepted.
func (b *Brain) Track(ctx context.Context, raw domain.RawEvent) bool {
	if !b.Flags().Platform {
		return false
	}

	traceID := TraceIDFromContext(ctx)
	ok := b.events.Submit(func(jobCtx context.Context) {
		if traceID != "" {
			jobCtx = context.WithValue(jobCtx, TraceIDKey, traceID)
		}
		res := b.ProcessEvent(jobCtx, raw)
		if res.Error != "" {
			logger.Warn("platform brain event failed",
				"trace_id", traceID,
				"tenant_id", raw.TenantID,
				"event_type", raw.EventType,
				"error", res.Error,
			)
		}
	})
	if !ok {
		logger.Warn("platform brain event queue full, event dropped",
			"trace_id", traceID,
			"tenant_id", raw.TenantID,
			"event_type", raw.EventType,
		)
	}
	return ok
}

// ProcessEvent runs normalize, schedule refresh, evaluate and dispatch, in
// that order. It never panics or returns an error outward.
func (b *Brain) ProcessEvent(ctx context.Context, raw domain.RawEvent) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("platform brain pipeline panicked", "trace_id", TraceIDFromContext(ctx), "panic", fmt.Sprint(r))
			res = Result{Processed: false, Error: fmt.Sprintf("internal error: %v", r)}
		}
		eventsTotal.WithLabelValues(resultLabel(res)).Inc()
		pipelineDuration.Observe(time.Since(start).Seconds())
	}()

	flags := b.Flags()
	if !flags.Platform {
		return Result{Reason: "platform brain disabled"}
	}

	ctx, span := tracing.StartSpan(ctx, "brain.process_event",
		tracing.Tenant(raw.TenantID), tracing.User(raw.UserID), tracing.EventType(raw.EventType))
	defer span.End()

	event, err := b.normalizer.Normalize(ctx, raw)
	if err != nil {
		return Result{Error: fmt.Sprintf("normalize: %v", err)}
	}
	if event == nil {
		return Result{Reason: "untrackable event"}
	}
	res.Event = event

	b.scheduleRefresh(event, flags)

	if !flags.EngineEnabled() || b.engine == nil {
		res.Processed = true
		res.Reason = "decision engine disabled"
		return res
	}

	eval, err := b.engine.EvaluateRules(ctx, decision.EvalContext{
		TenantID:  event.TenantID,
		UserID:    event.UserID,
		EventType: event.EventType,
		EventData: event.Properties,
	})
	if err != nil {
		res.Error = fmt.Sprintf("evaluate rules: %v", err)
		return res
	}
	res.Evaluation = &eval
	res.Warnings = append(res.Warnings, eval.Warnings...)

	if eval.Executed && b.dispatcher != nil {
		dc := dispatcher.DispatchContext{TenantID: event.TenantID, UserID: event.UserID}
		for _, d := range eval.Decisions {
			dr := b.dispatcher.DispatchActions(ctx, d, dc)
			for _, ar := range dr.Results {
				if !ar.Success {
					res.Warnings = append(res.Warnings, fmt.Sprintf("rule %d %s: %s", d.RuleID, ar.Type, ar.Error))
				}
			}
			res.Dispatches = append(res.Dispatches, dr)
		}
		res.ActionsDispatched = len(res.Dispatches) > 0
	}

	res.Processed = true
	return res
}

// scheduleRefresh queues a state recompute for the acting user and returns
// immediately.
func (b *Brain) scheduleRefresh(event *domain.Event, flags Flags) {
	if b.state == nil || event.UserID == 0 || !flags.StateEnabled() {
		return
	}

	tenantID, userID := event.TenantID, event.UserID
	ok := b.refreshes.Submit(func(ctx context.Context) {
		if err := b.state.Refresh(ctx, tenantID, userID); err != nil {
			logger.Warn("user state refresh failed", "tenant_id", tenantID, "user_id", userID, "error", err)
		}
	})
	if !ok {
		logger.Debug("state refresh queue full, skipping", "tenant_id", tenantID, "user_id", userID)
	}
}

// GetUserState is the public read API for other subsystems.
func (b *Brain) GetUserState(ctx context.Context, tenantID, userID uint) (*domain.UserState, error) {
	return StateGate{Flags: b.flags, State: b.state}.GetUserState(ctx, tenantID, userID)
}

// Suggestions is served by the engine when it supports it.
func (b *Brain) Suggestions(ctx context.Context, tenantID, userID uint, limit int) ([]domain.Decision, error) {
	s, ok := b.engine.(interface {
		Suggestions(ctx context.Context, tenantID, userID uint, limit int) ([]domain.Decision, error)
	})
	if !ok {
		return []domain.Decision{}, nil
	}
	return s.Suggestions(ctx, tenantID, userID, limit)
}

// StateGate exposes user state only while the user_state flag is on. The
// decision engine reads state through it, so a disabled stage fails rules
// closed.
type StateGate struct {
	Flags *FlagSet
	State interface {
		GetUserState(ctx context.Context, tenantID, userID uint) (*domain.UserState, error)
	}
}

func (g StateGate) GetUserState(ctx context.Context, tenantID, userID uint) (*domain.UserState, error) {
	if g.State == nil || (g.Flags != nil && !g.Flags.Current().StateEnabled()) {
		return nil, ErrStateDisabled
	}
	return g.State.GetUserState(ctx, tenantID, userID)
}

func resultLabel(r Result) string {
	switch {
	case r.Error != "":
		return "error"
	case r.Processed:
		return "processed"
	default:
		return "skipped"
	}
}
