package eventadapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"platformBrain/domain"
	"platformBrain/pkg/logger"
	"platformBrain/pkg/workqueue"

	"github.com/google/uuid"
)

var ErrMissingTenant = errors.New("tenant id is required")

// HistorySink receives canonical events for the behavioral history store.
type HistorySink interface {
	SaveEvent(ctx context.Context, event domain.Event) error
}

// property keys that do not map 1:1 through snake casing
var propertyAliases = map[string]string{
	"cart_total": domain.PropCartValue,
	"total":      domain.PropCartValue,
	"qty":        domain.PropQuantity,
	"q":          domain.PropQuery,
}

type Normalizer struct {
	sink    HistorySink
	queue   *workqueue.Queue
	forward func() bool
	now     func() time.Time
}

type Option func(*Normalizer)

// WithHistorySink forwards every canonical event to sink through queue.
// enabled is consulted per event so a flag reload takes effect immediately.
func WithHistorySink(sink HistorySink, queue *workqueue.Queue, enabled func() bool) Option {
	return func(n *Normalizer) {
		n.sink = sink
		n.queue = queue
		n.forward = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts a raw event into the canonical form. An event with
// neither a user nor a device is untrackable: it returns (nil, nil).
func (n *Normalizer) Normalize(ctx context.Context, raw domain.RawEvent) (*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if raw.TenantID == 0 {
		return nil, ErrMissingTenant
	}

	deviceID := strings.TrimSpace(raw.DeviceID)
	if raw.UserID == 0 && deviceID == "" {
		logger.Debug("dropping untrackable event", "tenant_id", raw.TenantID, "event_type", raw.EventType)
		return nil, nil
	}

	eventType := domain.CanonicalEventType(raw.EventType)
	if eventType == "" {
		return nil, fmt.Errorf("event type is required")
	}

	ts := n.now().UTC()
	if raw.Timestamp != nil && !raw.Timestamp.IsZero() {
		ts = raw.Timestamp.UTC()
	}

	event := &domain.Event{
		ID:         uuid.NewString(),
		TenantID:   raw.TenantID,
		UserID:     raw.UserID,
		DeviceID:   deviceID,
		SessionID:  strings.TrimSpace(raw.SessionID),
		EventType:  eventType,
		Properties: CanonicalProperties(raw.Properties),
		Timestamp:  ts,
	}

	n.forwardToHistory(*event)
	return event, nil
}

// forwardToHistory is at-most-once: a full queue or a sink error loses the event.
func (n *Normalizer) forwardToHistory(event domain.Event) {
	if n.sink == nil || n.queue == nil {
		return
	}
	if n.forward != nil && !n.forward() {
		return
	}

	ok := n.queue.Submit(func(ctx context.Context) {
		if err := n.sink.SaveEvent(ctx, event); err != nil {
			logger.Warn("failed to forward event to history",
				"event_id", event.ID,
				"tenant_id", event.TenantID,
				"error", err,
			)
		}
	})
	if !ok {
		logger.Warn("history queue full, event not forwarded", "event_id", event.ID)
	}
}

// CanonicalProperties snake-cases keys and resolves known aliases. The input
// map is never modified.
func CanonicalProperties(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		key := domain.ToSnake(strings.TrimSpace(k))
		if alias, ok := propertyAliases[key]; ok {
			key = alias
		}
		out[key] = v
	}
	return out
}
