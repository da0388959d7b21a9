package decision

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"platformBrain/domain"
)

// evaluateCondition never errors: anything that prevents a comparison makes
// the condition fail, with the cause in Reason.
func (e *Engine) evaluateCondition(ctx context.Context, c domain.Condition, ec EvalContext, state *lazyState) domain.ConditionResult {
	res := domain.ConditionResult{
		Type:     c.Type,
		Operator: c.Operator,
		Expected: c.Expected(),
	}

	switch c.Type {
	case domain.ConditionReadinessScore:
		st, reason := stateFor(ctx, state, domain.SignalReadiness)
		if st == nil {
			res.Reason = reason
			return res
		}
		res.Actual = st.ReadinessScore
		res.Passed = Compare(float64(st.ReadinessScore), c.Operator, c.Number)

	case domain.ConditionPriceSensitivity:
		st, reason := stateFor(ctx, state, domain.SignalPriceSensitivity)
		if st == nil {
			res.Reason = reason
			return res
		}
		res.Actual = st.PriceSensitivity
		res.Passed = Compare(float64(st.PriceSensitivity), c.Operator, c.Number)

	case domain.ConditionCategoryAffinity:
		st, reason := stateFor(ctx, state, domain.SignalAffinity)
		if st == nil {
			res.Reason = reason
			return res
		}
		aff, ok := st.Affinity(c.CategoryID)
		if !ok {
			res.Reason = "no engagement with category"
			return res
		}
		res.Actual = aff.EngagementScore
		res.Passed = Compare(aff.EngagementScore, c.Operator, c.Number)

	case domain.ConditionEventType:
		actual := strings.ToLower(ec.EventType)
		res.Actual = actual
		switch c.Operator {
		case domain.OpNotEqual:
			res.Passed = actual != c.Text
		default:
			res.Passed = actual == c.Text
		}

	case domain.ConditionCartValue:
		v, ok := Number(ec.EventData[domain.PropCartValue])
		if !ok {
			res.Reason = "event has no cart value"
			return res
		}
		res.Actual = v
		res.Passed = Compare(v, c.Operator, c.Number)

	case domain.ConditionUserSegment:
		if ec.UserID == 0 {
			res.Reason = "anonymous user"
			return res
		}
		member, err := e.segments.IsMember(ctx, ec.TenantID, ec.UserID, c.SegmentID)
		if err != nil {
			res.Reason = "segment lookup failed: " + err.Error()
			return res
		}
		res.Actual = member
		res.Passed = member == c.Bool
		if c.Operator == domain.OpNotEqual {
			res.Passed = !res.Passed
		}

	default:
		res.Reason = "unsupported condition type"
	}

	return res
}

// stateFor returns nil with a reason when the state, or the one signal the
// condition reads, cannot be trusted.
func stateFor(ctx context.Context, state *lazyState, signal string) (*domain.UserState, string) {
	st, err := state.get(ctx)
	if err != nil {
		return nil, "user state unavailable"
	}
	if st.IsDegraded(signal) {
		return nil, signal + " signal unavailable"
	}
	return st, ""
}

func Compare(actual float64, op domain.Operator, expected float64) bool {
	switch op {
	case domain.OpGreater:
		return actual > expected
	case domain.OpGreaterEqual:
		return actual >= expected
	case domain.OpLess:
		return actual < expected
	case domain.OpLessEqual:
		return actual <= expected
	case domain.OpEqual, domain.OpAssignEqual:
		return actual == expected
	case domain.OpNotEqual:
		return actual != expected
	}
	return false
}

// Number reads a numeric event property, tolerating the types JSON decoding
// and host call sites produce.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
