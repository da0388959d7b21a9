package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type ConditionType string

const (
	ConditionReadinessScore   ConditionType = "readiness_score"
	ConditionPriceSensitivity ConditionType = "price_sensitivity"
	ConditionEventType        ConditionType = "event_type"
	ConditionCategoryAffinity ConditionType = "category_affinity"
	ConditionCartValue        ConditionType = "cart_value"
	ConditionUserSegment      ConditionType = "user_segment"
)

type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpAssignEqual  Operator = "="
	OpNotEqual     Operator = "!="
)

func (op Operator) Valid() bool {
	switch op {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpEqual, OpAssignEqual, OpNotEqual:
		return true
	}
	return false
}

// Condition is a tagged union discriminated by Type. Only the fields that
// belong to the variant are meaningful:
//
//	readiness_score, price_sensitivity, cart_value: Operator, Number
//	category_affinity: CategoryID, Operator, Number
//	event_type: Operator, Text
//	user_segment: SegmentID, Operator, Bool (expected membership)
type Condition struct {
	Type       ConditionType
	Operator   Operator
	Number     float64
	Text       string
	Bool       bool
	CategoryID uint64
	SegmentID  uint64
}

// NeedsState reports whether the condition reads the computed user state.
func (c Condition) NeedsState() bool {
	switch c.Type {
	case ConditionReadinessScore, ConditionPriceSensitivity, ConditionCategoryAffinity:
		return true
	}
	return false
}

// Expected returns the variant's comparison value for audit output.
func (c Condition) Expected() any {
	switch c.Type {
	case ConditionEventType:
		return c.Text
	case ConditionUserSegment:
		return c.Bool
	default:
		return c.Number
	}
}

// conditionWire accepts both the admin tooling's camelCase and snake_case keys.
type conditionWire struct {
	Type          string          `json:"type"`
	Operator      string          `json:"operator,omitempty"`
	Value         json.RawMessage `json:"value,omitempty"`
	CategoryID    *flexUint       `json:"category_id,omitempty"`
	CategoryIDAlt *flexUint       `json:"categoryId,omitempty"`
	SegmentID     *flexUint       `json:"segment_id,omitempty"`
	SegmentIDAlt  *flexUint       `json:"segmentId,omitempty"`
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var w conditionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := Condition{
		Type:     ConditionType(strings.ToLower(strings.TrimSpace(w.Type))),
		Operator: Operator(strings.TrimSpace(w.Operator)),
	}
	if out.Operator == "" {
		out.Operator = OpEqual
	}
	if !out.Operator.Valid() {
		return fmt.Errorf("condition %q: unsupported operator %q", out.Type, w.Operator)
	}

	switch out.Type {
	case ConditionReadinessScore, ConditionPriceSensitivity, ConditionCartValue:
		n, err := decodeNumber(w.Value)
		if err != nil {
			return fmt.Errorf("condition %q: %w", out.Type, err)
		}
		out.Number = n

	case ConditionCategoryAffinity:
		id := firstUint(w.CategoryID, w.CategoryIDAlt)
		if id == 0 {
			return fmt.Errorf("condition %q: category_id is required", out.Type)
		}
		n, err := decodeNumber(w.Value)
		if err != nil {
			return fmt.Errorf("condition %q: %w", out.Type, err)
		}
		out.CategoryID = id
		out.Number = n

	case ConditionEventType:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil || s == "" {
			return fmt.Errorf("condition %q: value must be a non-empty string", out.Type)
		}
		if out.Operator != OpEqual && out.Operator != OpAssignEqual && out.Operator != OpNotEqual {
			return fmt.Errorf("condition %q: operator %q not allowed", out.Type, out.Operator)
		}
		out.Text = CanonicalEventType(s)

	case ConditionUserSegment:
		id := firstUint(w.SegmentID, w.SegmentIDAlt)
		if id == 0 {
			return fmt.Errorf("condition %q: segment_id is required", out.Type)
		}
		out.SegmentID = id
		out.Bool = true
		if len(w.Value) > 0 && string(w.Value) != "null" {
			b, err := decodeBool(w.Value)
			if err != nil {
				return fmt.Errorf("condition %q: %w", out.Type, err)
			}
			out.Bool = b
		}

	default:
		return fmt.Errorf("unknown condition type %q", w.Type)
	}

	*c = out
	return nil
}

func (c Condition) MarshalJSON() ([]byte, error) {
	w := map[string]any{
		"type":     c.Type,
		"operator": c.Operator,
		"value":    c.Expected(),
	}
	if c.CategoryID != 0 {
		w["category_id"] = c.CategoryID
	}
	if c.SegmentID != 0 {
		w["segment_id"] = c.SegmentID
	}
	return json.Marshal(w)
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("value is required")
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, nil
		}
	}

	return 0, fmt.Errorf("value %s is not numeric", string(raw))
}

func decodeBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if b, err := strconv.ParseBool(s); err == nil {
			return b, nil
		}
	}

	return false, fmt.Errorf("value %s is not a boolean", string(raw))
}

// flexUint decodes ids sent either as numbers or numeric strings.
type flexUint uint64

func (f *flexUint) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexUint(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid id %s", string(data))
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", s)
	}
	*f = flexUint(n)
	return nil
}

func firstUint(vals ...*flexUint) uint64 {
	for _, v := range vals {
		if v != nil && *v != 0 {
			return uint64(*v)
		}
	}
	return 0
}
