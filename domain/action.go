package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type ActionType string

const (
	ActionSendNotification  ActionType = "send_notification"
	ActionApplyDiscount     ActionType = "apply_discount"
	ActionShowCampaign      ActionType = "show_campaign"
	ActionRecommendProducts ActionType = "recommend_products"
	ActionUpdateHomepage    ActionType = "update_homepage"
)

type NotificationParams struct {
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Data    map[string]any `json:"data,omitempty"`
}

type DiscountParams struct {
	DiscountCode string  `json:"discount_code,omitempty"`
	Percent      float64 `json:"percent,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
	ValidDays    int     `json:"valid_days,omitempty"`
}

type CampaignParams struct {
	CampaignID FlexString `json:"campaign_id"`
}

type RecommendParams struct {
	ProductIDs []uint64 `json:"product_ids"`
	Reason     string   `json:"reason"`
	Score      float64  `json:"score,omitempty"`
}

type HomepageParams struct {
	FeaturedProducts []uint64         `json:"featured_products,omitempty"`
	Banners          []map[string]any `json:"banners,omitempty"`
	Sections         []string         `json:"sections,omitempty"`
}

// Action is a tagged union discriminated by Type. Exactly one params pointer
// is set for known types; unknown types keep only Type and Params so the
// dispatcher can report them.
type Action struct {
	Type   ActionType     `json:"type"`
	Params map[string]any `json:"params,omitempty"`

	Notification *NotificationParams `json:"-"`
	Discount     *DiscountParams     `json:"-"`
	Campaign     *CampaignParams     `json:"-"`
	Recommend    *RecommendParams    `json:"-"`
	Homepage     *HomepageParams     `json:"-"`
}

func (a Action) Known() bool {
	return a.Notification != nil || a.Discount != nil || a.Campaign != nil ||
		a.Recommend != nil || a.Homepage != nil
}

type actionWire struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var w actionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := Action{
		Type:   ActionType(strings.ToLower(strings.TrimSpace(w.Type))),
		Params: snakeKeys(w.Params),
	}
	if out.Type == "" {
		return fmt.Errorf("action type is required")
	}

	var target any
	switch out.Type {
	case ActionSendNotification:
		out.Notification = &NotificationParams{}
		target = out.Notification
	case ActionApplyDiscount:
		out.Discount = &DiscountParams{}
		target = out.Discount
	case ActionShowCampaign:
		out.Campaign = &CampaignParams{}
		target = out.Campaign
	case ActionRecommendProducts:
		out.Recommend = &RecommendParams{}
		target = out.Recommend
	case ActionUpdateHomepage:
		out.Homepage = &HomepageParams{}
		target = out.Homepage
	}

	if target != nil && out.Params != nil {
		raw, err := json.Marshal(out.Params)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("action %q: invalid params: %w", out.Type, err)
		}
	}

	*a = out
	return nil
}

// FlexString accepts a JSON string or number.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Uint returns the value as an unsigned id when it is numeric.
func (f FlexString) Uint() (uint64, bool) {
	n, err := strconv.ParseUint(string(f), 10, 64)
	return n, err == nil
}

// snakeKeys rewrites top-level camelCase keys (discountCode, productIds) to
// snake_case so both authoring styles decode into the same params.
func snakeKeys(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[ToSnake(k)] = v
	}
	return out
}

// ToSnake converts camelCase to snake_case; snake_case input is unchanged.
func ToSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	var prev rune
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && prev != '_' && !unicode.IsUpper(prev) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}
