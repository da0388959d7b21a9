package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// RuleRecord is the persisted, tenant-scoped rule as authored by admin tooling.
type RuleRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	TenantID   uint           `gorm:"column:tenant_id;not null" json:"tenant_id"`
	Name       string         `gorm:"column:name;not null" json:"name"`
	Conditions datatypes.JSON `gorm:"column:conditions;type:jsonb" json:"conditions"`
	Actions    datatypes.JSON `gorm:"column:actions;type:jsonb" json:"actions"`
	Priority   int            `gorm:"column:priority;not null;default:0" json:"priority"`
	IsActive   bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (RuleRecord) TableName() string {
	return "brain_rules"
}

// Rule is a RuleRecord with conditions and actions decoded into typed values.
type Rule struct {
	ID         uint        `json:"id"`
	TenantID   uint        `json:"tenant_id"`
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	Actions    []Action    `json:"actions"`
	Priority   int         `json:"priority"`
	IsActive   bool        `json:"is_active"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Decode parses the JSON columns once. A malformed rule fails here so the
// engine can skip it without touching the rest of the batch.
func (r RuleRecord) Decode() (Rule, error) {
	rule := Rule{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Name:      r.Name,
		Priority:  r.Priority,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}

	if len(r.Conditions) > 0 {
		if err := json.Unmarshal(r.Conditions, &rule.Conditions); err != nil {
			return Rule{}, fmt.Errorf("rule %d: decode conditions: %w", r.ID, err)
		}
	}
	if len(r.Actions) > 0 {
		if err := json.Unmarshal(r.Actions, &rule.Actions); err != nil {
			return Rule{}, fmt.Errorf("rule %d: decode actions: %w", r.ID, err)
		}
	}

	return rule, nil
}
