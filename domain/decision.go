package domain

import (
	"time"

	"gorm.io/datatypes"
)

type ExecutionMode string

const (
	ModeLogOnly     ExecutionMode = "log_only"
	ModeSuggestOnly ExecutionMode = "suggest_only"
	ModeExecute     ExecutionMode = "execute"
)

func (m ExecutionMode) Valid() bool {
	switch m {
	case ModeLogOnly, ModeSuggestOnly, ModeExecute:
		return true
	}
	return false
}

type ConditionResult struct {
	Type     ConditionType `json:"type"`
	Operator Operator      `json:"operator"`
	Expected any           `json:"expected"`
	Actual   any           `json:"actual"`
	Passed   bool          `json:"passed"`
	Reason   string        `json:"reason,omitempty"`
}

// StateSnapshot records the state values a decision was made on.
type StateSnapshot struct {
	ReadinessScore   int `json:"readiness_score"`
	PriceSensitivity int `json:"price_sensitivity"`
}

type Decision struct {
	ID               string            `json:"id"`
	RuleID           uint              `json:"rule_id"`
	RuleName         string            `json:"rule_name"`
	Priority         int               `json:"priority"`
	Matched          bool              `json:"matched"`
	ConditionResults []ConditionResult `json:"condition_results"`
	Actions          []Action          `json:"actions"`
	StateSnapshot    *StateSnapshot    `json:"user_state_snapshot,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// DecisionLog is the append-only audit row written for every matched decision.
type DecisionLog struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	DecisionID    string         `gorm:"column:decision_id;not null" json:"decision_id"`
	TenantID      uint           `gorm:"column:tenant_id;not null" json:"tenant_id"`
	UserID        *uint          `gorm:"column:user_id" json:"user_id,omitempty"`
	RuleID        uint           `gorm:"column:rule_id;not null" json:"rule_id"`
	EventType     string         `gorm:"column:event_type;not null" json:"event_type"`
	EventData     datatypes.JSON `gorm:"column:event_data;type:jsonb" json:"event_data"`
	DecisionData  datatypes.JSON `gorm:"column:decision_data;type:jsonb" json:"decision_data"`
	ExecutionMode ExecutionMode  `gorm:"column:execution_mode;not null" json:"execution_mode"`
	Executed      bool           `gorm:"column:executed;not null" json:"executed"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (DecisionLog) TableName() string {
	return "brain_decision_logs"
}

type DecisionLogFilter struct {
	TenantID uint
	UserID   uint
	RuleID   uint
	Mode     ExecutionMode
	Limit    int
}
