package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	FlagPlatformBrain    = "platform_brain_enabled"
	FlagEventAdapter     = "event_adapter_enabled"
	FlagUserState        = "user_state_enabled"
	FlagDecisionEngine   = "decision_engine_enabled"
	FlagActionDispatcher = "action_dispatcher_enabled"
)

// FlagKeys lists every pipeline stage flag.
var FlagKeys = []string{
	FlagPlatformBrain,
	FlagEventAdapter,
	FlagUserState,
	FlagDecisionEngine,
	FlagActionDispatcher,
}

type FeatureFlag struct {
	FeatureKey string            `gorm:"column:feature_key;primaryKey" json:"feature_key" validate:"required"`
	IsEnabled  bool              `gorm:"column:is_enabled;not null;default:false" json:"is_enabled"`
	Config     datatypes.JSONMap `gorm:"column:config;type:jsonb" json:"config,omitempty"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (FeatureFlag) TableName() string {
	return "brain_feature_flags"
}
