package brain

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"platformBrain/domain"
	"platformBrain/pkg/logger"
)

type FlagRepository interface {
	ListFlags(ctx context.Context) ([]domain.FeatureFlag, error)
}

// Flags is an immutable snapshot of the pipeline switches.
type Flags struct {
	Platform         bool                 `json:"platform_brain_enabled"`
	EventAdapter     bool                 `json:"event_adapter_enabled"`
	UserState        bool                 `json:"user_state_enabled"`
	DecisionEngine   bool                 `json:"decision_engine_enabled"`
	ActionDispatcher bool                 `json:"action_dispatcher_enabled"`
	Mode             domain.ExecutionMode `json:"execution_mode"`
	LoadedAt         time.Time            `json:"loaded_at"`
	LoadError        string               `json:"load_error,omitempty"`
}

// Stage-level helpers. Every stage is off when the platform switch is off.

func (f Flags) HistoryForwarding() bool { return f.Platform && f.EventAdapter }
func (f Flags) StateEnabled() bool      { return f.Platform && f.UserState }
func (f Flags) EngineEnabled() bool     { return f.Platform && f.DecisionEngine }
func (f Flags) DispatchEnabled() bool   { return f.Platform && f.ActionDispatcher }

func disabledFlags(err error) Flags {
	return Flags{Mode: domain.ModeLogOnly, LoadedAt: time.Now().UTC(), LoadError: err.Error()}
}

// FlagSet holds the current snapshot. It is loaded explicitly and never
// pushed to.
type FlagSet struct {
	repo    FlagRepository
	current atomic.Pointer[Flags]
}

// NewFlagSet starts with everything disabled until the first Load.
func NewFlagSet(repo FlagRepository) *FlagSet {
	fs := &FlagSet{repo: repo}
	initial := Flags{Mode: domain.ModeLogOnly}
	fs.current.Store(&initial)
	return fs
}

func (fs *FlagSet) Current() Flags {
	return *fs.current.Load()
}

// Load reads the flag table. On failure the snapshot becomes all-disabled
// and the error is returned for the caller to log; it is never fatal.
func (fs *FlagSet) Load(ctx context.Context) (Flags, error) {
	if fs.repo == nil {
		err := fmt.Errorf("feature flag store not configured")
		f := disabledFlags(err)
		fs.current.Store(&f)
		return f, err
	}

	rows, err := fs.repo.ListFlags(ctx)
	if err != nil {
		err = fmt.Errorf("load feature flags: %w", err)
		f := disabledFlags(err)
		fs.current.Store(&f)
		flagLoadsTotal.WithLabelValues("error").Inc()
		return f, err
	}

	f := FromRows(rows)
	f.LoadedAt = time.Now().UTC()
	fs.current.Store(&f)
	flagLoadsTotal.WithLabelValues("ok").Inc()
	return f, nil
}

// FromRows maps flag rows onto a snapshot. Unknown keys are ignored and a
// missing or invalid execution mode means log_only.
func FromRows(rows []domain.FeatureFlag) Flags {
	f := Flags{Mode: domain.ModeLogOnly}
	for _, row := range rows {
		switch row.FeatureKey {
		case domain.FlagPlatformBrain:
			f.Platform = row.IsEnabled
		case domain.FlagEventAdapter:
			f.EventAdapter = row.IsEnabled
		case domain.FlagUserState:
			f.UserState = row.IsEnabled
		case domain.FlagDecisionEngine:
			f.DecisionEngine = row.IsEnabled
			f.Mode = modeFromConfig(row.Config)
		case domain.FlagActionDispatcher:
			f.ActionDispatcher = row.IsEnabled
		}
	}
	return f
}

func modeFromConfig(cfg map[string]any) domain.ExecutionMode {
	for _, key := range []string{"executionMode", "execution_mode"} {
		raw, ok := cfg[key].(string)
		if !ok {
			continue
		}
		mode := domain.ExecutionMode(strings.ToLower(strings.TrimSpace(raw)))
		if mode.Valid() {
			return mode
		}
		logger.Warn("unknown execution mode in feature flag, using log_only", "mode", raw)
	}
	return domain.ModeLogOnly
}
