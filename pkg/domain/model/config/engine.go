package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/domain/types"
)

// Defaults of the engine tuning
const (
	DefaultRetention           = 30 * 24 * time.Hour
	DefaultQuotaBytes          = 5 * 1024 * 1024
	DefaultWarnRatio           = 0.9
	DefaultMaintenanceInterval = 15 * time.Minute
)

// EngineConfig holds the tuning knobs of the reminder lifecycle engine
type EngineConfig struct {
	DefaultPlanType     types.PlanType
	DefaultPlanLimit    int
	Retention           time.Duration
	QuotaBytes          int64
	WarnRatio           float64
	MaintenanceInterval time.Duration
	DashboardURL        string
}

// DefaultEngineConfig returns the configuration used when no file is given
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		DefaultPlanType:     types.PlanTypeFree,
		DefaultPlanLimit:    types.DefaultFreeReminderLimit,
		Retention:           DefaultRetention,
		QuotaBytes:          DefaultQuotaBytes,
		WarnRatio:           DefaultWarnRatio,
		MaintenanceInterval: DefaultMaintenanceInterval,
	}
}

// Validate checks value ranges
func (c *EngineConfig) Validate() error {
	if !c.DefaultPlanType.IsValid() {
		return goerr.New("invalid default plan type", goerr.V("plan_type", c.DefaultPlanType))
	}
	if c.DefaultPlanLimit < 0 && c.DefaultPlanLimit != types.UnlimitedReminders {
		return goerr.New("invalid default plan limit", goerr.V("limit", c.DefaultPlanLimit))
	}
	if c.Retention <= 0 {
		return goerr.New("retention must be positive", goerr.V("retention", c.Retention))
	}
	if c.QuotaBytes <= 0 {
		return goerr.New("storage quota must be positive", goerr.V("quota_bytes", c.QuotaBytes))
	}
	if c.WarnRatio <= 0 || c.WarnRatio > 1 {
		return goerr.New("warn ratio must be in (0, 1]", goerr.V("warn_ratio", c.WarnRatio))
	}
	if c.MaintenanceInterval < 0 {
		return goerr.New("maintenance interval must not be negative", goerr.V("interval", c.MaintenanceInterval))
	}
	return nil
}
