package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/secmon-lab/followup/pkg/domain/model/config"
	"github.com/secmon-lab/followup/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// Engine holds CLI flags for the engine tuning file
type Engine struct {
	path         string
	dashboardURL string
}

func (x *Engine) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the engine configuration TOML file (defaults are used when empty)",
			Category:    "Engine",
			Sources:     cli.EnvVars("FOLLOWUP_CONFIG"),
			Destination: &x.path,
		},
		&cli.StringFlag{
			Name:        "dashboard-url",
			Usage:       "URL of the reminder dashboard shown when a conversation cannot be opened (overrides the file)",
			Category:    "Engine",
			Sources:     cli.EnvVars("FOLLOWUP_DASHBOARD_URL"),
			Destination: &x.dashboardURL,
		},
	}
}

func (x Engine) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", x.path),
		slog.String("dashboard_url", x.dashboardURL),
	)
}

// engineFile is the TOML layout. Pointer fields distinguish an omitted key
// from an explicit zero.
type engineFile struct {
	Plan struct {
		DefaultType  string `toml:"default_type"`
		DefaultLimit *int   `toml:"default_limit"`
	} `toml:"plan"`
	Retention struct {
		CompletedDays *int `toml:"completed_days"`
	} `toml:"retention"`
	Storage struct {
		QuotaBytes *int64    `toml:"quota_bytes"`
		WarnRatio  *float64 `toml:"warn_ratio"`
	} `toml:"storage"`
	Maintenance struct {
		Interval string `toml:"interval"`
	} `toml:"maintenance"`
	Dashboard struct {
		URL string `toml:"url"`
	} `toml:"dashboard"`
}

// Configure loads the tuning file over the defaults and validates the result
func (x *Engine) Configure() (*domainConfig.EngineConfig, error) {
	cfg := domainConfig.DefaultEngineConfig()

	if x.path != "" {
		data, err := os.ReadFile(x.path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, goerr.Wrap(ErrConfigNotFound, "engine config not found", goerr.V(ConfigPathKey, x.path))
			}
			return nil, goerr.Wrap(err, "failed to read engine config", goerr.V(ConfigPathKey, x.path))
		}
		if err := applyEngineFile(cfg, data); err != nil {
			return nil, goerr.Wrap(err, "failed to load engine config", goerr.V(ConfigPathKey, x.path))
		}
	}

	if x.dashboardURL != "" {
		cfg.DashboardURL = x.dashboardURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, err.Error(), goerr.V(ConfigPathKey, x.path))
	}
	return cfg, nil
}

func applyEngineFile(cfg *domainConfig.EngineConfig, data []byte) error {
	var file engineFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return goerr.Wrap(ErrInvalidConfig, err.Error())
	}

	if file.Plan.DefaultType != "" {
		planType, err := types.ParsePlanType(file.Plan.DefaultType)
		if err != nil {
			return goerr.Wrap(ErrInvalidConfig, err.Error())
		}
		cfg.DefaultPlanType = planType
		cfg.DefaultPlanLimit = planType.DefaultLimit()
	}
	if file.Plan.DefaultLimit != nil {
		cfg.DefaultPlanLimit = *file.Plan.DefaultLimit
	}
	if file.Retention.CompletedDays != nil {
		cfg.Retention = time.Duration(*file.Retention.CompletedDays) * 24 * time.Hour
	}
	if file.Storage.QuotaBytes != nil {
		cfg.QuotaBytes = *file.Storage.QuotaBytes
	}
	if file.Storage.WarnRatio != nil {
		cfg.WarnRatio = *file.Storage.WarnRatio
	}
	if file.Maintenance.Interval != "" {
		d, err := time.ParseDuration(file.Maintenance.Interval)
		if err != nil {
			return goerr.Wrap(ErrInvalidConfig, "invalid maintenance interval", goerr.V("interval", file.Maintenance.Interval))
		}
		cfg.MaintenanceInterval = d
	}
	if file.Dashboard.URL != "" {
		cfg.DashboardURL = file.Dashboard.URL
	}
	return nil
}
