package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/cli/config"
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/service/alarm"
	"github.com/secmon-lab/followup/pkg/usecase"
	"github.com/secmon-lab/followup/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// engineFlags are the flag groups every command that touches the store needs
type engineFlags struct {
	engine   config.Engine
	repo     config.Repository
	notifier config.Notifier
}

func (x *engineFlags) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.engine.Flags()...)
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.notifier.Flags()...)
	return flags
}

// engine is the assembled reminder engine of one process
type engine struct {
	store  interfaces.ReminderStore
	alarms *alarm.Service
	uc     *usecase.UseCases
}

func (e *engine) Close() {
	e.alarms.Reset()
	if err := e.store.Close(); err != nil {
		logging.Default().Error("failed to close repository", "error", err.Error())
	}
}

// build wires store, timers and notifier into use cases. extra options are
// applied after the defaults.
func (x *engineFlags) build(ctx context.Context, extra ...usecase.Option) (*engine, error) {
	engineCfg, err := x.engine.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load engine configuration")
	}
	logging.Default().Info("Engine configured",
		"engine", x.engine,
		"repository", x.repo,
		"notifier", x.notifier,
	)

	store, err := x.repo.Configure(ctx, engineCfg.QuotaBytes)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}

	notifier, err := x.notifier.Configure(ctx)
	if err != nil {
		if closeErr := store.Close(); closeErr != nil {
			logging.Default().Error("failed to close repository", "error", closeErr.Error())
		}
		return nil, goerr.Wrap(err, "failed to initialize notifier")
	}

	alarms := alarm.New()
	opts := append([]usecase.Option{
		usecase.WithEngineConfig(engineCfg),
		usecase.WithNotifier(notifier),
	}, extra...)

	return &engine{
		store:  store,
		alarms: alarms,
		uc:     usecase.New(store, alarms, opts...),
	}, nil
}
