package usecase

import (
	"github.com/secmon-lab/followup/pkg/domain/interfaces"
	"github.com/secmon-lab/followup/pkg/domain/model/config"
	"github.com/secmon-lab/followup/pkg/utils/clock"
)

type UseCases struct {
	store     interfaces.ReminderStore
	scheduler interfaces.Scheduler
	notifier  interfaces.Notifier
	navigator interfaces.Navigator
	publisher interfaces.Publisher
	config    *config.EngineConfig
	now       clock.Func

	Plan         *PlanUseCase
	Reminder     *ReminderUseCase
	Notification *NotificationUseCase
	Boot         *BootUseCase
}

type Option func(*UseCases)

func WithEngineConfig(cfg *config.EngineConfig) Option {
	return func(uc *UseCases) {
		uc.config = cfg
	}
}

func WithNotifier(notifier interfaces.Notifier) Option {
	return func(uc *UseCases) {
		uc.notifier = notifier
	}
}

func WithNavigator(navigator interfaces.Navigator) Option {
	return func(uc *UseCases) {
		uc.navigator = navigator
	}
}

func WithPublisher(publisher interfaces.Publisher) Option {
	return func(uc *UseCases) {
		uc.publisher = publisher
	}
}

func WithClock(now clock.Func) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(store interfaces.ReminderStore, scheduler interfaces.Scheduler, opts ...Option) *UseCases {
	uc := &UseCases{
		store:     store,
		scheduler: scheduler,
		config:    config.DefaultEngineConfig(),
		now:       clock.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Plan = NewPlanUseCase(store, uc.config)
	uc.Reminder = NewReminderUseCase(store, scheduler, uc.Plan, uc.config, uc.now)
	uc.Notification = NewNotificationUseCase(store, uc.notifier, uc.navigator, uc.publisher, uc.config)
	uc.Boot = NewBootUseCase(uc.Plan, uc.Reminder, uc.Notification)

	return uc
}

// Config returns the engine configuration in use
func (uc *UseCases) Config() *config.EngineConfig {
	return uc.config
}
