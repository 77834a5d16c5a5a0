package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	httpctrl "github.com/secmon-lab/followup/pkg/controller/http"
	mcpctrl "github.com/secmon-lab/followup/pkg/controller/mcp"
	"github.com/secmon-lab/followup/pkg/controller/message"
	"github.com/secmon-lab/followup/pkg/domain/model"
	"github.com/secmon-lab/followup/pkg/service/events"
	"github.com/secmon-lab/followup/pkg/service/worker"
	"github.com/secmon-lab/followup/pkg/usecase"
	"github.com/secmon-lab/followup/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const mcpPath = "/mcp"

func cmdServe() *cli.Command {
	var addr string
	var enableMCP bool
	var keepAlive time.Duration
	var flagSet engineFlags

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("FOLLOWUP_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "mcp",
			Usage:       "Serve the MCP endpoint at " + mcpPath,
			Value:       true,
			Sources:     cli.EnvVars("FOLLOWUP_MCP"),
			Destination: &enableMCP,
		},
		&cli.DurationFlag{
			Name:        "event-keepalive",
			Usage:       "Ping interval of the event stream",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("FOLLOWUP_EVENT_KEEPALIVE"),
			Destination: &keepAlive,
		},
	}
	flags = append(flags, flagSet.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run the reminder engine and its HTTP endpoints",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			hub := events.New()
			eng, err := flagSet.build(ctx,
				usecase.WithNavigator(hub),
				usecase.WithPublisher(hub),
			)
			if err != nil {
				return err
			}
			defer eng.Close()

			uc := eng.uc
			writer := worker.NewWriter(uc,
				worker.WithMaintenanceInterval(uc.Config().MaintenanceInterval),
			)
			eng.alarms.OnFire(ctx, writer.HandleAlarm)

			dispatcher := message.NewHandler(uc, writer)

			httpOpts := []httpctrl.Options{
				httpctrl.WithEventHub(hub),
				httpctrl.WithKeepAlive(keepAlive),
			}
			if enableMCP {
				httpOpts = append(httpOpts, httpctrl.WithMCP(mcpctrl.New(dispatcher).Handler(mcpPath)))
				logging.Default().Info("MCP endpoint enabled", "path", mcpPath)
			}
			if slackCfg := flagSet.notifier.Slack(); slackCfg.IsInteractionConfigured() {
				httpOpts = append(httpOpts, httpctrl.WithSlackInteraction(
					httpctrl.NewSlackInteractionHandler(dispatcher),
					slackCfg.SigningSecret(),
				))
				logging.Default().Info("Slack interaction handler enabled")
			}

			httpHandler, err := httpctrl.New(dispatcher, uc, httpOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := writer.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start writer")
			}

			// Changes made by any process reach UI collaborators
			unsubscribe, err := eng.store.SubscribeReminders(ctx, func(reminders []*model.Reminder) {
				uc.Notification.PublishChanges(ctx, reminders)
			})
			if err != nil {
				writer.Stop()
				return goerr.Wrap(err, "failed to subscribe to reminder changes")
			}
			defer unsubscribe()

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "failed to start server")
				}
				return nil
			})
			eg.Go(func() error {
				<-egCtx.Done()
				logging.Default().Info("Shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				var shutdownErr error
				if err := server.Shutdown(shutdownCtx); err != nil {
					shutdownErr = goerr.Wrap(err, "failed to shutdown server gracefully")
				}
				// Accepted mutations finish before the store closes
				writer.Stop()

				logging.Default().Info("Server shutdown completed")
				return shutdownErr
			})

			return eg.Wait()
		},
	}
}
