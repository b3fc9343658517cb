package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/windwatch/windwatch-go/internal/alerting"
	api "github.com/windwatch/windwatch-go/internal/api/v2"
	"github.com/windwatch/windwatch-go/internal/api/v2/auth"
	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/logging"
	"github.com/windwatch/windwatch-go/internal/metricsource"
	"github.com/windwatch/windwatch-go/internal/notification"
	"github.com/windwatch/windwatch-go/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the alert engine and REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// runServe wires the store, the evaluation loops and the HTTP server
// together and runs them until a shutdown signal arrives.
func runServe(ctx context.Context) error {
	logger := logging.ForService("main")
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ds := datastore.New(settings)
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	if err := seedUsers(ds); err != nil {
		return err
	}

	var email notification.Sender
	if settings.SMTP.Enabled {
		sender, err := notification.NewEmailSender(settings)
		if err != nil {
			return fmt.Errorf("failed to configure email sender: %w", err)
		}
		email = sender
	} else {
		logger.Warn("smtp disabled, immediate email and digests will not be delivered")
	}

	metrics := observability.NewMetrics()
	source := metricsource.NewClient(settings)
	dispatcher := alerting.NewDispatcher(ds, email, metrics, settings)
	lifecycle := alerting.NewLifecycle(ds, dispatcher, metrics)
	evaluator := alerting.NewEvaluator(ds, source, lifecycle, metrics, settings)
	digest := alerting.NewDigestScheduler(ds, email, metrics, settings)

	authService := auth.NewTokenService(ds, settings.Security.TokenTTL, logging.ForService("auth"))
	controller := api.New(settings, ds, authService, metrics)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		evaluator.Start(ctx)
		return nil
	})
	group.Go(func() error {
		digest.Start(ctx)
		return nil
	})
	group.Go(controller.Start)
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := controller.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		// Let in-flight email deliveries drain before exiting.
		dispatcher.Wait()
		return nil
	})

	logger.Info("windwatch started",
		"db", settings.Output.Database.Type,
		"evaluation_interval", settings.Alerting.EvaluationInterval.String())
	return group.Wait()
}

// seedUsers creates the config-declared accounts at startup so a fresh
// deployment is immediately usable.
func seedUsers(ds datastore.Interface) error {
	for _, seed := range settings.Security.Users {
		if seed.Username == "" || seed.Password == "" {
			continue
		}
		hash, err := auth.HashPassword(seed.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", seed.Username, err)
		}
		if err := ds.CreateUser(&datastore.User{Username: seed.Username, PasswordHash: hash}); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", seed.Username, err)
		}
	}
	return nil
}
