package cmd

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/telekom/exception-subscriptions/pkg/api"
	"github.com/telekom/exception-subscriptions/pkg/cli"
	"github.com/telekom/exception-subscriptions/pkg/config"
	"github.com/telekom/exception-subscriptions/pkg/ingest"
	"github.com/telekom/exception-subscriptions/pkg/mail"
	"github.com/telekom/exception-subscriptions/pkg/notification"
	"github.com/telekom/exception-subscriptions/pkg/ratelimit"
	"github.com/telekom/exception-subscriptions/pkg/store"
	"github.com/telekom/exception-subscriptions/pkg/version"
)

func NewServeCommand() *cobra.Command {
	var flags *cli.Config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flags)
		},
	}
	flags = cli.AddFlags(cmd.Flags())

	return cmd
}

func runServe(ctx context.Context, flags *cli.Config) error {
	zl := setupLogger(flags.Debug)
	defer func() { _ = zl.Sync() }()
	log := zl.Sugar()
	log.With("version", version.Version).Info("Starting exception subscriptions")
	flags.Print(log)

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	flags.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	shutdownTimeout := flags.ParseShutdownTimeout(log)

	options, err := store.New(ctx, cfg.Store, log)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Type, err)
	}
	defer func() {
		if err := options.Close(); err != nil {
			log.Warnw("Failed to close store", "error", err)
		}
	}()

	ttl, _ := cfg.Cache.Duration()
	subs := store.NewSubscriptionStore(options, ttl, log)

	mailer := mail.NewService(cfg.Mail, log)
	mailer.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mailer.Stop(stopCtx); err != nil {
			log.Warnw("Mail queue did not drain", "error", err)
		}
	}()

	notifier := notification.NewNotifier(subs, mailer, notification.OptionsFromConfig(cfg), log)

	eventsLimiter := ratelimit.New(ratelimit.FromConfig(cfg.RateLimit))
	defer eventsLimiter.Stop()
	adminLimiter := ratelimit.NewAuthenticated(ratelimit.DefaultAdminConfig())
	defer adminLimiter.Stop()

	auth := api.NewAuth(log, cfg.Auth)
	server := api.NewServer(zl, cfg, flags.Debug, subs)
	server.SetShutdownTimeout(shutdownTimeout)
	err = server.RegisterAll([]api.APIController{
		api.NewEventController(notifier, log, eventsLimiter.Middleware("events")),
		api.NewSubscriptionController(subs, log, auth.Middleware(), adminLimiter.Middleware("subscriptions")),
	})
	if err != nil {
		return fmt.Errorf("registering controllers: %w", err)
	}

	var consumer *ingest.Consumer
	if cfg.Kafka.Enabled {
		consumer, err = ingest.NewConsumer(cfg.Kafka, notifier, log)
		if err != nil {
			return fmt.Errorf("creating kafka consumer: %w", err)
		}
		defer func() { _ = consumer.Close() }()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Listen(gctx)
	})
	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Shut down cleanly")
	return nil
}

func setupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// No automatic stacktraces below fatal.
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}
