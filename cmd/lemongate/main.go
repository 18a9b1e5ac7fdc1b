// Command lemongate receives Lemon Squeezy webhooks and keeps user records
// in sync with purchases and subscriptions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mihaimyh/lemongate/internal/config"
	"github.com/mihaimyh/lemongate/internal/server"
	"github.com/mihaimyh/lemongate/pkg/api"
	"github.com/mihaimyh/lemongate/pkg/billing"
	"github.com/mihaimyh/lemongate/pkg/billing/lemonsqueezy"
	zerologadapter "github.com/mihaimyh/lemongate/pkg/billing/logger/zerolog"
	prommetrics "github.com/mihaimyh/lemongate/pkg/billing/metrics/prometheus"
)

const metricsNamespace = "lemongate"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lemongate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.LemonSqueezy.WebhookSecret == "" {
		logger.Warn().Msg("LEMON_SQUEEZY_WEBHOOK_SECRET is not set; every webhook will be rejected")
	}

	provider, err := lemonsqueezy.NewProvider(billing.Config{
		Store:              store,
		WebhookSecret:      cfg.LemonSqueezy.WebhookSecret,
		APIKey:             cfg.LemonSqueezy.APIKey,
		MaxBodyBytes:       cfg.LemonSqueezy.MaxBodyBytes,
		RateLimit:          cfg.LemonSqueezy.RateLimit,
		ExposeErrorDetails: cfg.LemonSqueezy.ExposeErrorDetails,
		Metrics:            prommetrics.NewMetrics(reg, metricsNamespace),
		Logger:             zerologadapter.NewLogger(&logger),
	})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	router := server.Router(cfg.WebhookPath, provider.WebhookHandler(), logger,
		server.WithTrustedProxy(cfg.TrustProxy))

	if cfg.APIToken != "" {
		userAPI, err := api.NewHandler(api.Config{
			Store:    store,
			GetEmail: server.EmailParam,
			Syncer:   provider,
			Logger:   zerologadapter.NewLogger(&logger),
		})
		if err != nil {
			return fmt.Errorf("failed to create user API: %w", err)
		}
		server.MountUserAPI(router, cfg.APIToken, userAPI)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New("webhook", cfg.ListenAddr, router, logger).Start(gctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return server.New("metrics", cfg.MetricsAddr, server.MetricsHandler(reg), logger).Start(gctx)
		})
	}

	logger.Info().
		Str("path", cfg.WebhookPath).
		Str("store", cfg.Store.Kind).
		Bool("user_api", cfg.APIToken != "").
		Msg("lemongate ready")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("lemongate stopped")
	return nil
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "lemongate").Logger()
}
