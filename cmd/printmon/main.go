package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joshp123/printmon/internal/config"
	"github.com/joshp123/printmon/internal/core"
	"github.com/joshp123/printmon/internal/discovery"
	"github.com/joshp123/printmon/internal/host"
	"github.com/joshp123/printmon/internal/logging"
	"github.com/joshp123/printmon/internal/plugins"
	"github.com/joshp123/printmon/internal/rate"
	"github.com/joshp123/printmon/internal/router"
	"github.com/joshp123/printmon/internal/server"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", envOrDefault("PRINTMON_CONFIG", config.DefaultPath), "path to config.yaml")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "printmon: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	if err := config.LoadEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Core.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := host.New(logger)

	enabled := config.EnabledPlugins(cfg)
	compiled := plugins.Compiled(cfg, plugins.Env{Host: h, Logger: logger})
	if err := core.ValidatePlugins(compiled); err != nil {
		return fmt.Errorf("invalid plugins: %w", err)
	}
	if err := core.ValidateEnabledPlugins(compiled, enabled, false); err != nil {
		return err
	}
	active := core.FilterPlugins(compiled, enabled, false)

	grpcServer, err := server.NewGRPCServer(cfg.Core.GRPCAddr, logger)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	if err := router.RegisterPlugins(grpcServer.Server, active); err != nil {
		return err
	}

	extra := append(rate.MetricsCollectors(), core.NewHealthCollector(active),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "printmon_build_info",
			Help:        "Build information",
			ConstLabels: prometheus.Labels{"version": version},
		}, func() float64 { return 1 }))
	metricsRegistry := core.MetricsRegistry(active, extra...)

	if err := core.WriteDashboards(cfg.Core.DashboardDir, active); err != nil {
		logger.Warn("Write dashboards failed", zap.String("dir", cfg.Core.DashboardDir), zap.Error(err))
	}

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/health", server.HealthHandler)
	httpMux.Handle("/metrics", server.MetricsHandler(metricsRegistry))
	httpMux.Handle("/dashboards/", server.DashboardsHandler(core.DashboardsMap(active)))
	server.RegisterStateHandlers(httpMux, h.States)
	for _, p := range active {
		if registrant, ok := p.(core.HTTPRegistrant); ok {
			registrant.RegisterHTTP(httpMux)
		}
	}
	httpServer := server.NewHTTPServer(cfg.Core.HTTPAddr, server.WithCORS(httpMux, cfg.Core.CORSAllowedOrigins))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gRPC listening", zap.String("addr", grpcServer.Listener.Addr().String()))
		return grpcServer.Serve()
	})
	g.Go(func() error {
		logger.Info("HTTP listening", zap.String("addr", cfg.Core.HTTPAddr))
		return httpServer.ListenAndServe()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.Stop()
		return httpServer.Shutdown(shutdownCtx)
	})

	for _, p := range active {
		runner, ok := p.(core.Runner)
		if !ok {
			continue
		}
		id := p.ID()
		g.Go(func() error {
			if err := runner.Run(gctx); err != nil {
				return fmt.Errorf("plugin %s: %w", id, err)
			}
			return nil
		})
	}

	if cfg.MQTT != nil {
		exporter, closeFn, err := newExporter(cfg.MQTT, logger)
		if err != nil {
			logger.Error("MQTT discovery disabled", zap.Error(err))
		} else {
			defer closeFn()
			g.Go(func() error { return exporter.Run(gctx, h.States) })
		}
	}

	logger.Info("printmon started",
		zap.String("version", version),
		zap.Int("plugins", len(active)))

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("printmon stopped")
	return nil
}

func newExporter(cfg *config.MQTTConfig, logger *zap.Logger) (*discovery.Exporter, func(), error) {
	password := cfg.Password
	if password == "" && cfg.PasswordFile != "" {
		secret, err := config.ReadSecretFile(cfg.PasswordFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read mqtt password file: %w", err)
		}
		password = secret
	}

	topics := discovery.Config{DiscoveryPrefix: cfg.DiscoveryPrefix, TopicPrefix: cfg.TopicPrefix}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "printmon"
	}

	pub, err := discovery.NewMQTTPublisher(discovery.MQTTConfig{
		Broker:      cfg.Broker,
		ClientID:    clientID,
		Username:    cfg.Username,
		Password:    password,
		WillTopic:   topics.AvailabilityTopic(),
		WillPayload: discovery.PayloadOffline,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return discovery.NewExporter(pub, topics, logger), pub.Close, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
