package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/wallpanels/internal/cache"
	"github.com/mohammed-shakir/wallpanels/internal/cache/memstore"
	"github.com/mohammed-shakir/wallpanels/internal/cache/redisstore"
	"github.com/mohammed-shakir/wallpanels/internal/core/config"
	"github.com/mohammed-shakir/wallpanels/internal/core/observability"
	"github.com/mohammed-shakir/wallpanels/internal/core/server"
	"github.com/mohammed-shakir/wallpanels/internal/events"
	"github.com/mohammed-shakir/wallpanels/internal/logger"
	"github.com/mohammed-shakir/wallpanels/internal/metrics"
	"github.com/mohammed-shakir/wallpanels/internal/panels"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configFlag := flag.String("config", "", "TOML config file (overrides CONFIG_FILE)")
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR/PORT)")
	flag.Parse()

	if *configFlag != "" {
		_ = os.Setenv("CONFIG_FILE", *configFlag)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "wallpanels",
		Component: "panelserver",
	}, os.Stdout)

	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting panel server",
		"addr", cfg.Addr,
		"version", Version,
		"panel_cache", cfg.PanelCache,
		"generation_ttl", cfg.GenerationTTL.String(),
		"generation_capacity", cfg.GenerationCap)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	panelCache, closeCache, err := buildCache(ctx, cfg)
	if err != nil {
		appLog.Error("panel cache setup failed", "driver", cfg.PanelCache, "err", err)
		return 1
	}
	defer closeCache()

	var pub events.Interface = events.Noop{}
	if cfg.Events.Enabled {
		p, err := events.NewPublisher(cfg.Brokers(), cfg.Events.Topic, cfg.Events.Queue, appLog.With("component", "events"))
		if err != nil {
			appLog.Error("event publisher setup failed", "err", err)
			return 1
		}
		pub = p
		appLog.Info("publishing generation events", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			appLog.Warn("event publisher close", "err", err)
		}
	}()

	svc := panels.New(appLog.With("component", "panels"), panels.Config{
		MaxPixels:      cfg.MaxPixels,
		StoreCapacity:  cfg.GenerationCap,
		StoreTTL:       cfg.GenerationTTL.Duration,
		CacheTTL:       cfg.PanelCacheTTL.Duration,
		CacheNamespace: cfg.CacheNamespace,
	}, panelCache, pub)

	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   cfg.Build.Version,
				Revision:  cfg.Build.Revision,
				Branch:    cfg.Build.Branch,
				BuildDate: cfg.Build.Date,
			},
		})
		observability.Init(p.Registerer(), true)
		observability.ExposeBuildInfo(Version)

		go func() {
			if err := p.Serve(ctx, appLog); err != nil {
				appLog.Error("metrics server exited", "err", err)
			}
		}()
	}

	deps := map[string]any{"panel_cache": panelCache}
	if err := server.Run(ctx, cfg, appLog, svc, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func buildCache(ctx context.Context, cfg config.Config) (cache.Interface, func(), error) {
	switch cfg.PanelCache {
	case "", "none":
		return cache.Noop{}, func() {}, nil
	case "memory":
		return memstore.New(cfg.PanelCacheSize), func() {}, nil
	case "redis":
		cli, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewCache(cli, cfg.CacheOpTimeout.Duration), func() { _ = cli.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown panel cache driver %q", cfg.PanelCache)
	}
}
