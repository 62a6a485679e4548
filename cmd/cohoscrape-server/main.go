package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"github.com/daveminay/cohoscrape/internal/app"
	"github.com/daveminay/cohoscrape/internal/components/chrono"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/config"
	"github.com/daveminay/cohoscrape/internal/server"
	"github.com/daveminay/cohoscrape/internal/session"
	libtelemetry "github.com/daveminay/cohoscrape/lib/telemetry"
	"github.com/daveminay/cohoscrape/lib/serviceutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", "config.json5", "The configuration file to read.")
	flag.Parse()

	ctx := serviceutil.SignalContext()
	libtelemetry.InitSlog(*verbose)

	otel, err := libtelemetry.SetupFromEnv(ctx, "cohoscrape-server")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otel.Shutdown(shutdownCtx)
		if err != nil {
			slog.Warn("shutdown telemetry", "err", err)
		}
	}()
	libtelemetry.InstrumentPerfStats(ctx)

	cfg, err := config.Load(*configPath)
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	err = cfg.Validate()
	if err != nil {
		serviceutil.Fatal("invalid config", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tel := telemetry.NewPrometheusAPI(reg, telemetry.SlogAPI{})

	a, err := app.New(cfg, chrono.NewStandardImpl(), tel)
	if err != nil {
		serviceutil.Fatal("init pipeline", err)
	}
	store, closeStore, err := app.OpenStore(cfg)
	if err != nil {
		serviceutil.Fatal("init session store", err)
	}
	defer closeStore()

	manager, err := a.Manager(cfg, store, tel)
	if err != nil {
		serviceutil.Fatal("init session manager", err)
	}

	cron := chrono.NewStandardCron(tel)
	defer cron.Stop()
	err = cron.Cron(cfg.SweepSchedule, func() {
		sweep(ctx, manager, cfg.SessionTTL())
	})
	if err != nil {
		serviceutil.Fatal("schedule session sweep", err)
	}

	err = serviceutil.StartHttpServer(ctx, cfg.Listen, server.New(manager, reg, tel))
	if err != nil {
		serviceutil.Fatal("serve http", err)
	}
}

func sweep(ctx context.Context, manager *session.Manager, ttl time.Duration) {
	removed, err := manager.Sweep(ctx, ttl)
	if err != nil {
		return
	}
	if removed > 0 {
		slog.Info("swept expired sessions", "removed", removed)
	}
}
