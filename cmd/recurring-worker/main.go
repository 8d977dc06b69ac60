package main

import (
	"flag"
	"os"
	_ "time/tzdata"

	"accountbook/internal/backend"
	"accountbook/internal/cli"
	"accountbook/internal/core"
	applog "accountbook/internal/log"
	"accountbook/internal/metrics"
	"accountbook/internal/services"
	"accountbook/internal/worker"
)

func main() {
	once := flag.Bool("once", false, "run a single generation pass and exit")
	date := flag.String("date", "", "target date (YYYY-MM-DD) for -once, defaults to today in TIMEZONE")
	flag.Parse()

	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(applog.ComponentWorker)
	logger.Info("Starting recurring-worker", applog.FieldOperation, applog.OpStartup)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "timezone", cfg.Timezone, applog.FieldError, err.Error())
		os.Exit(1)
	}

	var target *core.Date
	if *date != "" {
		d, err := core.ParseDate(*date)
		if err != nil {
			logger.Error("Invalid -date", "date", *date, applog.FieldError, err.Error())
			os.Exit(1)
		}
		target = &d
	}

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend",
			applog.FieldBackend, cfg.DataBackend,
			applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", applog.FieldError, err.Error())
		}
	}()

	m := metrics.New()
	cli.ServeMetrics(ctx, logger, cfg.MetricsAddr, m.Handler())

	processor := services.NewRecurringProcessor(res.Backend, res.Backend, res.Publisher, services.RecurringProcessorConfig{
		Workers:  cfg.Workers,
		Location: loc,
		Metrics:  m,
		Logger:   applog.Default().WithComponent(applog.ComponentGenerator),
	})

	logger.Info("Recurring processor configured",
		"interval", cfg.ProcessorInterval,
		applog.FieldBackend, cfg.DataBackend,
		"workers", cfg.Workers,
		"timezone", loc.String(),
		"events_enabled", res.Publisher != nil)

	w := worker.NewRecurringWorker(processor, cfg.ProcessorInterval, logger)

	if *once {
		if err := w.RunOnce(ctx, target); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := w.Run(ctx); err != nil {
		logger.Error("Recurring worker failed", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Recurring-worker shutdown complete", applog.FieldOperation, applog.OpShutdown)
}
