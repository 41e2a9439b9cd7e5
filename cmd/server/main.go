// Command server wires the log-processing backend's core pipeline:
// configuration, structured logging, metrics, the Postgres-backed log
// store, the rule catalogue, and the Queue->Processor->RuleEngine chain.
// The Batcher is not run here: it belongs to the upload path, and the upload
// and query HTTP handlers that feed this pipeline are out of scope (see
// spec) and are not built here; this process exposes only
// /metrics and /healthz and drains whatever targets its rule catalogue
// names, the same way an operator would run it alongside a separate HTTP
// front end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/borelli28/siembackend/internal/alerts"
	"github.com/borelli28/siembackend/internal/config"
	"github.com/borelli28/siembackend/internal/containment"
	"github.com/borelli28/siembackend/internal/health"
	"github.com/borelli28/siembackend/internal/logger"
	"github.com/borelli28/siembackend/internal/logstore"
	"github.com/borelli28/siembackend/internal/monitoring"
	"github.com/borelli28/siembackend/internal/processor"
	"github.com/borelli28/siembackend/internal/queue"
	"github.com/borelli28/siembackend/internal/ratelimit"
	"github.com/borelli28/siembackend/internal/rules"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	log.Info("starting siembackend",
		"version", Version,
		"commit", Commit,
		"logging_level", cfg.Server.LoggingLevel,
		"port", cfg.Server.Port,
	)

	metrics := monitoring.New(cfg.Monitoring.PrometheusEnabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := logstore.NewPool(ctx, logstore.PoolConfig{
		URL:                 cfg.Database.URL,
		MaxConns:            int32(cfg.Database.MaxConns),
		MinConns:            int32(cfg.Database.MinConns),
		HealthCheckInterval: cfg.Database.HealthCheckInterval,
		ConnectTimeout:      cfg.Database.ConnectTimeout,
		Logger:              log,
	})
	if err != nil {
		log.Error("failed to connect to log store database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store, err := logstore.New(pool, cfg.Ingest.HashCacheSize)
	if err != nil {
		log.Error("failed to initialize log store", "error", err)
		os.Exit(1)
	}

	healthChecker := health.NewDBHealthChecker()
	monitor := health.NewMonitor(&health.MonitorConfig{
		CheckInterval:    cfg.Database.HealthCheckInterval,
		FailureThreshold: 3,
		Logger:           log,
	}, healthChecker, pool)
	go monitor.Start(ctx)

	sink := alerts.NewPostgresSink(pool.Raw(), metrics)
	engine := rules.New(sink, log, metrics)

	loaded, failures, err := rules.LoadDir(cfg.Rules.Dir)
	if err != nil {
		log.Error("failed to read rule directory", "dir", cfg.Rules.Dir, "error", err)
		os.Exit(1)
	}
	for _, f := range failures {
		log.Warn("skipping invalid rule file", "path", f.Path, "reason", f.Reason)
	}
	for accountID, accountRules := range rules.GroupByAccount(loaded) {
		engine.LoadRules(accountID, accountRules)
	}
	log.Info("rule catalogue loaded", "rules", len(loaded), "rejected", len(failures))

	tracker := containment.New(cfg.Containment.MaxAttempts, cfg.Containment.Window, cfg.Containment.BanDuration)

	limiter := ratelimit.New()
	limiter.AddAccount("default", cfg.RateLimit.DefaultAccountRPM)
	for accountID := range rules.GroupByAccount(loaded) {
		limiter.AddAccount(accountID, cfg.RateLimit.DefaultAccountRPM)
	}

	q := queue.New(cfg.Ingest.QueueSize)
	defer q.Close()

	proc := processor.New(processor.Config{
		Queue:       q,
		Store:       store,
		Engine:      engine,
		Containment: tracker,
		RateLimiter: limiter,
		Logger:      log,
		Metrics:     metrics,
	})

	// With no upload HTTP front end built in this process, there is no live
	// account/host to drain against; the pool below stands ready so that an
	// in-process caller (or a future HTTP layer) need only push Batches onto
	// q and the workers pick them up. See internal/processor.RunWorkers.
	targets := targetsFromRules(loaded)
	wg := proc.RunWorkers(ctx, targets, cfg.Ingest.Workers)

	mux := http.NewServeMux()
	if cfg.Monitoring.PrometheusEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("prometheus metrics enabled", "path", "/metrics")
	}
	mux.HandleFunc(cfg.Monitoring.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
		if !healthChecker.IsHealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "unhealthy")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	wg.Wait()
	log.Info("shutdown complete")
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.Server.LogFormat == "json" {
		return logger.NewJSON(cfg.Server.LoggingLevel)
	}
	return logger.New(cfg.Server.LoggingLevel)
}

// targetsFromRules derives the distinct accounts the loaded rule catalogue
// covers; each gets its own drain worker watching the shared queue. A host
// id of "*" stands for "any host under this account", since Batch values
// carry no host id of their own once enqueued.
func targetsFromRules(loaded []rules.Rule) []processor.Target {
	seen := make(map[string]bool)
	var targets []processor.Target
	for _, r := range loaded {
		if seen[r.AccountID] {
			continue
		}
		seen[r.AccountID] = true
		targets = append(targets, processor.Target{AccountID: r.AccountID, HostID: "*"})
	}
	return targets
}
