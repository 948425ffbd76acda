package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aidchain/internal/alerting"
	aidhttp "aidchain/internal/http"
	ledgerhandler "aidchain/internal/ledger/handler"
	ledgermetrics "aidchain/internal/ledger/metrics"
	ledgerservice "aidchain/internal/ledger/service"
	ledgerstore "aidchain/internal/ledger/store"
	"aidchain/internal/platform/config"
	"aidchain/internal/platform/httpserver"
	"aidchain/internal/platform/logger"
	"aidchain/internal/platform/postgres"
	"aidchain/internal/platform/redis"
	priorityhandler "aidchain/internal/priority/handler"
	prioritymetrics "aidchain/internal/priority/metrics"
	priorityservice "aidchain/internal/priority/service"
	prioritystore "aidchain/internal/priority/store"
	"aidchain/internal/scheduler"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when a DSN is configured, in-memory otherwise.
	var (
		blocks        ledgerstore.BlockStore
		beneficiaries prioritystore.BeneficiaryStore
		healthPing    func(context.Context) error
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		for _, schema := range []string{ledgerstore.Schema, prioritystore.Schema} {
			if _, err := db.ExecContext(ctx, schema); err != nil {
				log.Error("schema migration failed", "error", err)
				os.Exit(1)
			}
		}
		blocks = ledgerstore.NewPostgres(db)
		beneficiaries = prioritystore.NewPostgres(db)
		healthPing = db.PingContext
		log.Info("using postgres stores")
	} else {
		blocks = ledgerstore.NewMemoryStore()
		beneficiaries = prioritystore.NewMemoryStore()
		log.Warn("no postgres DSN configured, using in-memory stores")
	}

	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Escalation alerts go to kafka when brokers are configured; otherwise
	// they are held in memory and surface through logs only.
	var publisher alerting.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := alerting.NewKafka(cfg.KafkaBrokers, cfg.AlertTopic, alerting.WithLogger(log))
		if err != nil {
			log.Error("kafka publisher setup failed", "error", err)
			os.Exit(1)
		}
		publisher = kafka
		log.Info("publishing escalation alerts to kafka", "topic", cfg.AlertTopic)
	} else {
		publisher = alerting.NewMemory()
		log.Warn("no kafka brokers configured, escalation alerts are log-only")
	}
	defer publisher.Close()

	ledgerSvc, err := ledgerservice.New(blocks,
		ledgerservice.WithLogger(log),
		ledgerservice.WithMetrics(ledgermetrics.New()),
	)
	if err != nil {
		log.Error("ledger service setup failed", "error", err)
		os.Exit(1)
	}

	priorityOpts := []priorityservice.Option{
		priorityservice.WithLogger(log),
		priorityservice.WithMetrics(prioritymetrics.New()),
		priorityservice.WithWorkers(cfg.RescoreWorkers),
	}
	if redisClient != nil {
		priorityOpts = append(priorityOpts, priorityservice.WithUrgentCache(priorityservice.NewRedisCache(redisClient)))
	}
	prioritySvc, err := priorityservice.New(beneficiaries, publisher, priorityOpts...)
	if err != nil {
		log.Error("priority service setup failed", "error", err)
		os.Exit(1)
	}

	runner := scheduler.New(prioritySvc, cfg.FullRecomputeInterval, cfg.UrgentScanInterval, log)
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("scheduler stopped", "error", err)
		}
	}()

	router := aidhttp.NewRouter(
		func(r *http.Request) error {
			if healthPing != nil {
				return healthPing(r.Context())
			}
			return nil
		},
		ledgerhandler.New(ledgerSvc, log),
		priorityhandler.New(prioritySvc, log, priorityhandler.WithJournal(ledgerSvc)),
	)

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("starting aidchain", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
