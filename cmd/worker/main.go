package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"receipt_ingest_backend/internal/actor"
	"receipt_ingest_backend/internal/downstream"
	"receipt_ingest_backend/internal/extraction"
	"receipt_ingest_backend/internal/pipeline"
	"receipt_ingest_backend/internal/receipts"
	"receipt_ingest_backend/internal/trigger"
	"receipt_ingest_backend/platform/config"
	"receipt_ingest_backend/platform/db"
	"receipt_ingest_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const purgeSchedule = "0 3 * * *"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	repo := receipts.NewRepository(pool)

	extractor, err := extraction.NewClient(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize extraction client", "error", err)
		panic("failed to initialize extraction client: " + err.Error())
	}

	resolver := actor.NewResolver(actor.NewHTTPDirectory(cfg), cfg.GetDirectoryCacheTTL(), log)
	orders := downstream.NewClient(cfg)

	processor := pipeline.NewProcessor(repo, resolver, extractor, orders, cfg, cfg, log)
	scheduler := pipeline.NewScheduler(repo, processor, cfg, log)
	purger := pipeline.NewPurger(repo, cfg, log)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return scheduler.Run(groupCtx)
	})

	purgeCron := cron.New()
	if _, err := purgeCron.AddFunc(purgeSchedule, func() {
		if err := purger.RunOnce(groupCtx); err != nil {
			log.Error("retention purge failed", "error", err)
		}
	}); err != nil {
		log.Error("failed to schedule retention purge", "error", err)
		panic("failed to schedule retention purge: " + err.Error())
	}
	purgeCron.Start()
	defer purgeCron.Stop()
	log.Info("retention purge scheduled", "cron", purgeSchedule)

	if cfg.GetRedisURL() != "" {
		worker, err := trigger.NewWorker(cfg, scheduler, log)
		if err != nil {
			log.Error("failed to initialize trigger worker", "error", err)
			panic("failed to initialize trigger worker: " + err.Error())
		}
		group.Go(func() error {
			return worker.Run()
		})
		group.Go(func() error {
			<-groupCtx.Done()
			worker.Shutdown()
			return nil
		})
	} else {
		log.Warn("REDIS_URL not configured; relying on the claim tick alone")
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker exited with error", "error", err)
		panic("worker exited with error: " + err.Error())
	}
	log.Info("worker stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
