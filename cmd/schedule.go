package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pcbflow/drillsync/internal/pipeline"
)

// runSchedule drives the sync loop on the configured interval until the
// process receives SIGINT or SIGTERM. One sync fires immediately on start
// so a freshly deployed instance does not sit idle for a full interval.
func runSchedule(ctx context.Context, log *zap.Logger, env *syncEnv) error {
	interval, err := time.ParseDuration(cfg.Sync.Interval)
	if err != nil {
		return eris.Wrapf(err, "schedule: parse interval %q", cfg.Sync.Interval)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runOnce := func() {
		if err := env.Runner.Run(ctx); err != nil {
			if eris.Is(err, pipeline.ErrRunInProgress) {
				log.Warn("previous run still active, skipping tick")
				return
			}
			log.Error("scheduled run failed", zap.Error(err))
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), runOnce); err != nil {
		return eris.Wrap(err, "schedule: register job")
	}

	log.Info("scheduler started", zap.Duration("interval", interval))
	runOnce()
	c.Start()

	<-ctx.Done()
	log.Info("scheduler stopping")

	// Let an in-flight run finish before returning.
	<-c.Stop().Done()
	return nil
}
