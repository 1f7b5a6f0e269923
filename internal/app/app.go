// Package app wires configuration into the running service: the evaluation
// pipeline, the periodic scheduler, the read-only HTTP surface and the
// persistence consumer.
package app

import (
	"context"
	"fmt"
	"time"

	"pantheon/internal/config"
	"pantheon/internal/ledger"
	"pantheon/internal/logger"
	"pantheon/internal/scheduler"
	"pantheon/internal/store"
	pantheonhttp "pantheon/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg      *config.Config
	pipeline *Pipeline
	ledger   *ledger.Ledger
	store    *store.Store
	httpSrv  *pantheonhttp.Server
}

// Pipeline exposes the evaluation pipeline for replay harnesses and tests.
func (a *App) Pipeline() *Pipeline {
	if a == nil {
		return nil
	}
	return a.pipeline
}

// Run starts the HTTP server, the persistence consumer and the scheduled
// evaluation loop, blocking until ctx cancels or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}

	group, ctx := errgroup.WithContext(ctx)

	if a.httpSrv != nil {
		group.Go(func() error {
			logger.Infof("app: http listening on %s", a.httpSrv.Addr())
			if err := a.httpSrv.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}

	if a.store != nil {
		group.Go(func() error {
			defer a.store.Close()
			a.store.Consume(ctx, a.ledger.Events())
			return nil
		})
	}

	group.Go(func() error {
		interval := time.Duration(a.cfg.Scheduler.IntervalSeconds) * time.Second
		sched := scheduler.NewIntervalScheduler(ctx, interval)
		sched.RunImmediately = true
		sched.Start(func() {
			a.pipeline.Round(ctx, a.cfg.Scheduler.Symbols)
		})
		return nil
	})

	return group.Wait()
}
