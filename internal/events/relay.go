// Package events relays outbox rows to the notification layer.
package events

import (
	"context"
	"time"

	"workshop-access-backend/config"
	"workshop-access-backend/internal/logger"
	"workshop-access-backend/internal/store"
)

// Relay polls undispatched events and publishes them through a WorkerPool.
type Relay struct {
	cfg        config.EventsConfig
	store      store.Store
	workerPool *WorkerPool
	log        *logger.Logger
}

// NewRelay creates a new relay.
func NewRelay(cfg config.EventsConfig, st store.Store, publisher Publisher, log *logger.Logger) *Relay {
	log = log.With("service", "EventRelay")
	return &Relay{
		cfg:        cfg,
		store:      st,
		workerPool: NewWorkerPool(cfg.WorkerPool.Size, publisher, log),
		log:        log,
	}
}

// Run starts the relay loop and blocks until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	if !r.cfg.Enabled {
		r.log.Info("event relay is disabled, not starting")
		return
	}
	r.log.Info("starting event relay", "interval", r.cfg.Interval.String(), "workers", r.cfg.WorkerPool.Size)

	// Start the worker pool
	r.workerPool.Start(ctx)

	r.drain(ctx)

	timer := time.NewTimer(r.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("event relay shutting down")
			return
		case <-timer.C:
			r.drain(ctx)
			timer.Reset(r.cfg.Interval)
		}
	}
}

// drain relays full batches back to back until the outbox is caught up.
func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := r.RelayOnce(ctx)
		if err != nil {
			r.log.Error("event relay cycle failed", "error", err)
			return
		}
		if n < r.cfg.BatchSize {
			return
		}
	}
}

// RelayOnce publishes one batch of pending events and marks the published
// ones dispatched. The batch stays row-locked on Postgres for the duration,
// so concurrent relays never publish the same event. Events whose publish
// failed are left pending. It returns the batch size.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var batch int
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		evs, err := tx.PendingEvents(ctx, r.cfg.BatchSize)
		if err != nil {
			return err
		}
		batch = len(evs)
		if batch == 0 {
			return nil
		}

		published := r.workerPool.PublishAll(ctx, evs)
		if len(published) < batch {
			r.log.Warn("some events were not published", "batch", batch, "published", len(published))
		}
		return tx.MarkDispatched(ctx, published, time.Now().UTC())
	})
	return batch, err
}
