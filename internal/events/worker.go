package events

import (
	"context"

	"workshop-access-backend/internal/logger"
	"workshop-access-backend/internal/model"
)

type job struct {
	ev   model.DomainEvent
	done chan<- result
}

type result struct {
	id  string
	err error
}

// WorkerPool publishes events concurrently.
type WorkerPool struct {
	size      int
	jobs      chan job
	publisher Publisher
	log       *logger.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, publisher Publisher, log *logger.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:      size,
		jobs:      make(chan job, size), // Buffered channel
		publisher: publisher,
		log:       log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("event worker started", "worker", id)
	for {
		select {
		case j := <-wp.jobs:
			err := wp.publisher.Publish(ctx, j.ev)
			if err != nil {
				wp.log.Warn("failed to publish event", "worker", id, "event_id", j.ev.ID, "type", j.ev.Type, "error", err)
			}
			j.done <- result{id: j.ev.ID, err: err}
		case <-ctx.Done():
			wp.log.Debug("event worker shutting down", "worker", id)
			return
		}
	}
}

// PublishAll dispatches every event and waits for all of them. It returns the
// IDs that were published successfully. If ctx ends first, the remaining
// events count as failed.
func (wp *WorkerPool) PublishAll(ctx context.Context, evs []model.DomainEvent) []string {
	done := make(chan result, len(evs))
	sent := 0
	for _, ev := range evs {
		select {
		case wp.jobs <- job{ev: ev, done: done}:
			sent++
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	ok := make([]string, 0, sent)
	for i := 0; i < sent; i++ {
		select {
		case r := <-done:
			if r.err == nil {
				ok = append(ok, r.id)
			}
		case <-ctx.Done():
			return ok
		}
	}
	return ok
}
