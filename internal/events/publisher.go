package events

import (
	"context"

	"workshop-access-backend/internal/logger"
	"workshop-access-backend/internal/model"
)

// Publisher hands a domain event to the notification layer. Returning an
// error leaves the event pending; it is retried on the next relay tick.
type Publisher interface {
	Publish(ctx context.Context, ev model.DomainEvent) error
}

// LogPublisher writes events to the structured log. It is the default when
// no notification layer is attached.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log.With("service", "EventLog")}
}

func (p *LogPublisher) Publish(_ context.Context, ev model.DomainEvent) error {
	p.log.Info("domain event",
		"event_id", ev.ID,
		"type", ev.Type,
		"aggregate_id", ev.AggregateID,
		"payload", string(ev.Payload),
	)
	return nil
}
