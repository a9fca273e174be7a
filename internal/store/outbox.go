package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"workshop-access-backend/internal/model"
)

// AppendEvent writes an outbox row. Call it on the transaction that makes the
// state change so the two commit together.
func (s *gormStore) AppendEvent(ctx context.Context, eventType string, aggregateID int64, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	ev := model.DomainEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     datatypes.JSON(raw),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return fmt.Errorf("failed to append %s event: %w", eventType, err)
	}
	return nil
}

// PendingEvents returns undispatched events, oldest first. On Postgres rows
// held by another relay are skipped.
func (s *gormStore) PendingEvents(ctx context.Context, limit int) ([]model.DomainEvent, error) {
	var out []model.DomainEvent
	if err := s.skipLocked(ctx).
		Where("dispatched_at IS NULL").
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to load pending events: %w", err)
	}
	return out, nil
}

func (s *gormStore) MarkDispatched(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&model.DomainEvent{}).
		Where("id IN ?", ids).
		Update("dispatched_at", at).Error; err != nil {
		return fmt.Errorf("failed to mark %d events dispatched: %w", len(ids), err)
	}
	return nil
}
