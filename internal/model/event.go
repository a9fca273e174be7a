package model

import (
	"time"

	"gorm.io/datatypes"
)

// Event types recorded in the outbox.
const (
	EventReservationCreated       = "reservation.created"
	EventReservationStatusChanged = "reservation.status_changed"
	EventCheckoutApproved         = "checkout.approved"
	EventCheckoutRevoked          = "checkout.revoked"
	EventAppointmentCreated       = "appointment.created"
	EventAppointmentCancelled     = "appointment.cancelled"
	EventAppointmentCompleted     = "appointment.completed"
	EventTrainingCompleted        = "training.completed"
)

// DomainEvent is an outbox row written in the same transaction as the state
// change it describes. The notification layer consumes it.
type DomainEvent struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	Type         string         `gorm:"size:64;not null;index" json:"type"`
	AggregateID  int64          `gorm:"not null" json:"aggregateId"`
	Payload      datatypes.JSON `json:"payload"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"createdAt"`
	DispatchedAt *time.Time     `gorm:"index" json:"dispatchedAt,omitempty"`
}
