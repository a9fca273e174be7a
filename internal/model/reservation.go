package model

import "time"

// ReservationStatus is the state of a machine reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationApproved  ReservationStatus = "approved"
	ReservationRejected  ReservationStatus = "rejected"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

// ActiveReservationStatuses hold a machine window against other requests.
var ActiveReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationApproved,
	ReservationConfirmed,
}

func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationRejected || s == ReservationCancelled || s == ReservationCompleted
}

// Reservation is a user's request to use a machine for a window.
type Reservation struct {
	ID         int64             `gorm:"primaryKey" json:"id"`
	UserID     int64             `gorm:"not null;index" json:"userId"`
	MachineID  int64             `gorm:"not null;index:idx_reservation_machine_period" json:"machineId"`
	StartTime  time.Time         `gorm:"not null;index:idx_reservation_machine_period" json:"startTime"`
	EndTime    time.Time         `gorm:"not null" json:"endTime"`
	Status     ReservationStatus `gorm:"size:16;not null;index" json:"status"`
	ReviewedBy *int64            `json:"reviewedBy,omitempty"`
	Note       string            `gorm:"size:1024" json:"note,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}
