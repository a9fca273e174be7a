package core

import (
	"time"

	"workshop-access-backend/internal/model"
)

// Outbox payloads. Field names are the notification layer's contract.

type ReservationPayload struct {
	ReservationID  int64                   `json:"reservationId"`
	UserID         int64                   `json:"userId"`
	MachineID      int64                   `json:"machineId"`
	Start          time.Time               `json:"start"`
	End            time.Time               `json:"end"`
	Status         model.ReservationStatus `json:"status"`
	PreviousStatus model.ReservationStatus `json:"previousStatus,omitempty"`
	ActorID        int64                   `json:"actorId,omitempty"`
}

type CheckoutPayload struct {
	UserID    int64 `json:"userId"`
	MachineID int64 `json:"machineId"`
	ActorID   int64 `json:"actorId"`
}

type AppointmentPayload struct {
	AppointmentID int64                   `json:"appointmentId"`
	UserID        int64                   `json:"userId"`
	MachineID     int64                   `json:"machineId"`
	ManagerID     int64                   `json:"managerId"`
	Start         time.Time               `json:"start"`
	End           time.Time               `json:"end"`
	Status        model.AppointmentStatus `json:"status"`
	Reason        string                  `json:"reason,omitempty"`
	ActorID       int64                   `json:"actorId,omitempty"`
}

type TrainingPayload struct {
	UserID      int64     `json:"userId"`
	ModuleID    int64     `json:"moduleId"`
	CompletedAt time.Time `json:"completedAt"`
}

func reservationPayload(r model.Reservation, prev model.ReservationStatus, actorID int64) ReservationPayload {
	return ReservationPayload{
		ReservationID:  r.ID,
		UserID:         r.UserID,
		MachineID:      r.MachineID,
		Start:          r.StartTime,
		End:            r.EndTime,
		Status:         r.Status,
		PreviousStatus: prev,
		ActorID:        actorID,
	}
}

func appointmentPayload(a model.CheckoutAppointment, actorID int64) AppointmentPayload {
	return AppointmentPayload{
		AppointmentID: a.ID,
		UserID:        a.UserID,
		MachineID:     a.MachineID,
		ManagerID:     a.ManagerID,
		Start:         a.StartTime,
		End:           a.EndTime,
		Status:        a.Status,
		Reason:        a.CancelReason,
		ActorID:       actorID,
	}
}
