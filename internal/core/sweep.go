package core

import (
	"context"
	"time"

	"workshop-access-backend/internal/lifecycle"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/store"
)

// SweepResult counts what CompleteElapsed transitioned.
type SweepResult struct {
	Reservations int `json:"reservations"`
	Appointments int `json:"appointments"`
}

// CompleteElapsed moves confirmed reservations and scheduled appointments
// whose end is at or before now to completed. The caller owns the cadence.
func (s *Service) CompleteElapsed(ctx context.Context, now time.Time) (SweepResult, error) {
	now = now.UTC()
	var res SweepResult

	for {
		n, err := s.completeReservations(ctx, now)
		if err != nil {
			return res, err
		}
		res.Reservations += n
		if n < sweepBatch {
			break
		}
	}
	for {
		n, err := s.completeAppointments(ctx, now)
		if err != nil {
			return res, err
		}
		res.Appointments += n
		if n < sweepBatch {
			break
		}
	}

	if res.Reservations > 0 || res.Appointments > 0 {
		s.log.Info("completed elapsed bookings", "reservations", res.Reservations, "appointments", res.Appointments)
	}
	return res, nil
}

// SweepElapsed runs CompleteElapsed at the service clock on behalf of a
// reviewer, for collaborators that trigger the sweep over the API.
func (s *Service) SweepElapsed(ctx context.Context, actorID int64) (SweepResult, error) {
	if _, err := s.reviewer(ctx, actorID); err != nil {
		return SweepResult{}, err
	}
	return s.CompleteElapsed(ctx, s.clock())
}

func (s *Service) completeReservations(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		rows, err := tx.ElapsedReservations(ctx, now, sweepBatch)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := lifecycle.ReservationTransition(r.Status, model.ReservationCompleted, lifecycle.ActorSystem); err != nil {
				return err
			}
			prev := r.Status
			r.Status = model.ReservationCompleted
			if err := tx.UpdateReservation(ctx, &r); err != nil {
				return err
			}
			if err := tx.AppendEvent(ctx, model.EventReservationStatusChanged, r.ID, reservationPayload(r, prev, 0)); err != nil {
				return err
			}
		}
		n = len(rows)
		return nil
	})
	return n, err
}

func (s *Service) completeAppointments(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		rows, err := tx.ElapsedAppointments(ctx, now, sweepBatch)
		if err != nil {
			return err
		}
		for _, a := range rows {
			if err := lifecycle.AppointmentTransition(a.Status, model.AppointmentCompleted, lifecycle.ActorSystem, ""); err != nil {
				return err
			}
			a.Status = model.AppointmentCompleted
			if err := tx.UpdateAppointment(ctx, &a); err != nil {
				return err
			}
			if err := tx.AppendEvent(ctx, model.EventAppointmentCompleted, a.ID, appointmentPayload(a, 0)); err != nil {
				return err
			}
		}
		n = len(rows)
		return nil
	})
	return n, err
}
