package core

import (
	"context"
	"strings"
	"time"

	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/eligibility"
	"workshop-access-backend/internal/lifecycle"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/store"
)

// CreateReservation books a machine window for an eligible user. Checks run
// in order: input validation and existence, then eligibility and conflict
// detection under the machine's critical section.
func (s *Service) CreateReservation(ctx context.Context, userID, machineID int64, start, end time.Time, note string) (model.Reservation, error) {
	start, end = start.UTC(), end.UTC()
	if err := validWindow(start, end); err != nil {
		return model.Reservation{}, err
	}
	if end.Sub(start) > s.cfg.MaxReservation {
		return model.Reservation{}, apperr.Validation("reservation_too_long",
			"reservations may not exceed %d minutes", s.cfg.MaxReservationMinutes)
	}
	if start.Before(s.clock()) {
		return model.Reservation{}, apperr.Validation("start_in_past", "reservation cannot start in the past")
	}

	user, err := s.actor(ctx, userID)
	if err != nil {
		return model.Reservation{}, err
	}
	if _, err := s.activeMachine(ctx, machineID); err != nil {
		return model.Reservation{}, err
	}

	release, err := s.locks.Lock(ctx, lockKey("machine", machineID))
	if err != nil {
		return model.Reservation{}, err
	}
	defer release()

	r := model.Reservation{
		UserID:    userID,
		MachineID: machineID,
		StartTime: start,
		EndTime:   end,
		Status:    model.ReservationPending,
		Note:      strings.TrimSpace(note),
	}
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		machine, err := tx.LockMachine(ctx, machineID)
		if err != nil {
			return err
		}
		if !machine.Lifecycle.IsActive() {
			return apperr.Inactive("machine", machineID)
		}

		// Checked under the machine lock so a concurrent revoke cannot slip
		// between the verdict and the insert.
		verdict, err := eligibility.NewEvaluator(tx, tx, tx).Evaluate(ctx, user, machineID)
		if err != nil {
			return err
		}
		if !verdict.Eligible {
			return apperr.Forbidden("not_eligible", "user is not eligible to reserve this machine", verdict.Reasons...)
		}

		overlapping, err := tx.OverlappingReservations(ctx, machineID, start, end)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			c := overlapping[0]
			return apperr.Conflict("machine", c.ID, c.StartTime, c.EndTime)
		}

		if err := tx.CreateReservation(ctx, &r); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, model.EventReservationCreated, r.ID, reservationPayload(r, "", userID))
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.log.Info("reservation created", "reservation_id", r.ID, "user_id", userID, "machine_id", machineID)
	return r, nil
}

// TransitionReservation moves a reservation along its state machine on
// behalf of actorID.
func (s *Service) TransitionReservation(ctx context.Context, actorID, reservationID int64, target model.ReservationStatus, note string) (model.Reservation, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return model.Reservation{}, err
	}

	var out model.Reservation
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		r, err := tx.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		role, err := actorRole(actor, r.UserID)
		if err != nil {
			return err
		}
		if err := lifecycle.ReservationTransition(r.Status, target, role); err != nil {
			return err
		}
		if target == model.ReservationCompleted && s.clock().Before(r.EndTime) {
			return apperr.Validation("reservation_not_ended", "reservation %d has not ended yet", r.ID)
		}

		prev := r.Status
		r.Status = target
		if role == lifecycle.ActorReviewer {
			r.ReviewedBy = &actor.ID
		}
		if note = strings.TrimSpace(note); note != "" {
			r.Note = note
		}
		if err := tx.UpdateReservation(ctx, &r); err != nil {
			return err
		}
		out = r
		return tx.AppendEvent(ctx, model.EventReservationStatusChanged, r.ID, reservationPayload(r, prev, actorID))
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.log.Info("reservation transitioned", "reservation_id", reservationID, "status", target, "actor_id", actorID)
	return out, nil
}

// ListReservations returns reservations visible to the actor. Members only
// see their own.
func (s *Service) ListReservations(ctx context.Context, actorID int64, f store.ReservationFilter) ([]model.Reservation, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanReview() {
		f.UserID = actor.ID
	}
	return s.store.ListReservations(ctx, f)
}
