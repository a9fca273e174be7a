package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/lifecycle"
	"workshop-access-backend/internal/lock"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/store"
)

// SlotRef names the availability source an appointment is booked against.
// Exactly one field is set.
type SlotRef struct {
	BlockID int64 `json:"blockId,omitempty"`
	RuleID  int64 `json:"ruleId,omitempty"`
}

// CreateCheckoutAppointment books an appraisal with the manager who owns the
// referenced block or rule. The user must have finished the machine's
// training and not already hold a checkout for it.
func (s *Service) CreateCheckoutAppointment(ctx context.Context, userID, machineID int64, ref SlotRef, start, end time.Time) (model.CheckoutAppointment, error) {
	start, end = start.UTC(), end.UTC()
	if err := validWindow(start, end); err != nil {
		return model.CheckoutAppointment{}, err
	}
	if start.Before(s.clock()) {
		return model.CheckoutAppointment{}, apperr.Validation("start_in_past", "appointment cannot start in the past")
	}

	if _, err := s.actor(ctx, userID); err != nil {
		return model.CheckoutAppointment{}, err
	}
	if _, err := s.activeMachine(ctx, machineID); err != nil {
		return model.CheckoutAppointment{}, err
	}
	managerID, err := slotFor(ctx, s.store, ref, machineID, start, end)
	if err != nil {
		return model.CheckoutAppointment{}, err
	}
	if managerID == userID {
		return model.CheckoutAppointment{}, apperr.Forbidden("self_appraisal", "managers cannot book their own checkout slot")
	}

	hasCheckout, err := s.store.HasCheckout(ctx, userID, machineID)
	if err != nil {
		return model.CheckoutAppointment{}, err
	}
	if hasCheckout {
		return model.CheckoutAppointment{}, apperr.Validation("already_checked_out", "user already holds a checkout for machine %d", machineID)
	}
	statuses, trained, err := s.evaluator.Training(ctx, userID, machineID)
	if err != nil {
		return model.CheckoutAppointment{}, err
	}
	if !trained {
		var reasons []string
		for _, st := range statuses {
			if !st.Completed {
				reasons = append(reasons, fmt.Sprintf("Training %q not completed", st.ModuleTitle))
			}
		}
		return model.CheckoutAppointment{}, apperr.Forbidden("training_incomplete", "training must be completed before a checkout appointment", reasons...)
	}

	release, err := lock.LockAll(ctx, s.locks, lockKey("manager", managerID), lockKey("user", userID))
	if err != nil {
		return model.CheckoutAppointment{}, err
	}
	defer release()

	a := model.CheckoutAppointment{
		UserID:    userID,
		MachineID: machineID,
		ManagerID: managerID,
		StartTime: start,
		EndTime:   end,
		Status:    model.AppointmentScheduled,
	}
	if ref.BlockID != 0 {
		a.BlockID = &ref.BlockID
	} else {
		a.RuleID = &ref.RuleID
	}

	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.LockUser(ctx, managerID); err != nil {
			return err
		}

		clashes, err := tx.ManagerAppointments(ctx, managerID, start, end)
		if err != nil {
			return err
		}
		if len(clashes) > 0 {
			c := clashes[0]
			return apperr.Conflict("manager", c.ID, c.StartTime, c.EndTime)
		}

		own, err := tx.UserAppointments(ctx, userID, start, end)
		if err != nil {
			return err
		}
		if len(own) > 0 {
			c := own[0]
			return apperr.Conflict("user", c.ID, c.StartTime, c.EndTime)
		}

		if err := tx.CreateAppointment(ctx, &a); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, model.EventAppointmentCreated, a.ID, appointmentPayload(a, userID))
	})
	if err != nil {
		return model.CheckoutAppointment{}, err
	}
	s.log.Info("checkout appointment created", "appointment_id", a.ID, "user_id", userID, "manager_id", managerID)
	return a, nil
}

// appointmentActor is owner for the booking user, reviewer for the assigned
// manager or any admin.
func appointmentActor(actor model.User, a model.CheckoutAppointment) (lifecycle.Actor, error) {
	switch {
	case actor.Role == model.RoleAdmin, actor.ID == a.ManagerID:
		return lifecycle.ActorReviewer, nil
	case actor.ID == a.UserID:
		return lifecycle.ActorOwner, nil
	default:
		return "", apperr.Forbidden("not_participant", "only the booking user, the assigned manager or an admin may change this appointment")
	}
}

// CancelCheckoutAppointment cancels a scheduled appointment. A reason is required.
func (s *Service) CancelCheckoutAppointment(ctx context.Context, actorID, appointmentID int64, reason string) (model.CheckoutAppointment, error) {
	reason = strings.TrimSpace(reason)
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return model.CheckoutAppointment{}, err
	}

	var out model.CheckoutAppointment
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		a, err := tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		role, err := appointmentActor(actor, a)
		if err != nil {
			return err
		}
		if err := lifecycle.AppointmentTransition(a.Status, model.AppointmentCancelled, role, reason); err != nil {
			return err
		}
		a.Status = model.AppointmentCancelled
		a.CancelReason = reason
		a.CancelledBy = &actor.ID
		if err := tx.UpdateAppointment(ctx, &a); err != nil {
			return err
		}
		out = a
		return tx.AppendEvent(ctx, model.EventAppointmentCancelled, a.ID, appointmentPayload(a, actorID))
	})
	if err != nil {
		return model.CheckoutAppointment{}, err
	}
	s.log.Info("checkout appointment cancelled", "appointment_id", appointmentID, "actor_id", actorID)
	return out, nil
}

// CompleteCheckoutAppointment marks an appointment completed once its end
// time has passed. Only the assigned manager or an admin may do this.
func (s *Service) CompleteCheckoutAppointment(ctx context.Context, actorID, appointmentID int64) (model.CheckoutAppointment, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return model.CheckoutAppointment{}, err
	}

	var out model.CheckoutAppointment
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		a, err := tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		role, err := appointmentActor(actor, a)
		if err != nil {
			return err
		}
		if err := lifecycle.AppointmentTransition(a.Status, model.AppointmentCompleted, role, ""); err != nil {
			return err
		}
		if s.clock().Before(a.EndTime) {
			return apperr.Validation("appointment_not_ended", "appointment %d has not ended yet", a.ID)
		}
		a.Status = model.AppointmentCompleted
		if err := tx.UpdateAppointment(ctx, &a); err != nil {
			return err
		}
		out = a
		return tx.AppendEvent(ctx, model.EventAppointmentCompleted, a.ID, appointmentPayload(a, actorID))
	})
	if err != nil {
		return model.CheckoutAppointment{}, err
	}
	return out, nil
}

// ListAppointments returns appointments visible to the actor. Members see
// their own; managers see their own bookings and the ones assigned to them.
func (s *Service) ListAppointments(ctx context.Context, actorID int64, f store.AppointmentFilter) ([]model.CheckoutAppointment, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleManager:
		if f.UserID != actor.ID {
			f.ManagerID = actor.ID
		}
	default:
		f.UserID = actor.ID
	}
	return s.store.ListAppointments(ctx, f)
}
