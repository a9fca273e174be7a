package core

import (
	"context"
	"fmt"

	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/store"
)

// ApproveCheckout records that actorID appraised userID on machineID.
// Approving twice is a no-op; created reports whether a row was written.
func (s *Service) ApproveCheckout(ctx context.Context, actorID, userID, machineID int64) (created bool, err error) {
	if _, err := s.reviewer(ctx, actorID); err != nil {
		return false, err
	}
	if actorID == userID {
		return false, apperr.Forbidden("self_approval", "users cannot approve their own checkout")
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return false, err
	}
	if _, err := s.activeMachine(ctx, machineID); err != nil {
		return false, err
	}

	err = s.store.Transaction(ctx, func(tx store.Store) error {
		created, err = tx.CreateCheckout(ctx, &model.ManagerCheckout{
			UserID:     userID,
			MachineID:  machineID,
			ApprovedBy: actorID,
			ApprovedAt: s.clock(),
		})
		if err != nil || !created {
			return err
		}
		return tx.AppendEvent(ctx, model.EventCheckoutApproved, machineID, CheckoutPayload{
			UserID: userID, MachineID: machineID, ActorID: actorID,
		})
	})
	if err != nil {
		return false, err
	}
	if created {
		s.log.Info("checkout approved", "user_id", userID, "machine_id", machineID, "actor_id", actorID)
	}
	return created, nil
}

// RevokeCheckout withdraws an approval. Existing reservations are not touched.
func (s *Service) RevokeCheckout(ctx context.Context, actorID, userID, machineID int64) error {
	if _, err := s.reviewer(ctx, actorID); err != nil {
		return err
	}

	// Reservations check eligibility under this lock.
	release, err := s.locks.Lock(ctx, lockKey("machine", machineID))
	if err != nil {
		return err
	}
	defer release()

	return s.store.Transaction(ctx, func(tx store.Store) error {
		deleted, err := tx.DeleteCheckout(ctx, userID, machineID)
		if err != nil {
			return err
		}
		if !deleted {
			return &apperr.Error{
				Kind:    apperr.KindNotFound,
				Code:    "checkout_not_found",
				Message: fmt.Sprintf("user %d has no checkout on machine %d", userID, machineID),
			}
		}
		return tx.AppendEvent(ctx, model.EventCheckoutRevoked, machineID, CheckoutPayload{
			UserID: userID, MachineID: machineID, ActorID: actorID,
		})
	})
}
