// Package lifecycle holds the reservation and checkout appointment state
// machines. Transitions are checked against the acting party; persistence is
// the caller's job.
package lifecycle

import (
	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/model"
)

// Actor is the party requesting a transition relative to the record.
type Actor string

const (
	// ActorOwner is the user the record belongs to.
	ActorOwner Actor = "owner"
	// ActorReviewer is a manager or admin acting on someone's record.
	ActorReviewer Actor = "reviewer"
	// ActorSystem is the elapsed-time sweep.
	ActorSystem Actor = "system"
)

var reservationEdges = map[model.ReservationStatus][]model.ReservationStatus{
	model.ReservationPending:   {model.ReservationApproved, model.ReservationRejected, model.ReservationCancelled},
	model.ReservationApproved:  {model.ReservationConfirmed, model.ReservationCancelled},
	model.ReservationConfirmed: {model.ReservationCompleted, model.ReservationCancelled},
}

// ReservationTransition reports whether actor may move a reservation from
// one status to another.
func ReservationTransition(from, to model.ReservationStatus, actor Actor) error {
	if from.IsTerminal() || !contains(reservationEdges[from], to) {
		return invalidTransition(string(from), string(to))
	}

	var allowed bool
	switch to {
	case model.ReservationCancelled:
		// Owners cancel their own; reviewers may cancel on their behalf.
		allowed = actor == ActorOwner || actor == ActorReviewer
	case model.ReservationApproved, model.ReservationRejected, model.ReservationConfirmed:
		allowed = actor == ActorReviewer
	case model.ReservationCompleted:
		allowed = actor == ActorSystem || actor == ActorReviewer
	}
	if !allowed {
		return apperr.Forbidden("transition_not_permitted", "not permitted to move reservation to "+string(to))
	}
	return nil
}

// AppointmentTransition reports whether actor may move an appointment from
// one status to another. Cancelling requires a non-empty reason.
func AppointmentTransition(from, to model.AppointmentStatus, actor Actor, reason string) error {
	if from != model.AppointmentScheduled || !to.IsTerminal() {
		return invalidTransition(string(from), string(to))
	}

	switch to {
	case model.AppointmentCancelled:
		if actor != ActorOwner && actor != ActorReviewer {
			return apperr.Forbidden("transition_not_permitted", "not permitted to cancel appointment")
		}
		if reason == "" {
			return apperr.Validation("cancel_reason_required", "a reason is required to cancel an appointment")
		}
	case model.AppointmentCompleted:
		if actor != ActorSystem && actor != ActorReviewer {
			return apperr.Forbidden("transition_not_permitted", "not permitted to complete appointment")
		}
	}
	return nil
}

func invalidTransition(from, to string) error {
	return apperr.Validation("invalid_transition", "cannot transition from %q to %q", from, to)
}

func contains(list []model.ReservationStatus, s model.ReservationStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
