// Package core is the eligibility and scheduling service the transport layer
// calls into. Every operation returns either a result or an *apperr.Error
// (or a wrapped infrastructure error); nothing is retried here.
package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"workshop-access-backend/config"
	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/eligibility"
	"workshop-access-backend/internal/lifecycle"
	"workshop-access-backend/internal/lock"
	"workshop-access-backend/internal/logger"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/store"
)

// sweepBatch bounds how many rows CompleteElapsed transitions per transaction.
const sweepBatch = 200

type Service struct {
	store     store.Store
	locks     lock.Locker
	evaluator *eligibility.Evaluator
	cfg       config.SchedulingConfig
	log       *logger.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithClock overrides the wall clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, locker lock.Locker, cfg config.SchedulingConfig, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:     st,
		locks:     locker,
		evaluator: eligibility.NewEvaluator(st, st, st),
		cfg:       cfg,
		log:       log.With("service", "Core"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// actor loads the acting user. Unknown or suspended identities are an
// authorization failure, not a lookup failure.
func (s *Service) actor(ctx context.Context, id int64) (model.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return u, apperr.Forbidden("unknown_actor", fmt.Sprintf("user %d is not known", id))
		}
		return u, err
	}
	if u.Status != model.UserActive {
		return u, apperr.Forbidden("user_suspended", fmt.Sprintf("user %d is suspended", id))
	}
	return u, nil
}

func (s *Service) reviewer(ctx context.Context, id int64) (model.User, error) {
	u, err := s.actor(ctx, id)
	if err != nil {
		return u, err
	}
	if !u.Role.CanReview() {
		return u, apperr.Forbidden("manager_required", "only managers and admins may perform this action")
	}
	return u, nil
}

func (s *Service) admin(ctx context.Context, id int64) (model.User, error) {
	u, err := s.actor(ctx, id)
	if err != nil {
		return u, err
	}
	if u.Role != model.RoleAdmin {
		return u, apperr.Forbidden("admin_required", "only admins may perform this action")
	}
	return u, nil
}

// activeMachine loads a machine and rejects inactive ones.
func (s *Service) activeMachine(ctx context.Context, id int64) (model.Machine, error) {
	m, err := s.store.GetMachine(ctx, id)
	if err != nil {
		return m, err
	}
	if !m.Lifecycle.IsActive() {
		return m, apperr.Inactive("machine", id)
	}
	return m, nil
}

// actorRole decides which side of a record the actor is on. Admins always
// review; a manager acting on their own record is its owner.
func actorRole(actor model.User, ownerID int64) (lifecycle.Actor, error) {
	switch {
	case actor.Role == model.RoleAdmin:
		return lifecycle.ActorReviewer, nil
	case actor.ID == ownerID:
		return lifecycle.ActorOwner, nil
	case actor.Role.CanReview():
		return lifecycle.ActorReviewer, nil
	default:
		return "", apperr.Forbidden("not_owner", "record belongs to another user")
	}
}

func validWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation("invalid_time_range", "start and end are required")
	}
	if !start.Before(end) {
		return apperr.Validation("invalid_time_range", "start must be before end")
	}
	return nil
}

func finiteNonNegative(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return true
}

func lockKey(kind string, ids ...int64) string {
	key := kind
	for _, id := range ids {
		key += fmt.Sprintf(":%d", id)
	}
	return key
}
