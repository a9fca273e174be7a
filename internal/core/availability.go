package core

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/schedule"
	"workshop-access-backend/internal/store"
)

// A rule occurrence never spans more than a civil day plus a DST shift.
const maxOccurrenceSpan = 25 * time.Hour

// ResolveAvailability materializes the manager's checkout windows over
// [from, to) and annotates each with its booking state.
func (s *Service) ResolveAvailability(ctx context.Context, managerID int64, from, to time.Time) ([]schedule.Window, error) {
	from, to = from.UTC(), to.UTC()
	if err := s.validHorizon(from, to); err != nil {
		return nil, err
	}

	var (
		manager model.User
		snap    schedule.Snapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		manager, err = s.store.GetUser(gctx, managerID)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Blocks, err = s.store.ListBlocks(gctx, store.BlockFilter{ManagerID: managerID, From: from, To: to})
		return err
	})
	g.Go(func() error {
		var err error
		snap.Rules, err = s.store.ListRules(gctx, managerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !manager.Role.CanReview() {
		return nil, apperr.Validation("not_a_manager", "user %d does not hold checkout availability", managerID)
	}
	return s.resolve(ctx, from, to, snap)
}

// ResolveMachineAvailability lists every window a checkout on the machine
// could be booked into: the machine's blocks plus the rule occurrences of all
// managers, since rules are not tied to a machine.
func (s *Service) ResolveMachineAvailability(ctx context.Context, machineID int64, from, to time.Time) ([]schedule.Window, error) {
	from, to = from.UTC(), to.UTC()
	if err := s.validHorizon(from, to); err != nil {
		return nil, err
	}
	if _, err := s.activeMachine(ctx, machineID); err != nil {
		return nil, err
	}

	var snap schedule.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Blocks, err = s.store.ListBlocks(gctx, store.BlockFilter{MachineID: machineID, From: from, To: to})
		return err
	})
	g.Go(func() error {
		var err error
		snap.Rules, err = s.store.ListRules(gctx, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.resolve(ctx, from, to, snap)
}

func (s *Service) validHorizon(from, to time.Time) error {
	if err := validWindow(from, to); err != nil {
		return err
	}
	if to.Sub(from) > s.cfg.MaxHorizon {
		return apperr.Validation("horizon_too_long", "availability horizon may not exceed %d days", s.cfg.MaxHorizonDays)
	}
	return nil
}

// resolve loads the appointments of every manager in snap and runs the
// resolver over it.
func (s *Service) resolve(ctx context.Context, from, to time.Time, snap schedule.Snapshot) ([]schedule.Window, error) {
	// Appointments are loaded over the span of every candidate window, which
	// may reach past the horizon on either side.
	spanFrom, spanTo := from.Add(-maxOccurrenceSpan), to.Add(maxOccurrenceSpan)
	seen := make(map[int64]bool)
	var managers []int64
	note := func(id int64) {
		if !seen[id] {
			seen[id] = true
			managers = append(managers, id)
		}
	}
	for _, b := range snap.Blocks {
		note(b.ManagerID)
		if b.StartTime.Before(spanFrom) {
			spanFrom = b.StartTime
		}
		if b.EndTime.After(spanTo) {
			spanTo = b.EndTime
		}
	}
	for _, r := range snap.Rules {
		note(r.ManagerID)
	}

	appts, err := s.store.AppointmentsForManagers(ctx, managers, spanFrom, spanTo)
	if err != nil {
		return nil, err
	}
	snap.Appointments = appts

	return schedule.Resolve(from, to, snap)
}

// BlockInput describes a one-off availability window.
type BlockInput struct {
	MachineID int64     `json:"machineId"`
	ManagerID int64     `json:"managerId"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// RuleInput describes a recurring weekly availability window.
type RuleInput struct {
	ManagerID        int64  `json:"managerId"`
	DayOfWeek        int    `json:"dayOfWeek"`
	StartMinuteOfDay int    `json:"startMinuteOfDay"`
	EndMinuteOfDay   int    `json:"endMinuteOfDay"`
	Timezone         string `json:"timezone"`
}

// scheduleOwner resolves whose schedule is being edited. Managers edit their
// own; admins may edit anyone's.
func (s *Service) scheduleOwner(ctx context.Context, actorID, managerID int64) (int64, error) {
	actor, err := s.reviewer(ctx, actorID)
	if err != nil {
		return 0, err
	}
	if managerID == 0 {
		managerID = actor.ID
	}
	if managerID != actor.ID && actor.Role != model.RoleAdmin {
		return 0, apperr.Forbidden("not_schedule_owner", "managers may only edit their own availability")
	}
	if managerID != actor.ID {
		owner, err := s.store.GetUser(ctx, managerID)
		if err != nil {
			return 0, err
		}
		if !owner.Role.CanReview() {
			return 0, apperr.Validation("not_a_manager", "user %d cannot hold checkout availability", managerID)
		}
	}
	return managerID, nil
}

func (s *Service) CreateAvailabilityBlock(ctx context.Context, actorID int64, in BlockInput) (model.CheckoutAvailabilityBlock, error) {
	start, end := in.Start.UTC(), in.End.UTC()
	if err := validWindow(start, end); err != nil {
		return model.CheckoutAvailabilityBlock{}, err
	}
	managerID, err := s.scheduleOwner(ctx, actorID, in.ManagerID)
	if err != nil {
		return model.CheckoutAvailabilityBlock{}, err
	}
	if _, err := s.activeMachine(ctx, in.MachineID); err != nil {
		return model.CheckoutAvailabilityBlock{}, err
	}

	b := model.CheckoutAvailabilityBlock{
		MachineID: in.MachineID,
		ManagerID: managerID,
		StartTime: start,
		EndTime:   end,
		Lifecycle: model.LifecycleActive,
	}
	if err := s.store.CreateBlock(ctx, &b); err != nil {
		return model.CheckoutAvailabilityBlock{}, err
	}
	s.log.Info("availability block created", "block_id", b.ID, "manager_id", managerID, "machine_id", in.MachineID)
	return b, nil
}

// DeactivateAvailabilityBlock retires a block. Appointments already booked
// against it are left untouched.
func (s *Service) DeactivateAvailabilityBlock(ctx context.Context, actorID, blockID int64) error {
	b, err := s.store.GetBlock(ctx, blockID)
	if err != nil {
		return err
	}
	if _, err := s.scheduleOwner(ctx, actorID, b.ManagerID); err != nil {
		return err
	}
	if !b.Lifecycle.IsActive() {
		return nil
	}
	return s.store.SetBlockLifecycle(ctx, blockID, model.LifecycleInactive)
}

func (s *Service) CreateAvailabilityRule(ctx context.Context, actorID int64, in RuleInput) (model.CheckoutAvailabilityRule, error) {
	managerID, err := s.scheduleOwner(ctx, actorID, in.ManagerID)
	if err != nil {
		return model.CheckoutAvailabilityRule{}, err
	}
	r := model.CheckoutAvailabilityRule{
		ManagerID:        managerID,
		DayOfWeek:        in.DayOfWeek,
		StartMinuteOfDay: in.StartMinuteOfDay,
		EndMinuteOfDay:   in.EndMinuteOfDay,
		Timezone:         in.Timezone,
		Lifecycle:        model.LifecycleActive,
	}
	if r.Timezone == "" {
		r.Timezone = s.cfg.DefaultTimezone
	}
	if _, err := schedule.ValidateRule(r); err != nil {
		return model.CheckoutAvailabilityRule{}, err
	}
	if err := s.store.CreateRule(ctx, &r); err != nil {
		return model.CheckoutAvailabilityRule{}, err
	}
	s.log.Info("availability rule created", "rule_id", r.ID, "manager_id", managerID, "day_of_week", r.DayOfWeek)
	return r, nil
}

// DeactivateAvailabilityRule retires a rule. Appointments already booked
// against its occurrences are left untouched.
func (s *Service) DeactivateAvailabilityRule(ctx context.Context, actorID, ruleID int64) error {
	r, err := s.store.GetRule(ctx, ruleID)
	if err != nil {
		return err
	}
	if _, err := s.scheduleOwner(ctx, actorID, r.ManagerID); err != nil {
		return err
	}
	if !r.Lifecycle.IsActive() {
		return nil
	}
	return s.store.SetRuleLifecycle(ctx, ruleID, model.LifecycleInactive)
}

// slotFor checks that [start, end) lies inside the referenced block or a
// single occurrence of the referenced rule, and returns the owning manager.
func slotFor(ctx context.Context, st store.Store, ref SlotRef, machineID int64, start, end time.Time) (int64, error) {
	switch {
	case ref.BlockID != 0 && ref.RuleID != 0, ref.BlockID == 0 && ref.RuleID == 0:
		return 0, apperr.Validation("invalid_slot_ref", "exactly one of blockId or ruleId is required")
	case ref.BlockID != 0:
		b, err := st.GetBlock(ctx, ref.BlockID)
		if err != nil {
			return 0, err
		}
		if !b.Lifecycle.IsActive() {
			return 0, apperr.Inactive("availability_block", b.ID)
		}
		if b.MachineID != machineID {
			return 0, apperr.Validation("slot_machine_mismatch", "block %d is for machine %d", b.ID, b.MachineID)
		}
		if !schedule.Within(start, end, b.StartTime, b.EndTime) {
			return 0, apperr.Validation("outside_availability", "requested window is outside block %d", b.ID)
		}
		return b.ManagerID, nil
	default:
		r, err := st.GetRule(ctx, ref.RuleID)
		if err != nil {
			return 0, err
		}
		if !r.Lifecycle.IsActive() {
			return 0, apperr.Inactive("availability_rule", r.ID)
		}
		loc, err := schedule.ValidateRule(r)
		if err != nil {
			return 0, fmt.Errorf("stored rule %d is invalid: %w", r.ID, err)
		}
		if _, ok := schedule.OccurrenceContaining(r, loc, start, end); !ok {
			return 0, apperr.Validation("outside_availability", "requested window is outside every occurrence of rule %d", r.ID)
		}
		return r.ManagerID, nil
	}
}
