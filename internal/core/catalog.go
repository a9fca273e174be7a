package core

import (
	"context"

	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/eligibility"
	"workshop-access-backend/internal/model"
)

func (s *Service) ListMachines(ctx context.Context, includeInactive bool) ([]model.Machine, error) {
	return s.store.ListMachines(ctx, includeInactive)
}

func (s *Service) ListModules(ctx context.Context, includeInactive bool) ([]model.TrainingModule, error) {
	return s.store.ListModules(ctx, includeInactive)
}

// SetMachineLifecycle activates or retires a machine. Admin only. Existing
// reservations and appointments on it are left as they are.
func (s *Service) SetMachineLifecycle(ctx context.Context, actorID, machineID int64, l model.Lifecycle) (model.Machine, error) {
	if _, err := s.admin(ctx, actorID); err != nil {
		return model.Machine{}, err
	}
	if !l.Valid() {
		return model.Machine{}, apperr.Validation("invalid_lifecycle", "lifecycle must be active or inactive, got %q", l)
	}
	m, err := s.store.GetMachine(ctx, machineID)
	if err != nil {
		return m, err
	}
	if m.Lifecycle == l {
		return m, nil
	}
	if err := s.store.SetMachineLifecycle(ctx, machineID, l); err != nil {
		return m, err
	}
	m.Lifecycle = l
	s.log.Info("machine lifecycle changed", "machine_id", machineID, "lifecycle", l, "actor_id", actorID)
	return m, nil
}

// SetModuleLifecycle activates or retires a training module. Admin only.
// Progress already recorded against it is kept.
func (s *Service) SetModuleLifecycle(ctx context.Context, actorID, moduleID int64, l model.Lifecycle) (model.TrainingModule, error) {
	if _, err := s.admin(ctx, actorID); err != nil {
		return model.TrainingModule{}, err
	}
	if !l.Valid() {
		return model.TrainingModule{}, apperr.Validation("invalid_lifecycle", "lifecycle must be active or inactive, got %q", l)
	}
	m, err := s.store.GetModule(ctx, moduleID)
	if err != nil {
		return m, err
	}
	if m.Lifecycle == l {
		return m, nil
	}
	if err := s.store.SetModuleLifecycle(ctx, moduleID, l); err != nil {
		return m, err
	}
	m.Lifecycle = l
	s.log.Info("module lifecycle changed", "module_id", moduleID, "lifecycle", l, "actor_id", actorID)
	return m, nil
}

// CheckEligibility answers whether the user may reserve the machine. Missing
// users and machines are NotFound and an inactive machine is Inactive; those
// are decided before the evaluator runs.
func (s *Service) CheckEligibility(ctx context.Context, userID, machineID int64) (eligibility.Result, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return eligibility.Result{}, err
	}
	if _, err := s.activeMachine(ctx, machineID); err != nil {
		return eligibility.Result{}, err
	}
	return s.evaluator.Evaluate(ctx, user, machineID)
}
