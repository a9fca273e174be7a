package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/model"
)

func (s *gormStore) GetUser(ctx context.Context, id int64) (model.User, error) {
	return first[model.User](s.db.WithContext(ctx), "user", id)
}

func (s *gormStore) LockUser(ctx context.Context, id int64) (model.User, error) {
	return first[model.User](s.forUpdate(ctx), "user", id)
}

func (s *gormStore) GetMachine(ctx context.Context, id int64) (model.Machine, error) {
	return first[model.Machine](s.db.WithContext(ctx), "machine", id)
}

func (s *gormStore) LockMachine(ctx context.Context, id int64) (model.Machine, error) {
	return first[model.Machine](s.forUpdate(ctx), "machine", id)
}

func (s *gormStore) ListMachines(ctx context.Context, includeInactive bool) ([]model.Machine, error) {
	var machines []model.Machine
	q := s.db.WithContext(ctx).Preload("Requirements.Module").Order("name ASC, id ASC")
	if !includeInactive {
		q = q.Where("lifecycle = ?", model.LifecycleActive)
	}
	if err := q.Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	return machines, nil
}

func (s *gormStore) GetModule(ctx context.Context, id int64) (model.TrainingModule, error) {
	return first[model.TrainingModule](s.db.WithContext(ctx), "module", id)
}

func (s *gormStore) ListModules(ctx context.Context, includeInactive bool) ([]model.TrainingModule, error) {
	var modules []model.TrainingModule
	q := s.db.WithContext(ctx).Order("title ASC, id ASC")
	if !includeInactive {
		q = q.Where("lifecycle = ?", model.LifecycleActive)
	}
	if err := q.Find(&modules).Error; err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	return modules, nil
}

func (s *gormStore) SetMachineLifecycle(ctx context.Context, id int64, l model.Lifecycle) error {
	if err := s.db.WithContext(ctx).Model(&model.Machine{ID: id}).Update("lifecycle", l).Error; err != nil {
		return fmt.Errorf("failed to update machine %d: %w", id, err)
	}
	return nil
}

func (s *gormStore) SetModuleLifecycle(ctx context.Context, id int64, l model.Lifecycle) error {
	if err := s.db.WithContext(ctx).Model(&model.TrainingModule{ID: id}).Update("lifecycle", l).Error; err != nil {
		return fmt.Errorf("failed to update module %d: %w", id, err)
	}
	return nil
}

// RequirementsByMachine returns the machine's requirements with Module loaded.
func (s *gormStore) RequirementsByMachine(ctx context.Context, machineID int64) ([]model.MachineRequirement, error) {
	var reqs []model.MachineRequirement
	if err := s.db.WithContext(ctx).
		Preload("Module").
		Where("machine_id = ?", machineID).
		Order("id ASC").
		Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("failed to load requirements for machine %d: %w", machineID, err)
	}
	return reqs, nil
}

// first loads one row by primary key and maps a miss onto apperr.NotFound.
func first[T any](q *gorm.DB, entity string, id int64) (T, error) {
	var out T
	if err := q.First(&out, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return out, apperr.NotFound(entity, id)
		}
		return out, fmt.Errorf("failed to load %s %d: %w", entity, id, err)
	}
	return out, nil
}
