package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/watch"
)

func (s *gormStore) ProgressByModules(ctx context.Context, userID int64, moduleIDs []int64) (map[int64]model.TrainingProgress, error) {
	out := make(map[int64]model.TrainingProgress, len(moduleIDs))
	if len(moduleIDs) == 0 {
		return out, nil
	}
	var rows []model.TrainingProgress
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND module_id IN ?", userID, moduleIDs).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load progress for user %d: %w", userID, err)
	}
	for _, p := range rows {
		out[p.ModuleID] = p
	}
	return out, nil
}

func (s *gormStore) GetProgress(ctx context.Context, userID, moduleID int64) (model.TrainingProgress, bool, error) {
	return s.progress(s.db.WithContext(ctx), userID, moduleID)
}

func (s *gormStore) GetProgressForUpdate(ctx context.Context, userID, moduleID int64) (model.TrainingProgress, bool, error) {
	return s.progress(s.forUpdate(ctx), userID, moduleID)
}

func (s *gormStore) progress(q *gorm.DB, userID, moduleID int64) (model.TrainingProgress, bool, error) {
	var p model.TrainingProgress
	err := q.Where("user_id = ? AND module_id = ?", userID, moduleID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.TrainingProgress{UserID: userID, ModuleID: moduleID}, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("failed to load progress for user %d module %d: %w", userID, moduleID, err)
	}
	return p, true, nil
}

func (s *gormStore) ListProgress(ctx context.Context, userID int64) ([]model.TrainingProgress, error) {
	var rows []model.TrainingProgress
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("module_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list progress for user %d: %w", userID, err)
	}
	return rows, nil
}

// SaveProgress inserts or updates the (user, module) row.
func (s *gormStore) SaveProgress(ctx context.Context, p *model.TrainingProgress) error {
	if p.WatchedRanges == nil {
		p.WatchedRanges = []watch.Range{}
	}
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("failed to save progress for user %d module %d: %w", p.UserID, p.ModuleID, err)
	}
	return nil
}

func (s *gormStore) HasCheckout(ctx context.Context, userID, machineID int64) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.ManagerCheckout{}).
		Where("user_id = ? AND machine_id = ?", userID, machineID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check checkout for user %d machine %d: %w", userID, machineID, err)
	}
	return count > 0, nil
}

// CreateCheckout inserts the approval unless one already exists.
func (s *gormStore) CreateCheckout(ctx context.Context, c *model.ManagerCheckout) (bool, error) {
	if c.ApprovedAt.IsZero() {
		c.ApprovedAt = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "machine_id"}},
		DoNothing: true,
	}).Create(c)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create checkout for user %d machine %d: %w", c.UserID, c.MachineID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *gormStore) DeleteCheckout(ctx context.Context, userID, machineID int64) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND machine_id = ?", userID, machineID).
		Delete(&model.ManagerCheckout{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete checkout for user %d machine %d: %w", userID, machineID, res.Error)
	}
	return res.RowsAffected > 0, nil
}
