package core

import (
	"context"
	"math"

	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/eligibility"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/store"
	"workshop-access-backend/internal/watch"
)

// ProgressView is a user's progress on one module with derived coverage.
type ProgressView struct {
	Progress       model.TrainingProgress `json:"progress"`
	Module         model.TrainingModule   `json:"module"`
	WatchedSeconds float64                `json:"watchedSeconds"`
	WatchedPercent float64                `json:"watchedPercent"`
	Completed      bool                   `json:"completed"`
}

// ValidateProgressUpdate is the pure anti-cheat check.
func (s *Service) ValidateProgressUpdate(previousWatchedSeconds float64, u watch.ProgressUpdate, videoDurationSeconds float64) watch.Verdict {
	return watch.ValidateProgressUpdate(previousWatchedSeconds, u, videoDurationSeconds)
}

// RecordProgress validates a tick against stored coverage and, if accepted,
// folds its segment into the watched ranges. Rejected ticks change nothing
// and come back as a Rejected error.
func (s *Service) RecordProgress(ctx context.Context, userID, moduleID int64, u watch.ProgressUpdate) (model.TrainingProgress, error) {
	if !finiteNonNegative(u.WatchedSeconds, u.CurrentPosition, u.SessionDuration) {
		return model.TrainingProgress{}, apperr.Validation("invalid_progress_update", "progress values must be finite and non-negative")
	}
	if _, err := s.actor(ctx, userID); err != nil {
		return model.TrainingProgress{}, err
	}
	module, err := s.store.GetModule(ctx, moduleID)
	if err != nil {
		return model.TrainingProgress{}, err
	}
	if !module.Lifecycle.IsActive() {
		return model.TrainingProgress{}, apperr.Inactive("module", moduleID)
	}

	release, err := s.locks.Lock(ctx, lockKey("progress", userID, moduleID))
	if err != nil {
		return model.TrainingProgress{}, err
	}
	defer release()

	var saved model.TrainingProgress
	newlyCompleted := false
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		p, _, err := tx.GetProgressForUpdate(ctx, userID, moduleID)
		if err != nil {
			return err
		}

		verdict := watch.ValidateProgressUpdate(p.WatchedSeconds(), u, module.VideoDurationSeconds)
		if !verdict.Valid {
			s.log.Warn("progress update rejected",
				"user_id", userID, "module_id", moduleID, "reason", verdict.Reason,
				"watched_seconds", u.WatchedSeconds, "session_duration", u.SessionDuration)
			return apperr.Rejected(verdict.Reason)
		}

		// Rewatching covered footage only moves the playhead.
		if seg := watch.SegmentForUpdate(p.LastPosition, u); !watch.Contains(p.WatchedRanges, seg) {
			p.WatchedRanges = watch.Add(p.WatchedRanges, seg, module.VideoDurationSeconds)
		}
		p.LastPosition = math.Min(u.CurrentPosition, module.VideoDurationSeconds)

		if p.CompletedAt == nil && eligibility.WatchedPercent(p, module) >= module.CompletionThreshold() {
			now := s.clock()
			p.CompletedAt = &now
			newlyCompleted = true
		}

		if err := tx.SaveProgress(ctx, &p); err != nil {
			return err
		}
		if newlyCompleted {
			if err := tx.AppendEvent(ctx, model.EventTrainingCompleted, p.ID, TrainingPayload{
				UserID: userID, ModuleID: moduleID, CompletedAt: *p.CompletedAt,
			}); err != nil {
				return err
			}
		}
		saved = p
		return nil
	})
	if err != nil {
		return model.TrainingProgress{}, err
	}
	if newlyCompleted {
		s.log.Info("training completed", "user_id", userID, "module_id", moduleID)
	}
	return saved, nil
}

// GetProgress returns the user's progress on a module. A user who has not
// started the module gets an empty progress record.
func (s *Service) GetProgress(ctx context.Context, userID, moduleID int64) (ProgressView, error) {
	module, err := s.store.GetModule(ctx, moduleID)
	if err != nil {
		return ProgressView{}, err
	}
	p, _, err := s.store.GetProgress(ctx, userID, moduleID)
	if err != nil {
		return ProgressView{}, err
	}
	if p.WatchedRanges == nil {
		p.WatchedRanges = []watch.Range{}
	}
	return ProgressView{
		Progress:       p,
		Module:         module,
		WatchedSeconds: p.WatchedSeconds(),
		WatchedPercent: eligibility.WatchedPercent(p, module),
		Completed:      p.CompletedAt != nil,
	}, nil
}

// ListProgress returns every module the user has started.
func (s *Service) ListProgress(ctx context.Context, userID int64) ([]ProgressView, error) {
	rows, err := s.store.ListProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ProgressView, 0, len(rows))
	for _, p := range rows {
		module, err := s.store.GetModule(ctx, p.ModuleID)
		if err != nil {
			return nil, err
		}
		out = append(out, ProgressView{
			Progress:       p,
			Module:         module,
			WatchedSeconds: p.WatchedSeconds(),
			WatchedPercent: eligibility.WatchedPercent(p, module),
			Completed:      p.CompletedAt != nil,
		})
	}
	return out, nil
}
