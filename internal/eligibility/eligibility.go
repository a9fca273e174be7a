// Package eligibility combines training coverage and manager checkout into a
// per (user, machine) verdict. Verdicts are recomputed on every call.
package eligibility

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"workshop-access-backend/internal/model"
)

// ReasonCheckoutMissing is reported when no ManagerCheckout exists.
const ReasonCheckoutMissing = "Manager checkout not approved"

// RequirementStatus is one training gate of a machine as seen for a user.
type RequirementStatus struct {
	ModuleID        int64   `json:"moduleId"`
	ModuleTitle     string  `json:"moduleTitle"`
	RequiredPercent float64 `json:"requiredPercent"`
	WatchedPercent  float64 `json:"watchedPercent"`
	Completed       bool    `json:"completed"`
}

// Result is the eligibility verdict. It is never persisted.
type Result struct {
	Eligible     bool                `json:"eligible"`
	Reasons      []string            `json:"reasons"`
	Requirements []RequirementStatus `json:"requirements"`
	HasCheckout  bool                `json:"hasCheckout"`
}

// RequirementReader lists a machine's requirements with Module populated.
type RequirementReader interface {
	RequirementsByMachine(ctx context.Context, machineID int64) ([]model.MachineRequirement, error)
}

// ProgressReader returns the user's progress rows keyed by module ID.
type ProgressReader interface {
	ProgressByModules(ctx context.Context, userID int64, moduleIDs []int64) (map[int64]model.TrainingProgress, error)
}

type CheckoutReader interface {
	HasCheckout(ctx context.Context, userID, machineID int64) (bool, error)
}

// Evaluator answers "can user X reserve machine Y". Callers resolve missing
// users and missing or inactive machines before calling it.
type Evaluator struct {
	requirements RequirementReader
	progress     ProgressReader
	checkouts    CheckoutReader
}

func NewEvaluator(requirements RequirementReader, progress ProgressReader, checkouts CheckoutReader) *Evaluator {
	return &Evaluator{
		requirements: requirements,
		progress:     progress,
		checkouts:    checkouts,
	}
}

// Evaluate computes the verdict. Admins are eligible everywhere and no other
// lookup is performed for them.
func (e *Evaluator) Evaluate(ctx context.Context, user model.User, machineID int64) (Result, error) {
	if user.Role == model.RoleAdmin {
		return Result{
			Eligible:     true,
			Reasons:      []string{},
			Requirements: []RequirementStatus{},
			HasCheckout:  true,
		}, nil
	}

	hasCheckout, err := e.checkouts.HasCheckout(ctx, user.ID, machineID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to look up checkout: %w", err)
	}

	result := Result{
		Reasons:     []string{},
		HasCheckout: hasCheckout,
	}
	if !hasCheckout {
		result.Reasons = append(result.Reasons, ReasonCheckoutMissing)
	}

	statuses, trained, err := e.Training(ctx, user.ID, machineID)
	if err != nil {
		return Result{}, err
	}
	result.Requirements = statuses
	for _, s := range statuses {
		if !s.Completed {
			result.Reasons = append(result.Reasons, requirementReason(s))
		}
	}

	result.Eligible = hasCheckout && trained
	return result, nil
}

// Training evaluates only the training gates of a machine. The boolean is
// true when every requirement is completed, vacuously so for none.
func (e *Evaluator) Training(ctx context.Context, userID, machineID int64) ([]RequirementStatus, bool, error) {
	requirements, err := e.requirements.RequirementsByMachine(ctx, machineID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load requirements for machine %d: %w", machineID, err)
	}

	statuses := make([]RequirementStatus, 0, len(requirements))
	if len(requirements) == 0 {
		return statuses, true, nil
	}

	moduleIDs := make([]int64, len(requirements))
	for i, r := range requirements {
		moduleIDs[i] = r.ModuleID
	}
	progress, err := e.progress.ProgressByModules(ctx, userID, moduleIDs)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load training progress: %w", err)
	}

	all := true
	for _, r := range requirements {
		watched := 0.0
		if p, ok := progress[r.ModuleID]; ok {
			watched = WatchedPercent(p, r.Module)
		}
		completed := watched >= r.RequiredWatchPercent
		all = all && completed
		statuses = append(statuses, RequirementStatus{
			ModuleID:        r.ModuleID,
			ModuleTitle:     r.Module.Title,
			RequiredPercent: r.RequiredWatchPercent,
			WatchedPercent:  watched,
			Completed:       completed,
		})
	}
	return statuses, all, nil
}

// WatchedPercent is the unique coverage of a module as a percent of its
// authoritative duration, capped at 100.
func WatchedPercent(p model.TrainingProgress, module model.TrainingModule) float64 {
	if module.VideoDurationSeconds <= 0 {
		return 0
	}
	return math.Min(p.WatchedSeconds()*100/module.VideoDurationSeconds, 100)
}

func requirementReason(s RequirementStatus) string {
	return fmt.Sprintf("Training \"%s\" not completed (%s%% of %s%% required)",
		s.ModuleTitle, formatPercent(s.WatchedPercent), formatPercent(s.RequiredPercent))
}

// formatPercent truncates to one decimal so a value just under a threshold
// never prints as the threshold.
func formatPercent(v float64) string {
	return strconv.FormatFloat(math.Floor(v*10)/10, 'f', -1, 64)
}
