package schedule

import (
	"fmt"
	"sort"
	"time"

	"workshop-access-backend/internal/model"
)

type Source string

const (
	SourceBlock Source = "block"
	SourceRule  Source = "rule"
)

type WindowStatus string

const (
	WindowOpen     WindowStatus = "open"
	WindowBooked   WindowStatus = "booked"
	WindowInactive WindowStatus = "inactive"
)

// Window is a concrete checkout window from one block or rule occurrence.
type Window struct {
	Source         Source       `json:"source"`
	SourceID       int64        `json:"sourceId"`
	ManagerID      int64        `json:"managerId"`
	MachineID      *int64       `json:"machineId,omitempty"`
	Start          time.Time    `json:"start"`
	End            time.Time    `json:"end"`
	Status         WindowStatus `json:"status"`
	AppointmentIDs []int64      `json:"appointmentIds,omitempty"`
}

// Snapshot is the point-in-time data the resolver works over. Appointments
// must exclude cancelled ones.
type Snapshot struct {
	Blocks       []model.CheckoutAvailabilityBlock
	Rules        []model.CheckoutAvailabilityRule
	Appointments []model.CheckoutAppointment
}

// Resolve materializes block and rule windows intersecting [from, to) and
// marks each one booked when an appointment overlaps it. Windows from
// different sources are never unioned, so overlapping availability stays
// visible. Deactivated sources only surface windows that still carry an
// appointment, tagged inactive.
func Resolve(from, to time.Time, snap Snapshot) ([]Window, error) {
	windows := make([]Window, 0)

	for _, b := range snap.Blocks {
		if !Overlaps(b.StartTime, b.EndTime, from, to) {
			continue
		}
		machineID := b.MachineID
		w := Window{
			Source:    SourceBlock,
			SourceID:  b.ID,
			ManagerID: b.ManagerID,
			MachineID: &machineID,
			Start:     b.StartTime,
			End:       b.EndTime,
		}
		if annotated, ok := annotate(w, b.Lifecycle.IsActive(), snap.Appointments); ok {
			windows = append(windows, annotated)
		}
	}

	for _, r := range snap.Rules {
		loc, err := time.LoadLocation(r.Timezone)
		if err != nil {
			return nil, fmt.Errorf("rule %d has unusable timezone %q: %w", r.ID, r.Timezone, err)
		}
		for _, occ := range ExpandRule(r, loc, from, to) {
			w := Window{
				Source:    SourceRule,
				SourceID:  r.ID,
				ManagerID: r.ManagerID,
				Start:     occ.Start,
				End:       occ.End,
			}
			if annotated, ok := annotate(w, r.Lifecycle.IsActive(), snap.Appointments); ok {
				windows = append(windows, annotated)
			}
		}
	}

	sort.SliceStable(windows, func(i, j int) bool {
		if !windows[i].Start.Equal(windows[j].Start) {
			return windows[i].Start.Before(windows[j].Start)
		}
		if windows[i].Source != windows[j].Source {
			return windows[i].Source < windows[j].Source
		}
		return windows[i].SourceID < windows[j].SourceID
	})
	return windows, nil
}

func annotate(w Window, active bool, appointments []model.CheckoutAppointment) (Window, bool) {
	for _, a := range appointments {
		if a.Status == model.AppointmentCancelled || a.ManagerID != w.ManagerID {
			continue
		}
		if !active && !fromSource(a, w) {
			continue
		}
		if Overlaps(a.StartTime, a.EndTime, w.Start, w.End) {
			w.AppointmentIDs = append(w.AppointmentIDs, a.ID)
		}
	}

	switch {
	case !active && len(w.AppointmentIDs) == 0:
		return w, false
	case !active:
		w.Status = WindowInactive
	case len(w.AppointmentIDs) > 0:
		w.Status = WindowBooked
	default:
		w.Status = WindowOpen
	}
	return w, true
}

func fromSource(a model.CheckoutAppointment, w Window) bool {
	switch w.Source {
	case SourceBlock:
		return a.BlockID != nil && *a.BlockID == w.SourceID
	case SourceRule:
		return a.RuleID != nil && *a.RuleID == w.SourceID
	}
	return false
}
