package schedule

import (
	"time"

	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/model"
)

const minutesPerDay = 24 * 60

// Occurrence is one concrete instance of a weekly rule.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// ValidateRule checks the weekly rule invariants and that its timezone loads.
func ValidateRule(r model.CheckoutAvailabilityRule) (*time.Location, error) {
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return nil, apperr.Validation("invalid_day_of_week", "day of week must be between 0 and 6, got %d", r.DayOfWeek)
	}
	if r.StartMinuteOfDay < 0 || r.StartMinuteOfDay >= minutesPerDay {
		return nil, apperr.Validation("invalid_start_minute", "start minute must be in [0, 1440), got %d", r.StartMinuteOfDay)
	}
	if r.EndMinuteOfDay <= 0 || r.EndMinuteOfDay > minutesPerDay {
		return nil, apperr.Validation("invalid_end_minute", "end minute must be in (0, 1440], got %d", r.EndMinuteOfDay)
	}
	if r.EndMinuteOfDay <= r.StartMinuteOfDay {
		return nil, apperr.Validation("invalid_rule_window", "rule must end after it starts on the same day")
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil || r.Timezone == "" {
		return nil, apperr.Validation("invalid_timezone", "unknown timezone %q", r.Timezone)
	}
	return loc, nil
}

// ExpandRule emits every occurrence of the rule intersecting [from, to).
//
// Occurrence bounds are wall-clock times in the rule's timezone, computed
// independently for start and end. An occurrence that straddles a DST
// transition is therefore longer or shorter than End-Start minutes.
func ExpandRule(r model.CheckoutAvailabilityRule, loc *time.Location, from, to time.Time) []Occurrence {
	var out []Occurrence
	if !from.Before(to) {
		return out
	}

	y, m, d := from.In(loc).Date()
	for i := 0; ; i++ {
		if !time.Date(y, m, d+i, 0, 0, 0, 0, loc).Before(to) {
			break
		}
		if int(time.Date(y, m, d+i, 12, 0, 0, 0, time.UTC).Weekday()) != r.DayOfWeek {
			continue
		}
		start := time.Date(y, m, d+i, 0, r.StartMinuteOfDay, 0, 0, loc)
		end := time.Date(y, m, d+i, 0, r.EndMinuteOfDay, 0, 0, loc)
		if Overlaps(start, end, from, to) {
			out = append(out, Occurrence{Start: start, End: end})
		}
	}
	return out
}

// OccurrenceContaining finds the occurrence of the rule that fully contains
// [start, end).
func OccurrenceContaining(r model.CheckoutAvailabilityRule, loc *time.Location, start, end time.Time) (Occurrence, bool) {
	for _, occ := range ExpandRule(r, loc, start, end) {
		if Within(start, end, occ.Start, occ.End) {
			return occ, true
		}
	}
	return Occurrence{}, false
}
