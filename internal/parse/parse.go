// Package parse turns request strings into scheduling values.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// MinuteOfDay converts a wall-clock "HH:MM" to minutes since midnight.
// "24:00" is accepted and maps to 1440 so a window can end at midnight.
func MinuteOfDay(raw string) (int, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", raw)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if min > 59 || h > 24 || (h == 24 && min != 0) {
		return 0, fmt.Errorf("invalid clock time %q: out of range", raw)
	}
	return h*60 + min, nil
}

// FormatMinute is the inverse of MinuteOfDay.
func FormatMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// Weekday accepts an English day name, its three-letter abbreviation, or a
// number where 0 is Sunday.
func Weekday(raw string) (time.Weekday, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if d, ok := weekdays[s]; ok {
		return d, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	return 0, fmt.Errorf("invalid weekday %q", raw)
}

// Instant parses an RFC 3339 timestamp and normalizes it to UTC.
func Instant(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	return t.UTC(), nil
}

// Window parses a from/to pair. Ordering is left to the caller.
func Window(from, to string) (time.Time, time.Time, error) {
	start, err := Instant(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := Instant(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// ID parses a positive integer identifier.
func ID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
