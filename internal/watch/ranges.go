// Package watch keeps the set of video segments a user has actually played and
// decides whether a reported progress tick is plausible.
package watch

import (
	"math"
	"sort"
)

// Epsilon is the tolerance used to merge touching segments and to drop
// segments too short to count.
const Epsilon = 0.001

// Range is a half-open segment of playback time, in seconds.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r Range) Length() float64 {
	return r.End - r.Start
}

// Normalize clamps every range to [0, durationSeconds], drops ranges whose
// clamped length is within Epsilon of zero, and merges overlapping or
// near-adjacent ranges. The result is sorted and pairwise disjoint with gaps
// larger than Epsilon.
func Normalize(ranges []Range, durationSeconds float64) []Range {
	merged := make([]Range, 0, len(ranges))
	if !finite(durationSeconds) || durationSeconds <= 0 {
		return merged
	}

	clamped := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if !finite(r.Start) || !finite(r.End) {
			continue
		}
		start := clamp(r.Start, 0, durationSeconds)
		end := clamp(r.End, 0, durationSeconds)
		if end-start <= Epsilon {
			continue
		}
		clamped = append(clamped, Range{Start: start, End: end})
	}

	sort.Slice(clamped, func(i, j int) bool {
		return clamped[i].Start < clamped[j].Start
	})

	for _, cur := range clamped {
		if n := len(merged); n > 0 && cur.Start <= merged[n-1].End+Epsilon {
			if cur.End > merged[n-1].End {
				merged[n-1].End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Add folds r into an existing set. Re-adding covered time leaves the total
// unchanged, and the result does not depend on arrival order.
func Add(set []Range, r Range, durationSeconds float64) []Range {
	all := make([]Range, 0, len(set)+1)
	all = append(all, set...)
	all = append(all, r)
	return Normalize(all, durationSeconds)
}

// TotalSeconds sums the lengths of a normalized set.
func TotalSeconds(set []Range) float64 {
	var total float64
	for _, r := range set {
		total += r.Length()
	}
	return total
}

// Contains reports whether r lies inside a single range of a normalized set.
func Contains(set []Range, r Range) bool {
	for _, s := range set {
		if r.Start >= s.Start-Epsilon && r.End <= s.End+Epsilon {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
