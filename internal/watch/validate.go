package watch

// Limits applied to every client-reported progress tick. The player reports
// roughly every 5s; MaxSessionSeconds tolerates throttled background tabs and
// MaxDeltaMultiplier covers the 1.5x playback rate plus timer jitter.
const (
	MaxSessionSeconds  = 300
	MaxDeltaMultiplier = 2.5
)

// Rejection reasons.
const (
	ReasonExceedsDuration  = "Watched seconds exceed video duration"
	ReasonSessionTooLarge  = "Session duration too large"
	ReasonImplausibleDelta = "Progress delta exceeds plausible playback for the reported session duration"
)

// ProgressUpdate is one tick reported by the playback client.
type ProgressUpdate struct {
	WatchedSeconds  float64 `json:"watchedSeconds"`
	CurrentPosition float64 `json:"currentPosition"`
	SessionDuration float64 `json:"sessionDuration"`
}

// Verdict is the outcome of ValidateProgressUpdate.
type Verdict struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ValidateProgressUpdate checks a tick against the server-known video duration
// and the coverage recorded before it. The first failing check wins. A
// non-positive delta (rewatching, out-of-order delivery) never fails the
// delta check.
func ValidateProgressUpdate(previousWatchedSeconds float64, u ProgressUpdate, videoDurationSeconds float64) Verdict {
	if u.WatchedSeconds > videoDurationSeconds {
		return Verdict{Reason: ReasonExceedsDuration}
	}
	if u.SessionDuration > MaxSessionSeconds {
		return Verdict{Reason: ReasonSessionTooLarge}
	}
	delta := u.WatchedSeconds - previousWatchedSeconds
	if delta > 0 && delta > MaxDeltaMultiplier*u.SessionDuration {
		return Verdict{Reason: ReasonImplausibleDelta}
	}
	return Verdict{Valid: true}
}

// SegmentForUpdate estimates the playback segment an accepted tick covers.
// Continuous playback from the last reported position is credited whole as
// long as it fits in the plausible window for the session; after a seek only
// the trailing session length before the playhead is credited.
func SegmentForUpdate(lastPosition float64, u ProgressUpdate) Range {
	end := u.CurrentPosition
	if span := end - lastPosition; span > 0 && span <= MaxDeltaMultiplier*u.SessionDuration {
		return Range{Start: lastPosition, End: end}
	}
	start := end - u.SessionDuration
	if start < 0 {
		start = 0
	}
	return Range{Start: start, End: end}
}
