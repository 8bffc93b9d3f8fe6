package leaderboard

import "errors"

// Per-record reasons reported in Result.Skipped. Neither aborts a run.
var (
	// ErrOrphanReference marks an activity whose user id is not in the user set.
	ErrOrphanReference = errors.New("activity references unknown user")
	// ErrInvalidMetric marks an activity with a negative or non-finite metric.
	ErrInvalidMetric = errors.New("invalid activity metric")
)

// SkippedRecord identifies an activity excluded from the aggregate sums.
// It satisfies error and unwraps to its Reason, so errors.Is works on it.
type SkippedRecord struct {
	ActivityID string
	UserID     string
	Reason     error
}

func (s SkippedRecord) Error() string {
	return "activity " + s.ActivityID + " (user " + s.UserID + "): " + s.Reason.Error()
}

func (s SkippedRecord) Unwrap() error { return s.Reason }

// Code returns a stable machine-readable name for the reason.
func (s SkippedRecord) Code() string {
	switch {
	case errors.Is(s.Reason, ErrOrphanReference):
		return "orphan_reference"
	case errors.Is(s.Reason, ErrInvalidMetric):
		return "invalid_metric"
	default:
		return "unknown"
	}
}
