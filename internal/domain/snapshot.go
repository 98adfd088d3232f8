package domain

import "time"

// Snapshot is one point-in-time read of a user's activity metrics.
// Nil metrics mean the backend had no value yet.
type Snapshot struct {
	ActiveMinutes    *float64 `json:"activeMinutes"`
	RestingHeartRate *float64 `json:"restingHeartRate"`
	StepCount        *float64 `json:"numberSteps"`
	CapturedAt       int64    `json:"uploadDate"` // unix seconds
}

// CapturedTime returns CapturedAt as a time in loc.
func (s Snapshot) CapturedTime(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(s.CapturedAt, 0).In(loc)
}

// Float returns a pointer to v. Handy for building snapshots.
func Float(v float64) *float64 { return &v }
