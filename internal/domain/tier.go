package domain

import "time"

const (
	// GoalMinutes is the daily active-minutes goal.
	GoalMinutes = 30.0
	// approachingFloor is the exclusive lower bound of TierApproachingGoal.
	approachingFloor = 15.0
)

// Tier is the alert category derived from a snapshot.
type Tier int

const (
	TierNone Tier = iota
	TierApproachingGoal
	TierBelowGoal
	TierStaleData
)

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierApproachingGoal:
		return "approaching_goal"
	case TierBelowGoal:
		return "below_goal"
	case TierStaleData:
		return "stale_data"
	default:
		return "unknown"
	}
}

// Alert is what gets handed to the messaging sink. It is never built for TierNone.
type Alert struct {
	User     string
	Tier     Tier
	Snapshot Snapshot
}

// Decide maps a snapshot to an alert tier relative to now.
// Staleness is checked first and wins over any minute count.
func Decide(s Snapshot, now time.Time) Tier {
	if s.CapturedAt < StartOfDay(now).Unix() {
		return TierStaleData
	}
	if s.ActiveMinutes == nil {
		return TierBelowGoal
	}
	m := *s.ActiveMinutes
	switch {
	case m >= GoalMinutes:
		return TierNone
	case m > approachingFloor:
		return TierApproachingGoal
	default:
		// [0, 15] and anything negative a broken backend might report.
		return TierBelowGoal
	}
}

// StartOfDay returns local midnight of t's date in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
