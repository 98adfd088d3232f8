package domain

import (
	"testing"
	"time"
)

// helper: build a time in the given tz
func mustLocal(t *testing.T, tz string, y int, m time.Month, d, hh, mm int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(tz)
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return time.Date(y, m, d, hh, mm, 0, 0, loc)
}

func TestDecide_Boundaries(t *testing.T) {
	now := mustLocal(t, "Europe/London", 2025, time.May, 5, 18, 0)
	today := now.Add(-2 * time.Hour).Unix()
	yesterday := now.Add(-24 * time.Hour).Unix()

	tests := []struct {
		name     string
		minutes  *float64
		captured int64
		want     Tier
	}{
		{name: "just under goal", minutes: Float(29.9), captured: today, want: TierApproachingGoal},
		{name: "at goal", minutes: Float(30), captured: today, want: TierNone},
		{name: "over goal", minutes: Float(95), captured: today, want: TierNone},
		{name: "at approaching floor", minutes: Float(15), captured: today, want: TierBelowGoal},
		{name: "just over floor", minutes: Float(15.01), captured: today, want: TierApproachingGoal},
		{name: "zero", minutes: Float(0), captured: today, want: TierBelowGoal},
		{name: "negative", minutes: Float(-3), captured: today, want: TierBelowGoal},
		{name: "no minutes", minutes: nil, captured: today, want: TierBelowGoal},
		{name: "stale overrides goal", minutes: Float(30), captured: yesterday, want: TierStaleData},
		{name: "stale without minutes", minutes: nil, captured: yesterday, want: TierStaleData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(Snapshot{ActiveMinutes: tt.minutes, CapturedAt: tt.captured}, now)
			if got != tt.want {
				t.Fatalf("Decide = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecide_StaleUsesLocalMidnight(t *testing.T) {
	now := mustLocal(t, "Asia/Tokyo", 2025, time.May, 6, 0, 30)
	midnight := mustLocal(t, "Asia/Tokyo", 2025, time.May, 6, 0, 0)

	if got := Decide(Snapshot{ActiveMinutes: Float(40), CapturedAt: midnight.Unix()}, now); got != TierNone {
		t.Fatalf("captured exactly at midnight: want none, got %v", got)
	}
	if got := Decide(Snapshot{ActiveMinutes: Float(40), CapturedAt: midnight.Unix() - 1}, now); got != TierStaleData {
		t.Fatalf("captured one second before midnight: want stale, got %v", got)
	}
}

func TestParseHour(t *testing.T) {
	good := map[string]int{"0": 0, "8": 8, "08": 8, " 23 ": 23, "20:00": 20, "7h": 7}
	for in, want := range good {
		got, err := ParseHour(in)
		if err != nil {
			t.Fatalf("ParseHour(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseHour(%q) = %d, want %d", in, got, want)
		}
	}
	for _, in := range []string{"", "24", "-1", "abc", "8:30"} {
		if _, err := ParseHour(in); err == nil {
			t.Fatalf("ParseHour(%q) expected error", in)
		}
	}
}
