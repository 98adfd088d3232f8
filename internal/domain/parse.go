package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrEmptyHour = errors.New("empty hour")

// ValidateHour checks that h is an hour of the day (0..23).
func ValidateHour(h int) error {
	if h < 0 || h > 23 {
		return fmt.Errorf("%w: %d is outside 0..23", ErrInvalidHour, h)
	}
	return nil
}

// ParseHour parses user input like "8", "08", "20:00" or "8h" into an hour of the day.
func ParseHour(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, ErrEmptyHour
	}
	s = strings.TrimSuffix(s, "h")
	if hh, mm, ok := strings.Cut(s, ":"); ok {
		if mm != "00" {
			return 0, fmt.Errorf("%w: only whole hours are supported", ErrInvalidHour)
		}
		s = hh
	}
	h, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHour, s)
	}
	if err := ValidateHour(h); err != nil {
		return 0, err
	}
	return h, nil
}

// FormatHour returns HH:00 for an hour of the day.
func FormatHour(h int) string {
	return fmt.Sprintf("%02d:00", h)
}

// LoadLocation resolves a timezone name. Empty and "Local" mean the process zone.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}
