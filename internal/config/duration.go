package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour, Minute, Second int
}

// Offset is the distance from midnight.
func (c ClockTime) Offset() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute + time.Duration(c.Second)*time.Second
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(path, raw string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return ClockTime{}, fmt.Errorf("%s: invalid time %q (want HH:MM or HH:MM:SS)", path, raw)
	}
	vals := make([]int, 3)
	limits := []int{23, 59, 59}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return ClockTime{}, fmt.Errorf("%s: invalid time %q", path, raw)
		}
		vals[i] = n
	}
	return ClockTime{Hour: vals[0], Minute: vals[1], Second: vals[2]}, nil
}

// ParseInstant parses an RFC 3339 reference instant and moves it into loc
// when one is given.
func ParseInstant(path, raw string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid instant %q: %w", path, raw, err)
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t, nil
}
