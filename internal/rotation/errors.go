package rotation

import "errors"

var (
	// ErrInvalidSchedule is returned by constructors for ill-formed schedules:
	// empty item lists, non-positive weights or spans, days out of range.
	ErrInvalidSchedule = errors.New("rotation: invalid schedule config")
	// ErrTemporalRange is returned when the distance between two instants
	// cannot be represented.
	ErrTemporalRange = errors.New("rotation: temporal range exceeded")
	// ErrAmbiguousLocalTime is returned when a civil date and clock do not map
	// to exactly one instant (DST gap or overlap).
	ErrAmbiguousLocalTime = errors.New("rotation: ambiguous local time")
	// ErrInvariantViolated means a well-formed schedule failed to yield an item.
	ErrInvariantViolated = errors.New("rotation: schedule invariant violated")
)
