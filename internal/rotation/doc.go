// Package rotation resolves which content is active at a given instant.
//
// Everything here is pure: values are immutable after construction and every
// query takes "now" explicitly, so a Cycle or TableSet can be shared across
// goroutines without locking. Calendar arithmetic is always done in the
// reference instant's location.
//
// The building blocks are:
//   - Cycle: ordered items rotating by fixed duration, elapsed days,
//     elapsed months or elapsed days with a per-subject offset
//   - TableSet: day-of-month anchored selection between monthly cycles
//   - CalendarWindow: day-of-month / weekday / month triggers
//   - TermWindow: open/closed windows anchored to opening days
//   - Classify: start / mid / end of an active period
package rotation
