// Package storage is the small persistence layer behind rotabot.
//
// It keeps:
//   - a string key/value state (last weekly-activity week, last feed entry ids)
//   - notifier dedup deadlines, so restarts do not repeat posts
//   - an append-only audit of every outbound action
//
// Two drivers exist: "file" (JSON files next to each other) and "sqlite"
// (modernc.org/sqlite, no cgo). Memory is used when storage is disabled and
// in tests.
package storage
