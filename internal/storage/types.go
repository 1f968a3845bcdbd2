package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("storage: key not found")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON files (state snapshot, dedup journal, audit jsonl)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one outbound action.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At         time.Time `json:"at"`
	JobID      string    `json:"job_id"`
	Action     string    `json:"action"` // status, follow, unfollow
	Source     string    `json:"source,omitempty"`
	Target     string    `json:"target,omitempty"` // reply-to status or account id
	Visibility string    `json:"visibility,omitempty"`
	Text       string    `json:"text,omitempty"`
	RemoteID   string    `json:"remote_id,omitempty"`
	Attempts   int       `json:"attempts"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	TookMS     int64     `json:"took_ms"`
}
