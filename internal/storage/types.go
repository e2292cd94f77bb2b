package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunRecord records one task lifecycle outcome.
// Keep it compact and schema-stable.
type RunRecord struct {
	At     time.Time `json:"at"`
	Label  string    `json:"label"`
	Event  string    `json:"event"`            // "fired" | "rejected" | "dropped"
	Mode   string    `json:"mode,omitempty"`   // "sync" | "async" (fired only)
	Detail string    `json:"detail,omitempty"` // e.g. rejection reason
}
