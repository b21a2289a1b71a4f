package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines journal next to Path
//   - "sqlite": SQLite database file at Path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	MaxRows     int           // sqlite only; 0 means defaultMaxRows
}

// FireRecord is one engine observation. Keep it compact and schema-stable.
type FireRecord struct {
	At       time.Time `json:"at"`
	RunID    string    `json:"run_id"`
	Strategy string    `json:"strategy"`
	Trigger  string    `json:"trigger,omitempty"`
	Action   string    `json:"action,omitempty"`
	Outcome  string    `json:"outcome"`
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms"`
	Pending  int       `json:"pending"`
}
