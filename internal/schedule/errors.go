package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTime      = errors.New("invalid time of day")
	ErrEmptySchedule    = errors.New("schedule has no entries")
	ErrNegativeInterval = errors.New("poll interval must be >= 0")
	ErrDuplicateTrigger = errors.New("duplicate trigger time")
	ErrNilAction        = errors.New("action is nil")
)

// ConfigError reports a schedule or engine setting rejected at construction.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ActionError wraps the error returned by a scheduled action. The entry that
// produced it is still pending.
type ActionError struct {
	Trigger TimeOfDay
	Name    string
	Err     error
}

func (e *ActionError) Error() string {
	name := e.Name
	if name == "" {
		name = "action"
	}
	return fmt.Sprintf("%s at %s failed: %v", name, e.Trigger, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }
