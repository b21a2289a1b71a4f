package schedule

import (
	"context"
	"fmt"
	"sort"
)

// Action is one unit of strategy behaviour. args is the Event's Args value,
// nil when none was given.
type Action func(ctx context.Context, args any) error

// Do adapts an argument-less callable.
func Do(fn func(ctx context.Context) error) Action {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, _ any) error { return fn(ctx) }
}

// With adapts a callable taking a typed argument. A nil or mistyped args
// value is passed as T's zero value.
func With[T any](fn func(ctx context.Context, arg T) error) Action {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, args any) error {
		v, _ := args.(T)
		return fn(ctx, v)
	}
}

// Event is a strategy-supplied schedule definition.
type Event struct {
	Name   string
	Action Action
	Args   any
}

// State is the per-entry lifecycle. Fired is terminal within a run.
type State int

const (
	Pending State = iota
	Fired
)

func (s State) String() string {
	if s == Fired {
		return "fired"
	}
	return "pending"
}

type entry struct {
	trigger TimeOfDay
	name    string
	action  Action
	args    any
	state   State
}

// EntryInfo is a read-only view of one entry.
type EntryInfo struct {
	Trigger TimeOfDay
	Name    string
	Args    any
	State   State
}

// Schedule owns its entries; only Engine changes their state. A Schedule is
// not safe for concurrent runs.
type Schedule struct {
	entries []*entry
}

// NewSchedule parses every trigger key and returns the entries sorted by
// trigger time. All errors are *ConfigError.
func NewSchedule(events map[string]Event) (*Schedule, error) {
	if len(events) == 0 {
		return nil, &ConfigError{Field: "schedule", Err: ErrEmptySchedule}
	}

	seen := make(map[TimeOfDay]string, len(events))
	entries := make([]*entry, 0, len(events))
	for key, ev := range events {
		tod, err := ParseTimeOfDay(key)
		if err != nil {
			return nil, &ConfigError{Field: "trigger", Value: key, Err: err}
		}
		if prev, dup := seen[tod]; dup {
			return nil, &ConfigError{Field: "trigger", Value: key, Err: fmt.Errorf("%w: same instant as %q", ErrDuplicateTrigger, prev)}
		}
		if ev.Action == nil {
			return nil, &ConfigError{Field: "action", Value: key, Err: ErrNilAction}
		}
		seen[tod] = key
		entries = append(entries, &entry{
			trigger: tod,
			name:    ev.Name,
			action:  ev.Action,
			args:    ev.Args,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].trigger < entries[j].trigger })
	return &Schedule{entries: entries}, nil
}

// Len returns the number of entries.
func (s *Schedule) Len() int { return len(s.entries) }

// Pending counts entries that have not fired.
func (s *Schedule) Pending() int {
	n := 0
	for _, e := range s.entries {
		if e.state == Pending {
			n++
		}
	}
	return n
}

// Entries returns a snapshot in trigger order.
func (s *Schedule) Entries() []EntryInfo {
	out := make([]EntryInfo, len(s.entries))
	for i, e := range s.entries {
		out[i] = EntryInfo{Trigger: e.trigger, Name: e.name, Args: e.args, State: e.state}
	}
	return out
}

// Next returns the first pending entry, if any.
func (s *Schedule) Next() (EntryInfo, bool) {
	for _, e := range s.entries {
		if e.state == Pending {
			return EntryInfo{Trigger: e.trigger, Name: e.name, Args: e.args, State: e.state}, true
		}
	}
	return EntryInfo{}, false
}

// Reset re-arms every entry for a new session. Never call it while Run is
// in progress.
func (s *Schedule) Reset() {
	for _, e := range s.entries {
		e.state = Pending
	}
}
