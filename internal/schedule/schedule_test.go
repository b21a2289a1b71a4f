package schedule

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func noop(context.Context, any) error { return nil }

func TestNewScheduleRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		events map[string]Event
		want   error
	}{
		{name: "empty", events: nil, want: ErrEmptySchedule},
		{name: "bad time", events: map[string]Event{"9:30": {Action: noop}}, want: ErrInvalidTime},
		{name: "nil action", events: map[string]Event{"09:30:00": {}}, want: ErrNilAction},
		{name: "duplicate instant", events: map[string]Event{
			"09:30:00":        {Action: noop},
			"09:30:00.000000": {Action: noop},
		}, want: ErrDuplicateTrigger},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSchedule(tt.events)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err %T is not *ConfigError", err)
			}
		})
	}
}

func TestScheduleEntriesSortedAndReset(t *testing.T) {
	t.Parallel()
	s, err := NewSchedule(map[string]Event{
		"15:30:00":        {Name: "end", Action: noop},
		"09:30:00":        {Name: "open", Action: noop},
		"12:00:00.500000": {Name: "hedge", Action: noop, Args: "x"},
	})
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	got := s.Entries()
	if got[0].Name != "open" || got[1].Name != "hedge" || got[2].Name != "end" {
		t.Fatalf("order = %+v", got)
	}
	if got[1].Args != "x" {
		t.Fatalf("args = %v", got[1].Args)
	}

	s.entries[0].state = Fired
	if next, ok := s.Next(); !ok || next.Name != "hedge" {
		t.Fatalf("Next = %+v, %v", next, ok)
	}
	if s.Pending() != 2 {
		t.Fatalf("Pending = %d", s.Pending())
	}
	s.Reset()
	if s.Pending() != 3 {
		t.Fatalf("Pending after Reset = %d", s.Pending())
	}
}

func TestNewConfigRejects(t *testing.T) {
	t.Parallel()
	if _, err := NewConfig("16:00", 0); !errors.Is(err, ErrInvalidTime) || !strings.Contains(err.Error(), "HH:MM:SS") {
		t.Fatalf("bad end err = %v", err)
	}
	if _, err := NewSchedule(map[string]Event{"9:30": {Action: noop}}); err == nil || !strings.Contains(err.Error(), "HH:MM:SS.ffffff") {
		t.Fatalf("bad trigger err = %v, want the accepted formats", err)
	}
	if _, err := NewConfig("16:00:00", -time.Second); !errors.Is(err, ErrNegativeInterval) {
		t.Fatalf("negative poll err = %v", err)
	}
	cfg, err := NewConfig("16:00:00.5", 250*time.Millisecond)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.End != At(16, 0, 0, int(500*time.Millisecond)) || cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestRunRejectsEmptySchedule(t *testing.T) {
	t.Parallel()
	err := New().Run(context.Background(), &Schedule{}, Config{End: At(16, 0, 0, 0)})
	if !errors.Is(err, ErrEmptySchedule) {
		t.Fatalf("err = %v", err)
	}
}

func TestDoAndWithAdapters(t *testing.T) {
	t.Parallel()
	if Do(nil) != nil || With[int](nil) != nil {
		t.Fatal("nil callables should adapt to nil actions")
	}
	called := false
	if err := Do(func(context.Context) error { called = true; return nil })(context.Background(), "ignored"); err != nil || !called {
		t.Fatalf("Do: err=%v called=%v", err, called)
	}
	var got int
	act := With(func(_ context.Context, v int) error { got = v; return nil })
	_ = act(context.Background(), 7)
	if got != 7 {
		t.Fatalf("With passed %d", got)
	}
	_ = act(context.Background(), nil)
	if got != 0 {
		t.Fatalf("With(nil) passed %d, want zero value", got)
	}
}
