package schedule

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type recorder struct {
	calls []string
	args  []any
}

func (r *recorder) action(name string) Action {
	return func(_ context.Context, args any) error {
		r.calls = append(r.calls, name)
		r.args = append(r.args, args)
		return nil
	}
}

func mustSchedule(t *testing.T, events map[string]Event) *Schedule {
	t.Helper()
	s, err := NewSchedule(events)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	return s
}

func mustConfig(t *testing.T, end string, poll time.Duration) Config {
	t.Helper()
	cfg, err := NewConfig(end, poll)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	return cfg
}

func newTestEngine(c WallClock, obs Observer) *Engine {
	return New(WithClock(c), WithLocation(time.UTC), WithObserver(obs))
}

func TestRunFiresOpenAndEndOfDayOnce(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	s := mustSchedule(t, map[string]Event{
		"09:30:00": {Name: "open_day", Action: rec.action("open_day")},
		"15:30:00": {Name: "end_day", Action: rec.action("end_day")},
	})
	clk := newScriptClock(testDay, "09:29:59", "09:30:00.1", "12:00:00", "15:30:00.2", "15:45:00", "16:00:00.000001")

	if err := newTestEngine(clk, nil).Run(context.Background(), s, mustConfig(t, "16:00:00", 0)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []string{"open_day", "end_day"}; !reflect.DeepEqual(rec.calls, want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", s.Pending())
	}
	if len(clk.sleeps) != 5 {
		t.Fatalf("sleeps = %d, want 5", len(clk.sleeps))
	}
}

func TestRunSubSecondTrigger(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		clock string
		fired bool
	}{
		{name: "before", clock: "12:00:00.400000", fired: false},
		{name: "after", clock: "12:00:00.600000", fired: true},
		{name: "exact", clock: "12:00:00.500000", fired: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &recorder{}
			s := mustSchedule(t, map[string]Event{"12:00:00.500000": {Action: rec.action("noon")}})
			clk := newScriptClock(testDay, tt.clock, "12:00:01.000001")
			if err := newTestEngine(clk, nil).Run(context.Background(), s, mustConfig(t, "12:00:01", 0)); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := len(rec.calls) == 1; got != tt.fired {
				t.Fatalf("fired = %v, want %v", got, tt.fired)
			}
		})
	}
}

func TestRunFiresDueEntriesInTriggerOrder(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	s := mustSchedule(t, map[string]Event{
		"10:00:00": {Action: rec.action("ten")},
		"09:00:00": {Action: rec.action("nine")},
		"09:30:00.250": {Action: rec.action("nine-thirty")},
	})
	clk := newScriptClock(testDay, "10:00:01", "17:00:00")
	if err := newTestEngine(clk, nil).Run(context.Background(), s, mustConfig(t, "16:00:00", time.Second)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []string{"nine", "nine-thirty", "ten"}; !reflect.DeepEqual(rec.calls, want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	if !reflect.DeepEqual(clk.sleeps, []time.Duration{time.Second}) {
		t.Fatalf("sleeps = %v", clk.sleeps)
	}
}

func TestRunPassesArguments(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	var typed string
	s := mustSchedule(t, map[string]Event{
		"09:30:00": {Action: rec.action("open"), Args: "thing"},
		"12:00:00": {Action: rec.action("hedge")},
		"13:00:00": {Action: With(func(_ context.Context, v string) error { typed = v; return nil }), Args: "not-thing"},
	})
	clk := newScriptClock(testDay, "13:00:00", "23:00:00")
	if err := newTestEngine(clk, nil).Run(context.Background(), s, mustConfig(t, "16:00:00", 0)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(rec.args, []any{"thing", nil}) {
		t.Fatalf("args = %#v", rec.args)
	}
	if typed != "not-thing" {
		t.Fatalf("typed arg = %q", typed)
	}
}

func TestRunFailFast(t *testing.T) {
	t.Parallel()
	boom := errors.New("order rejected")
	rec := &recorder{}
	s := mustSchedule(t, map[string]Event{
		"09:00:00": {Name: "open", Action: rec.action("open")},
		"10:00:00": {Name: "hedge", Action: func(context.Context, any) error { return boom }},
		"11:00:00": {Name: "guard", Action: rec.action("guard")},
	})
	var outcomes []Outcome
	obs := ObserverFunc(func(o Observation) { outcomes = append(outcomes, o.Outcome) })
	clk := newScriptClock(testDay, "11:00:01", "12:00:00")

	err := newTestEngine(clk, obs).Run(context.Background(), s, mustConfig(t, "16:00:00", 0))
	if !errors.Is(err, boom) {
		t.Fatalf("Run err = %v, want %v", err, boom)
	}
	var ae *ActionError
	if !errors.As(err, &ae) || ae.Name != "hedge" || ae.Trigger != At(10, 0, 0, 0) {
		t.Fatalf("ActionError = %#v", ae)
	}
	if !reflect.DeepEqual(rec.calls, []string{"open"}) {
		t.Fatalf("calls = %v", rec.calls)
	}
	states := []State{}
	for _, e := range s.Entries() {
		states = append(states, e.State)
	}
	if !reflect.DeepEqual(states, []State{Fired, Pending, Pending}) {
		t.Fatalf("states = %v", states)
	}
	if len(clk.sleeps) != 0 {
		t.Fatalf("slept after failure: %v", clk.sleeps)
	}
	if !reflect.DeepEqual(outcomes, []Outcome{OutcomeFired, OutcomeFailed}) {
		t.Fatalf("outcomes = %v", outcomes)
	}
}

func TestRunAgainOnExhaustedSchedule(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	s := mustSchedule(t, map[string]Event{
		"09:00:00": {Action: rec.action("a")},
		"10:00:00": {Action: rec.action("b")},
	})
	cfg := mustConfig(t, "16:00:00", 0)
	if err := newTestEngine(newScriptClock(testDay, "10:00:00", "16:30:00"), nil).Run(context.Background(), s, cfg); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if len(rec.calls) != 2 {
		t.Fatalf("first run calls = %v", rec.calls)
	}

	// Still inside the session: loops with no-ops until the end.
	clk := newScriptClock(testDay, "11:00:00", "12:00:00", "16:00:01")
	if err := newTestEngine(clk, nil).Run(context.Background(), s, cfg); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(clk.sleeps) != 2 {
		t.Fatalf("second run sleeps = %d, want 2", len(clk.sleeps))
	}

	// Already past the end: returns without sleeping.
	late := newScriptClock(testDay, "18:00:00")
	if err := newTestEngine(late, nil).Run(context.Background(), s, cfg); err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if len(late.sleeps) != 0 {
		t.Fatalf("third run slept %d times", len(late.sleeps))
	}
	if len(rec.calls) != 2 {
		t.Fatalf("re-run fired actions: %v", rec.calls)
	}
}

func TestRunStopsOnlyStrictlyAfterEnd(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	s := mustSchedule(t, map[string]Event{"16:00:00": {Action: rec.action("close")}})
	clk := newScriptClock(testDay, "16:00:00", "16:00:00.000001")
	if err := newTestEngine(clk, nil).Run(context.Background(), s, mustConfig(t, "16:00:00", 0)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("action at end time should fire, calls = %v", rec.calls)
	}
	if len(clk.sleeps) != 1 {
		t.Fatalf("sleeps = %d, want 1", len(clk.sleeps))
	}
}

func TestRunClockMovingBackwardDoesNotRefire(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	s := mustSchedule(t, map[string]Event{"10:00:00": {Action: rec.action("a")}})
	clk := newScriptClock(testDay, "10:00:01", "09:59:00", "10:00:05", "16:00:01")
	if err := newTestEngine(clk, nil).Run(context.Background(), s, mustConfig(t, "16:00:00", 0)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("calls = %v, want exactly one", rec.calls)
	}
}

func TestRunCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	s := mustSchedule(t, map[string]Event{
		"09:00:00": {Action: func(context.Context, any) error { cancel(); return nil }},
		"09:00:01": {Action: rec.action("same-cycle")},
		"10:00:00": {Action: rec.action("later")},
	})
	var last Observation
	obs := ObserverFunc(func(o Observation) { last = o })
	clk := newScriptClock(testDay, "09:30:00", "10:30:00")

	err := newTestEngine(clk, obs).Run(ctx, s, mustConfig(t, "16:00:00", 0))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if !reflect.DeepEqual(rec.calls, []string{"same-cycle"}) {
		t.Fatalf("calls = %v", rec.calls)
	}
	if last.Outcome != OutcomeCancelled || last.Pending != 1 {
		t.Fatalf("last observation = %+v", last)
	}
}

func TestRunWithSystemClockHonoursCancelDuringSleep(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s := mustSchedule(t, map[string]Event{"00:00:00": {Action: func(context.Context, any) error { return nil }}})
	cfg := Config{End: At(23, 59, 59, 999999999), PollInterval: time.Hour}

	start := time.Now()
	err := New(WithLocation(time.UTC)).Run(ctx, s, cfg)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run err = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("sleep did not observe cancellation")
	}
}

func TestRunUsesEngineLocation(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	ny := time.FixedZone("NY", -5*3600)
	s := mustSchedule(t, map[string]Event{"09:30:00": {Action: rec.action("open")}})
	// 14:30 UTC is 09:30 in NY.
	clk := &scriptClock{times: []time.Time{
		time.Date(2017, 3, 9, 14, 30, 0, 0, time.UTC),
		time.Date(2017, 3, 9, 21, 0, 1, 0, time.UTC),
	}}
	if err := New(WithClock(clk), WithLocation(ny)).Run(context.Background(), s, mustConfig(t, "16:00:00", 0)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("calls = %v", rec.calls)
	}
}
