package schedule

import (
	"context"
	"time"
)

// Config bounds one Run.
type Config struct {
	End          TimeOfDay
	PollInterval time.Duration
}

// NewConfig validates the end time and poll interval.
func NewConfig(end string, poll time.Duration) (Config, error) {
	tod, err := ParseTimeOfDay(end)
	if err != nil {
		return Config{}, &ConfigError{Field: "end_time", Value: end, Err: err}
	}
	if poll < 0 {
		return Config{}, &ConfigError{Field: "poll_interval", Value: poll.String(), Err: ErrNegativeInterval}
	}
	return Config{End: tod, PollInterval: poll}, nil
}

// Outcome classifies an observed engine event.
type Outcome string

const (
	OutcomeFired     Outcome = "fired"
	OutcomeFailed    Outcome = "failed"
	OutcomeStopped   Outcome = "stopped"
	OutcomeCancelled Outcome = "cancelled"
)

// Observation is delivered to the Observer synchronously from Run.
type Observation struct {
	Outcome Outcome
	At      time.Time
	Trigger TimeOfDay
	Name    string
	Took    time.Duration
	Pending int
	Err     error
}

// Observer must not block for long: it runs on the engine goroutine.
type Observer interface {
	Observe(o Observation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(o Observation)

func (f ObserverFunc) Observe(o Observation) { f(o) }

type Option func(*Engine)

func WithClock(c WallClock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLocation sets the zone used to derive the current time of day.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.obs = o }
}

// Engine drives schedules. It holds no per-run state, so one Engine may
// serve several strategies as long as each owns its Schedule.
type Engine struct {
	clock WallClock
	loc   *time.Location
	obs   Observer
}

func New(opts ...Option) *Engine {
	e := &Engine{clock: SystemClock{}, loc: time.Local}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run fires due entries until the clock passes cfg.End, ctx is done, or an
// action fails. It returns nil on a normal stop, ctx.Err() on cancellation
// and *ActionError on failure.
func (e *Engine) Run(ctx context.Context, s *Schedule, cfg Config) error {
	if s == nil || len(s.entries) == 0 {
		return &ConfigError{Field: "schedule", Err: ErrEmptySchedule}
	}
	if cfg.PollInterval < 0 {
		return &ConfigError{Field: "poll_interval", Value: cfg.PollInterval.String(), Err: ErrNegativeInterval}
	}

	for {
		if err := ctx.Err(); err != nil {
			e.notify(Observation{Outcome: OutcomeCancelled, At: e.clock.Now(), Pending: s.Pending(), Err: err})
			return err
		}

		now := e.clock.Now().In(e.loc)
		tod := Of(now)
		if tod.After(cfg.End) {
			e.notify(Observation{Outcome: OutcomeStopped, At: now, Pending: s.Pending()})
			return nil
		}

		if err := e.cycle(ctx, s, now, tod); err != nil {
			return err
		}

		if err := e.clock.Sleep(ctx, cfg.PollInterval); err != nil {
			e.notify(Observation{Outcome: OutcomeCancelled, At: e.clock.Now(), Pending: s.Pending(), Err: err})
			return err
		}
	}
}

// cycle fires every pending entry due at tod, in trigger order.
func (e *Engine) cycle(ctx context.Context, s *Schedule, now time.Time, tod TimeOfDay) error {
	for _, en := range s.entries {
		if en.state != Pending || tod.Before(en.trigger) {
			continue
		}
		start := time.Now()
		err := en.action(ctx, en.args)
		took := time.Since(start)
		if err != nil {
			e.notify(Observation{Outcome: OutcomeFailed, At: now, Trigger: en.trigger, Name: en.name, Took: took, Pending: s.Pending(), Err: err})
			return &ActionError{Trigger: en.trigger, Name: en.name, Err: err}
		}
		en.state = Fired
		e.notify(Observation{Outcome: OutcomeFired, At: now, Trigger: en.trigger, Name: en.name, Took: took, Pending: s.Pending()})
	}
	return nil
}

func (e *Engine) notify(o Observation) {
	if e.obs != nil {
		e.obs.Observe(o)
	}
}
