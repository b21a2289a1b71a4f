package strategy

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"konan/internal/schedule"
	logx "konan/pkg/logx"
)

// Runner drives one Strategy through the engine. The schedule is built at
// construction so malformed trigger times fail before any session starts.
type Runner struct {
	strategy Strategy
	sched    *schedule.Schedule
	cfg      schedule.Config
	engine   *schedule.Engine
	log      logx.Logger

	running atomic.Bool
}

func NewRunner(s Strategy, cfg schedule.Config, engine *schedule.Engine, log logx.Logger) (*Runner, error) {
	if engine == nil {
		engine = schedule.New()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	sched, err := schedule.NewSchedule(s.Events())
	if err != nil {
		return nil, err
	}
	return &Runner{
		strategy: s,
		sched:    sched,
		cfg:      cfg,
		engine:   engine,
		log:      log.With(logx.String("strategy", s.Name())),
	}, nil
}

func (r *Runner) Strategy() Strategy           { return r.strategy }
func (r *Runner) Schedule() *schedule.Schedule { return r.sched }
func (r *Runner) Config() schedule.Config      { return r.cfg }
func (r *Runner) Running() bool                { return r.running.Load() }

// Execute runs the session until the end time, an action failure or ctx
// cancellation. Concurrent calls return ErrAlreadyRunning.
func (r *Runner) Execute(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	start := time.Now()
	r.log.Info("session started",
		logx.Int("pending", r.sched.Pending()),
		logx.Stringer("end", r.cfg.End),
		logx.Duration("poll", r.cfg.PollInterval),
	)

	err := r.engine.Run(ctx, r.sched, r.cfg)

	fields := []logx.Field{
		logx.Int("pending", r.sched.Pending()),
		logx.Duration("took", time.Since(start)),
	}
	var aerr *schedule.ActionError
	switch {
	case err == nil:
		r.log.Info("session ended", fields...)
	case errors.As(err, &aerr):
		r.log.Error("session aborted", append(fields,
			logx.String("action", aerr.Name),
			logx.Stringer("trigger", aerr.Trigger),
			logx.Err(aerr.Err),
		)...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.log.Warn("session cancelled", append(fields, logx.Err(err))...)
	default:
		r.log.Error("session failed", append(fields, logx.Err(err))...)
	}
	return err
}

// Reset re-arms every action for the next session. It is a no-op while a
// session is running.
func (r *Runner) Reset() bool {
	if !r.running.CompareAndSwap(false, true) {
		return false
	}
	r.sched.Reset()
	r.running.Store(false)
	return true
}
