package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"konan/internal/eventbus"
	"konan/internal/notify"
	"konan/internal/schedule"
	"konan/internal/storage"
	logx "konan/pkg/logx"
)

// Report is the payload of every schedule event on the bus.
type Report struct {
	RunID    string
	Strategy string
	schedule.Observation
}

func (r Report) record() storage.FireRecord {
	rec := storage.FireRecord{
		At:       r.At,
		RunID:    r.RunID,
		Strategy: r.Strategy,
		Outcome:  string(r.Outcome),
		TookMS:   r.Took.Milliseconds(),
		Pending:  r.Pending,
	}
	if r.Name != "" {
		rec.Trigger = r.Trigger.String()
		rec.Action = r.Name
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

func eventType(o schedule.Outcome) string {
	switch o {
	case schedule.OutcomeFired:
		return eventbus.TypeActionFired
	case schedule.OutcomeFailed:
		return eventbus.TypeActionFailed
	case schedule.OutcomeStopped:
		return eventbus.TypeSessionStopped
	default:
		return eventbus.TypeSessionCanceled
	}
}

// observe runs on the engine goroutine and must not block.
func (a *App) observe(o schedule.Observation) {
	a.bus.Publish(eventbus.Event{
		Type: eventType(o.Outcome),
		Time: o.At,
		Data: Report{RunID: a.currentRun(), Strategy: a.session.Name(), Observation: o},
	})
}

// fanout delivers events until ch is closed. Handlers run detached from
// ctx cancellation so the final events of a cancelled session still reach
// the journal.
func (a *App) fanout(ctx context.Context, ch <-chan eventbus.Event) {
	hctx := context.WithoutCancel(ctx)
	for e := range ch {
		a.handle(hctx, e)
	}
}

func (a *App) handle(ctx context.Context, e eventbus.Event) {
	r, ok := e.Data.(Report)
	if !ok {
		a.log.Debug("event ignored", logx.String("type", e.Type))
		return
	}
	a.mtr.Observe(r.Strategy, r.Observation)

	if a.store != nil {
		if err := a.store.AppendFire(ctx, r.record()); err != nil {
			a.log.Warn("journal append failed", logx.String("type", e.Type), logx.Err(err))
		}
	}

	n, onFire := a.currentNotifier()
	text, send := alertText(r, onFire)
	if !send {
		return
	}
	if err := n.Notify(ctx, text); err != nil && !errors.Is(err, notify.ErrDropped) {
		a.log.Warn("alert failed", logx.String("type", e.Type), logx.Err(err))
	}
}

// alertText formats r for operators. Failures and cancellations are always
// sent; routine fires and stops only with onFire.
func alertText(r Report, onFire bool) (string, bool) {
	switch r.Outcome {
	case schedule.OutcomeFailed:
		return fmt.Sprintf("konan %s: %s (%s) failed: %v\nrun %s, %d pending",
			r.Strategy, r.Name, r.Trigger, r.Err, r.RunID, r.Pending), true
	case schedule.OutcomeCancelled:
		return fmt.Sprintf("konan %s: session cancelled with %d pending\nrun %s",
			r.Strategy, r.Pending, r.RunID), true
	case schedule.OutcomeFired:
		return fmt.Sprintf("konan %s: %s fired at %s (%s)",
			r.Strategy, r.Name, r.At.Format("15:04:05"), r.Took.Round(time.Millisecond)), onFire
	case schedule.OutcomeStopped:
		return fmt.Sprintf("konan %s: session ended, %d pending\nrun %s",
			r.Strategy, r.Pending, r.RunID), onFire
	}
	return "", false
}

// cronLogger adapts logx to cron.Logger. Cron's info lines are per-tick
// chatter, so they go to debug.
type cronLogger struct {
	log logx.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
