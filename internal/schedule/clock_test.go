package schedule

import (
	"context"
	"time"
)

// scriptClock returns one scripted instant per poll cycle: Now reports the
// current instant and Sleep advances to the next. Once the script runs out
// Now keeps returning the last instant.
type scriptClock struct {
	times  []time.Time
	i      int
	sleeps []time.Duration
}

func newScriptClock(day time.Time, tods ...string) *scriptClock {
	c := &scriptClock{}
	for _, s := range tods {
		c.times = append(c.times, MustParseTimeOfDay(s).On(day))
	}
	return c
}

func (c *scriptClock) Now() time.Time {
	if c.i >= len(c.times) {
		return c.times[len(c.times)-1]
	}
	return c.times[c.i]
}

func (c *scriptClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.i++
	return nil
}

var testDay = time.Date(2017, time.March, 9, 0, 0, 0, 0, time.UTC)
