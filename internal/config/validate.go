package config

import (
	"fmt"
	"net"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"konan/internal/filter"
	"konan/internal/schedule"
)

const (
	DefaultSessionName  = "session"
	DefaultCron         = "25 9 * * 1-5"
	DefaultTimezone     = "America/New_York"
	DefaultEndTime      = "16:00:00"
	DefaultPollInterval = time.Second
)

// Resolved holds the typed values derived from a Config.
type Resolved struct {
	Name        string
	CronSpec    string
	Location    *time.Location
	Engine      schedule.Config
	Quantity    decimal.Decimal
	Marks       map[string]decimal.Decimal
	Filter      *filter.Filter
	UpdateAt    schedule.TimeOfDay
	Candidate   []filter.Condition
	Whitelist   []filter.Condition
	BusyTimeout time.Duration
}

// Validate reports the first problem Resolve finds.
func Validate(cfg *Config) error {
	_, err := Resolve(cfg)
	return err
}

// Resolve applies defaults and parses every raw string in cfg. Errors are
// prefixed with the offending key path.
func Resolve(cfg *Config) (*Resolved, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	r := &Resolved{Name: strings.TrimSpace(cfg.Session.Name)}
	if r.Name == "" {
		r.Name = DefaultSessionName
	}

	if err := resolveSession(cfg.Session, r); err != nil {
		return nil, err
	}
	for key, step := range cfg.Schedule {
		if _, err := schedule.ParseTimeOfDay(key); err != nil {
			return nil, fmt.Errorf("schedule.%s: %w", key, err)
		}
		if strings.TrimSpace(step.Action) == "" {
			return nil, fmt.Errorf("schedule.%s.action: required", key)
		}
	}
	if strings.TrimSpace(cfg.Data.Universe) == "" {
		return nil, fmt.Errorf("data.universe: required")
	}
	if cfg.Data.Sample < 0 {
		return nil, fmt.Errorf("data.sample: must be >= 0")
	}
	if err := resolveFilter(cfg.Filter, r); err != nil {
		return nil, err
	}
	if err := resolveBroker(cfg.Broker, r); err != nil {
		return nil, err
	}
	if err := resolveStorage(cfg.Storage, r); err != nil {
		return nil, err
	}
	if n := cfg.Notify; n != nil && n.Enabled {
		if strings.TrimSpace(n.Token) == "" {
			return nil, fmt.Errorf("notify.token: required when notify.enabled")
		}
		if n.ChatID == 0 {
			return nil, fmt.Errorf("notify.chat_id: required when notify.enabled")
		}
		if n.RatePerSec < 0 {
			return nil, fmt.Errorf("notify.rate_per_sec: must be >= 0")
		}
	}
	if m := cfg.Metrics; m != nil && strings.TrimSpace(m.Bind) != "" {
		if _, _, err := net.SplitHostPort(m.Bind); err != nil {
			return nil, fmt.Errorf("metrics.bind: %w", err)
		}
	}
	if c := cfg.Cloud; c != nil {
		if strings.TrimSpace(c.Bucket) == "" {
			return nil, fmt.Errorf("cloud.bucket: required")
		}
		for i, s := range c.Sync {
			if strings.TrimSpace(s.Key) == "" || strings.TrimSpace(s.Path) == "" {
				return nil, fmt.Errorf("cloud.sync[%d]: key and path required", i)
			}
		}
	}
	return r, nil
}

func resolveSession(s SessionConfig, r *Resolved) error {
	r.CronSpec = strings.TrimSpace(s.Cron)
	if r.CronSpec == "" {
		r.CronSpec = DefaultCron
	}
	if _, err := cron.ParseStandard(r.CronSpec); err != nil {
		return fmt.Errorf("session.cron: %w", err)
	}

	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("session.timezone: %w", err)
	}
	r.Location = loc

	end := strings.TrimSpace(s.EndTime)
	if end == "" {
		end = DefaultEndTime
	}
	poll, err := parseDuration("session.poll_interval", s.PollInterval, DefaultPollInterval)
	if err != nil {
		return err
	}
	r.Engine, err = schedule.NewConfig(end, poll)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	r.Quantity = decimal.NewFromInt(1)
	if q := strings.TrimSpace(s.Quantity); q != "" {
		d, err := decimal.NewFromString(q)
		if err != nil || !d.IsPositive() {
			return fmt.Errorf("session.quantity: %q must be a positive decimal", s.Quantity)
		}
		r.Quantity = d
	}
	return nil
}

func resolveFilter(f *FilterConfig, r *Resolved) error {
	if f == nil {
		return nil
	}
	base, err := filter.NewFilter(f.LifespanDays, f.UpdatePeriodDays)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	r.Filter = &base

	r.UpdateAt = filter.DefaultUpdateAt
	if raw := strings.TrimSpace(f.UpdateAt); raw != "" {
		if r.UpdateAt, err = schedule.ParseTimeOfDay(raw); err != nil {
			return fmt.Errorf("filter.update_at: %w", err)
		}
	}
	if r.Candidate, err = conditions("filter.candidate", f.Candidate); err != nil {
		return err
	}
	if r.Whitelist, err = conditions("filter.whitelist", f.Whitelist); err != nil {
		return err
	}
	return nil
}

func conditions(path string, in []ConditionConfig) ([]filter.Condition, error) {
	out := make([]filter.Condition, 0, len(in))
	for i, c := range in {
		if strings.TrimSpace(c.Column) == "" {
			return nil, fmt.Errorf("%s[%d].column: required", path, i)
		}
		op, err := filter.ParseComparator(c.Op)
		if err != nil {
			return nil, fmt.Errorf("%s[%d].op: %w", path, i, err)
		}
		out = append(out, filter.Condition{Column: c.Column, Op: op, Value: c.Value})
	}
	return out, nil
}

func resolveBroker(b BrokerConfig, r *Resolved) error {
	if b.RatePerSec < 0 {
		return fmt.Errorf("broker.rate_per_sec: must be >= 0")
	}
	if b.Burst < 0 {
		return fmt.Errorf("broker.burst: must be >= 0")
	}
	r.Marks = make(map[string]decimal.Decimal, len(b.Marks))
	for sym, raw := range b.Marks {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || !d.IsPositive() {
			return fmt.Errorf("broker.marks.%s: %q must be a positive decimal", sym, raw)
		}
		r.Marks[sym] = d
	}
	return nil
}

func resolveStorage(s *StorageConfig, r *Resolved) error {
	if s == nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case "", "none", "file", "sqlite":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", s.Driver)
	}
	d, err := parseDuration("storage.busy_timeout", s.BusyTimeout, 0)
	if err != nil {
		return err
	}
	r.BusyTimeout = d
	return nil
}
