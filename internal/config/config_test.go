package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"konan/internal/filter"
	"konan/internal/schedule"
)

const sampleYAML = `
logging:
  level: debug
  console: true
session:
  name: example
  cron: "25 9 * * 1-5"
  timezone: America/New_York
  end_time: "16:00:00"
  poll_interval: 500ms
  quantity: "10"
schedule:
  "09:30:00": {action: open_day, args: thing}
  "12:00:00.250000": {action: hedge_positions}
data:
  root: ./data
  universe: ./data/universe.csv
filter:
  lifespan_days: 5
  update_period_days: 1
  update_at: "11:00:00"
  candidate:
    - {column: price, op: ">", value: "100"}
broker:
  rate_per_sec: 5
  marks: {SPY: "234.50"}
storage: {driver: sqlite, path: ./konan.db, busy_timeout: 2s}
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDecodeYAMLAndResolve(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("konan.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Schedule["09:30:00"].Args != "thing" {
		t.Fatalf("args = %#v", cfg.Schedule["09:30:00"].Args)
	}

	r, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Name != "example" || r.Location.String() != "America/New_York" {
		t.Fatalf("resolved = %+v", r)
	}
	if r.Engine.End != schedule.At(16, 0, 0, 0) || r.Engine.PollInterval != 500*time.Millisecond {
		t.Fatalf("engine = %+v", r.Engine)
	}
	if !r.Quantity.Equal(decimal.NewFromInt(10)) || !r.Marks["SPY"].Equal(decimal.RequireFromString("234.5")) {
		t.Fatalf("quantity=%s marks=%v", r.Quantity, r.Marks)
	}
	if r.UpdateAt != schedule.At(11, 0, 0, 0) || len(r.Candidate) != 1 || r.Candidate[0].Op != filter.Gt {
		t.Fatalf("filter = %v %v", r.UpdateAt, r.Candidate)
	}
	if r.BusyTimeout != 2*time.Second {
		t.Fatalf("busy timeout = %v", r.BusyTimeout)
	}
}

func TestResolveDefaults(t *testing.T) {
	t.Parallel()
	r, err := Resolve(&Config{Data: DataConfig{Universe: "u.csv"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Name != DefaultSessionName || r.CronSpec != DefaultCron || r.Location.String() != DefaultTimezone {
		t.Fatalf("defaults = %+v", r)
	}
	if r.Engine.End != schedule.MustParseTimeOfDay(DefaultEndTime) || r.Engine.PollInterval != DefaultPollInterval {
		t.Fatalf("engine = %+v", r.Engine)
	}
	if r.Filter != nil {
		t.Fatal("filter should be absent")
	}
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()
	if _, err := Decode("c.json", []byte(`{"data":{"universe":"u"},"bogus":1}`)); err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("unknown field err = %v", err)
	}
	if _, err := Decode("c.json", []byte(`{} {}`)); err == nil {
		t.Fatal("trailing data accepted")
	}
	if _, err := Decode("c.yml", []byte("session: [")); err == nil {
		t.Fatal("bad yaml accepted")
	}
}

func TestResolveRejects(t *testing.T) {
	t.Parallel()
	base := func() *Config { return &Config{Data: DataConfig{Universe: "u.csv"}} }
	tests := []struct {
		name string
		mut  func(c *Config)
		want string
	}{
		{"no universe", func(c *Config) { c.Data.Universe = "" }, "data.universe"},
		{"bad cron", func(c *Config) { c.Session.Cron = "every day" }, "session.cron"},
		{"bad tz", func(c *Config) { c.Session.Timezone = "Mars/Olympus" }, "session.timezone"},
		{"bad end", func(c *Config) { c.Session.EndTime = "4pm" }, "end_time"},
		{"negative poll", func(c *Config) { c.Session.PollInterval = "-1s" }, "session.poll_interval"},
		{"bad quantity", func(c *Config) { c.Session.Quantity = "-2" }, "session.quantity"},
		{"bad trigger", func(c *Config) { c.Schedule = map[string]StepConfig{"9:30": {Action: "open_day"}} }, "schedule.9:30"},
		{"no action", func(c *Config) { c.Schedule = map[string]StepConfig{"09:30:00": {}} }, "action"},
		{"bad lifespan", func(c *Config) { c.Filter = &FilterConfig{UpdatePeriodDays: 1} }, "filter"},
		{"bad op", func(c *Config) {
			c.Filter = &FilterConfig{LifespanDays: 1, UpdatePeriodDays: 1, Candidate: []ConditionConfig{{Column: "a", Op: "~"}}}
		}, "filter.candidate[0].op"},
		{"bad mark", func(c *Config) { c.Broker.Marks = map[string]string{"SPY": "x"} }, "broker.marks.SPY"},
		{"bad driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "mongo"} }, "storage.driver"},
		{"notify token", func(c *Config) { c.Notify = &NotifyConfig{Enabled: true, ChatID: 1} }, "notify.token"},
		{"metrics bind", func(c *Config) { c.Metrics = &MetricsConfig{Bind: "9100"} }, "metrics.bind"},
		{"cloud bucket", func(c *Config) { c.Cloud = &CloudConfig{} }, "cloud.bucket"},
		{"cloud sync", func(c *Config) { c.Cloud = &CloudConfig{Bucket: "b", Sync: []SyncConfig{{Key: "k"}}} }, "cloud.sync[0]"},
	}
	for _, tt := range tests {
		c := base()
		tt.mut(c)
		err := Validate(c)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: err = %v, want mention of %q", tt.name, err, tt.want)
		}
	}
}

func TestResolveBadEndIsConfigError(t *testing.T) {
	t.Parallel()
	err := Validate(&Config{Data: DataConfig{Universe: "u"}, Session: SessionConfig{EndTime: "25:00:00"}})
	var cerr *schedule.ConfigError
	if !errors.As(err, &cerr) || !errors.Is(err, schedule.ErrInvalidTime) {
		t.Fatalf("err = %v", err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Notify: &NotifyConfig{Token: "secret-1"}}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Notify:  &NotifyConfig{Token: "secret-2"},
	}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "logging,notify" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("expected attrs")
	}
	if changed, _ := SummarizeConfigChange(newCfg, newCfg); len(changed) != 0 {
		t.Fatalf("identical configs changed = %v", changed)
	}
}

func TestManagerLoadAndReload(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "konan.json", `{"data":{"universe":"u.csv"},"logging":{"level":"info"}}`)
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	// unchanged content is not republished
	m.reload(context.Background())
	select {
	case <-ch:
		t.Fatal("unchanged config published")
	default:
	}

	if err := os.WriteFile(path, []byte(`{"data":{"universe":"u.csv"},"logging":{"level":"debug"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())
	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "debug" || m.Get().Logging.Level != "debug" {
			t.Fatalf("published %+v", cfg.Logging)
		}
	default:
		t.Fatal("changed config not published")
	}

	// invalid or vetoed configs are not committed
	if err := os.WriteFile(path, []byte(`{"data":{"universe":""}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())
	m.SetValidator(func(context.Context, *Config) error { return errors.New("veto") })
	if err := os.WriteFile(path, []byte(`{"data":{"universe":"v.csv"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())
	if m.Get().Data.Universe != "u.csv" {
		t.Fatalf("rejected config committed: %+v", m.Get().Data)
	}
}

func TestPublishKeepsNewest(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("unused.json")
	ch := m.Subscribe(1)
	a, b := &Config{}, &Config{}
	m.publish(a)
	m.publish(b)
	if got := <-ch; got != b {
		t.Fatal("subscriber did not receive newest config")
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed by Unsubscribe")
	}
}

func TestManagerLoadRejectsInvalid(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "konan.yaml", "data:\n  universe: \"\"\n")
	if _, err := NewConfigManager(path).Load(); err == nil {
		t.Fatal("expected validation error")
	}
}
