package config

// Config is the on-disk konan configuration (JSON or YAML).
type Config struct {
	Logging  LoggingConfig         `json:"logging"`
	Session  SessionConfig         `json:"session"`
	Schedule map[string]StepConfig `json:"schedule,omitempty"`
	Data     DataConfig            `json:"data"`
	Filter   *FilterConfig         `json:"filter,omitempty"`
	Broker   BrokerConfig          `json:"broker"`
	Storage  *StorageConfig        `json:"storage,omitempty"`
	Notify   *NotifyConfig         `json:"notify,omitempty"`
	Metrics  *MetricsConfig        `json:"metrics,omitempty"`
	Cloud    *CloudConfig          `json:"cloud,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SessionConfig controls when a trading session starts and ends.
//
// Defaults (when fields are omitted/zero):
//   - name: "session"
//   - cron: "25 9 * * 1-5" (standard 5-field spec, evaluated in timezone)
//   - timezone: "America/New_York"
//   - end_time: "16:00:00"
//   - poll_interval: "1s"
//   - quantity: "1"
type SessionConfig struct {
	Name         string `json:"name,omitempty"`
	Cron         string `json:"cron,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	PollInterval string `json:"poll_interval,omitempty"`
	Quantity     string `json:"quantity,omitempty"`
}

// StepConfig binds a trigger key ("HH:MM:SS" or "HH:MM:SS.ffffff") to an
// action name. Args is passed to the action as decoded JSON.
type StepConfig struct {
	Action string `json:"action"`
	Args   any    `json:"args,omitempty"`
}

type DataConfig struct {
	Root         string `json:"root"`
	Project      string `json:"project,omitempty"`
	Universe     string `json:"universe"`
	SymbolColumn string `json:"symbol_column,omitempty"`
	PriceColumn  string `json:"price_column,omitempty"`
	Partial      bool   `json:"partial,omitempty"`
	Sample       int    `json:"sample,omitempty"`
	CacheDir     string `json:"cache_dir,omitempty"`
}

// FilterConfig configures the live filter. update_at defaults to "16:00:00".
type FilterConfig struct {
	LifespanDays     int               `json:"lifespan_days"`
	UpdatePeriodDays int               `json:"update_period_days"`
	UpdateAt         string            `json:"update_at,omitempty"`
	Candidate        []ConditionConfig `json:"candidate,omitempty"`
	Whitelist        []ConditionConfig `json:"whitelist,omitempty"`
}

type ConditionConfig struct {
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  string `json:"value"`
}

// BrokerConfig configures the paper broker. Marks are decimal strings.
type BrokerConfig struct {
	RatePerSec float64           `json:"rate_per_sec,omitempty"`
	Burst      int               `json:"burst,omitempty"`
	Marks      map[string]string `json:"marks,omitempty"`
}

// StorageConfig controls the fire journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./konan.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// NotifyConfig controls Telegram alerts. Failures are always sent when
// enabled; fired actions only with on_fire.
type NotifyConfig struct {
	Enabled    bool    `json:"enabled"`
	Token      string  `json:"token"`
	ChatID     int64   `json:"chat_id"`
	ThreadID   int     `json:"thread_id,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	OnFire     bool    `json:"on_fire,omitempty"`
}

// MetricsConfig serves /metrics and /healthz on Bind. Pprof adds the
// net/http/pprof handlers under /debug/pprof/ on the same listener.
type MetricsConfig struct {
	Bind  string `json:"bind"`
	Pprof bool   `json:"pprof,omitempty"`
}

// CloudConfig pulls data files from an S3 bucket before each session.
type CloudConfig struct {
	Bucket    string       `json:"bucket"`
	Region    string       `json:"region,omitempty"`
	Endpoint  string       `json:"endpoint,omitempty"`
	AccessKey string       `json:"access_key,omitempty"`
	SecretKey string       `json:"secret_key,omitempty"`
	PathStyle bool         `json:"path_style,omitempty"`
	Prefix    string       `json:"prefix,omitempty"`
	Sync      []SyncConfig `json:"sync,omitempty"`
}

// SyncConfig downloads Key into Path (relative paths resolve under data.root).
type SyncConfig struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}
