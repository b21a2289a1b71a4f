package app

import (
	"context"
	"sort"
	"strings"

	"konan/internal/broker"
	"konan/internal/config"
	"konan/internal/datasource"
	"konan/internal/metrics"
	"konan/internal/notify"
	"konan/internal/storage"
	"konan/internal/strategy"
	logx "konan/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// mapStorage returns ok=false when the journal is disabled.
func mapStorage(cfg *config.Config, res *config.Resolved) (storage.Config, bool) {
	if cfg.Storage == nil {
		return storage.Config{}, false
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: res.BusyTimeout,
	}, true
}

func mapPaper(cfg *config.Config, res *config.Resolved) broker.PaperConfig {
	return broker.PaperConfig{
		RatePerSec: cfg.Broker.RatePerSec,
		Burst:      cfg.Broker.Burst,
		Marks:      res.Marks,
	}
}

func mapMetrics(cfg *config.Config) metrics.ServerConfig {
	if cfg.Metrics == nil {
		return metrics.ServerConfig{}
	}
	return metrics.ServerConfig{Bind: cfg.Metrics.Bind, Pprof: cfg.Metrics.Pprof}
}

func mapS3(c *config.CloudConfig) datasource.S3Config {
	return datasource.S3Config{
		Bucket:    c.Bucket,
		Region:    c.Region,
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		PathStyle: c.PathStyle,
		Prefix:    c.Prefix,
	}
}

// SessionPlan turns the schedule section into a session plan. An empty section
// yields nil so the session falls back to its default trading day.
func SessionPlan(cfg *config.Config) map[string]strategy.Step {
	if len(cfg.Schedule) == 0 {
		return nil
	}
	plan := make(map[string]strategy.Step, len(cfg.Schedule))
	for trigger, step := range cfg.Schedule {
		plan[trigger] = strategy.Step{Action: strings.TrimSpace(step.Action), Args: step.Args}
	}
	return plan
}

// buildNotifier returns notify.Nop when alerts are disabled.
func buildNotifier(cfg *config.Config, log logx.Logger) (notify.Notifier, bool, error) {
	n := cfg.Notify
	if n == nil || !n.Enabled {
		return notify.Nop{}, false, nil
	}
	tg, err := notify.NewTelegram(notify.TelegramConfig{
		Token:      n.Token,
		ChatID:     n.ChatID,
		ThreadID:   n.ThreadID,
		RatePerSec: n.RatePerSec,
	}, log)
	if err != nil {
		return nil, false, err
	}
	return tg, n.OnFire, nil
}

// buildObjectStore returns nil when no cloud section is configured.
func buildObjectStore(ctx context.Context, cfg *config.Config) (datasource.ObjectStore, error) {
	if cfg.Cloud == nil {
		return nil, nil
	}
	return datasource.NewS3Store(ctx, mapS3(cfg.Cloud))
}

func syncTargets(cfg *config.Config) []config.SyncConfig {
	if cfg.Cloud == nil {
		return nil
	}
	out := append([]config.SyncConfig(nil), cfg.Cloud.Sync...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
