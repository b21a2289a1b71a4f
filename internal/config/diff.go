package config

import (
	"reflect"
	"sort"
	"strings"

	logx "konan/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured attrs for logging. Secrets (tokens, keys) are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Session != newCfg.Session {
		changed = append(changed, "session")
		attrs = append(attrs,
			logx.String("session.cron", strings.TrimSpace(newCfg.Session.Cron)),
			logx.String("session.timezone", strings.TrimSpace(newCfg.Session.Timezone)),
			logx.String("session.end_time", strings.TrimSpace(newCfg.Session.EndTime)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Schedule, newCfg.Schedule) {
		changed = append(changed, "schedule")
		triggers := make([]string, 0, len(newCfg.Schedule))
		for k := range newCfg.Schedule {
			triggers = append(triggers, k)
		}
		sort.Strings(triggers)
		attrs = append(attrs,
			logx.Int("schedule.entries", len(newCfg.Schedule)),
			logx.String("schedule.triggers", strings.Join(triggers, ",")),
		)
	}

	if oldCfg.Data != newCfg.Data {
		changed = append(changed, "data")
		attrs = append(attrs,
			logx.String("data.universe", newCfg.Data.Universe),
			logx.Bool("data.partial", newCfg.Data.Partial),
		)
	}

	if !reflect.DeepEqual(oldCfg.Filter, newCfg.Filter) {
		changed = append(changed, "filter")
	}
	if !reflect.DeepEqual(oldCfg.Broker, newCfg.Broker) {
		changed = append(changed, "broker")
		attrs = append(attrs, logx.Int("broker.marks", len(newCfg.Broker.Marks)))
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		if newCfg.Storage != nil {
			attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
		}
	}

	if !reflect.DeepEqual(oldCfg.Notify, newCfg.Notify) {
		changed = append(changed, "notify")
		if n := newCfg.Notify; n != nil {
			attrs = append(attrs,
				logx.Bool("notify.enabled", n.Enabled),
				logx.Bool("notify.token_set", strings.TrimSpace(n.Token) != ""),
			)
		}
	}

	if !reflect.DeepEqual(oldCfg.Metrics, newCfg.Metrics) {
		changed = append(changed, "metrics")
	}
	if !reflect.DeepEqual(oldCfg.Cloud, newCfg.Cloud) {
		changed = append(changed, "cloud")
		if newCfg.Cloud != nil {
			attrs = append(attrs,
				logx.String("cloud.bucket", newCfg.Cloud.Bucket),
				logx.Int("cloud.sync", len(newCfg.Cloud.Sync)),
			)
		}
	}
	return changed, attrs
}
