package config

import (
	"reflect"
	"sort"
	"strings"

	logx "remindbot/pkg/logx"
)

// Sections applied without a restart.
var liveSections = map[string]bool{
	"logging":        true,
	"notifier":       true,
	"owner_user_ids": true,
}

// SummarizeConfigChange returns the changed sections, safe structured attrs
// for logging (never secrets), and the changed sections that need a
// restart to take effect.
func SummarizeConfigChange(oldCfg, newCfg *Config) (changed []string, attrs []logx.Field, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	if oldCfg.TransportDriver() != newCfg.TransportDriver() {
		changed = append(changed, "transport")
		attrs = append(attrs, logx.String("transport.driver", newCfg.TransportDriver()))
	}

	// Telegram (never log token)
	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}

	// Slack (never log secrets)
	oS, nS := oldCfg.Slack, newCfg.Slack
	if oS.BotToken != nS.BotToken || oS.SigningSecret != nS.SigningSecret ||
		oS.ListenAddr != nS.ListenAddr || oS.CommandPath != nS.CommandPath {
		changed = append(changed, "slack")
		attrs = append(attrs,
			logx.String("slack.listen_addr", nS.ListenAddr),
			logx.String("slack.command_path", nS.CommandPath),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.chat_enabled", newCfg.Logging.Chat.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Scheduler.Timezone) != strings.TrimSpace(newCfg.Scheduler.Timezone) {
		changed = append(changed, "scheduler")
		attrs = append(attrs, logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)))
	}

	if !reflect.DeepEqual(derefTaskEngine(oldCfg.TaskEngine), derefTaskEngine(newCfg.TaskEngine)) {
		te := derefTaskEngine(newCfg.TaskEngine)
		changed = append(changed, "task_engine")
		attrs = append(attrs,
			logx.Int("task_engine.workers", te.Workers),
			logx.Int("task_engine.queue_size", te.QueueSize),
			logx.String("task_engine.default_timeout", te.DefaultTimeout),
		)
	}

	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
		if n := newCfg.Notifier; n != nil {
			attrs = append(attrs,
				logx.Int("notifier.rate_per_sec", n.RatePerSec),
				logx.String("notifier.dedup_window", n.DedupWindow),
			)
		}
	}

	// Storage (never log dsn)
	var oDriver, nDriver, oPath, nPath string
	var oDSN, nDSN string
	if s := oldCfg.Storage; s != nil {
		oDriver, oPath, oDSN = strings.TrimSpace(s.Driver), s.Path, s.DSN
	}
	if s := newCfg.Storage; s != nil {
		nDriver, nPath, nDSN = strings.TrimSpace(s.Driver), s.Path, s.DSN
	}
	if oDriver != nDriver || oPath != nPath || oDSN != nDSN {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.dsn_set", nDSN != ""),
		)
	}

	if oldCfg.Catalog != newCfg.Catalog {
		changed = append(changed, "catalog")
		attrs = append(attrs,
			logx.String("catalog.path", newCfg.Catalog.Path),
			logx.Bool("catalog.watch", newCfg.Catalog.Watch),
		)
	}
	if oldCfg.Render != newCfg.Render {
		changed = append(changed, "render")
	}
	if !reflect.DeepEqual(oldCfg.OwnerUserIDs, newCfg.OwnerUserIDs) {
		changed = append(changed, "owner_user_ids")
		attrs = append(attrs, logx.Int("owner_count", len(newCfg.OwnerUserIDs)))
	}

	sort.Strings(changed)
	for _, s := range changed {
		if !liveSections[s] {
			restart = append(restart, s)
		}
	}
	return changed, attrs, restart
}

func derefTaskEngine(te *TaskEngineConfig) TaskEngineConfig {
	if te == nil {
		return TaskEngineConfig{}
	}
	return *te
}
