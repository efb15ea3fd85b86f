package config

import (
	"os"
	"strings"
)

// Environment variables that override secrets from the config file.
const (
	EnvTelegramToken      = "TELEGRAM_TOKEN"
	EnvSlackBotToken      = "SLACK_BOT_TOKEN"
	EnvSlackSigningSecret = "SLACK_SIGNING_SECRET"
	EnvStorageDSN         = "REMINDBOT_STORAGE_DSN"
)

// ApplyEnv fills secrets from the environment. A set variable wins over the file.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if cfg == nil {
		return
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Telegram.Token, EnvTelegramToken)
	set(&cfg.Slack.BotToken, EnvSlackBotToken)
	set(&cfg.Slack.SigningSecret, EnvSlackSigningSecret)
	if v, ok := lookup(EnvStorageDSN); ok && strings.TrimSpace(v) != "" {
		if cfg.Storage == nil {
			cfg.Storage = &StorageConfig{Driver: "postgres"}
		}
		cfg.Storage.DSN = strings.TrimSpace(v)
	}
}
