package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TransportTelegram = "telegram"
	TransportSlack    = "slack"
)

// TransportDriver returns the normalized transport name.
func (c *Config) TransportDriver() string {
	d := strings.ToLower(strings.TrimSpace(c.Transport.Driver))
	if d == "" {
		return TransportTelegram
	}
	return d
}

// Location resolves scheduler.timezone. Empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Scheduler.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

// Validate checks the fields the process cannot start without. All
// problems are reported together.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	switch c.TransportDriver() {
	case TransportTelegram:
		if strings.TrimSpace(c.Telegram.Token) == "" {
			errs = append(errs, fmt.Errorf("telegram.token is required (or set %s)", EnvTelegramToken))
		}
		if _, err := ParseDuration("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
			errs = append(errs, err)
		}
	case TransportSlack:
		if strings.TrimSpace(c.Slack.BotToken) == "" {
			errs = append(errs, fmt.Errorf("slack.bot_token is required (or set %s)", EnvSlackBotToken))
		}
		if strings.TrimSpace(c.Slack.SigningSecret) == "" {
			errs = append(errs, fmt.Errorf("slack.signing_secret is required (or set %s)", EnvSlackSigningSecret))
		}
	default:
		errs = append(errs, fmt.Errorf("transport.driver: unknown driver %q", c.Transport.Driver))
	}

	if strings.TrimSpace(c.Catalog.Path) == "" {
		errs = append(errs, errors.New("catalog.path is required"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if te := c.TaskEngine; te != nil {
		if te.Workers < 0 || te.QueueSize < 0 || te.HistorySize < 0 {
			errs = append(errs, errors.New("task_engine: counts must be >= 0"))
		}
		if _, err := ParseDuration("task_engine.default_timeout", te.DefaultTimeout); err != nil {
			errs = append(errs, err)
		}
		if _, err := ParseDuration("task_engine.max_queue_delay", te.MaxQueueDelay); err != nil {
			errs = append(errs, err)
		}
	}
	if n := c.Notifier; n != nil {
		if n.RatePerSec < 0 || n.DedupMaxEntries < 0 {
			errs = append(errs, errors.New("notifier: counts must be >= 0"))
		}
		if _, err := ParseDuration("notifier.dedup_window", n.DedupWindow); err != nil {
			errs = append(errs, err)
		}
		if _, err := ParseDuration("notifier.send_timeout", n.SendTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if s := c.Storage; s != nil {
		if _, err := ParseDuration("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Render.FontSize < 0 || c.Render.Width < 0 {
		errs = append(errs, errors.New("render: font_size and width must be >= 0"))
	}
	return errors.Join(errs...)
}

// ParseDuration reads an optional Go duration string. Empty means 0.
// field names the config key in errors.
func ParseDuration(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %w", field, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", field, raw)
	}
	return d, nil
}

// DurationOr is ParseDuration with def standing in for empty or zero.
func DurationOr(field, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDuration(field, raw)
	if err == nil && d == 0 {
		d = def
	}
	return d, err
}
