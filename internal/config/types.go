package config

type Config struct {
	Transport TransportConfig `json:"transport"`
	Telegram  TelegramConfig  `json:"telegram"`
	Slack     SlackConfig     `json:"slack"`
	Logging   LoggingConfig   `json:"logging"`

	// Scheduler controls the timer facility (one-shot reminders, daily rollover).
	Scheduler SchedulerConfig `json:"scheduler"`

	// TaskEngine controls execution of fired jobs.
	TaskEngine *TaskEngineConfig `json:"task_engine,omitempty"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Catalog  CatalogConfig   `json:"catalog"`
	Render   RenderConfig    `json:"render"`

	// OwnerUserIDs may toggle reminders in any group regardless of chat role.
	OwnerUserIDs []string `json:"owner_user_ids,omitempty"`
}

// TransportConfig selects the chat adapter: "telegram" (default) or "slack".
type TransportConfig struct {
	Driver string `json:"driver"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type SlackConfig struct {
	BotToken      string `json:"bot_token"`
	SigningSecret string `json:"signing_secret"`
	// ListenAddr serves the slash command endpoint (default ":3000").
	ListenAddr  string `json:"listen_addr,omitempty"`
	CommandPath string `json:"command_path,omitempty"` // default "/slack/commands"
}

// TaskEngineConfig controls the task execution engine.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 256
//   - default_timeout: "0s" (disabled)
//   - max_queue_delay: "0s" (disabled)
//   - history_size: 200
type TaskEngineConfig struct {
	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`

	// DefaultTimeout applies to jobs registered without their own timeout.
	DefaultTimeout string `json:"default_timeout,omitempty"`

	// MaxQueueDelay drops tasks that have been queued longer than this duration.
	MaxQueueDelay string `json:"max_queue_delay,omitempty"`

	HistorySize int `json:"history_size,omitempty"`
}

// NotifierConfig controls the delivery pipeline in front of the transport.
//
// If the whole section is omitted, defaults apply (rate 20/s, dedup 2m).
type NotifierConfig struct {
	RatePerSec      int    `json:"rate_per_sec"`
	SendTimeout     string `json:"send_timeout"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
}

// StorageConfig selects where group settings live.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/remindbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`          // postgres (do not log)
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type CatalogConfig struct {
	Path string `json:"path"`
	// Watch reloads the catalog when the file changes.
	Watch bool `json:"watch"`
}

type RenderConfig struct {
	FontPath  string  `json:"font_path,omitempty"`
	FontSize  float64 `json:"font_size,omitempty"`
	Watermark string  `json:"watermark,omitempty"`
	Width     int     `json:"width,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingChat forwards warnings to an operator chat through the active transport.
type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	ChatID     string `json:"chat_id"`
	ThreadID   string `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type SchedulerConfig struct {
	// Timezone is an IANA name. Empty means the process local zone.
	Timezone string `json:"timezone,omitempty"`
}
