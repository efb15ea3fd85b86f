package notifier

import (
	"context"
	"errors"
	"time"

	kit "remindbot/internal/transport"
)

var (
	ErrDuplicate = errors.New("notification suppressed by dedup window")
	ErrNoSender  = errors.New("notifier has no transport")
	ErrNoTarget  = errors.New("notification has no group")
)

// Config controls the delivery pipeline.
type Config struct {
	RatePerSec      int
	SendTimeout     time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
}

// Message is one outgoing notification. With Image set the text becomes
// the photo caption.
type Message struct {
	GroupID  string
	ThreadID string
	Text     string
	Image    []byte
	// Key identifies the logical notification for dedup. Empty disables dedup.
	Key string
}

// Sender is the part of a transport adapter the notifier needs.
type Sender interface {
	kit.TextSender
	SendPhoto(ctx context.Context, to kit.ChatTarget, p kit.Photo) (kit.MessageRef, error)
}

// NotificationEvent is emitted on the event bus for every send outcome.
type NotificationEvent struct {
	GroupID string    `json:"group_id"`
	Key     string    `json:"key,omitempty"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}
