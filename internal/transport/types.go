package transport

import "context"

// Chat and user ids are opaque strings so Telegram (numeric) and Slack
// (C0123/U0123) identifiers share one shape.

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           string
	ChatID       string
	ThreadID     string // forum topic (telegram) or thread ts (slack); empty if none
	FromID       string
	FromUsername string
	Text         string
	IsGroup      bool
}

type ChatTarget struct {
	ChatID   string
	ThreadID string
}

type MessageRef struct {
	ChatID    string
	ThreadID  string
	MessageID string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Photo is a rendered image attached to an outgoing message.
type Photo struct {
	Data     []byte
	Filename string
	Caption  string
}

// TextSender is the subset of Adapter used by log sinks.
type TextSender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

type Adapter interface {
	TextSender

	Name() string
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendPhoto(ctx context.Context, to ChatTarget, p Photo) (MessageRef, error)

	// IsChatAdmin reports whether userID administers chatID on the platform.
	IsChatAdmin(ctx context.Context, chatID, userID string) (bool, error)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
