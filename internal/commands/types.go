// Package commands routes chat commands to their handlers.
//
// Routing is two-level at most: "/reminder on" resolves to the route
// "reminder on" when it exists, and to "reminder" otherwise. Handlers run
// on a small worker pool behind panic recovery, request logging and a
// per-command timeout.
package commands

import (
	"context"
	"time"

	"remindbot/internal/reminder"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	// AccessGroupAdmin needs a group chat and a chat admin or configured owner.
	AccessGroupAdmin
	// AccessGroup needs a group chat.
	AccessGroup
)

type Command struct {
	// Route is one or two space-separated words, e.g. "reminder on".
	Route string
	// Aliases are alternative routes of the same shape, e.g. "reminder 开".
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	// Hidden keeps the route out of help and the platform menu.
	Hidden  bool
	Timeout time.Duration
	Handle  HandlerFunc
}

type Request struct {
	Update   kit.Update
	Chat     kit.ChatTarget
	FromID   string
	FromName string
	IsGroup  bool
	Command  string
	Args     []string
	ReqID    string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends text back to the chat the request came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// Actor is the audit identity of the caller.
func (r *Request) Actor() reminder.Actor {
	return reminder.Actor{ID: r.FromID, Name: r.FromName}
}
