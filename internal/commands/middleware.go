package commands

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "remindbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

// Middleware decorates a handler. The first middleware passed to wrap is
// the outermost.
type Middleware func(next HandlerFunc) HandlerFunc

// slowRequest promotes a successful request log line from debug to info.
const slowRequest = 750 * time.Millisecond

func wrap(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := range mws {
		h = mws[len(mws)-1-i](h)
	}
	return h
}

// recoverPanic turns a handler panic into an error on the request log.
func recoverPanic() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				err = fmt.Errorf("command /%s panicked: %v", req.Command, r)
				req.Logger.Error("command panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}()
			return next(ctx, req)
		}
	}
}

// logRequest records the outcome of every command. req.Logger already
// carries the chat, sender and route.
func logRequest() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)
			switch {
			case err != nil:
				req.Logger.Warn("command failed", logx.Err(err), logx.Duration("took", took))
			case took >= slowRequest:
				req.Logger.Info("command slow", logx.Duration("took", took))
			default:
				req.Logger.Debug("command done", logx.Duration("took", took))
			}
			return err
		}
	}
}

func withDeadline(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}
