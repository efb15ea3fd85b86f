// Package systemd speaks the sd_notify protocol. Every call is a no-op
// when the process was not started by systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "remindbot/pkg/logx"
)

// Ready reports READY=1 with a status line.
func Ready(log logx.Logger, status string) {
	notify(log, daemon.SdNotifyReady+"\nSTATUS="+status)
}

// Stopping reports STOPPING=1.
func Stopping(log logx.Logger) {
	notify(log, daemon.SdNotifyStopping)
}

// Status updates the free-form STATUS= line.
func Status(log logx.Logger, status string) {
	notify(log, "STATUS="+status)
}

// Watchdog pings the service watchdog at half its interval until ctx ends.
// It returns immediately when WatchdogSec is not configured.
func Watchdog(ctx context.Context, log logx.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("systemd watchdog check failed", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}
	every := interval / 2
	log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			notify(log, daemon.SdNotifyWatchdog)
		}
	}
}

func notify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}
