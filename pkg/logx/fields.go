package logx

import (
	"time"

	"github.com/rs/zerolog"
)

// Field adds one key to a log event. Later fields win on duplicate keys.
type Field func(e *zerolog.Event)

func String(key, val string) Field { return func(e *zerolog.Event) { e.Str(key, val) } }
func Int(key string, val int) Field { return func(e *zerolog.Event) { e.Int(key, val) } }
func Uint64(key string, val uint64) Field {
	return func(e *zerolog.Event) { e.Uint64(key, val) }
}
func Bool(key string, val bool) Field { return func(e *zerolog.Event) { e.Bool(key, val) } }
func Any(key string, val any) Field   { return func(e *zerolog.Event) { e.Interface(key, val) } }
func Time(key string, val time.Time) Field {
	return func(e *zerolog.Event) { e.Time(key, val) }
}
func Duration(key string, val time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(key, val) }
}

// Err is a no-op for a nil error.
func Err(err error) Field {
	if err == nil {
		return nil
	}
	return func(e *zerolog.Event) { e.Err(err) }
}
