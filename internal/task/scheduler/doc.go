// Package scheduler is the timer facility: one-shot timers and daily cron
// triggers keyed by name. It only triggers; execution is delegated to the
// task engine.
//
// Removal is idempotent. Removing a name that already fired or never
// existed reports false and is not an error.
package scheduler
