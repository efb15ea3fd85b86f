// Package notifier delivers reminder messages to a group through the
// active transport.
//
// Sends are synchronous: the caller is already running on a task engine
// worker. A token bucket bounds the outgoing rate, and an in-memory
// dedup window drops a second message carrying the same key (group and
// due minute), so a job that somehow exists twice sends once.
//
// Nothing is retried. A failed send is returned to the caller, which
// logs it and moves on.
package notifier
