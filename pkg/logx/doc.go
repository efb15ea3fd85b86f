// Package logx is the bot's structured logging, built on zerolog.
//
// Console output is human-readable with a short caller; the optional file
// sink writes JSON lines. Warnings and errors can also be forwarded to an
// operator chat through a rate-limited background sender.
package logx
