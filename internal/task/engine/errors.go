package engine

import "errors"

var (
	ErrStopped     = errors.New("task engine not running")
	ErrQueueFull   = errors.New("task engine queue full")
	ErrOverlapSkip = errors.New("previous run still busy")
)
