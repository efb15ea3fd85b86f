package activity

import (
	"sync/atomic"

	logx "remindbot/pkg/logx"
)

// Source holds the live catalog and swaps it atomically on reload.
type Source struct {
	path string
	log  logx.Logger
	cur  atomic.Pointer[Catalog]
}

// NewSource loads path. A failure here is fatal for startup.
func NewSource(path string, log logx.Logger) (*Source, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Source{path: path, log: log}
	cat, skipped, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	s.report(skipped)
	s.cur.Store(&cat)
	log.Info("catalog loaded", logx.String("path", path), logx.Int("activities", cat.Len()))
	return s, nil
}

func (s *Source) Path() string { return s.path }

// Catalog returns the current catalog snapshot.
func (s *Source) Catalog() Catalog {
	if c := s.cur.Load(); c != nil {
		return *c
	}
	return Catalog{}
}

// Reload re-reads the file. On failure the previous catalog stays live
// and false is returned.
func (s *Source) Reload() bool {
	if s.path == "" {
		return false
	}
	cat, skipped, err := LoadFile(s.path)
	if err != nil {
		s.log.Warn("catalog reload failed; keeping previous catalog", logx.String("path", s.path), logx.Err(err))
		return false
	}
	s.report(skipped)
	s.cur.Store(&cat)
	s.log.Info("catalog reloaded", logx.String("path", s.path), logx.Int("activities", cat.Len()))
	return true
}

func (s *Source) report(skipped []error) {
	for _, e := range skipped {
		s.log.Warn("catalog entry skipped", logx.Err(e))
	}
}
