// Package configstore holds the daemon's live configuration as a
// copy-on-write snapshot: many readers take a cheap reference, the Signal
// Dispatcher publishes a replacement atomically on SIGHUP.
package configstore

import (
	"sync/atomic"

	"github.com/healerd/healer/internal/config"
)

type Store struct {
	slot atomic.Pointer[config.Config]
}

func New(initial *config.Config) *Store {
	s := &Store{}
	s.slot.Store(initial)
	return s
}

// Current returns the currently published configuration snapshot.
func (s *Store) Current() *config.Config {
	return s.slot.Load()
}

// Store atomically replaces the published configuration.
func (s *Store) Store(cfg *config.Config) {
	s.slot.Store(cfg)
}
