package configstore

import (
	"testing"

	"github.com/healerd/healer/internal/config"
)

func TestStoreReturnsLatestPublished(t *testing.T) {
	initial := &config.Config{LogLevel: "info"}
	s := New(initial)

	if got := s.Current(); got.LogLevel != "info" {
		t.Fatalf("expected initial snapshot, got %+v", got)
	}

	next := &config.Config{LogLevel: "debug"}
	s.Store(next)

	if got := s.Current(); got.LogLevel != "debug" {
		t.Fatalf("expected updated snapshot after Store, got %+v", got)
	}
}
