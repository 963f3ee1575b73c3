// Package healer implements the Process Healer: the recovery controller
// that consumes ProcessEvents off the bus, applies the per-name circuit
// breaker, and spawns recovery commands.
package healer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healerd/healer/internal/breaker"
	"github.com/healerd/healer/internal/bus"
	"github.com/healerd/healer/internal/event"
	"github.com/healerd/healer/internal/spawn"
	"github.com/healerd/healer/internal/spec"
)

// Healer is the sole bus subscriber driving recovery.
type Healer struct {
	mu       sync.RWMutex
	specs    map[string]spec.ProcessSpec
	breakers map[string]*breaker.Breaker
	inFlight map[string]bool

	spawner spawn.Spawner
	wg      sync.WaitGroup
}

// New creates a Healer with no specs loaded; call SetSpecs before Run.
func New(spawner spawn.Spawner) *Healer {
	return &Healer{
		specs:    make(map[string]spec.ProcessSpec),
		breakers: make(map[string]*breaker.Breaker),
		inFlight: make(map[string]bool),
		spawner:  spawner,
	}
}

// SetSpecs atomically replaces the live process table. Breaker entries for
// names no longer present are pruned; breakers for names that remain keep their state.
func (h *Healer) SetSpecs(specs []spec.ProcessSpec) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := make(map[string]spec.ProcessSpec, len(specs))
	for _, s := range specs {
		next[s.Name] = s
		if _, ok := h.breakers[s.Name]; !ok {
			h.breakers[s.Name] = breaker.New(s.Recovery)
		}
	}
	for name := range h.breakers {
		if _, ok := next[name]; !ok {
			delete(h.breakers, name)
		}
	}
	h.specs = next
}

// Run consumes events from recv until the bus is closed or ctx is done,
// applying the breaker and spawning recovery commands. It returns once the
// receive loop and all in-flight recoveries it started have finished.
func (h *Healer) Run(ctx context.Context, recv *bus.Receiver) {
	for {
		evt, lag, err := recv.Recv(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				slog.Warn("healer: bus receive error", "error", err)
			}
			h.wg.Wait()
			return
		}
		if lag != nil {
			slog.Warn("healer: event bus lagged, continuing", "skipped", lag.N)
			continue
		}
		h.handle(evt)
	}
}

// Wait blocks until every in-flight recovery has finished; it does not wait
// for the receive loop itself. Used by the Signal Dispatcher's graceful
// shutdown drain.
func (h *Healer) Wait() {
	h.wg.Wait()
}

func (h *Healer) handle(evt event.ProcessEvent) {
	h.mu.RLock()
	s, known := h.specs[evt.Name]
	br := h.breakers[evt.Name]
	busy := h.inFlight[evt.Name]
	h.mu.RUnlock()

	if !known {
		slog.Debug("healer: dropping event for unknown process", "name", evt.Name, "kind", evt.Kind)
		return
	}
	if busy {
		slog.Debug("healer: recovery already in flight, coalescing event", "name", evt.Name)
		return
	}

	now := time.Now()
	allowed, probing := br.Allow(now)
	if !allowed {
		slog.Info("circuit breaker is open", "name", evt.Name)
		return
	}

	h.mu.Lock()
	h.inFlight[evt.Name] = true
	h.mu.Unlock()

	h.wg.Add(1)
	go h.recover(s, br, probing)
}

func (h *Healer) recover(s spec.ProcessSpec, br *breaker.Breaker, probing bool) {
	defer h.wg.Done()
	defer func() {
		h.mu.Lock()
		delete(h.inFlight, s.Name)
		h.mu.Unlock()
	}()

	attemptID := uuid.New().String()
	if err := h.spawner.Spawn(s); err != nil {
		slog.Warn("recovery failed", "name", s.Name, "attempt", attemptID, "error", err)
		if br.RecordFailure(time.Now()) {
			slog.Info("Circuit breaker is open for "+s.Name, "name", s.Name)
		}
		return
	}
	slog.Info("Successfully restarted process", "name", s.Name, "attempt", attemptID)
	br.RecordSuccess(probing)
}
