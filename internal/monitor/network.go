package monitor

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/healerd/healer/internal/bus"
	"github.com/healerd/healer/internal/event"
	"github.com/healerd/healer/internal/spec"
)

// NetworkMonitor probes a TCP/HTTP endpoint each tick and publishes
// ProcessDisconnected on the transition into failure, re-arming on the next
// success.
type NetworkMonitor struct {
	name     string
	target   string
	interval time.Duration
	timeout  time.Duration
	bus      *bus.Bus
	client   *http.Client
}

func NewNetworkMonitor(name string, m spec.NetworkMonitor, b *bus.Bus) *NetworkMonitor {
	timeout := time.Duration(m.TimeoutSecs) * time.Second
	return &NetworkMonitor{
		name:     name,
		target:   m.URL,
		interval: time.Duration(m.IntervalSecs) * time.Second,
		timeout:  timeout,
		bus:      b,
		client:   &http.Client{Timeout: timeout},
	}
}

// Run polls until ctx is cancelled.
func (m *NetworkMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	armed := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if m.probe(ctx) {
			armed = true
			continue
		}
		if armed {
			m.bus.Publish(event.ProcessEvent{Kind: event.ProcessDisconnected, Name: m.name, URL: m.target})
			armed = false
		}
	}
}

func (m *NetworkMonitor) probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	u, err := url.Parse(m.target)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		req, err := http.NewRequestWithContext(pctx, http.MethodGet, m.target, nil)
		if err != nil {
			return false
		}
		resp, err := m.client.Do(req)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}

	host := m.target
	if err == nil && u.Host != "" {
		host = u.Host
	}
	d := net.Dialer{Timeout: m.timeout}
	conn, err := d.DialContext(pctx, "tcp", host)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
