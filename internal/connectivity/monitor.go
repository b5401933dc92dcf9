// Package connectivity derives an online/offline signal from two layers: the
// device-level interface state, and application-level reachability probes.
// The first layer alone is frequently optimistic — a Wi-Fi association with no
// working upstream still counts as "connected" there.
package connectivity

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// DefaultProbeTimeout bounds each individual reachability probe.
const DefaultProbeTimeout = 10 * time.Second

// DefaultEndpoints are independent well-known hosts; a single success from
// any of them counts as really online.
var DefaultEndpoints = []string{
	"https://clients3.google.com/generate_204",
	"https://www.cloudflare.com",
	"https://www.apple.com/library/test/success.html",
}

type Monitor struct {
	endpoints  []string
	timeout    time.Duration
	client     *http.Client
	online     atomic.Bool
	onOnline   func()
	ifaceCheck func() bool
}

func New(endpoints []string, timeout time.Duration) *Monitor {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Monitor{
		endpoints:  endpoints,
		timeout:    timeout,
		client:     &http.Client{},
		ifaceCheck: hasUsableInterface,
	}
}

// SetOnOnline installs the callback fired on each offline-to-online
// transition. The reverse transition is informational only.
func (m *Monitor) SetOnOnline(fn func()) {
	m.onOnline = fn
}

// Online reports the last observed state without probing.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Check probes both layers and updates the state. Probes run sequentially
// with their own timeout each; the first success short-circuits.
func (m *Monitor) Check(ctx context.Context) bool {
	if !m.ifaceCheck() {
		return m.transition(false)
	}

	for _, endpoint := range m.endpoints {
		if m.probe(ctx, endpoint) {
			return m.transition(true)
		}
	}
	return m.transition(false)
}

func (m *Monitor) probe(ctx context.Context, endpoint string) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 400
}

func (m *Monitor) transition(online bool) bool {
	was := m.online.Swap(online)
	if online && !was {
		log.Println("Connectivity restored")
		if m.onOnline != nil {
			m.onOnline()
		}
	}
	if !online && was {
		log.Println("Connectivity lost")
	}
	return online
}

// Start polls connectivity on a fixed interval until the context is
// cancelled. An initial check runs immediately.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	m.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// hasUsableInterface reports whether any non-loopback interface is up with an
// address assigned.
func hasUsableInterface() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
