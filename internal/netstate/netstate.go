// Package netstate reports whether the server is reachable and announces changes.
package netstate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor is an online-status source.
type Monitor interface {
	// Online reports the latest known status.
	Online() bool
	// Subscribe returns a channel that receives every transition and a func that
	// ends the subscription.
	Subscribe() (<-chan bool, func())
}

// broadcaster fans transitions out to subscribers. Slow subscribers miss
// intermediate values rather than block the sender.
type broadcaster struct {
	mu     sync.Mutex
	online bool
	subs   map[chan bool]struct{}
}

func (b *broadcaster) Online() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online
}

func (b *broadcaster) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[chan bool]struct{})
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// set stores v and notifies subscribers if it changed.
func (b *broadcaster) set(v bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.online == v {
		return false
	}
	b.online = v
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// drop the stale value and keep the newest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
	return true
}

// Flag is a manually driven Monitor.
type Flag struct{ broadcaster }

var _ Monitor = (*Flag)(nil)

// NewFlag returns a Flag starting at online.
func NewFlag(online bool) *Flag {
	f := &Flag{}
	f.online = online
	return f
}

// Set changes the status; subscribers hear about it only on a change.
func (f *Flag) Set(online bool) { f.set(online) }

// Prober polls a health check and treats any error as offline.
type Prober struct {
	broadcaster
	check    func(ctx context.Context) error
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

var _ Monitor = (*Prober)(nil)

const (
	defaultProbeInterval = 15 * time.Second
	defaultProbeTimeout  = 5 * time.Second
)

// NewProber builds a Prober. It reports offline until the first successful probe.
func NewProber(check func(ctx context.Context) error, interval time.Duration, log *zap.Logger) *Prober {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Prober{check: check, interval: interval, timeout: defaultProbeTimeout, log: log}
}

// Probe runs one check and returns the resulting status.
func (p *Prober) Probe(ctx context.Context) bool {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.check(cctx)
	online := err == nil
	if p.set(online) {
		if online {
			p.log.Info("server reachable")
		} else {
			p.log.Warn("server unreachable", zap.Error(err))
		}
	}
	return online
}

// Run probes immediately and then on every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.Probe(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
