// Package status derives the user-facing sync badge from the queue and the network
// monitor. It owns no durable state.
package status

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/netstate"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/queue"
)

// State is what the badge shows.
type State string

// States in priority order.
const (
	Offline      State = "offline"
	Syncing      State = "syncing"
	SavedLocally State = "saved-locally"
	Synced       State = "synced"
	Hidden       State = "hidden"
)

const defaultWindow = 3 * time.Second

// Projector polls the queue. The only memory it keeps is whether the previous poll
// saw pending items, which is what turns an empty queue into "synced".
type Projector struct {
	store    queue.Store
	mon      netstate.Monitor
	draining func() bool
	window   time.Duration
	now      func() time.Time
	log      *zap.Logger

	mu          sync.Mutex
	hadPending  bool
	syncedUntil time.Time
}

// Options tune a Projector.
type Options struct {
	DisplayWindow time.Duration // how long "synced" stays up
	Now           func() time.Time
	Logger        *zap.Logger
	// Draining, when set, reports whether a sync attempt is in flight. A row left
	// "syncing" by an interrupted process then shows as saved locally until the
	// next drain picks it up.
	Draining func() bool
}

// New builds a Projector. A nil monitor means always online.
func New(store queue.Store, mon netstate.Monitor, opts Options) *Projector {
	p := &Projector{
		store:    store,
		mon:      mon,
		draining: opts.Draining,
		window:   opts.DisplayWindow,
		now:      opts.Now,
		log:      opts.Logger,
	}
	if p.window <= 0 {
		p.window = defaultWindow
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// Poll reads the queue once and returns the current state.
func (p *Projector) Poll(ctx context.Context) State {
	online := p.mon == nil || p.mon.Online()
	items, err := p.store.ReadAllPending(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()

	syncing := false
	active := p.draining == nil || p.draining()
	if err != nil {
		p.log.Warn("status poll", zap.Error(err))
	} else {
		for _, it := range items {
			if active && it.Status == model.StatusSyncing {
				syncing = true
				break
			}
		}
		switch {
		case len(items) > 0:
			p.hadPending = true
			p.syncedUntil = time.Time{}
		case p.hadPending:
			p.hadPending = false
			p.syncedUntil = now.Add(p.window)
		}
	}

	switch {
	case !online:
		return Offline
	case syncing:
		return Syncing
	case p.hadPending:
		return SavedLocally
	case now.Before(p.syncedUntil):
		return Synced
	default:
		return Hidden
	}
}

// Run polls on every interval and on every monitor transition, calling onChange
// with the first state and then only when it changes.
func (p *Projector) Run(ctx context.Context, interval time.Duration, onChange func(State)) {
	if interval <= 0 {
		interval = time.Second
	}
	var transitions <-chan bool
	if p.mon != nil {
		ch, cancel := p.mon.Subscribe()
		defer cancel()
		transitions = ch
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last State
	for {
		if s := p.Poll(ctx); s != last {
			last = s
			onChange(s)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-transitions:
		}
	}
}
