// Package syncengine drains the local queue against the server: one item at a time
// in createdAt order, with capped exponential backoff per item and at most one
// drain in flight.
package syncengine

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/apiclient"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/convert"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/netstate"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/queue"
)

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	Interval  time.Duration // timer between drains
	BaseDelay time.Duration
	MaxDelay  time.Duration
	BatchSize int // >1 sends due items through the batch endpoint
	Now       func() time.Time
}

const (
	defaultInterval  = 30 * time.Second
	defaultBaseDelay = 2 * time.Second
	defaultMaxDelay  = 5 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Backoff returns min(BaseDelay * 2^retryCount, MaxDelay).
func (c Config) Backoff(retryCount int) time.Duration {
	c = c.withDefaults()
	d := c.BaseDelay
	for i := 0; i < retryCount; i++ {
		if d > c.MaxDelay/2 {
			return c.MaxDelay
		}
		d *= 2
	}
	return min(d, c.MaxDelay)
}

// Report summarizes one drain pass.
type Report struct {
	Attempted int
	Synced    int
	Failed    int
	Rejected  int
	Deferred  int // nextRetryAt still in the future
	Held      int // behind an earlier item of the same exercise
}

type state int32

const (
	stateIdle state = iota
	stateDraining
)

// Engine delivers queued items. Failures are recorded on the items and logged,
// never returned.
type Engine struct {
	store queue.Store
	api   apiclient.Appender
	mon   netstate.Monitor
	cfg   Config
	log   *zap.Logger

	state atomic.Int32
	nudge chan struct{}
	// batch is the current chunk size; it shrinks when the server refuses a
	// chunk as a whole.
	batch atomic.Int32
}

// New builds an Engine. A nil monitor means always online.
func New(store queue.Store, api apiclient.Appender, mon netstate.Monitor, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store: store,
		api:   api,
		mon:   mon,
		cfg:   cfg.withDefaults(),
		log:   log,
		nudge: make(chan struct{}, 1),
	}
	e.batch.Store(int32(e.cfg.BatchSize))
	return e
}

// Draining reports whether a drain pass is in flight.
func (e *Engine) Draining() bool { return state(e.state.Load()) == stateDraining }

// Nudge asks Run for a drain soon, typically right after an enqueue.
func (e *Engine) Nudge() {
	select {
	case e.nudge <- struct{}{}:
	default:
	}
}

// Run drains immediately, then on every tick, on every offline to online
// transition and on Nudge, until ctx is done. Triggers while offline are skipped.
func (e *Engine) Run(ctx context.Context) error {
	var online <-chan bool
	if e.mon != nil {
		ch, cancel := e.mon.Subscribe()
		defer cancel()
		online = ch
	}
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.trigger(ctx, "start")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.trigger(ctx, "tick")
		case up := <-online:
			if up {
				e.trigger(ctx, "online")
			}
		case <-e.nudge:
			e.trigger(ctx, "nudge")
		}
	}
}

func (e *Engine) trigger(ctx context.Context, reason string) {
	if e.mon != nil && !e.mon.Online() {
		e.log.Debug("drain skipped, offline", zap.String("reason", reason))
		return
	}
	rep, ran := e.Drain(ctx)
	if !ran {
		e.log.Debug("drain skipped, already draining", zap.String("reason", reason))
		return
	}
	if rep.Attempted > 0 || rep.Deferred > 0 || rep.Held > 0 {
		e.log.Info("drain",
			zap.String("reason", reason),
			zap.Int("attempted", rep.Attempted),
			zap.Int("synced", rep.Synced),
			zap.Int("failed", rep.Failed),
			zap.Int("rejected", rep.Rejected),
			zap.Int("deferred", rep.Deferred),
			zap.Int("held", rep.Held),
		)
	}
}

// Drain makes one pass over pending items. It returns false without doing anything
// when another pass is in flight.
func (e *Engine) Drain(ctx context.Context) (Report, bool) {
	if !e.state.CompareAndSwap(int32(stateIdle), int32(stateDraining)) {
		return Report{}, false
	}
	defer e.state.Store(int32(stateIdle))

	var rep Report
	items, err := e.store.ReadAllPending(ctx)
	if err != nil {
		e.log.Error("read pending", zap.Error(err))
		return rep, true
	}
	if e.cfg.BatchSize > 1 {
		e.drainBatches(ctx, items, &rep)
	} else {
		e.drainOneByOne(ctx, items, &rep)
	}
	return rep, true
}

// gate decides whether it may be attempted now. An item that is not due holds
// every later item of its exercise for the rest of the pass.
func (e *Engine) gate(it model.QueueItem, now time.Time, held map[uuid.UUID]bool, rep *Report) bool {
	if held[it.SessionExerciseID] {
		rep.Held++
		return false
	}
	if !it.Due(now) {
		held[it.SessionExerciseID] = true
		rep.Deferred++
		return false
	}
	if it.Status == model.StatusSyncing {
		e.log.Info("retrying interrupted attempt", zap.Stringer("item", it.ID))
	}
	return true
}

func (e *Engine) drainOneByOne(ctx context.Context, items []model.QueueItem, rep *Report) {
	held := make(map[uuid.UUID]bool)
	for _, it := range items {
		if ctx.Err() != nil {
			return
		}
		if !e.gate(it, e.cfg.Now(), held, rep) {
			continue
		}
		started, ok := e.begin(ctx, it)
		if !ok {
			held[it.SessionExerciseID] = true
			continue
		}
		rep.Attempted++
		if !e.settle(context.WithoutCancel(ctx), started, e.sendOne(ctx, started), rep) {
			held[it.SessionExerciseID] = true
		}
	}
}

func (e *Engine) sendOne(ctx context.Context, it model.QueueItem) result {
	id, err := e.api.Append(ctx, convert.ToWireAppend(it))
	if err != nil {
		return result{err: err, permanent: apiclient.IsPermanent(err)}
	}
	return result{serverSetID: id}
}

func (e *Engine) drainBatches(ctx context.Context, items []model.QueueItem, rep *Report) {
	held := make(map[uuid.UUID]bool)
	rest := items
	for len(rest) > 0 && ctx.Err() == nil {
		var chunk, orig, next []model.QueueItem
		now := e.cfg.Now()
		size := int(e.batch.Load())
		for _, it := range rest {
			if len(chunk) == size {
				next = append(next, it)
				continue
			}
			if !e.gate(it, now, held, rep) {
				continue
			}
			started, ok := e.begin(ctx, it)
			if !ok {
				held[it.SessionExerciseID] = true
				continue
			}
			chunk = append(chunk, started)
			orig = append(orig, it)
		}
		rest = next
		if len(chunk) == 0 {
			continue
		}

		results, err := e.api.AppendBatch(ctx, convert.ToWireBatch(chunk).Items)
		bctx := context.WithoutCancel(ctx)
		if batchRefused(err) {
			smaller := max(len(chunk)/2, 1)
			e.batch.Store(int32(smaller))
			e.log.Warn("batch refused, sending one by one",
				zap.Int("size", len(chunk)), zap.Int("nextSize", smaller), zap.Error(err))
			e.sendEach(ctx, chunk, orig, held, rep)
			continue
		}
		for i, it := range chunk {
			if err == nil && results[i].Blocked {
				// never processed: put it back as it was
				held[it.SessionExerciseID] = true
				e.restore(bctx, orig[i], rep)
				continue
			}
			rep.Attempted++
			var res result
			switch {
			case err != nil:
				res = result{err: err}
			case results[i].OK:
				res = result{serverSetID: uuid.FromStringOrNil(results[i].ServerSetID)}
				if res.serverSetID == uuid.Nil {
					res = result{err: errors.New("malformed response: bad serverSetId")}
				}
			default:
				res = result{err: errors.New(results[i].Error), permanent: results[i].Rejected}
			}
			if !e.settle(bctx, it, res, rep) {
				held[it.SessionExerciseID] = true
			}
		}
	}
}

// sendEach delivers a chunk item by item. Items behind a failure of their exercise
// are put back untouched.
func (e *Engine) sendEach(ctx context.Context, chunk, orig []model.QueueItem, held map[uuid.UUID]bool, rep *Report) {
	bctx := context.WithoutCancel(ctx)
	for i, it := range chunk {
		if held[it.SessionExerciseID] || ctx.Err() != nil {
			held[it.SessionExerciseID] = true
			e.restore(bctx, orig[i], rep)
			continue
		}
		rep.Attempted++
		if !e.settle(bctx, it, e.sendOne(ctx, it), rep) {
			held[it.SessionExerciseID] = true
		}
	}
}

// restore writes back the record as it was before begin, so the attempt is not charged.
func (e *Engine) restore(ctx context.Context, orig model.QueueItem, rep *Report) {
	rep.Held++
	if err := e.store.Update(ctx, orig); err != nil {
		e.log.Error("restore item", zap.Stringer("item", orig.ID), zap.Error(err))
	}
}

// batchRefused reports whether the server turned down a whole batch request, e.g.
// for its size, without looking at the items.
func batchRefused(err error) bool {
	var re *apiclient.RemoteError
	return errors.As(err, &re) && (re.Status == http.StatusBadRequest || re.Status == http.StatusRequestEntityTooLarge)
}

// begin durably marks the item syncing with lastAttemptAt.
func (e *Engine) begin(ctx context.Context, it model.QueueItem) (model.QueueItem, bool) {
	at := e.cfg.Now()
	it.Status = model.StatusSyncing
	it.LastAttemptAt = &at
	if err := e.store.Update(ctx, it); err != nil {
		e.log.Error("mark syncing", zap.Stringer("item", it.ID), zap.Error(err))
		return it, false
	}
	return it, true
}

type result struct {
	serverSetID uuid.UUID
	err         error
	permanent   bool
}

// settle records the outcome of an attempt. It reports whether later items of the
// same exercise may still go out in this pass.
func (e *Engine) settle(ctx context.Context, it model.QueueItem, res result, rep *Report) bool {
	now := e.cfg.Now()
	switch {
	case res.err == nil:
		sid := res.serverSetID
		it.Status = model.StatusSynced
		it.ServerSetID = &sid
		it.SyncedAt = &now
		it.NextRetryAt = nil
		it.LastError = ""
		rep.Synced++
	case res.permanent:
		it.Status = model.StatusRejected
		it.NextRetryAt = nil
		it.LastError = res.err.Error()
		rep.Rejected++
		e.log.Warn("item rejected", zap.Stringer("item", it.ID), zap.Error(res.err))
	default:
		it.RetryCount++
		at := now
		if it.LastAttemptAt != nil {
			at = *it.LastAttemptAt
		}
		next := at.Add(e.cfg.Backoff(it.RetryCount))
		it.Status = model.StatusFailed
		it.NextRetryAt = &next
		it.LastError = res.err.Error()
		rep.Failed++
		e.log.Warn("item failed",
			zap.Stringer("item", it.ID),
			zap.Int("retryCount", it.RetryCount),
			zap.Time("nextRetryAt", next),
			zap.Error(res.err),
		)
	}
	if err := e.store.Update(ctx, it); err != nil {
		e.log.Error("record attempt", zap.Stringer("item", it.ID), zap.Error(err))
		return false
	}
	return it.Status != model.StatusFailed
}
