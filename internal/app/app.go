package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/apiclient"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/config"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/localdb"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/netstate"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/queue"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/status"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/syncengine"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/todaycache"
)

// Options tune Open.
type Options struct {
	Token  string // empty reads the stored token
	Logger *zap.Logger
	Now    func() time.Time
}

// Client bundles the wired client components.
type Client struct {
	Config  config.Config
	Log     *zap.Logger
	Queue   queue.Store
	API     *apiclient.Client
	Monitor *netstate.Prober
	Engine  *syncengine.Engine
	Status  *status.Projector
	Today   *todaycache.Cache

	db *localdb.DB
}

// NewLogger returns a development logger when verbose, a production one otherwise.
func NewLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// Open wires a Client from cfg. Storage failures are not fatal: the queue degrades
// to a no-op store and a warning is logged.
func Open(ctx context.Context, cfg config.Config, opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	token := opts.Token
	if token == "" {
		t, err := config.LoadToken()
		switch {
		case err == nil:
			token = t
		case errors.Is(err, config.ErrNoToken):
			log.Warn("no access token stored, appends will be refused until one is set")
		default:
			return nil, fmt.Errorf("load token: %w", err)
		}
	}

	api, err := apiclient.New(apiclient.Options{BaseURL: cfg.ServerURL, Token: token})
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}

	db := openStorage(ctx, cfg, log)
	store := queue.New(db, queue.Options{Now: opts.Now})

	mon := netstate.NewProber(api.Health, cfg.ProbeInterval, log.Named("netstate"))
	engine := syncengine.New(store, api, mon, syncengine.Config{
		Interval:  cfg.SyncInterval,
		BaseDelay: cfg.BaseDelay,
		MaxDelay:  cfg.MaxDelay,
		BatchSize: cfg.BatchSize,
		Now:       opts.Now,
	}, log.Named("sync"))
	proj := status.New(store, mon, status.Options{
		DisplayWindow: cfg.StatusWindow,
		Now:           opts.Now,
		Logger:        log.Named("status"),
		Draining:      engine.Draining,
	})

	return &Client{
		Config:  cfg,
		Log:     log,
		Queue:   store,
		API:     api,
		Monitor: mon,
		Engine:  engine,
		Status:  proj,
		Today:   todaycache.New(db, opts.Now),
		db:      db,
	}, nil
}

func openStorage(ctx context.Context, cfg config.Config, log *zap.Logger) *localdb.DB {
	if !cfg.StorageEnabled() {
		log.Warn("local storage disabled, sets are not queued offline")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		log.Warn("local storage unavailable, sets are not queued offline",
			zap.String("path", cfg.DBPath), zap.Error(err))
		return nil
	}
	db, err := localdb.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Warn("local storage unavailable, sets are not queued offline",
			zap.String("path", cfg.DBPath), zap.Error(err))
		return nil
	}
	return db
}

// StorageAvailable reports whether the queue is durable.
func (c *Client) StorageAvailable() bool { return queue.IsAvailable(c.Queue) }

// LogSet enqueues one set and asks the engine for a drain.
func (c *Client) LogSet(ctx context.Context, in queue.EnqueueInput) (model.QueueItem, error) {
	it, err := c.Queue.Enqueue(ctx, in)
	if err != nil {
		return model.QueueItem{}, err
	}
	c.Engine.Nudge()
	return it, nil
}

// SyncOnce probes the server and, when it is reachable, runs one drain pass.
// ran is false when the server is unreachable or a pass was already in flight.
func (c *Client) SyncOnce(ctx context.Context) (rep syncengine.Report, ran bool) {
	if !c.Monitor.Probe(ctx) {
		return syncengine.Report{}, false
	}
	return c.Engine.Drain(ctx)
}

// Run keeps the prober, the engine and the status projector going until ctx is
// done. onStatus receives every badge change; nil logs them instead.
func (c *Client) Run(ctx context.Context, statusEvery time.Duration, onStatus func(status.State)) error {
	if onStatus == nil {
		onStatus = func(s status.State) { c.Log.Info("status", zap.String("state", string(s))) }
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Monitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		c.Status.Run(ctx, statusEvery, onStatus)
	}()

	err := c.Engine.Run(ctx)
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the local database.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
