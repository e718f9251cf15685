// Package modelcache keeps at most one loaded transcription model per
// process and reuses it while consecutive jobs ask for the same
// (engine, model) pair.
package modelcache

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/whisperjob/errors"
	"github.com/kbukum/whisperjob/logger"
	"github.com/kbukum/whisperjob/transcription"
)

// Outcome of an EnsureLoaded call, reported to the Observer.
const (
	OutcomeLoaded = "loaded"
	OutcomeReused = "reused"
	OutcomeFailed = "failed"
)

// Loaded is the content of the cache slot.
type Loaded struct {
	Engine   string
	Model    string
	Handle   transcription.Model
	LoadedAt time.Time
}

// Observer is notified after every EnsureLoaded call.
type Observer func(ctx context.Context, engine, model, outcome string, took time.Duration)

// Option configures a Cache.
type Option func(*Cache)

// WithObserver registers a callback for load and reuse events.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observe = o }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// Cache is a single-slot model cache. The mutex is held across load and
// swap, so concurrent callers never observe a half-replaced slot and never
// load the same pair twice.
type Cache struct {
	loader  transcription.Loader
	observe Observer
	log     *logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	current *Loaded
}

// New creates an empty cache backed by loader.
func New(loader transcription.Loader, opts ...Option) *Cache {
	c := &Cache{
		loader: loader,
		log:    logger.Get("modelcache"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureLoaded returns the cached handle when the slot holds (engine, model)
// and loads a replacement otherwise. A failed load leaves the previous slot
// in place and returns a MODEL_LOAD_FAILED error.
func (c *Cache) EnsureLoaded(ctx context.Context, engine, model string) (transcription.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.now()
	if cur := c.current; cur != nil && cur.Engine == engine && cur.Model == model {
		c.notify(ctx, engine, model, OutcomeReused, start)
		return cur.Handle, nil
	}

	fields := logger.ModelFields(engine, model)
	c.log.Info("Loading model", fields)

	handle, err := c.loader.Load(ctx, engine, model)
	if err != nil {
		c.notify(ctx, engine, model, OutcomeFailed, start)
		c.log.Error("Model load failed", logger.MergeWithError(fields, err))
		return nil, errors.ModelLoadFailed(engine, model, err)
	}

	c.current = &Loaded{Engine: engine, Model: model, Handle: handle, LoadedAt: c.now()}
	c.notify(ctx, engine, model, OutcomeLoaded, start)
	c.log.Info("Model loaded", logger.MergeWithDuration(fields, c.now().Sub(start)))
	return handle, nil
}

// Current returns a copy of the slot, or nil when nothing is loaded yet.
func (c *Cache) Current() *Loaded {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

func (c *Cache) notify(ctx context.Context, engine, model, outcome string, start time.Time) {
	if c.observe != nil {
		c.observe(ctx, engine, model, outcome, c.now().Sub(start))
	}
}
