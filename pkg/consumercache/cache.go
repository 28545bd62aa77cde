// Package consumercache holds the single cached aggregate statistic exposed
// to consumers, refreshed periodically through the same admission path every
// other caller uses.
package consumercache

import (
	"context"
	"sync"
	"time"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
	"github.com/exfinen/mpc-cluster/pkg/logger"
)

// Aggregate is the statistic computed over every data provider's
// contribution, returned verbatim by the consumer surface.
type Aggregate struct {
	NumDataProviders int     `json:"num_data_providers"`
	Max              float64 `json:"max"`
	Mean             float64 `json:"mean"`
	Median           float64 `json:"median"`
	GiniCoefficient  float64 `json:"gini_coefficient"`
}

// Store is the pluggable backend behind Cache: an in-memory store for a
// single-instance deployment, or a shared redis store for multiple consumer
// processes.
type Store interface {
	Get(ctx context.Context) (*Aggregate, error)
	Set(ctx context.Context, agg *Aggregate) error
}

// Runner computes a fresh Aggregate. Implementations are expected to go
// through the normal queue-admission and party-fanout path (see
// CoordinatorRunner), not bypass it.
type Runner interface {
	RunQuery(ctx context.Context) (*Aggregate, error)
}

// Cache serves the most recently computed Aggregate and keeps it fresh with
// a background refresher. The first caller triggers synchronous population
// and starts the refresher; callers that arrive while that first population
// is still running get CacheNotReady instead of blocking.
type Cache struct {
	store  Store
	runner Runner
	ttl    time.Duration

	mu          sync.Mutex
	populating  bool
	started     bool
	stopCh      chan struct{}
	refreshDone chan struct{}
}

// New constructs a Cache that refreshes every ttl via runner, persisting
// into store.
func New(store Store, runner Runner, ttl time.Duration) *Cache {
	return &Cache{store: store, runner: runner, ttl: ttl}
}

// Get returns the cached Aggregate. On the very first call it populates the
// cache synchronously and starts the periodic refresher; concurrent callers
// during that first population receive apierrors.KindCacheNotReady.
func (c *Cache) Get(ctx context.Context) (*Aggregate, error) {
	if agg, err := c.store.Get(ctx); err == nil && agg != nil {
		return agg, nil
	}

	c.mu.Lock()
	if c.populating {
		c.mu.Unlock()
		return nil, apierrors.NewCacheNotReady("the cache is still populating its first result")
	}
	c.populating = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.populating = false
		c.mu.Unlock()
	}()

	agg, err := c.runner.RunQuery(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, agg); err != nil {
		return nil, apierrors.NewLocalFailure("caching query result", err)
	}

	c.startRefresher()
	return agg, nil
}

// startRefresher starts the background periodic refresh loop, idempotently.
func (c *Cache) startRefresher() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.stopCh = make(chan struct{})
	c.refreshDone = make(chan struct{})
	go c.refreshLoop()
}

func (c *Cache) refreshLoop() {
	defer close(c.refreshDone)
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.ttl)
			agg, err := c.runner.RunQuery(ctx)
			if err != nil {
				logger.Warnf("consumer cache refresh failed: %v", err)
				cancel()
				continue
			}
			if err := c.store.Set(ctx, agg); err != nil {
				logger.Warnf("consumer cache refresh could not persist result: %v", err)
			}
			cancel()
		}
	}
}

// Stop halts the background refresher, if running. Safe to call more than
// once or on a Cache whose refresher never started.
func (c *Cache) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	stopCh := c.stopCh
	done := c.refreshDone
	c.mu.Unlock()

	close(stopCh)
	<-done
}
