package feed

import (
	"context"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/unit-inventory/internal/model"
)

// Fetcher is the source a Cache reads from; *Client implements it.
type Fetcher interface {
	FetchSoldUnits(ctx context.Context) (map[string]model.SoldUnitInfo, error)
}

// Observer receives fetch outcomes, typically for metrics.
type Observer interface {
	FeedFetched(ok bool, took time.Duration)
	FeedSoldUnits(n int)
}

// Snapshot is a point-in-time view of the sold feed.  Stale is set when
// the latest fetch failed and Units holds the last successful result.
type Snapshot struct {
	Units     map[string]model.SoldUnitInfo
	FetchedAt time.Time
	Stale     bool
}

// Cache keeps the last good feed snapshot.  Reads younger than MaxAge are
// served from memory; concurrent refreshes share one request.  A failed
// refresh never discards a previously good snapshot, so a feed outage
// does not turn known sold units back into available ones.  After a
// failure, reads serve the last snapshot and error until the failure
// cooldown passes instead of refetching.  Callers stop waiting when their
// own context ends; the shared fetch keeps running for the next reader.
type Cache struct {
	fetcher  Fetcher
	maxAge   time.Duration
	cooldown time.Duration
	log      *zap.Logger
	observer Observer
	now      func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	units     map[string]model.SoldUnitInfo
	fetchedAt time.Time
	failedAt  time.Time
	lastErr   error
}

// CacheOption customises a Cache.
type CacheOption func(*Cache)

// WithFailureCooldown makes reads within d of a failed fetch serve the
// last snapshot without refetching.  Explicit Refresh calls ignore it.
func WithFailureCooldown(d time.Duration) CacheOption {
	return func(c *Cache) { c.cooldown = d }
}

// NewCache wraps f.  A zero maxAge refetches on every read.
func NewCache(f Fetcher, maxAge time.Duration, log *zap.Logger, obs Observer, opts ...CacheOption) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cache{fetcher: f, maxAge: maxAge, log: log, observer: obs, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SoldUnits returns the current snapshot, refreshing it when it is older
// than MaxAge and no failure cooldown is running.  The error is non-nil
// when the refresh failed, is cooling down or outlived ctx; the snapshot
// is then the last good one (flagged Stale) or empty.
func (c *Cache) SoldUnits(ctx context.Context) (Snapshot, error) {
	c.mu.RLock()
	now := c.now()
	fresh := c.units != nil && c.maxAge > 0 && now.Sub(c.fetchedAt) < c.maxAge
	cooling := c.lastErr != nil && c.cooldown > 0 && now.Sub(c.failedAt) < c.cooldown
	snap, lastErr := c.snapshotLocked(), c.lastErr
	c.mu.RUnlock()
	switch {
	case cooling:
		return withUnits(snap), lastErr
	case fresh:
		return snap, nil
	}
	snap, _, err := c.Refresh(ctx)
	return snap, err
}

// Last returns the most recent snapshot without fetching.
func (c *Cache) Last() (Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked(), c.lastErr
}

// Refresh fetches the feed now.  changed reports whether the set of sold
// units or their details differ from the previous good snapshot.  When
// ctx ends first, the last snapshot is returned with an
// *UnavailableError and the fetch completes in the background.
func (c *Cache) Refresh(ctx context.Context) (Snapshot, bool, error) {
	type result struct {
		snap    Snapshot
		changed bool
	}
	ch := c.group.DoChan("sold-units", func() (any, error) {
		// detached so one caller's cancellation does not fail the others
		fctx := context.WithoutCancel(ctx)
		start := c.now()
		units, err := c.fetcher.FetchSoldUnits(fctx)
		took := c.now().Sub(start)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.observer != nil {
			c.observer.FeedFetched(err == nil, took)
		}
		if err != nil {
			c.lastErr, c.failedAt = err, c.now()
			c.log.Warn("sales feed refresh failed; serving last snapshot",
				zap.Error(err), zap.Bool("have_snapshot", c.units != nil))
			return result{snap: c.snapshotLocked()}, err
		}
		changed := !reflect.DeepEqual(c.units, units)
		c.units, c.fetchedAt, c.lastErr = units, c.now(), nil
		if c.observer != nil {
			c.observer.FeedSoldUnits(len(units))
		}
		return result{snap: c.snapshotLocked(), changed: changed}, nil
	})

	select {
	case res := <-ch:
		r, _ := res.Val.(result)
		return withUnits(r.snap), r.changed, res.Err
	case <-ctx.Done():
		c.mu.RLock()
		snap := c.snapshotLocked()
		c.mu.RUnlock()
		// still waiting on the feed, so whatever we hold may be outdated
		snap.Stale = snap.Units != nil
		return withUnits(snap), false, &UnavailableError{Err: ctx.Err()}
	}
}

func withUnits(s Snapshot) Snapshot {
	if s.Units == nil {
		s.Units = map[string]model.SoldUnitInfo{}
	}
	return s
}

func (c *Cache) snapshotLocked() Snapshot {
	return Snapshot{
		Units:     c.units,
		FetchedAt: c.fetchedAt,
		Stale:     c.lastErr != nil && c.units != nil,
	}
}
