// Package service combines the unit store and the sales feed into the
// merged, expiry-aware inventory served by the API, and owns every unit
// mutation.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/iliyamo/unit-inventory/internal/feed"
	"github.com/iliyamo/unit-inventory/internal/inventory"
	"github.com/iliyamo/unit-inventory/internal/model"
	"github.com/iliyamo/unit-inventory/internal/queue"
	"github.com/iliyamo/unit-inventory/internal/repository"
)

// Cached response groups invalidated after unit mutations.
const (
	CacheEntityUnits = "units"
	CacheEntityStats = "stats"
)

// UnitStore is the persistence the service needs; *repository.UnitRepo
// implements it.
type UnitStore interface {
	ListUnits(ctx context.Context, f model.UnitFilters) ([]model.Unit, error)
	GetByID(ctx context.Context, id string) (model.Unit, error)
	Create(ctx context.Context, u *model.Unit) error
	Update(ctx context.Context, id string, p repository.UnitPatch, expected *time.Time) (model.Unit, error)
}

// SoldFeed supplies feed snapshots; *feed.Cache implements it.
type SoldFeed interface {
	SoldUnits(ctx context.Context) (feed.Snapshot, error)
	Refresh(ctx context.Context) (feed.Snapshot, bool, error)
}

// CacheInvalidator drops cached responses for the named entities.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, entities ...string) error
}

// EventPublisher delivers unit change events.
type EventPublisher interface {
	PublishUnitChanged(ctx context.Context, ev queue.UnitChangedEvent) error
}

// Recorder receives mutation outcomes and hold counts, typically for
// metrics.
type Recorder interface {
	MutationApplied(action, outcome string)
	ExpiredHolds(n int)
}

// InventoryService serves merged unit listings and stats and applies
// mutations.
type InventoryService struct {
	store    UnitStore
	feed     SoldFeed
	log      *zap.Logger
	validate *validator.Validate

	now          func() time.Time
	holdDuration time.Duration
	feedWait     time.Duration
	cache        CacheInvalidator
	events       EventPublisher
	recorder     Recorder

	pending sync.WaitGroup
}

// Option customises an InventoryService.
type Option func(*InventoryService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *InventoryService) { s.now = now } }

// WithHoldDuration sets the temporary hold lifetime.
func WithHoldDuration(d time.Duration) Option {
	return func(s *InventoryService) { s.holdDuration = d }
}

// WithFeedWait bounds how long a request waits for the sales feed before
// falling back to the last snapshot.  Zero waits as long as the request
// context allows.
func WithFeedWait(d time.Duration) Option { return func(s *InventoryService) { s.feedWait = d } }

// WithCache enables response cache invalidation after mutations.
func WithCache(c CacheInvalidator) Option { return func(s *InventoryService) { s.cache = c } }

// WithEvents enables change event publishing.
func WithEvents(p EventPublisher) Option { return func(s *InventoryService) { s.events = p } }

// WithRecorder enables mutation and hold metrics.
func WithRecorder(r Recorder) Option { return func(s *InventoryService) { s.recorder = r } }

// NewInventoryService wires the service.  store and sold must be non-nil.
func NewInventoryService(store UnitStore, sold SoldFeed, log *zap.Logger, opts ...Option) *InventoryService {
	if store == nil || sold == nil {
		panic("nil dependency passed to NewInventoryService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &InventoryService{
		store:        store,
		feed:         sold,
		log:          log,
		validate:     newValidator(),
		now:          time.Now,
		holdDuration: inventory.DefaultHoldDuration,
		feedWait:     DefaultFeedWait,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DefaultFeedWait is how long requests wait for the sales feed unless
// WithFeedWait says otherwise.
const DefaultFeedWait = 2 * time.Second

// soldUnits reads the feed within the feed wait budget.  A slow feed
// yields the last snapshot and an error; it never holds up store results.
func (s *InventoryService) soldUnits(ctx context.Context) (feed.Snapshot, error) {
	if s.feedWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.feedWait)
		defer cancel()
	}
	return s.feed.SoldUnits(ctx)
}

// Drain waits for in-flight event publishes.
func (s *InventoryService) Drain() { s.pending.Wait() }

// FeedStatus tells clients how fresh the sold overlay is.  Available is
// false when the latest fetch failed; Stale is true when an older good
// snapshot was used instead.
type FeedStatus struct {
	Available bool       `json:"available"`
	Stale     bool       `json:"stale"`
	SoldUnits int        `json:"sold_units"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func feedStatus(snap feed.Snapshot, err error) FeedStatus {
	st := FeedStatus{Available: err == nil, Stale: snap.Stale, SoldUnits: len(snap.Units)}
	if !snap.FetchedAt.IsZero() {
		t := snap.FetchedAt.UTC()
		st.FetchedAt = &t
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}

// UnitView is a merged unit annotated with its hold state.
type UnitView struct {
	model.Unit
	FeedSold      bool                 `json:"feed_sold"`
	HoldActive    bool                 `json:"hold_active"`
	HoldExpired   bool                 `json:"hold_expired"`
	TimeRemaining *model.TimeRemaining `json:"time_remaining"`
}

func newView(merged model.Unit, sold map[string]model.SoldUnitInfo, now time.Time) UnitView {
	return UnitView{
		Unit:          merged,
		FeedSold:      inventory.IsFeedSold(merged, sold),
		HoldActive:    inventory.HasActiveTemporaryHold(merged, now),
		HoldExpired:   inventory.IsExpired(merged, now),
		TimeRemaining: inventory.TimeRemaining(merged.ReservationExpiresAt, now),
	}
}

// UnitList is the response of ListUnits.
type UnitList struct {
	Items []UnitView `json:"items"`
	Count int        `json:"count"`
	Feed  FeedStatus `json:"feed"`
}

// StatsReport holds project and per-block counts.
type StatsReport struct {
	Project     model.Stats        `json:"project"`
	Blocks      []model.BlockStats `json:"blocks"`
	Feed        FeedStatus         `json:"feed"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// load reads the store and the feed concurrently and merges them.  A feed
// failure degrades to the last good (or empty) snapshot; a store failure
// fails the call.
func (s *InventoryService) load(ctx context.Context, block int) ([]model.Unit, feed.Snapshot, FeedStatus, error) {
	var (
		wg       sync.WaitGroup
		units    []model.Unit
		storeErr error
		snap     feed.Snapshot
		feedErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		units, storeErr = s.store.ListUnits(ctx, model.UnitFilters{Block: block})
	}()
	go func() {
		defer wg.Done()
		snap, feedErr = s.soldUnits(ctx)
	}()
	wg.Wait()

	if storeErr != nil {
		s.log.Error("load units failed", zap.Error(storeErr))
		return nil, feed.Snapshot{}, FeedStatus{}, fmt.Errorf("load units: %w", storeErr)
	}
	if feedErr != nil {
		s.log.Warn("sales feed degraded", zap.Error(feedErr), zap.Bool("stale", snap.Stale))
	}
	return inventory.Merge(units, snap.Units), snap, feedStatus(snap, feedErr), nil
}

// ListUnits returns merged units matching f.  Status and search filters
// run after the merge so a unit sold only in the feed is listed as sold.
func (s *InventoryService) ListUnits(ctx context.Context, f model.UnitFilters) (UnitList, error) {
	if err := s.validateStruct(f); err != nil {
		return UnitList{}, err
	}
	merged, snap, fs, err := s.load(ctx, f.Block)
	if err != nil {
		return UnitList{}, err
	}
	now := s.now()
	filtered := inventory.Filter(merged, f)
	items := make([]UnitView, 0, len(filtered))
	for _, u := range filtered {
		items = append(items, newView(u, snap.Units, now))
	}
	return UnitList{Items: items, Count: len(items), Feed: fs}, nil
}

// GetUnit returns one merged unit.
func (s *InventoryService) GetUnit(ctx context.Context, id string) (UnitView, FeedStatus, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return UnitView{}, FeedStatus{}, err
	}
	snap, feedErr := s.soldUnits(ctx)
	if feedErr != nil {
		s.log.Warn("sales feed degraded", zap.Error(feedErr))
	}
	return newView(inventory.MergeOne(u, snap.Units), snap.Units, s.now()), feedStatus(snap, feedErr), nil
}

// Stats counts the whole project (residential units only) and every
// non-empty block.  Counts never depend on listing filters.
func (s *InventoryService) Stats(ctx context.Context) (StatsReport, error) {
	merged, _, fs, err := s.load(ctx, 0)
	if err != nil {
		return StatsReport{}, err
	}
	now := s.now()
	return StatsReport{
		Project:     inventory.ComputeStats(merged, now),
		Blocks:      inventory.ComputeAllBlockStats(merged, now),
		Feed:        fs,
		GeneratedAt: now.UTC(),
	}, nil
}

// BlockStats counts every unit of one block.
func (s *InventoryService) BlockStats(ctx context.Context, block int) (model.BlockStats, FeedStatus, error) {
	if block < model.MinBlock || block > model.MaxBlock {
		return model.BlockStats{}, FeedStatus{}, invalidField("block", "validation_range",
			fmt.Sprintf("must be between %d and %d", model.MinBlock, model.MaxBlock))
	}
	merged, _, fs, err := s.load(ctx, block)
	if err != nil {
		return model.BlockStats{}, FeedStatus{}, err
	}
	return inventory.ComputeBlockStats(merged, block, s.now()), fs, nil
}
