package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/unit-inventory/internal/inventory"
	"github.com/iliyamo/unit-inventory/internal/model"
)

// RefreshFeed refetches the sales feed and drops cached listings and
// stats when the sold set changed.
func (s *InventoryService) RefreshFeed(ctx context.Context) error {
	snap, changed, err := s.feed.Refresh(ctx)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	s.log.Info("sales feed changed", zap.Int("sold_units", len(snap.Units)))
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, CacheEntityUnits, CacheEntityStats); err != nil {
			s.log.Warn("cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}

// ReportLapsedHolds logs every reserved unit whose temporary hold has
// expired and returns how many there are.  Units are not released; an
// expired hold stays reserved until staff cancel or sell it.
func (s *InventoryService) ReportLapsedHolds(ctx context.Context) (int, error) {
	units, err := s.store.ListUnits(ctx, model.UnitFilters{Status: string(model.StatusReserved)})
	if err != nil {
		return 0, err
	}
	snap, _ := s.soldUnits(ctx)
	now := s.now()
	lapsed := 0
	for _, u := range inventory.Merge(units, snap.Units) {
		if !inventory.IsExpired(u, now) {
			continue
		}
		lapsed++
		s.log.Info("temporary hold lapsed",
			zap.String("unit_id", u.ID),
			zap.Int("unit_number", u.UnitNumber),
			zap.Int("block_number", u.BlockNumber),
			zap.String("buyer_name", u.BuyerName),
			zap.Duration("overdue", now.Sub(*u.ReservationExpiresAt).Truncate(time.Minute)))
	}
	if s.recorder != nil {
		s.recorder.ExpiredHolds(lapsed)
	}
	return lapsed, nil
}
