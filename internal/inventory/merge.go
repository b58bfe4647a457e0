// Package inventory holds the pure rules of the unit inventory: how the
// external sales feed overlays stored units, when temporary holds lapse,
// which status transitions are legal and how units are counted.  Nothing
// here performs I/O; callers pass the current time explicitly.
package inventory

import (
	"strconv"
	"strings"

	"github.com/iliyamo/unit-inventory/internal/model"
)

// FeedKey returns the key under which a unit appears in the sold feed.
// The feed carries unit numbers only, so two blocks sharing a unit number
// share a key.
func FeedKey(unitNumber int) string {
	return strconv.Itoa(unitNumber)
}

// Merge overlays the sold feed on units.  A unit whose number is present
// in the feed becomes sold and picks up the feed's buyer, sales person
// and accountant wherever those feed values are non-empty.  Units absent
// from the feed are returned unchanged.  The input slice is not modified
// and applying Merge twice yields the same result as applying it once.
func Merge(units []model.Unit, sold map[string]model.SoldUnitInfo) []model.Unit {
	out := make([]model.Unit, len(units))
	for i, u := range units {
		if info, ok := sold[FeedKey(u.UnitNumber)]; ok {
			u = overlay(u, info)
		}
		out[i] = u
	}
	return out
}

// MergeOne is Merge for a single unit.
func MergeOne(u model.Unit, sold map[string]model.SoldUnitInfo) model.Unit {
	if info, ok := sold[FeedKey(u.UnitNumber)]; ok {
		return overlay(u, info)
	}
	return u
}

// IsFeedSold reports whether the feed marks u as sold.
func IsFeedSold(u model.Unit, sold map[string]model.SoldUnitInfo) bool {
	_, ok := sold[FeedKey(u.UnitNumber)]
	return ok
}

func overlay(u model.Unit, info model.SoldUnitInfo) model.Unit {
	u.Status = model.StatusSold
	u.BuyerName = firstNonEmpty(info.BuyerName, u.BuyerName)
	u.SalesEmployee = firstNonEmpty(info.SalesPerson, u.SalesEmployee)
	u.AccountantName = firstNonEmpty(info.AccountantName, u.AccountantName)
	u.ReservationExpiresAt = nil
	return u
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
