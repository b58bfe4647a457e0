package inventory

import (
	"time"

	"github.com/iliyamo/unit-inventory/internal/model"
)

// IsExpired reports whether u is reserved under a temporary hold whose
// expiry lies strictly before now.  Permanent holds and units in any
// other status never expire.
func IsExpired(u model.Unit, now time.Time) bool {
	if u.Status != model.StatusReserved || u.ReservationExpiresAt == nil {
		return false
	}
	return u.ReservationExpiresAt.Before(now)
}

// HasActiveTemporaryHold reports whether u is reserved under a temporary
// hold that has not yet lapsed.
func HasActiveTemporaryHold(u model.Unit, now time.Time) bool {
	if u.Status != model.StatusReserved || u.ReservationExpiresAt == nil {
		return false
	}
	return !u.ReservationExpiresAt.Before(now)
}

// TimeRemaining returns the whole hours and minutes until expiresAt, or
// nil when expiresAt is nil or not after now.  Both parts are floored.
func TimeRemaining(expiresAt *time.Time, now time.Time) *model.TimeRemaining {
	if expiresAt == nil {
		return nil
	}
	ms := expiresAt.Sub(now).Milliseconds()
	if ms <= 0 {
		return nil
	}
	const hourMs = int64(time.Hour / time.Millisecond)
	const minuteMs = int64(time.Minute / time.Millisecond)
	return &model.TimeRemaining{
		Hours:   ms / hourMs,
		Minutes: (ms % hourMs) / minuteMs,
	}
}
