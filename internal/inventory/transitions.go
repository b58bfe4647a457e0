package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/unit-inventory/internal/model"
)

// Action names a guided status change requested by sales staff.
type Action string

const (
	ActionReserveTemporary Action = "reserve_temporary"
	ActionReservePermanent Action = "reserve_permanent"
	ActionSell             Action = "sell"
	ActionCancelHold       Action = "cancel_hold"
)

// DefaultHoldDuration is how long a temporary hold lasts.
const DefaultHoldDuration = 48 * time.Hour

// ErrInvalidTransition is returned when an action is not permitted from
// the unit's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrUnknownAction is returned for action names outside the guided set.
var ErrUnknownAction = errors.New("unknown action")

// ParseAction maps a request path segment to an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionReserveTemporary, ActionReservePermanent, ActionSell, ActionCancelHold:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Transition is the outcome of a legal action: the new status and the new
// hold expiry (nil unless the action starts a temporary hold).
type Transition struct {
	From      model.UnitStatus
	To        model.UnitStatus
	ExpiresAt *time.Time
}

// Apply validates action against the current status and returns the
// resulting transition.
//
//	available --reserve_temporary--> reserved (expires now+hold)
//	available --reserve_permanent--> reserved (no expiry)
//	available --sell--------------> sold
//	reserved  --cancel_hold-------> available
//	reserved  --sell--------------> sold
//
// Everything else, selling a sold unit included, is ErrInvalidTransition.
func Apply(from model.UnitStatus, action Action, now time.Time, hold time.Duration) (Transition, error) {
	if hold <= 0 {
		hold = DefaultHoldDuration
	}
	t := Transition{From: from}
	switch {
	case from == model.StatusAvailable && action == ActionReserveTemporary:
		exp := now.Add(hold)
		t.To, t.ExpiresAt = model.StatusReserved, &exp
	case from == model.StatusAvailable && action == ActionReservePermanent:
		t.To = model.StatusReserved
	case from == model.StatusAvailable && action == ActionSell:
		t.To = model.StatusSold
	case from == model.StatusReserved && action == ActionCancelHold:
		t.To = model.StatusAvailable
	case from == model.StatusReserved && action == ActionSell:
		t.To = model.StatusSold
	default:
		return Transition{}, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, from)
	}
	return t, nil
}

// NormalizeExpiry enforces that only reserved units carry an expiry.
func NormalizeExpiry(status model.UnitStatus, expiresAt *time.Time) *time.Time {
	if status != model.StatusReserved {
		return nil
	}
	return expiresAt
}
