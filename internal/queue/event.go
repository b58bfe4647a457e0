// Package queue defines message payloads exchanged over the message broker.
package queue

// UnitChangedQueue is the durable queue unit change events are published to.
const UnitChangedQueue = "unit.changed"

// UnitChangedEvent is published after every successful unit mutation.  It
// carries enough of the before and after state for the audit log and
// other consumers without querying the primary database.
type UnitChangedEvent struct {
    EventID     string `json:"event_id"`
    UnitID      string `json:"unit_id"`
    UnitNumber  int    `json:"unit_number"`
    BlockNumber int    `json:"block_number"`
    Action      string `json:"action"` // reserve_temporary | reserve_permanent | sell | cancel_hold | edit | create
    FromStatus  string `json:"from_status,omitempty"`
    ToStatus    string `json:"to_status"`
    BuyerName   string `json:"buyer_name,omitempty"`
    ExpiresAt   string `json:"reservation_expires_at,omitempty"`
    Actor       string `json:"actor"`
    OccurredAt  string `json:"occurred_at"`
}
