package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// UnitStatus is the lifecycle state of a sellable unit.  A unit moves
// from available to reserved to sold; the external sales feed may force
// any unit straight to sold.
type UnitStatus string

const (
    StatusAvailable UnitStatus = "available"
    StatusReserved  UnitStatus = "reserved"
    StatusSold      UnitStatus = "sold"
)

// Valid reports whether s is one of the three known statuses.
func (s UnitStatus) Valid() bool {
    switch s {
    case StatusAvailable, StatusReserved, StatusSold:
        return true
    }
    return false
}

// Block numbers run from MinBlock to MaxBlock inclusive.
const (
    MinBlock = 1
    MaxBlock = 21
)

// Unit mirrors a row of the `units` table.  Seq is the auto-increment
// insertion counter used only to break ordering ties; ID is the public
// identifier.  ReservationExpiresAt is set only for temporary holds and
// must be nil whenever Status is not reserved.
type Unit struct {
    Seq                  int64      `json:"-"`
    ID                   string     `json:"id"`
    UnitNumber           int        `json:"unit_number"`
    BlockNumber          int        `json:"block_number"`
    AreaM2               float64    `json:"area_m2"`
    Price                float64    `json:"price"`
    Status               UnitStatus `json:"status"`
    BuyerName            string     `json:"buyer_name,omitempty"`
    BuyerPhone           string     `json:"buyer_phone,omitempty"`
    SalesEmployee        string     `json:"sales_employee,omitempty"`
    AccountantName       string     `json:"accountant_name,omitempty"`
    Notes                string     `json:"notes,omitempty"`
    ReservationExpiresAt *time.Time `json:"reservation_expires_at"`
    IsResidential        bool       `json:"is_residential"`
    CreatedAt            time.Time  `json:"created_at"`
    UpdatedAt            time.Time  `json:"updated_at"`
}

// SoldUnitInfo is one row of the external sales feed, keyed by unit
// number.  The feed is rebuilt on every fetch and never persisted.
type SoldUnitInfo struct {
    UnitNumber     string          `json:"unitNumber"`
    BuyerName      string          `json:"buyerName,omitempty"`
    SalesPerson    string          `json:"salesPerson,omitempty"`
    SaleDate       string          `json:"saleDate,omitempty"`
    AccountantName string          `json:"accountantName,omitempty"`
    Area           decimal.Decimal `json:"area"`
    SalePrice      decimal.Decimal `json:"salePrice"`
    Category       string          `json:"category,omitempty"`
}

// UnitFilters narrows a unit listing.  An empty Status or "all" means any
// status; Block 0 means every block.
type UnitFilters struct {
    Search string `json:"search" validate:"max=100"`
    Status string `json:"status" validate:"omitempty,oneof=all available reserved sold"`
    Block  int    `json:"block" validate:"min=0,max=21"`
}

// Stats holds status counts.  Available+Reserved+Sold always equals
// Total; ExpiredHolds is the subset of Reserved whose temporary hold has
// lapsed.
type Stats struct {
    Total        int `json:"total"`
    Available    int `json:"available"`
    Reserved     int `json:"reserved"`
    Sold         int `json:"sold"`
    ExpiredHolds int `json:"expired_holds"`
}

// BlockStats is Stats scoped to a single block.
type BlockStats struct {
    Block int `json:"block"`
    Stats
}

// TimeRemaining is the whole hours and minutes left on a temporary hold.
type TimeRemaining struct {
    Hours   int64 `json:"hours"`
    Minutes int64 `json:"minutes"`
}
