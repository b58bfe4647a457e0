package inventory

import (
	"strconv"
	"strings"

	"github.com/iliyamo/unit-inventory/internal/model"
)

// MatchesSearch reports whether q occurs, case-insensitively, in the
// unit number, the block number or the buyer name.  An empty query
// matches everything.  Matching is by substring, so "12" matches units
// 12 and 120.
func MatchesSearch(u model.Unit, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	if strings.Contains(strconv.Itoa(u.UnitNumber), q) {
		return true
	}
	if strings.Contains(strconv.Itoa(u.BlockNumber), q) {
		return true
	}
	return strings.Contains(strings.ToLower(u.BuyerName), q)
}

// MatchesStatus reports whether u has the requested status; "" and "all"
// match any status.
func MatchesStatus(u model.Unit, status string) bool {
	if status == "" || status == "all" {
		return true
	}
	return string(u.Status) == status
}

// Filter applies all of f to units, preserving order.
func Filter(units []model.Unit, f model.UnitFilters) []model.Unit {
	out := make([]model.Unit, 0, len(units))
	for _, u := range units {
		if f.Block != 0 && u.BlockNumber != f.Block {
			continue
		}
		if !MatchesStatus(u, f.Status) || !MatchesSearch(u, f.Search) {
			continue
		}
		out = append(out, u)
	}
	return out
}
