package inventory

import (
	"sort"
	"time"

	"github.com/iliyamo/unit-inventory/internal/model"
)

// ComputeStats counts residential units by status.  Non-residential units
// are excluded from every counter, Total included.  Pass the merged,
// unfiltered unit set so counts do not depend on the caller's filters.
func ComputeStats(units []model.Unit, now time.Time) model.Stats {
	var st model.Stats
	for _, u := range units {
		if !u.IsResidential {
			continue
		}
		count(&st, u, now)
	}
	return st
}

// ComputeBlockStats counts every unit of one block by status.  Unlike
// ComputeStats it does not skip non-residential units.  A block with no
// units yields zero counts.
func ComputeBlockStats(units []model.Unit, block int, now time.Time) model.BlockStats {
	bs := model.BlockStats{Block: block}
	for _, u := range units {
		if u.BlockNumber != block {
			continue
		}
		count(&bs.Stats, u, now)
	}
	return bs
}

// ComputeAllBlockStats returns block stats for every block that has at
// least one unit, ordered by block number.
func ComputeAllBlockStats(units []model.Unit, now time.Time) []model.BlockStats {
	byBlock := map[int]*model.BlockStats{}
	for _, u := range units {
		bs, ok := byBlock[u.BlockNumber]
		if !ok {
			bs = &model.BlockStats{Block: u.BlockNumber}
			byBlock[u.BlockNumber] = bs
		}
		count(&bs.Stats, u, now)
	}
	out := make([]model.BlockStats, 0, len(byBlock))
	for _, bs := range byBlock {
		out = append(out, *bs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Block < out[j].Block })
	return out
}

func count(st *model.Stats, u model.Unit, now time.Time) {
	switch u.Status {
	case model.StatusAvailable:
		st.Available++
	case model.StatusReserved:
		st.Reserved++
		if IsExpired(u, now) {
			st.ExpiredHolds++
		}
	case model.StatusSold:
		st.Sold++
	default:
		// unknown statuses would break Available+Reserved+Sold == Total
		return
	}
	st.Total++
}
