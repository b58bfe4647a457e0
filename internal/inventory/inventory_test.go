package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/unit-inventory/internal/model"
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func ptrTime(t time.Time) *time.Time { return &t }

func unit(number, block int, status model.UnitStatus) model.Unit {
	return model.Unit{
		ID:            "u-" + FeedKey(number) + "-" + FeedKey(block),
		UnitNumber:    number,
		BlockNumber:   block,
		AreaM2:        120,
		Status:        status,
		IsResidential: true,
	}
}

func TestMerge_FeedForcesSoldAndBackfills(t *testing.T) {
	reserved := unit(7, 2, model.StatusReserved)
	reserved.BuyerName = "Ali"
	reserved.SalesEmployee = "Omar"
	reserved.ReservationExpiresAt = ptrTime(baseTime.Add(time.Hour))

	feed := map[string]model.SoldUnitInfo{
		"7": {UnitNumber: "7", BuyerName: "Sara", SalesPerson: ""},
	}
	merged := Merge([]model.Unit{reserved, unit(8, 2, model.StatusAvailable)}, feed)

	require.Len(t, merged, 2)
	assert.Equal(t, model.StatusSold, merged[0].Status)
	assert.Equal(t, "Sara", merged[0].BuyerName)
	assert.Equal(t, "Omar", merged[0].SalesEmployee, "empty feed field keeps local value")
	assert.Nil(t, merged[0].ReservationExpiresAt)
	assert.Equal(t, model.StatusAvailable, merged[1].Status)

	// input untouched
	assert.Equal(t, model.StatusReserved, reserved.Status)
}

func TestMerge_Idempotent(t *testing.T) {
	units := []model.Unit{
		unit(1, 1, model.StatusAvailable),
		unit(2, 1, model.StatusReserved),
		unit(3, 1, model.StatusSold),
	}
	feed := map[string]model.SoldUnitInfo{
		"2": {UnitNumber: "2", BuyerName: "Mona", AccountantName: "Hadi"},
	}
	once := Merge(units, feed)
	twice := Merge(once, feed)
	assert.Equal(t, once, twice)
}

func TestMerge_EveryFeedUnitIsSold(t *testing.T) {
	units := []model.Unit{
		unit(10, 1, model.StatusAvailable),
		unit(10, 4, model.StatusReserved),
		unit(11, 1, model.StatusAvailable),
	}
	feed := map[string]model.SoldUnitInfo{"10": {UnitNumber: "10"}}
	for _, u := range Merge(units, feed) {
		if IsFeedSold(u, feed) {
			assert.Equal(t, model.StatusSold, u.Status)
		}
	}
}

func TestExpiry(t *testing.T) {
	u := unit(12, 3, model.StatusReserved)
	u.ReservationExpiresAt = ptrTime(baseTime)

	assert.True(t, IsExpired(u, baseTime.Add(time.Second)))
	assert.False(t, IsExpired(u, baseTime.Add(-time.Second)))
	assert.True(t, HasActiveTemporaryHold(u, baseTime.Add(-time.Second)))
	assert.False(t, HasActiveTemporaryHold(u, baseTime.Add(time.Second)))

	permanent := unit(13, 3, model.StatusReserved)
	assert.False(t, IsExpired(permanent, baseTime.Add(1000*time.Hour)))
	assert.False(t, HasActiveTemporaryHold(permanent, baseTime))

	for _, st := range []model.UnitStatus{model.StatusAvailable, model.StatusSold} {
		other := unit(14, 3, st)
		other.ReservationExpiresAt = ptrTime(baseTime)
		assert.False(t, IsExpired(other, baseTime.Add(time.Hour)), st)
	}
}

func TestTimeRemaining(t *testing.T) {
	exp := baseTime.Add(47*time.Hour + 59*time.Minute + 59*time.Second)
	tr := TimeRemaining(&exp, baseTime)
	require.NotNil(t, tr)
	assert.Equal(t, int64(47), tr.Hours)
	assert.Equal(t, int64(59), tr.Minutes)

	assert.Nil(t, TimeRemaining(&baseTime, baseTime))
	assert.Nil(t, TimeRemaining(nil, baseTime))
	past := baseTime.Add(-time.Minute)
	assert.Nil(t, TimeRemaining(&past, baseTime))
}

func TestComputeStats_ResidentialOnlyAndConserved(t *testing.T) {
	shop := unit(100, 1, model.StatusSold)
	shop.IsResidential = false
	expired := unit(5, 1, model.StatusReserved)
	expired.ReservationExpiresAt = ptrTime(baseTime.Add(-time.Minute))

	units := []model.Unit{
		unit(1, 1, model.StatusAvailable),
		unit(2, 1, model.StatusAvailable),
		unit(3, 2, model.StatusSold),
		expired,
		shop,
	}
	st := ComputeStats(units, baseTime)
	assert.Equal(t, model.Stats{Total: 4, Available: 2, Reserved: 1, Sold: 1, ExpiredHolds: 1}, st)
	assert.Equal(t, st.Total, st.Available+st.Reserved+st.Sold)

	block := ComputeBlockStats(units, 1, baseTime)
	assert.Equal(t, 4, block.Total, "block stats include non-residential units")
	assert.Equal(t, 1, block.Sold)
	assert.Equal(t, block.Total, block.Available+block.Reserved+block.Sold)

	empty := ComputeBlockStats(units, 9, baseTime)
	assert.Equal(t, model.BlockStats{Block: 9}, empty)

	all := ComputeAllBlockStats(units, baseTime)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Block)
	assert.Equal(t, 2, all[1].Block)
}

func TestFilter_SearchIsSubstring(t *testing.T) {
	buyer := unit(5, 3, model.StatusReserved)
	buyer.BuyerName = "Khaled Nasser"
	units := []model.Unit{
		unit(12, 1, model.StatusAvailable),
		unit(120, 1, model.StatusSold),
		unit(7, 1, model.StatusAvailable),
		buyer,
	}

	got := Filter(units, model.UnitFilters{Search: "12"})
	require.Len(t, got, 2)
	assert.Equal(t, 12, got[0].UnitNumber)
	assert.Equal(t, 120, got[1].UnitNumber)

	got = Filter(units, model.UnitFilters{Search: "NASSER"})
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].UnitNumber)

	got = Filter(units, model.UnitFilters{Search: "3"})
	require.Len(t, got, 1, "block number is searchable")

	got = Filter(units, model.UnitFilters{Status: "sold", Block: 1})
	require.Len(t, got, 1)
	assert.Equal(t, 120, got[0].UnitNumber)

	assert.Len(t, Filter(units, model.UnitFilters{Status: "all"}), 4)
}

func TestApply_Table(t *testing.T) {
	cases := []struct {
		from   model.UnitStatus
		action Action
		to     model.UnitStatus
		hold   bool
	}{
		{model.StatusAvailable, ActionReserveTemporary, model.StatusReserved, true},
		{model.StatusAvailable, ActionReservePermanent, model.StatusReserved, false},
		{model.StatusAvailable, ActionSell, model.StatusSold, false},
		{model.StatusReserved, ActionCancelHold, model.StatusAvailable, false},
		{model.StatusReserved, ActionSell, model.StatusSold, false},
	}
	for _, tc := range cases {
		tr, err := Apply(tc.from, tc.action, baseTime, 0)
		require.NoError(t, err, "%s from %s", tc.action, tc.from)
		assert.Equal(t, tc.to, tr.To)
		if tc.hold {
			require.NotNil(t, tr.ExpiresAt)
			assert.Equal(t, baseTime.Add(48*time.Hour), *tr.ExpiresAt)
		} else {
			assert.Nil(t, tr.ExpiresAt)
		}
	}
}

func TestApply_Rejected(t *testing.T) {
	rejected := []struct {
		from   model.UnitStatus
		action Action
	}{
		{model.StatusSold, ActionSell},
		{model.StatusSold, ActionCancelHold},
		{model.StatusSold, ActionReserveTemporary},
		{model.StatusReserved, ActionReserveTemporary},
		{model.StatusReserved, ActionReservePermanent},
		{model.StatusAvailable, ActionCancelHold},
	}
	for _, tc := range rejected {
		_, err := Apply(tc.from, tc.action, baseTime, time.Hour)
		assert.True(t, errors.Is(err, ErrInvalidTransition), "%s from %s", tc.action, tc.from)
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("reserve_temporary")
	require.NoError(t, err)
	assert.Equal(t, ActionReserveTemporary, a)

	_, err = ParseAction("revert")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestNormalizeExpiry(t *testing.T) {
	exp := ptrTime(baseTime)
	assert.Nil(t, NormalizeExpiry(model.StatusSold, exp))
	assert.Nil(t, NormalizeExpiry(model.StatusAvailable, exp))
	assert.Equal(t, exp, NormalizeExpiry(model.StatusReserved, exp))
}
