package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/unit-inventory/internal/database"
	"github.com/iliyamo/unit-inventory/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Options{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "inventory.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func newUnitRepo(t *testing.T) (*UnitRepo, *fixedClock) {
	clock := &fixedClock{t: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}
	r := NewUnitRepo(openTestDB(t))
	r.Now = clock.now
	return r, clock
}

func seed(t *testing.T, r *UnitRepo, number, block int) model.Unit {
	t.Helper()
	u := model.Unit{UnitNumber: number, BlockNumber: block, AreaM2: 95.5, Price: 250000, IsResidential: true}
	require.NoError(t, r.Create(context.Background(), &u))
	return u
}

func TestUnitRepo_CreateAndGet(t *testing.T) {
	r, clock := newUnitRepo(t)
	ctx := context.Background()

	u := seed(t, r, 12, 3)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, model.StatusAvailable, u.Status)

	got, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.UnitNumber)
	assert.Equal(t, 3, got.BlockNumber)
	assert.InDelta(t, 95.5, got.AreaM2, 0.001)
	assert.True(t, got.IsResidential)
	assert.Nil(t, got.ReservationExpiresAt)
	assert.True(t, got.UpdatedAt.Equal(clock.t))

	_, err = r.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnitNotFound)

	dup := model.Unit{UnitNumber: 12, BlockNumber: 3, AreaM2: 80}
	assert.ErrorIs(t, r.Create(ctx, &dup), ErrDuplicateUnit)

	other := model.Unit{UnitNumber: 12, BlockNumber: 4, AreaM2: 80}
	assert.NoError(t, r.Create(ctx, &other), "same unit number in another block is allowed")
}

func TestUnitRepo_ListOrderingAndFilters(t *testing.T) {
	r, _ := newUnitRepo(t)
	ctx := context.Background()

	seed(t, r, 120, 1)
	first12 := seed(t, r, 12, 2)
	second12 := seed(t, r, 12, 1)
	seed(t, r, 7, 1)

	all, err := r.ListUnits(ctx, model.UnitFilters{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, 7, all[0].UnitNumber)
	assert.Equal(t, first12.ID, all[1].ID, "ties keep insertion order")
	assert.Equal(t, second12.ID, all[2].ID)
	assert.Equal(t, 120, all[3].UnitNumber)

	found, err := r.ListUnits(ctx, model.UnitFilters{Search: "12"})
	require.NoError(t, err)
	assert.Len(t, found, 3)

	block1, err := r.ListUnits(ctx, model.UnitFilters{Block: 1, Status: "available"})
	require.NoError(t, err)
	assert.Len(t, block1, 3)

	sold, err := r.ListUnits(ctx, model.UnitFilters{Status: "sold"})
	require.NoError(t, err)
	assert.Empty(t, sold)
}

func TestUnitRepo_UpdateStampsAndClearsExpiry(t *testing.T) {
	r, clock := newUnitRepo(t)
	ctx := context.Background()
	u := seed(t, r, 5, 2)

	reserved := model.StatusReserved
	buyer := "Ali"
	exp := clock.t.Add(48 * time.Hour)
	clock.t = clock.t.Add(time.Minute)

	got, err := r.Update(ctx, u.ID, UnitPatch{Status: &reserved, BuyerName: &buyer, SetExpiry: true, ReservationExpiresAt: &exp}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, got.Status)
	assert.Equal(t, "Ali", got.BuyerName)
	require.NotNil(t, got.ReservationExpiresAt)
	assert.True(t, got.ReservationExpiresAt.Equal(exp))
	assert.True(t, got.UpdatedAt.Equal(clock.t))

	available := model.StatusAvailable
	got, err = r.Update(ctx, u.ID, UnitPatch{Status: &available, SetExpiry: true}, nil)
	require.NoError(t, err)
	assert.Nil(t, got.ReservationExpiresAt)

	_, err = r.Update(ctx, "missing", UnitPatch{Status: &available}, nil)
	assert.ErrorIs(t, err, ErrUnitNotFound)
}

func TestUnitRepo_OptimisticUpdate(t *testing.T) {
	r, clock := newUnitRepo(t)
	ctx := context.Background()
	u := seed(t, r, 9, 9)

	price := 300000.0
	stale := u.UpdatedAt
	clock.t = clock.t.Add(time.Second)
	got, err := r.Update(ctx, u.ID, UnitPatch{Price: &price}, &stale)
	require.NoError(t, err)
	assert.InDelta(t, price, got.Price, 0.001)

	// stale token is now outdated
	clock.t = clock.t.Add(time.Second)
	_, err = r.Update(ctx, u.ID, UnitPatch{Price: &price}, &stale)
	assert.ErrorIs(t, err, ErrConflict)

	fresh := got.UpdatedAt
	_, err = r.Update(ctx, u.ID, UnitPatch{Price: &price}, &fresh)
	assert.NoError(t, err)
}

func TestStaffRepo(t *testing.T) {
	r := NewStaffRepo(openTestDB(t))
	ctx := context.Background()

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	id, err := r.Create(ctx, " Manager@Example.com ", "Layla", "s3cret-pass", model.RoleManager, 4)
	require.NoError(t, err)
	assert.NotZero(t, id)

	s, err := r.GetByEmail(ctx, "manager@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, "Layla", s.Name)
	assert.Equal(t, model.RoleManager, s.Role)
	assert.True(t, s.IsActive)
	assert.NotEqual(t, "s3cret-pass", s.PasswordHash)

	_, err = r.Create(ctx, "manager@example.com", "Other", "another-pass", model.RoleSales, 4)
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = r.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrStaffNotFound)
}
