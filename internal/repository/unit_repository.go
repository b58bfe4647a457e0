package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/unit-inventory/internal/inventory"
	"github.com/iliyamo/unit-inventory/internal/model"
)

// dbTimeLayout is how timestamps are written.  Millisecond precision
// matches DATETIME(3) so a value read back compares equal to the one
// written, which the optimistic update relies on.
const dbTimeLayout = "2006-01-02 15:04:05.000"

const unitColumns = "seq,id,unit_number,block_number,area_m2,price,status,buyer_name,buyer_phone," +
	"sales_employee,accountant_name,notes,reservation_expires_at,is_residential,created_at,updated_at"

// UnitRepo provides access to the units table.
type UnitRepo struct {
	db *sql.DB
	// Now stamps created_at/updated_at.  Defaults to time.Now.
	Now func() time.Time
}

// NewUnitRepo returns a new UnitRepo backed by db.
func NewUnitRepo(db *sql.DB) *UnitRepo { return &UnitRepo{db: db, Now: time.Now} }

// DB exposes the underlying handle.
func (r *UnitRepo) DB() *sql.DB { return r.db }

// UnitPatch lists the mutable columns of a unit.  Nil fields are left
// unchanged.  When SetExpiry is true ReservationExpiresAt is written
// verbatim, nil clearing the column.
type UnitPatch struct {
	Price                *float64
	Status               *model.UnitStatus
	BuyerName            *string
	BuyerPhone           *string
	SalesEmployee        *string
	AccountantName       *string
	Notes                *string
	SetExpiry            bool
	ReservationExpiresAt *time.Time
}

// Empty reports whether the patch would change nothing but updated_at.
func (p UnitPatch) Empty() bool {
	return p.Price == nil && p.Status == nil && p.BuyerName == nil && p.BuyerPhone == nil &&
		p.SalesEmployee == nil && p.AccountantName == nil && p.Notes == nil && !p.SetExpiry
}

func (r *UnitRepo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC().Truncate(time.Millisecond)
	}
	return r.Now().UTC().Truncate(time.Millisecond)
}

// ListUnits returns units matching f ordered by unit number, ties broken
// by insertion order.  Status and block are matched in SQL; the free-text
// search runs over the loaded rows.
func (r *UnitRepo) ListUnits(ctx context.Context, f model.UnitFilters) ([]model.Unit, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.Status != "" && f.Status != "all" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Block != 0 {
		where = append(where, "block_number = ?")
		args = append(args, f.Block)
	}
	q := "SELECT " + unitColumns + " FROM units WHERE " + strings.Join(where, " AND ") +
		" ORDER BY unit_number ASC, seq ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	units := []model.Unit{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		if !inventory.MatchesSearch(u, f.Search) {
			continue
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// GetByID fetches a single unit.
func (r *UnitRepo) GetByID(ctx context.Context, id string) (model.Unit, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+unitColumns+" FROM units WHERE id = ? LIMIT 1", id)
	u, err := scanUnit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Unit{}, ErrUnitNotFound
		}
		return model.Unit{}, err
	}
	return u, nil
}

// Create inserts u, assigning its ID and timestamps.  A duplicate
// (block_number, unit_number) yields ErrDuplicateUnit.
func (r *UnitRepo) Create(ctx context.Context, u *model.Unit) error {
	now := r.now()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = model.StatusAvailable
	}
	u.ReservationExpiresAt = inventory.NormalizeExpiry(u.Status, u.ReservationExpiresAt)
	u.CreatedAt, u.UpdatedAt = now, now

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO units (id, unit_number, block_number, area_m2, price, status, buyer_name, buyer_phone,
            sales_employee, accountant_name, notes, reservation_expires_at, is_residential, created_at, updated_at)
         VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.UnitNumber, u.BlockNumber, u.AreaM2, u.Price, string(u.Status), u.BuyerName, u.BuyerPhone,
		u.SalesEmployee, u.AccountantName, u.Notes, nullableTime(u.ReservationExpiresAt), u.IsResidential,
		now.Format(dbTimeLayout), now.Format(dbTimeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUnit
		}
		return fmt.Errorf("insert unit: %w", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		u.Seq = seq
	}
	return nil
}

// Update applies p to one unit and stamps updated_at.  When expected is
// non-nil the write only happens if the stored updated_at still equals
// it; otherwise ErrConflict is returned.  The updated row is returned.
func (r *UnitRepo) Update(ctx context.Context, id string, p UnitPatch, expected *time.Time) (model.Unit, error) {
	sets := []string{}
	args := []any{}
	if p.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *p.Price)
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.BuyerName != nil {
		sets = append(sets, "buyer_name = ?")
		args = append(args, *p.BuyerName)
	}
	if p.BuyerPhone != nil {
		sets = append(sets, "buyer_phone = ?")
		args = append(args, *p.BuyerPhone)
	}
	if p.SalesEmployee != nil {
		sets = append(sets, "sales_employee = ?")
		args = append(args, *p.SalesEmployee)
	}
	if p.AccountantName != nil {
		sets = append(sets, "accountant_name = ?")
		args = append(args, *p.AccountantName)
	}
	if p.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *p.Notes)
	}
	if p.SetExpiry {
		sets = append(sets, "reservation_expires_at = ?")
		args = append(args, nullableTime(p.ReservationExpiresAt))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now().Format(dbTimeLayout))

	q := "UPDATE units SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	if expected != nil {
		q += " AND updated_at = ?"
		args = append(args, expected.UTC().Truncate(time.Millisecond).Format(dbTimeLayout))
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return model.Unit{}, fmt.Errorf("update unit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Unit{}, err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return model.Unit{}, err
		}
		return model.Unit{}, ErrConflict
	}
	return r.GetByID(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(s rowScanner) (model.Unit, error) {
	var (
		u                model.Unit
		status           string
		expires          dbTime
		created, updated dbTime
	)
	err := s.Scan(&u.Seq, &u.ID, &u.UnitNumber, &u.BlockNumber, &u.AreaM2, &u.Price, &status,
		&u.BuyerName, &u.BuyerPhone, &u.SalesEmployee, &u.AccountantName, &u.Notes,
		&expires, &u.IsResidential, &created, &updated)
	if err != nil {
		return model.Unit{}, err
	}
	u.Status = model.UnitStatus(status)
	if expires.Valid {
		t := expires.Time
		u.ReservationExpiresAt = &t
	}
	u.CreatedAt = created.Time
	u.UpdatedAt = updated.Time
	return u, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Truncate(time.Millisecond).Format(dbTimeLayout)
}
