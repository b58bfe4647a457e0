package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/unit-inventory/internal/model"
	"github.com/iliyamo/unit-inventory/internal/utils"
)

// StaffRepo provides access to the staff table.
type StaffRepo struct{ DB *sql.DB }

func NewStaffRepo(db *sql.DB) *StaffRepo { return &StaffRepo{DB: db} }

var (
	ErrEmailExists   = errors.New("email already exists")
	ErrStaffNotFound = errors.New("staff not found")
)

const staffColumns = "id,email,name,password_hash,role,is_active,created_at,updated_at"

// Create hashes password and inserts a staff account, returning its ID.
func (r *StaffRepo) Create(ctx context.Context, email, name, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC().Format(dbTimeLayout)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO staff (email, name, password_hash, role, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		email, strings.TrimSpace(name), hash, role, true, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a staff account by normalized email.
func (r *StaffRepo) GetByEmail(ctx context.Context, email string) (model.Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+staffColumns+" FROM staff WHERE email=? LIMIT 1", email))
}

// GetByID fetches a staff account by id.
func (r *StaffRepo) GetByID(ctx context.Context, id uint64) (model.Staff, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+staffColumns+" FROM staff WHERE id=? LIMIT 1", id))
}

// Count returns the number of staff accounts.
func (r *StaffRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(1) FROM staff").Scan(&n)
	return n, err
}

func (r *StaffRepo) scanOne(row *sql.Row) (model.Staff, error) {
	var (
		s                model.Staff
		created, updated dbTime
	)
	err := row.Scan(&s.ID, &s.Email, &s.Name, &s.PasswordHash, &s.Role, &s.IsActive, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Staff{}, ErrStaffNotFound
		}
		return model.Staff{}, err
	}
	s.CreatedAt, s.UpdatedAt = created.Time, updated.Time
	return s, nil
}
