// Package repository defines the SQL-backed stores for units and staff
// accounts along with the sentinel errors shared by them.  Handlers map
// these values onto HTTP statuses.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrUnitNotFound is returned when no unit has the requested id.
// Handlers should translate this into an HTTP 404 response.
var ErrUnitNotFound = errors.New("unit not found")

// ErrDuplicateUnit is returned when a unit with the same block and unit
// number already exists.
var ErrDuplicateUnit = errors.New("unit already exists in block")

// ErrConflict is returned when an optimistic update finds the row was
// modified since the caller read it.  Handlers should translate this into
// an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// isUniqueViolation recognises duplicate-key failures from both drivers.
func isUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
