package model

import "time"

// Staff roles carried in the access token's role claim.
const (
    RoleManager  = "MANAGER"
    RoleSales    = "SALES"
    RoleEmployee = "EMPLOYEE"
)

// ValidRole reports whether r is a known staff role.
func ValidRole(r string) bool {
    return r == RoleManager || r == RoleSales || r == RoleEmployee
}

// Staff represents a back-office account as stored in the `staff` table.
//
// Fields:
//  ID          : primary key identifier.
//  Email       : unique, lower-cased login.
//  Name        : display name, stamped on units as sales employee.
//  PasswordHash: bcrypt hash.
//  Role        : MANAGER, SALES or EMPLOYEE.
//  IsActive    : inactive accounts cannot log in.
type Staff struct {
    ID           uint64    // staff.id
    Email        string    // staff.email
    Name         string    // staff.name
    PasswordHash string    // staff.password_hash
    Role         string    // staff.role
    IsActive     bool      // staff.is_active
    CreatedAt    time.Time // staff.created_at
    UpdatedAt    time.Time // staff.updated_at
}
