package middleware

// identity.go holds the context keys set by JWTAuth and small accessors
// used by handlers and the other middleware.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

const (
    ctxStaffID = "user_id"
    ctxRole    = "role"
    ctxName    = "name"
)

// StaffID returns the authenticated staff ID, or 0 for anonymous requests.
func StaffID(c echo.Context) uint64 {
    id, _ := c.Get(ctxStaffID).(uint64)
    return id
}

// Role returns the authenticated role, or "" for anonymous requests.
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}

// Name returns the display name carried by the access token.
func Name(c echo.Context) string {
    n, _ := c.Get(ctxName).(string)
    return n
}

// userKey identifies the caller for rate limiting; "anon" when no token
// was verified.
func userKey(c echo.Context) string {
    if id := StaffID(c); id != 0 {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
