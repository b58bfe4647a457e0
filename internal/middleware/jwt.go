package middleware

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/unit-inventory/internal/utils"
)

// JWTAuth validates a Bearer access token and stores the staff ID, role
// and name in the context (see StaffID, Role and Name).  Requests without
// a valid token are rejected with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
            }
            claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
            }
            c.Set(ctxStaffID, claims.StaffID)
            c.Set(ctxRole, claims.Role)
            c.Set(ctxName, claims.Name)
            return next(c)
        }
    }
}
