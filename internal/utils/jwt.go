package utils // package utils provides helper functions for token creation and hashing

import (
    "errors"
    "time" // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short-lived and sent in the Authorization header when
// calling protected endpoints.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// Claims is what the API reads back from a verified access token.
type Claims struct {
    StaffID uint64
    Role    string
    Name    string
}

// NewAccessToken builds and signs an HS256 JWT for a staff member.  The
// JWT carries sub (staff ID), role, name, exp and iat.  The name claim is
// stamped on units as the acting sales employee.
func NewAccessToken(secret string, staffID uint64, role, name string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  staffID,
        "role": role,
        "name": name,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw against secret and extracts its claims.
// Only HMAC-signed tokens are accepted.
func ParseAccessToken(secret, raw string) (Claims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, errors.New("unexpected signing method")
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return Claims{}, errors.New("invalid token")
    }
    mc, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Claims{}, errors.New("invalid claims")
    }
    var c Claims
    // numeric claims decode as float64
    if sub, ok := mc["sub"].(float64); ok && sub > 0 {
        c.StaffID = uint64(sub)
    }
    c.Role, _ = mc["role"].(string)
    c.Name, _ = mc["name"].(string)
    if c.StaffID == 0 || c.Role == "" {
        return Claims{}, errors.New("incomplete claims")
    }
    return c, nil
}
