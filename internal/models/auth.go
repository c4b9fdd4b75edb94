package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor returns the identifier recorded on audit columns such as
// recorded_by and cancelled_by.
func (c *JWTClaims) Actor() string {
	if c == nil {
		return ""
	}
	if c.FullName != "" {
		return c.FullName
	}
	if c.Email != "" {
		return c.Email
	}
	return c.UserID
}
