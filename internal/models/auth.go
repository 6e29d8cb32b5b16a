package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload issued by the identity collaborator.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor returns the acting identity carried by the claims.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{UserID: c.UserID, Role: c.Role}
}

// Actor is the identity on whose behalf a workflow call runs.
type Actor struct {
	UserID string
	Role   UserRole
}

// IsZero reports whether no identity is attached.
func (a Actor) IsZero() bool {
	return a.UserID == "" || a.Role == ""
}
