package models

import "github.com/golang-jwt/jwt/v4"

// JwtCustomClaims carries the authenticated recipient identity.
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
