// ABOUTME: Client-side JWT inspection for stored bearer tokens
// ABOUTME: Reads the exp claim without verifying the signature, which only the server can do

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoExpiry     = errors.New("token has no exp claim")
)

// TokenExpiry returns the exp claim of a JWT. Tokens that are not JWTs return
// ErrInvalidToken and tokens without exp return ErrNoExpiry.
func TokenExpiry(tokenString string) (time.Time, error) {
	if tokenString == "" {
		return time.Time{}, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, ErrInvalidToken
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, ErrInvalidToken
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// tokenExpired reports whether the token carries an exp claim at or before now.
// Opaque tokens and tokens without exp are left for the server to judge.
func tokenExpired(tokenString string, now time.Time) bool {
	exp, err := TokenExpiry(tokenString)
	if err != nil {
		return false
	}
	return !now.Before(exp)
}
