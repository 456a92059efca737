// ABOUTME: Unit tests for client-side JWT expiry inspection
// ABOUTME: Tests valid, expired, opaque, and exp-less tokens

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signToken creates an HS256 token. The client never knows the secret, so any value works.
func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return token
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	token := signToken(t, jwt.MapClaims{"user_id": "u-1", "exp": exp.Unix()})

	got, err := TokenExpiry(token)
	require.NoError(t, err)
	assert.True(t, got.Equal(exp))
}

func TestTokenExpiry_Errors(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrInvalidToken},
		{name: "opaque", token: "not-a-jwt-token", want: ErrInvalidToken},
		{name: "malformed", token: "header.payload.signature", want: ErrInvalidToken},
		{name: "no exp", token: signToken(t, jwt.MapClaims{"user_id": "u-1"}), want: ErrNoExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TokenExpiry(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	past := signToken(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()})
	future := signToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	noExp := signToken(t, jwt.MapClaims{"sub": "x"})

	assert.True(t, tokenExpired(past, now))
	assert.False(t, tokenExpired(future, now))
	assert.False(t, tokenExpired(noExp, now))
	assert.False(t, tokenExpired("opaque", now))
}
