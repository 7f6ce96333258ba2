package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test_secret_key_minimum_32_characters_long_for_testing_only")

func TestGenerateAndParseJWT(t *testing.T) {
	token, err := GenerateJWT(SessionClaims{ID: 7, Username: "alice", Role: "admin"}, testSecret, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := ParseJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.ID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "7", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestParseJWT_Errors(t *testing.T) {
	valid, err := GenerateJWT(SessionClaims{ID: 1, Username: "bob", Role: "user"}, testSecret, time.Hour)
	require.NoError(t, err)

	expired, err := GenerateJWT(SessionClaims{ID: 1, Username: "bob", Role: "user"}, testSecret, -time.Minute)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  1,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret []byte
		want   error
	}{
		{name: "garbage", token: "not.a.jwt", secret: testSecret, want: ErrTokenMalformed},
		{name: "empty", token: "", secret: testSecret, want: ErrTokenMalformed},
		{name: "wrong secret", token: valid, secret: []byte(strings.Repeat("x", 40)), want: ErrTokenSignatureInvalid},
		{name: "none algorithm", token: noneAlg, secret: testSecret, want: ErrTokenSignatureInvalid},
		{name: "expired", token: expired, secret: testSecret, want: ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseJWT(tt.token, tt.secret)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
