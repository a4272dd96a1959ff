package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	tok, err := SignJWT("s3cret", "user-1", "freelancer", 5)
	require.NoError(t, err)

	claims, err := ParseJWT("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "freelancer", claims.Role)

	_, err = ParseJWT("other", tok)
	assert.Error(t, err)
	_, err = ParseJWT("s3cret", "garbage")
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	tok, err := SignJWT("s3cret", "user-1", "admin", -1)
	require.NoError(t, err)
	_, err = ParseJWT("s3cret", tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTRejectsOtherAlgorithms(t *testing.T) {
	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"})
	tok, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseJWT("s3cret", tok)
	assert.Error(t, err)

	_, err = SignJWT("", "user-1", "admin", 5)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	_, err := HashPassword("123")
	assert.Error(t, err)

	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}
