package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "evscan/pkg/domain"
	dErrors "evscan/pkg/domain-errors"
)

const testSigningKey = "test-signing-key"

func signToken(t *testing.T, key string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	s := NewJWTService(testSigningKey)
	userID := id.NewUserID()

	token := signToken(t, testSigningKey, Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestValidateTokenExpired(t *testing.T) {
	s := NewJWTService(testSigningKey)

	token := signToken(t, testSigningKey, Claims{
		UserID: id.NewUserID().String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := s.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateTokenWrongKey(t *testing.T) {
	s := NewJWTService(testSigningKey)

	token := signToken(t, "some-other-key", Claims{UserID: id.NewUserID().String()})

	_, err := s.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}

func TestValidateTokenRejectsNonHMAC(t *testing.T) {
	s := NewJWTService(testSigningKey)

	// alg=none tokens must never pass.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: id.NewUserID().String()})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.ValidateToken(signed)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}

func TestValidateTokenMalformed(t *testing.T) {
	s := NewJWTService(testSigningKey)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := s.ValidateToken(token)
		require.Error(t, err, token)
		assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
	}
}

func TestValidateTokenBadUserID(t *testing.T) {
	s := NewJWTService(testSigningKey)

	token := signToken(t, testSigningKey, Claims{UserID: "not-a-uuid"})

	_, err := s.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}
