package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret string, claims *CustomClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestHS256Validator_ValidToken(t *testing.T) {
	v := NewHS256Validator("a-very-long-shared-secret-for-testing-123456")

	claims := &CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed := signHS256(t, "a-very-long-shared-secret-for-testing-123456", claims)

	got, err := v.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.Subject)
}

func TestHS256Validator_WrongSecret(t *testing.T) {
	v := NewHS256Validator("a-very-long-shared-secret-for-testing-123456")

	claims := &CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed := signHS256(t, "a-different-secret-entirely-0000000000000000", claims)

	_, err := v.ValidateToken(signed)
	assert.Error(t, err)
}

func TestHS256Validator_ExpiredToken(t *testing.T) {
	v := NewHS256Validator("a-very-long-shared-secret-for-testing-123456")

	claims := &CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed := signHS256(t, "a-very-long-shared-secret-for-testing-123456", claims)

	_, err := v.ValidateToken(signed)
	assert.Error(t, err)
}

func TestHS256Validator_RejectsAlgorithmConfusion(t *testing.T) {
	v := NewHS256Validator("a-very-long-shared-secret-for-testing-123456")

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "attacker",
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.ValidateToken(signed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected signing method")
}

func TestNewFromConfig_SkipAuthReturnsMockValidator(t *testing.T) {
	v, err := NewFromConfig(nil, "secret", "", "", true)
	require.NoError(t, err)
	_, ok := v.(*MockValidator)
	assert.True(t, ok)
}

func TestNewFromConfig_DefaultsToHS256(t *testing.T) {
	v, err := NewFromConfig(nil, "a-very-long-shared-secret-for-testing-123456", "", "", false)
	require.NoError(t, err)
	_, ok := v.(*HS256Validator)
	assert.True(t, ok)
}
