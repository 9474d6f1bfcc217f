package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseJWT(t *testing.T) {
	token, err := GenerateJWT("2", "manager", "secret", time.Minute, "kiosc-test")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := ParseAndValidateJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "2", claims.Subject)
	assert.Equal(t, "manager", claims.Username)
	assert.Equal(t, "kiosc-test", claims.Issuer)
}

func TestParseAndValidateJWT_Errors(t *testing.T) {
	token, err := GenerateJWT("2", "manager", "secret", time.Minute, "kiosc-test")
	require.NoError(t, err)

	_, err = ParseAndValidateJWT(token, "other-secret")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	expired, err := GenerateJWT("2", "manager", "secret", -time.Minute, "kiosc-test")
	require.NoError(t, err)
	_, err = ParseAndValidateJWT(expired, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = ParseAndValidateJWT("not-a-token", "secret")
	assert.Error(t, err)
}
