package jwtutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 42, "ada")
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ada", claims.Username)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 1, "ada")
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := GenerateToken("secret", -time.Minute, 1, "ada")
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateNeedsSecret(t *testing.T) {
	_, err := GenerateToken("", time.Hour, 1, "ada")
	assert.Error(t, err)
}
