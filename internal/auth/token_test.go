package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gigchat/pkg/errors"
)

func TestIssueAndParseRoundtrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	signed, err := tokens.Issue("alice")
	require.NoError(t, err)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, "alice", claims.Subject)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signed, err := NewTokens("secret-a", time.Hour).Issue("alice")
	require.NoError(t, err)

	_, err = NewTokens("secret-b", time.Hour).Parse(signed)
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	signed, err := NewTokens("secret", -time.Minute).Issue("alice")
	require.NoError(t, err)

	_, err = NewTokens("secret", -time.Minute).Parse(signed)
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)
}

func TestParseRejectsEmptyAndGarbage(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	_, err := tokens.Parse("")
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)

	_, err = tokens.Parse("not.a.token")
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)
}
