package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	m := NewManager("secret", "")
	token, err := m.GenerateAccessToken("user-1", "u1@example.com", "EMPLOYEE", time.Hour)
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "EMPLOYEE", claims.Role)
}

func TestParseToken_Rejects(t *testing.T) {
	m := NewManager("secret", "")

	expired, err := m.GenerateAccessToken("user-1", "u1@example.com", "EMPLOYEE", -time.Minute)
	require.NoError(t, err)
	_, err = m.ParseToken(expired)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	forged, err := NewManager("other", "").GenerateAccessToken("user-1", "u1@example.com", "EMPLOYEE", time.Hour)
	require.NoError(t, err)
	_, err = m.ParseToken(forged)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	noSubject, err := m.GenerateAccessToken("", "", "EMPLOYEE", time.Hour)
	require.NoError(t, err)
	_, err = m.ParseToken(noSubject)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = m.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseToken_Issuer(t *testing.T) {
	m := NewManager("secret", "auth-service")
	other, err := NewManager("secret", "someone-else").GenerateAccessToken("user-1", "", "EMPLOYEE", time.Hour)
	require.NoError(t, err)
	_, err = m.ParseToken(other)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	own, err := m.GenerateAccessToken("user-1", "", "EMPLOYEE", time.Hour)
	require.NoError(t, err)
	_, err = m.ParseToken(own)
	assert.NoError(t, err)
}
