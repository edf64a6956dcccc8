package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenService() TokenService {
	return TokenService{
		Secret:     []byte("test-secret"),
		Issuer:     "brightsteps-test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}
}

func TestTokenService_AccessRoundTrip(t *testing.T) {
	tokens := testTokenService()
	pair, err := tokens.IssuePair("user-1", "ada@brightsteps.test", []string{RoleAdmin, RoleEditor})
	require.NoError(t, err)
	assert.Greater(t, pair.ExpiresAt, time.Now().Unix())

	claims, err := tokens.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ada@brightsteps.test", claims.Email)
	assert.Equal(t, []string{RoleAdmin, RoleEditor}, claims.Roles)

	refresh, err := tokens.ParseRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refresh.UserID)
}

func TestTokenService_RejectsWrongType(t *testing.T) {
	tokens := testTokenService()
	pair, err := tokens.IssuePair("user-1", "ada@brightsteps.test", nil)
	require.NoError(t, err)

	_, err = tokens.ParseAccessToken(pair.RefreshToken)
	assert.Error(t, err)
	_, err = tokens.ParseRefreshToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestTokenService_RejectsForeignTokens(t *testing.T) {
	tokens := testTokenService()
	access, _, err := tokens.CreateAccessToken("user-1", "ada@brightsteps.test", nil)
	require.NoError(t, err)

	other := testTokenService()
	other.Secret = []byte("another-secret")
	_, err = other.ParseAccessToken(access)
	assert.Error(t, err)

	other = testTokenService()
	other.Issuer = "someone-else"
	_, err = other.ParseAccessToken(access)
	assert.Error(t, err)

	expired := testTokenService()
	expired.AccessTTL = -time.Minute
	stale, _, err := expired.CreateAccessToken("user-1", "", nil)
	require.NoError(t, err)
	_, err = tokens.ParseAccessToken(stale)
	assert.Error(t, err)
}

func TestTokenService_Passwords(t *testing.T) {
	tokens := testTokenService()
	hashed, err := tokens.HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hashed, "$argon2id$v=19$m=65536,t=3,p=1$"))

	assert.True(t, tokens.VerifyPassword("correct horse", hashed))
	assert.False(t, tokens.VerifyPassword("battery staple", hashed))
	assert.False(t, tokens.VerifyPassword("correct horse", "$2a$10$legacybcrypt"))
	assert.False(t, tokens.VerifyPassword("correct horse", "$argon2id$broken"))

	again, err := tokens.HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, hashed, again)
}

func TestIsKnownRole(t *testing.T) {
	assert.True(t, IsKnownRole(RoleEditor))
	assert.False(t, IsKnownRole("editor"))
	assert.False(t, IsKnownRole("OWNER"))
}
