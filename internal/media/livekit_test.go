package media

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTokenNotConfigured(t *testing.T) {
	Setup("", "", "")

	_, err := CreateToken("room", "user", "User")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreateToken(t *testing.T) {
	Setup("wss://livekit.example.com", "APIkey", "secret-secret-secret")
	assert.Equal(t, "wss://livekit.example.com", URL())

	signed, err := CreateToken("7213001458139570176", "alice", "Alice")
	require.NoError(t, err)

	var claims AccessToken
	token, err := jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (any, error) {
		return []byte("secret-secret-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	require.True(t, token.Valid)

	assert.Equal(t, "APIkey", claims.Issuer)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, VideoGrant{Room: "7213001458139570176", RoomJoin: true, CanPublish: true, CanSubscribe: true}, claims.Video)
	assert.WithinDuration(t, time.Now().Add(6*time.Hour), claims.ExpiresAt.Time, time.Minute)
}
