package media

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLifetime = 6 * time.Hour

var ErrNotConfigured = errors.New("livekit isn't configured")

type VideoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

// AccessToken carries the claims a LiveKit server expects.
type AccessToken struct {
	Name  string     `json:"name,omitempty"`
	Video VideoGrant `json:"video"`
	jwt.RegisteredClaims
}

var serverURL string
var apiKey string
var apiSecret []byte

func Setup(_serverURL string, _apiKey string, _apiSecret string) {
	serverURL = _serverURL
	apiKey = _apiKey
	apiSecret = []byte(_apiSecret)
}

func URL() string {
	return serverURL
}

// CreateToken lets identity join room with audio and video.
func CreateToken(room string, identity string, name string) (string, error) {
	if serverURL == "" || apiKey == "" || len(apiSecret) == 0 {
		return "", ErrNotConfigured
	}

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessToken{
		Name: name,
		Video: VideoGrant{
			Room:         room,
			RoomJoin:     true,
			CanPublish:   true,
			CanSubscribe: true,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    apiKey,
			Subject:   identity,
			ID:        identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	})

	return token.SignedString(apiSecret)
}
