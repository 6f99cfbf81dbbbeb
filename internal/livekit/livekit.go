// Package livekit issues access tokens for a LiveKit media server.
package livekit

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

var ErrNotConfigured = errors.New("livekit is not configured")

const minTTL = 60 * time.Second

// VideoGrant is the room permission block LiveKit reads from the "video" claim.
type VideoGrant struct {
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	Room           string `json:"room,omitempty"`
	CanPublish     *bool  `json:"canPublish,omitempty"`
	CanSubscribe   *bool  `json:"canSubscribe,omitempty"`
	CanPublishData *bool  `json:"canPublishData,omitempty"`
}

type Claims struct {
	jwt.StandardClaims
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
}

type Grant struct {
	Room     string
	Identity string
	Name     string
}

type TokenIssuer struct {
	url       string
	apiKey    string
	apiSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenIssuer(url, apiKey, apiSecret string, ttl time.Duration) *TokenIssuer {
	if ttl < minTTL {
		ttl = minTTL
	}

	return &TokenIssuer{
		url:       url,
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		ttl:       ttl,
		now:       time.Now,
	}
}

// URL is the websocket endpoint clients connect to with the token.
func (i *TokenIssuer) URL() string {
	return i.url
}

func (i *TokenIssuer) Configured() bool {
	return i != nil && i.url != "" && i.apiKey != "" && len(i.apiSecret) > 0
}

// Issue signs a token letting g.Identity publish and subscribe in g.Room.
func (i *TokenIssuer) Issue(g Grant) (string, error) {
	if !i.Configured() {
		return "", ErrNotConfigured
	}
	if g.Identity == "" || g.Room == "" {
		return "", errors.New("livekit grant needs a room and an identity")
	}

	allow := true
	now := i.now()
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    i.apiKey,
			Subject:   g.Identity,
			Id:        g.Identity,
			NotBefore: now.Unix(),
			ExpiresAt: now.Add(i.ttl).Unix(),
		},
		Name: g.Name,
		Video: &VideoGrant{
			RoomJoin:       true,
			Room:           g.Room,
			CanPublish:     &allow,
			CanSubscribe:   &allow,
			CanPublishData: &allow,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.apiSecret)
	if err != nil {
		return "", fmt.Errorf("sign livekit token: %w", err)
	}

	return token, nil
}
