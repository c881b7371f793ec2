// Package auth mints and verifies the HS256 token pair: short-lived access
// tokens sent as Bearer credentials, and long-lived refresh tokens that are
// stored server-side and rotated on every refresh.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// Tokens signs and verifies both token kinds. Access and refresh use separate
// secrets so a leaked refresh secret cannot forge access tokens and vice versa.
type Tokens struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

func NewTokens(accessSecret, refreshSecret string) *Tokens {
	return &Tokens{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
}

func (t *Tokens) SignAccess(userID uuid.UUID) (string, error) {
	return t.sign(userID, t.accessSecret, AccessTTL)
}

func (t *Tokens) SignRefresh(userID uuid.UUID) (string, error) {
	return t.sign(userID, t.refreshSecret, RefreshTTL)
}

func (t *Tokens) VerifyAccess(token string) (uuid.UUID, error) {
	return t.verify(token, t.accessSecret)
}

func (t *Tokens) VerifyRefresh(token string) (uuid.UUID, error) {
	return t.verify(token, t.refreshSecret)
}

func (t *Tokens) sign(userID uuid.UUID, secret []byte, ttl time.Duration) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (t *Tokens) verify(tokenStr string, secret []byte) (uuid.UUID, error) {
	parsed, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return t.now() }))
	if err != nil || !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
