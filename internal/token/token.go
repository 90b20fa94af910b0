// Package token signs, verifies, and decodes the two independently keyed
// credentials of the auth subsystem: a short-lived access token and a
// long-lived refresh token, both HS256 with the claim set {user id,
// admin flag}.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTTL is how long an access token verifies before the
	// gate must rotate it.
	DefaultAccessTTL = 24 * time.Hour
	// DefaultRefreshTTL bounds the whole session: once the refresh
	// token expires, rotation fails and the user must log in again.
	DefaultRefreshTTL = 60 * 24 * time.Hour
)

// ErrInvalidToken is returned when a token is malformed, carries a bad
// signature, or was signed with the wrong key.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when a token verifies except for its
// expiry. The access gate treats this case as recoverable.
var ErrExpiredToken = errors.New("token expired")

// Claims is the payload carried by both token kinds.
type Claims struct {
	jwt.RegisteredClaims
	UserID  int64 `json:"id"`
	IsAdmin bool  `json:"is_admin"`
}

// Codec mints and verifies the access/refresh token pair. The two
// secrets are independent; a token never verifies against the other
// kind's key.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// Option adjusts a Codec; used by tests to shrink TTLs.
type Option func(*Codec)

func WithAccessTTL(ttl time.Duration) Option {
	return func(c *Codec) { c.accessTTL = ttl }
}

func WithRefreshTTL(ttl time.Duration) Option {
	return func(c *Codec) { c.refreshTTL = ttl }
}

func NewCodec(accessSecret, refreshSecret string, opts ...Option) *Codec {
	c := &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     DefaultAccessTTL,
		refreshTTL:    DefaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MintAccess signs a new access token for the user.
func (c *Codec) MintAccess(userID int64, isAdmin bool) (string, error) {
	return mint(c.accessSecret, c.accessTTL, userID, isAdmin)
}

// MintRefresh signs a new refresh token for the user.
func (c *Codec) MintRefresh(userID int64, isAdmin bool) (string, error) {
	return mint(c.refreshSecret, c.refreshTTL, userID, isAdmin)
}

func mint(secret []byte, ttl time.Duration, userID int64, isAdmin bool) (string, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:  userID,
		IsAdmin: isAdmin,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// generateJTI keeps two tokens minted for the same user in the same
// second from being byte-identical.
func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// VerifyAccess checks signature and expiry against the access secret.
func (c *Codec) VerifyAccess(tokenString string) (*Claims, error) {
	return verify(c.accessSecret, tokenString)
}

// VerifyRefresh checks signature and expiry against the refresh secret.
func (c *Codec) VerifyRefresh(tokenString string) (*Claims, error) {
	return verify(c.refreshSecret, tokenString)
}

func verify(secret []byte, tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// DecodeUnverified extracts claims without checking the signature. Its
// only legitimate use is locating which user's session a token belongs
// to; the caller must still verify before trusting anything.
func (c *Codec) DecodeUnverified(tokenString string) (*Claims, error) {
	parser := jwt.NewParser()
	tok, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsExpired reports whether a verification error means the token was
// valid apart from its expiry.
func IsExpired(err error) bool {
	return errors.Is(err, ErrExpiredToken)
}
