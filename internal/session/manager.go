// Package session orchestrates the token lifecycle: issuing the paired
// access/refresh tokens on login, answering revocation checks, and
// silently rotating expired access tokens against the stored refresh
// token.
package session

import (
	"errors"
	"log/slog"

	"github.com/mreed/campuslink/internal/model"
	"github.com/mreed/campuslink/internal/store"
	"github.com/mreed/campuslink/internal/token"
)

// Rotation failures. The HTTP boundary reports all of them as a single
// unauthorized response; the distinction exists for diagnostics only.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRefreshInvalid  = errors.New("refresh token invalid or expired")
	ErrUserMissing     = errors.New("user no longer exists")
)

type Manager struct {
	codec    *token.Codec
	sessions *store.SessionStore
	users    *store.UserStore
	logger   *slog.Logger
}

func NewManager(codec *token.Codec, sessions *store.SessionStore, users *store.UserStore, logger *slog.Logger) *Manager {
	return &Manager{
		codec:    codec,
		sessions: sessions,
		users:    users,
		logger:   logger,
	}
}

// Issue mints a fresh access/refresh pair for the user and stores it,
// displacing any prior session. Afterwards exactly one session exists
// for the user; the displaced pair no longer validates anywhere.
func (m *Manager) Issue(user *model.User) (*model.Session, error) {
	accessToken, err := m.codec.MintAccess(user.ID, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	refreshToken, err := m.codec.MintRefresh(user.ID, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return m.sessions.Replace(user.ID, accessToken, refreshToken)
}

// Validate answers "is this access token backed by a live, non-expired
// session". The access token itself is only used as a lookup key and is
// not required to still verify; the session's refresh token is what
// gets cryptographically checked. Any failure along the way means
// invalid, never an error to the caller except on store breakage.
func (m *Manager) Validate(accessToken string) (bool, error) {
	sess, err := m.sessions.GetByAccessToken(accessToken)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}

	// Unverified decode only locates the user; trust comes from the
	// refresh verification below.
	claims, err := m.codec.DecodeUnverified(sess.RefreshToken)
	if err != nil {
		return false, nil
	}

	user, err := m.users.GetByID(claims.UserID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	if _, err := m.codec.VerifyRefresh(sess.RefreshToken); err != nil {
		return false, nil
	}
	return true, nil
}

// Rotate exchanges an expired access token for a fresh one using the
// session's refresh token. The refresh token and the session record's
// age stay as they are; only the access token field changes. Concurrent
// rotations of the same token race as last-rotate-wins: the loser's
// conditional swap misses and reports ErrSessionNotFound.
func (m *Manager) Rotate(oldAccessToken string) (string, error) {
	sess, err := m.sessions.GetByAccessToken(oldAccessToken)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", ErrSessionNotFound
	}

	claims, err := m.codec.VerifyRefresh(sess.RefreshToken)
	if err != nil {
		return "", ErrRefreshInvalid
	}

	user, err := m.users.GetByID(claims.UserID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserMissing
	}

	newAccessToken, err := m.codec.MintAccess(user.ID, user.IsAdmin)
	if err != nil {
		return "", err
	}

	swapped, err := m.sessions.SwapAccessToken(oldAccessToken, newAccessToken)
	if err != nil {
		return "", err
	}
	if !swapped {
		return "", ErrSessionNotFound
	}

	m.logger.Debug("access token rotated", "user_id", user.ID)
	return newAccessToken, nil
}

// Revoke deletes the user's session, invalidating both tokens of the
// pair on the next request.
func (m *Manager) Revoke(userID int64) error {
	return m.sessions.DeleteByUserID(userID)
}
