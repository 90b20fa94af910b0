package model

import "time"

// Session pairs a user with their current access/refresh token pair.
// Its presence in the store is the source of truth for revocation: at
// most one session exists per user.
type Session struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
}
