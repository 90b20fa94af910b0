package model

import "time"

// ResetOTPConfirmed is stored in ResetOTP after a successful OTP check.
// It marks the account as cleared to accept a new password and cannot
// collide with a live code (codes are 1000-9999).
const ResetOTPConfirmed = 1

type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Phone        string `json:"phone"`
	Street       string `json:"street"`
	IsAdmin      bool   `json:"is_admin"`

	Semester     int      `json:"semester"`
	StudentType  string   `json:"student_type"`
	ClassSection string   `json:"class_section"`
	Skills       []string `json:"skills"`

	ResetOTP        *int64     `json:"-"`
	ResetOTPExpires *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OTPConfirmed reports whether the user has passed OTP verification and
// may set a new password.
func (u *User) OTPConfirmed() bool {
	return u.ResetOTP != nil && *u.ResetOTP == ResetOTPConfirmed
}
