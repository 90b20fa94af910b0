package handler

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mreed/campuslink/internal/email"
	"github.com/mreed/campuslink/internal/model"
	"github.com/mreed/campuslink/internal/session"
	"github.com/mreed/campuslink/internal/store"
)

const (
	bcryptCost = 8
	otpTTL     = 10 * time.Minute
)

type AuthHandler struct {
	users       *store.UserStore
	manager     *session.Manager
	emailClient *email.Client
	logger      *slog.Logger
}

func NewAuthHandler(us *store.UserStore, m *session.Manager, ec *email.Client, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:       us,
		manager:     m,
		emailClient: ec,
		logger:      logger,
	}
}

type registerRequest struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	Phone        string   `json:"phone"`
	Street       string   `json:"street"`
	Semester     int      `json:"semester"`
	StudentType  string   `json:"student_type"`
	ClassSection string   `json:"class_section"`
	Skills       []string `json:"skills"`
}

func (req *registerRequest) validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(req.Name) == "" {
		errs = append(errs, FieldError{"name", "Name is required"})
	}
	if !validEmail(req.Email) {
		errs = append(errs, FieldError{"email", "Please enter a valid email address"})
	}
	if !validPassword(req.Password) {
		errs = append(errs, FieldError{"password", "Password must be at least 8 characters and contain at least one uppercase, one lowercase, and one symbol."})
	}
	if !validPhone(req.Phone) {
		errs = append(errs, FieldError{"phone", "Please enter a valid phone number"})
	}
	if req.Semester < 1 || req.Semester > 8 {
		errs = append(errs, FieldError{"semester", "Semester must be a number between 1 and 8"})
	}
	if req.StudentType != "hosteler" && req.StudentType != "dayborder" {
		errs = append(errs, FieldError{"student_type", `Student type must be either "hosteler" or "dayborder"`})
	}
	if strings.TrimSpace(req.ClassSection) == "" {
		errs = append(errs, FieldError{"class_section", "Class section is required"})
	}
	if len(req.Skills) == 0 {
		errs = append(errs, FieldError{"skills", "Skills are required"})
	}
	return errs
}

// Register creates a new user account. Input-shape errors are rejected
// before any store access; the admin flag is never client-settable.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid request body")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeInternalError(w)
		return
	}

	user, err := h.users.Create(&model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Phone:        strings.TrimSpace(req.Phone),
		Street:       strings.TrimSpace(req.Street),
		Semester:     req.Semester,
		StudentType:  req.StudentType,
		ClassSection: strings.TrimSpace(req.ClassSection),
		Skills:       req.Skills,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "AuthError", "User with that email already exists.")
			return
		}
		h.logger.Error("create user", "error", err)
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	*model.User
	AccessToken string `json:"access_token"`
}

// Login verifies credentials and issues a fresh token pair, displacing
// any existing session for the user.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid request body")
		return
	}

	user, err := h.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeInternalError(w)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "NotFound", "User not found. Check your email and try again.")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Incorrect password!")
		return
	}

	sess, err := h.manager.Issue(user)
	if err != nil {
		h.logger.Error("issue session", "error", err)
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{User: user, AccessToken: sess.AccessToken})
}

// VerifyToken answers whether the presented access token is backed by a
// live, non-expired session. It responds with a bare boolean and never
// rejects for a missing header.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if header == "" {
		writeJSON(w, http.StatusOK, false)
		return
	}
	accessToken := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
	if accessToken == "" {
		writeJSON(w, http.StatusOK, false)
		return
	}

	valid, err := h.manager.Validate(accessToken)
	if err != nil {
		h.logger.Error("validate token", "error", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, valid)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword starts the reset flow: a 4-digit code with a 10-minute
// expiry is stored on the user and mailed out. The code is stored
// before dispatch, so a mail failure leaves the code usable on retry.
// Repeated calls overwrite the previous code with no cooldown.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid request body")
		return
	}

	user, err := h.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.logger.Error("forgot password lookup", "error", err)
		writeInternalError(w)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "NotFound", "User with that email does NOT exist!")
		return
	}

	code, err := generateOTP()
	if err != nil {
		h.logger.Error("generate otp", "error", err)
		writeInternalError(w)
		return
	}

	if err := h.users.SetResetOTP(user.ID, code, time.Now().UTC().Add(otpTTL)); err != nil {
		h.logger.Error("store otp", "error", err)
		writeInternalError(w)
		return
	}

	if err := h.emailClient.SendPasswordResetOTP(user.Email, code); err != nil {
		h.logger.Error("send otp email", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to send the OTP email.")
		return
	}

	writeMessage(w, "Password reset OTP sent to your email")
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   int64  `json:"otp"`
}

// VerifyOTP checks the pending code. Mismatch and expiry collapse into
// one response so the client cannot tell which failed. Success replaces
// the code with the confirmed sentinel, the sole credential for
// ResetPassword.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid request body")
		return
	}

	user, err := h.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.logger.Error("verify otp lookup", "error", err)
		writeInternalError(w)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "NotFound", "User not found!")
		return
	}

	pending := user.ResetOTP != nil && user.ResetOTPExpires != nil &&
		*user.ResetOTP == req.OTP && time.Now().UTC().Before(*user.ResetOTPExpires)
	if !pending {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid or expired OTP")
		return
	}

	if err := h.users.ConfirmResetOTP(user.ID); err != nil {
		h.logger.Error("confirm otp", "error", err)
		writeInternalError(w)
		return
	}
	writeMessage(w, "OTP confirmed successfully.")
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

// ResetPassword accepts the new password only while the confirmed
// sentinel is set, and clears it on success so the confirmation is
// single-use.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid request body")
		return
	}
	if !validPassword(req.NewPassword) {
		writeValidationErrors(w, []FieldError{{
			Field:   "new_password",
			Message: "Password must be at least 8 characters and contain at least one uppercase, one lowercase, and one symbol.",
		}})
		return
	}

	user, err := h.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.logger.Error("reset password lookup", "error", err)
		writeInternalError(w)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "NotFound", "User not found!")
		return
	}

	if !user.OTPConfirmed() {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Confirm OTP before resetting password.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeInternalError(w)
		return
	}
	if err := h.users.ResetPassword(user.ID, string(hash)); err != nil {
		h.logger.Error("reset password", "error", err)
		writeInternalError(w)
		return
	}
	writeMessage(w, "Password reset successfully")
}

// generateOTP returns a code in 1000-9999 inclusive. The code is
// single-use with a short TTL, so crypto/rand is more than enough
// without any stretching.
func generateOTP() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return 0, err
	}
	return n.Int64() + 1000, nil
}
