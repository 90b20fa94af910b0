package store

import (
	"errors"
	"testing"
	"time"

	"github.com/mreed/campuslink/internal/database"
	"github.com/mreed/campuslink/internal/model"
)

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db)
}

func testUser() *model.User {
	return &model.User{
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$08$hash",
		Phone:        "5551234567",
		Semester:     3,
		StudentType:  "hosteler",
		ClassSection: "A",
		Skills:       []string{"go", "sql"},
	}
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create(testUser())
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if len(u.Skills) != 2 || u.Skills[0] != "go" || u.Skills[1] != "sql" {
		t.Errorf("skills = %v, want [go sql]", u.Skills)
	}
	if u.ResetOTP != nil {
		t.Error("expected no reset OTP on a fresh user")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create(testUser()); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := us.Create(testUser())
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestUserGetByEmailNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent email")
	}
}

func TestUserUpdateProfile(t *testing.T) {
	us := setupUserTestDB(t)

	created, err := us.Create(testUser())
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	created.Name = "Alice Updated"
	created.Semester = 4
	created.Skills = []string{"go", "sql", "docker"}
	updated, err := us.Update(created.ID, created)
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.Name != "Alice Updated" {
		t.Errorf("name = %q, want %q", updated.Name, "Alice Updated")
	}
	if updated.Semester != 4 {
		t.Errorf("semester = %d, want 4", updated.Semester)
	}
	if len(updated.Skills) != 3 {
		t.Errorf("skills = %v, want 3 entries", updated.Skills)
	}
	if updated.PasswordHash != created.PasswordHash {
		t.Error("profile update must not touch the password hash")
	}
}

func TestUserResetOTPLifecycle(t *testing.T) {
	us := setupUserTestDB(t)

	created, err := us.Create(testUser())
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	expires := time.Now().UTC().Add(10 * time.Minute)
	if err := us.SetResetOTP(created.ID, 4321, expires); err != nil {
		t.Fatalf("set reset otp: %v", err)
	}

	u, err := us.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.ResetOTP == nil || *u.ResetOTP != 4321 {
		t.Fatalf("reset otp = %v, want 4321", u.ResetOTP)
	}
	if u.ResetOTPExpires == nil {
		t.Fatal("expected reset otp expiry")
	}
	if u.OTPConfirmed() {
		t.Error("pending code must not count as confirmed")
	}

	if err := us.ConfirmResetOTP(created.ID); err != nil {
		t.Fatalf("confirm reset otp: %v", err)
	}
	u, _ = us.GetByID(created.ID)
	if !u.OTPConfirmed() {
		t.Error("expected confirmed sentinel after ConfirmResetOTP")
	}
	if u.ResetOTPExpires != nil {
		t.Error("expected expiry cleared after confirmation")
	}

	if err := us.ResetPassword(created.ID, "$2a$08$newhash"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	u, _ = us.GetByID(created.ID)
	if u.PasswordHash != "$2a$08$newhash" {
		t.Errorf("password hash = %q, want new hash", u.PasswordHash)
	}
	if u.ResetOTP != nil {
		t.Error("expected sentinel cleared after password reset")
	}
}

func TestUserList(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create(testUser()); err != nil {
		t.Fatalf("create user: %v", err)
	}
	second := testUser()
	second.Email = "bob@example.com"
	second.Name = "Bob"
	if _, err := us.Create(second); err != nil {
		t.Fatalf("create second user: %v", err)
	}

	users, err := us.List()
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len(users) = %d, want 2", len(users))
	}
}

func TestUserDelete(t *testing.T) {
	us := setupUserTestDB(t)

	created, err := us.Create(testUser())
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := us.Delete(created.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	u, err := us.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u != nil {
		t.Error("expected nil after delete")
	}
}
