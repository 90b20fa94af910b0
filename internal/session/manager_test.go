package session

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mreed/campuslink/internal/database"
	"github.com/mreed/campuslink/internal/model"
	"github.com/mreed/campuslink/internal/store"
	"github.com/mreed/campuslink/internal/token"
)

func setupManager(t *testing.T, opts ...token.Option) (*Manager, *store.UserStore, *store.SessionStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)
	codec := token.NewCodec("access-secret", "refresh-secret", opts...)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(codec, sessions, users, logger), users, sessions
}

func createTestUser(t *testing.T, users *store.UserStore, email string, admin bool) *model.User {
	t.Helper()
	u, err := users.Create(&model.User{
		Name:         "Alice",
		Email:        email,
		PasswordHash: "$2a$08$hash",
		Phone:        "5551234567",
		Semester:     3,
		StudentType:  "hosteler",
		ClassSection: "A",
		Skills:       []string{"go"},
		IsAdmin:      admin,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestIssueSingleSessionPerUser(t *testing.T) {
	m, users, sessions := setupManager(t)
	u := createTestUser(t, users, "alice@example.com", false)

	first, err := m.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	second, err := m.Issue(u)
	if err != nil {
		t.Fatalf("issue again: %v", err)
	}
	if second.AccessToken == first.AccessToken {
		t.Error("expected a fresh access token on re-issue")
	}

	// exactly one session remains, and the old pair is unusable
	sess, err := sessions.GetByUserID(u.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.AccessToken != second.AccessToken {
		t.Error("stored session is not the latest pair")
	}
	old, err := sessions.GetByAccessToken(first.AccessToken)
	if err != nil {
		t.Fatalf("get old session: %v", err)
	}
	if old != nil {
		t.Error("old session should be displaced")
	}
}

func TestValidate(t *testing.T) {
	m, users, _ := setupManager(t)
	u := createTestUser(t, users, "alice@example.com", false)

	sess, err := m.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	valid, err := m.Validate(sess.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !valid {
		t.Error("expected issued token to validate")
	}
}

func TestValidateUnknownToken(t *testing.T) {
	m, users, _ := setupManager(t)
	u := createTestUser(t, users, "alice@example.com", false)

	// well-formed and unexpired, but never stored
	codec := token.NewCodec("access-secret", "refresh-secret")
	stray, err := codec.MintAccess(u.ID, false)
	if err != nil {
		t.Fatalf("mint stray token: %v", err)
	}

	valid, err := m.Validate(stray)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if valid {
		t.Error("token absent from the store must not validate")
	}
}

func TestValidateDeletedUser(t *testing.T) {
	m, users, _ := setupManager(t)
	u := createTestUser(t, users, "alice@example.com", false)

	sess, err := m.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// deleting the user cascades the session away; the held token is
	// now unknown to the store
	if err := users.Delete(u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	valid, err := m.Validate(sess.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if valid {
		t.Error("session for a deleted user must not validate")
	}
}

func TestValidateExpiredRefresh(t *testing.T) {
	m, users, _ := setupManager(t, token.WithRefreshTTL(-time.Minute))
	u := createTestUser(t, users, "alice@example.com", false)

	sess, err := m.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	valid, err := m.Validate(sess.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if valid {
		t.Error("session with an expired refresh token must not validate")
	}
}

func TestRotate(t *testing.T) {
	m, users, sessions := setupManager(t, token.WithAccessTTL(-time.Minute))
	u := createTestUser(t, users, "alice@example.com", false)

	sess, err := m.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	newToken, err := m.Rotate(sess.AccessToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if newToken == sess.AccessToken {
		t.Fatal("expected a different access token")
	}

	// the old token no longer resolves; the new one does
	old, err := sessions.GetByAccessToken(sess.AccessToken)
	if err != nil {
		t.Fatalf("get old: %v", err)
	}
	if old != nil {
		t.Error("old access token should be gone from the store")
	}
	current, err := sessions.GetByAccessToken(newToken)
	if err != nil {
		t.Fatalf("get new: %v", err)
	}
	if current == nil {
		t.Fatal("expected session under the new token")
	}
	if current.RefreshToken != sess.RefreshToken {
		t.Error("rotation must not touch the refresh token")
	}

	valid, err := m.Validate(newToken)
	if err != nil {
		t.Fatalf("validate new: %v", err)
	}
	if !valid {
		t.Error("rotated token should validate")
	}
}

func TestRotateNoSession(t *testing.T) {
	m, _, _ := setupManager(t)

	_, err := m.Rotate("unknown-token")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestRotateExpiredRefresh(t *testing.T) {
	m, users, _ := setupManager(t, token.WithRefreshTTL(-time.Minute))
	u := createTestUser(t, users, "alice@example.com", false)

	sess, err := m.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = m.Rotate(sess.AccessToken)
	if !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("err = %v, want ErrRefreshInvalid", err)
	}
}

func TestRotateStaleToken(t *testing.T) {
	m, users, _ := setupManager(t)
	u := createTestUser(t, users, "alice@example.com", false)

	sess, err := m.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	first, err := m.Rotate(sess.AccessToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if first == "" {
		t.Fatal("expected new token")
	}

	// the same old token cannot rotate twice: last-rotate-wins
	_, err = m.Rotate(sess.AccessToken)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second rotate err = %v, want ErrSessionNotFound", err)
	}
}

func TestRevoke(t *testing.T) {
	m, users, _ := setupManager(t)
	u := createTestUser(t, users, "alice@example.com", false)

	sess, err := m.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := m.Revoke(u.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	valid, err := m.Validate(sess.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if valid {
		t.Error("revoked session must not validate")
	}
}
