package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mreed/campuslink/internal/model"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	err := scanner.Scan(&s.ID, &s.UserID, &s.AccessToken, &s.RefreshToken, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const sessionCols = `id, user_id, access_token, refresh_token, created_at`

// Replace stores the token pair for the user, displacing any existing
// session. The upsert keyed on user_id makes replacement atomic, so two
// concurrent logins cannot leave duplicate sessions.
func (s *SessionStore) Replace(userID int64, accessToken, refreshToken string) (*model.Session, error) {
	_, err := s.db.Exec(
		`INSERT INTO sessions (user_id, access_token, refresh_token, created_at)
		 VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT(user_id) DO UPDATE SET
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   created_at = excluded.created_at`,
		userID, accessToken, refreshToken,
	)
	if err != nil {
		return nil, fmt.Errorf("replace session: %w", err)
	}
	return s.GetByUserID(userID)
}

func (s *SessionStore) GetByUserID(userID int64) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE user_id = ?`, userID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by user: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) GetByAccessToken(accessToken string) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE access_token = ?`, accessToken)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by access token: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) GetByRefreshToken(refreshToken string) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE refresh_token = ?`, refreshToken)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by refresh token: %w", err)
	}
	return sess, nil
}

// SwapAccessToken replaces oldToken with newToken in place, leaving the
// refresh token and record age untouched. The conditional WHERE makes
// concurrent rotations of the same token a compare-and-swap: the loser
// sees swapped == false. Last rotate wins; there is no distributed lock.
func (s *SessionStore) SwapAccessToken(oldToken, newToken string) (swapped bool, err error) {
	result, err := s.db.Exec(
		`UPDATE sessions SET access_token = ? WHERE access_token = ?`,
		newToken, oldToken,
	)
	if err != nil {
		return false, fmt.Errorf("swap access token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SessionStore) DeleteByUserID(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete session by user: %w", err)
	}
	return nil
}

// DeleteExpired evicts sessions older than maxAge. Run periodically with
// the refresh-token lifetime so a session record never outlives the
// refresh token it holds.
func (s *SessionStore) DeleteExpired(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	result, err := s.db.Exec(`DELETE FROM sessions WHERE created_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
