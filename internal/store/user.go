package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mreed/campuslink/internal/model"
)

// ErrDuplicateEmail is returned by Create when the email is already
// registered.
var ErrDuplicateEmail = errors.New("email already registered")

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var skills string
	var resetOTP sql.NullInt64
	var resetExpires sql.NullTime

	err := scanner.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Street,
		&u.IsAdmin, &u.Semester, &u.StudentType, &u.ClassSection, &skills,
		&resetOTP, &resetExpires, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Skills = splitSkills(skills)
	if resetOTP.Valid {
		u.ResetOTP = &resetOTP.Int64
	}
	if resetExpires.Valid {
		u.ResetOTPExpires = &resetExpires.Time
	}
	return &u, nil
}

const userCols = `id, name, email, password_hash, phone, street, is_admin, semester, student_type, class_section, skills, reset_otp, reset_otp_expires, created_at, updated_at`

func splitSkills(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func joinSkills(skills []string) string {
	return strings.Join(skills, ",")
}

// Create inserts a new user. Returns ErrDuplicateEmail if the email is
// already taken.
func (s *UserStore) Create(u *model.User) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (name, email, password_hash, phone, street, is_admin, semester, student_type, class_section, skills)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.PasswordHash, u.Phone, u.Street, u.IsAdmin,
		u.Semester, u.StudentType, u.ClassSection, joinSkills(u.Skills),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) List() ([]*model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update changes profile fields only; credentials and reset state are
// managed through the dedicated methods below.
func (s *UserStore) Update(id int64, u *model.User) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET name = ?, email = ?, phone = ?, street = ?, semester = ?, student_type = ?, class_section = ?, skills = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		u.Name, u.Email, u.Phone, u.Street, u.Semester, u.StudentType,
		u.ClassSection, joinSkills(u.Skills), id,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// SetResetOTP stores a pending password-reset code and its expiry,
// overwriting any earlier code.
func (s *UserStore) SetResetOTP(id int64, code int64, expires time.Time) error {
	_, err := s.db.Exec(
		`UPDATE users SET reset_otp = ?, reset_otp_expires = ?, updated_at = datetime('now') WHERE id = ?`,
		code, expires.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set reset otp: %w", err)
	}
	return nil
}

// ConfirmResetOTP replaces the pending code with the confirmed sentinel
// and clears the expiry.
func (s *UserStore) ConfirmResetOTP(id int64) error {
	_, err := s.db.Exec(
		`UPDATE users SET reset_otp = ?, reset_otp_expires = NULL, updated_at = datetime('now') WHERE id = ?`,
		model.ResetOTPConfirmed, id,
	)
	if err != nil {
		return fmt.Errorf("confirm reset otp: %w", err)
	}
	return nil
}

// ResetPassword stores the new password hash and clears the confirmed
// sentinel, completing the reset flow.
func (s *UserStore) ResetPassword(id int64, passwordHash string) error {
	_, err := s.db.Exec(
		`UPDATE users SET password_hash = ?, reset_otp = NULL, reset_otp_expires = NULL, updated_at = datetime('now') WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}
