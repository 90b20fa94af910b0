package database

import (
	"strings"
	"testing"
)

func TestOpenMigratesSchema(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"users", "sessions"} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q missing after migration: %v", table, err)
		}
	}
}

func TestOpenEnforcesForeignKeys(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(
		`INSERT INTO users (name, email, password_hash) VALUES ('A', 'a@example.com', 'x')`,
	)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	_, err = db.Exec(
		`INSERT INTO sessions (user_id, access_token, refresh_token) VALUES (1, 'at', 'rt')`,
	)
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}

	// deleting the user must cascade the session away
	if _, err := db.Exec(`DELETE FROM users WHERE id = 1`); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if count != 0 {
		t.Error("session survived its user; foreign keys are off")
	}
}

func TestDSNCarriesPragmas(t *testing.T) {
	got := dsn("auth.db")
	if !strings.HasPrefix(got, "auth.db?") {
		t.Fatalf("dsn = %q, want auth.db prefix", got)
	}
	for _, param := range []string{"_journal_mode=WAL", "_busy_timeout=5000", "_foreign_keys=on"} {
		if !strings.Contains(got, param) {
			t.Errorf("dsn %q missing %q", got, param)
		}
	}
}
