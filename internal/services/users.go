package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	RoleAdmin   = "ADMIN"
	RoleEditor  = "EDITOR"
	RoleStudent = "STUDENT"
)

var roleCodes = []string{RoleAdmin, RoleEditor, RoleStudent}

func IsKnownRole(code string) bool {
	for _, known := range roleCodes {
		if known == code {
			return true
		}
	}
	return false
}

func EnsureRoles(ctx context.Context, db *sqlx.DB) error {
	for _, code := range roleCodes {
		_, err := db.ExecContext(ctx, `INSERT INTO roles (id, code) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING`, uuid.NewString(), code)
		if err != nil {
			return WrapError(err, "ensure role "+code)
		}
	}
	return nil
}

const (
	UserStatusActive   = "ACTIVE"
	UserStatusDisabled = "DISABLED"
)

// Credentials is what a login attempt is checked against.
type Credentials struct {
	UserID       string `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Status       string `db:"status"`
}

// FindCredentials looks a staff account up by case-insensitive email.
func FindCredentials(ctx context.Context, db *sqlx.DB, email string) (Credentials, error) {
	var creds Credentials
	err := db.GetContext(ctx, &creds, `SELECT id, email, password_hash, status FROM users WHERE lower(email) = $1`, strings.ToLower(strings.TrimSpace(email)))
	return creds, err
}

func FetchRoles(ctx context.Context, db *sqlx.DB, userID string) ([]string, error) {
	roles := []string{}
	err := db.SelectContext(ctx, &roles, `
SELECT r.code
FROM roles r
JOIN user_roles ur ON ur.role_id = r.id
WHERE ur.user_id = $1
ORDER BY r.code
`, userID)
	return roles, err
}

func SetLastLogin(ctx context.Context, db *sqlx.DB, userID string, at time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at.UTC(), userID)
	return err
}

// IsActiveUser reports whether userID exists and may still sign in.
func IsActiveUser(ctx context.Context, db *sqlx.DB, userID string) (bool, error) {
	var status sql.NullString
	err := db.GetContext(ctx, &status, `SELECT status FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status.String == UserStatusActive, nil
}

// CreateUser inserts an active staff account with the given roles.
func CreateUser(ctx context.Context, db *sqlx.DB, tokens TokenService, email, password string, displayName *string, roles []string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return "", ErrBadRequest("Email and password are required")
	}
	if len(password) < 10 {
		return "", ErrBadRequest("Password must be at least 10 characters")
	}
	for _, role := range roles {
		if !IsKnownRole(role) {
			return "", ErrBadRequest("Unknown role " + role)
		}
	}
	var exists bool
	if err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = $1)`, email); err != nil {
		return "", err
	}
	if exists {
		return "", ErrBadRequest("User already exists")
	}
	hash, err := tokens.HashPassword(password)
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	userID := uuid.NewString()
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO users (id, email, password_hash, display_name, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
`, userID, email, hash, displayName, UserStatusActive, now); err != nil {
		return "", err
	}
	for _, role := range roles {
		if err := assignRole(ctx, tx, userID, role); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return userID, nil
}

// SetUserRoles replaces the user's role set.
func SetUserRoles(ctx context.Context, db *sqlx.DB, userID string, roles []string) error {
	for _, role := range roles {
		if !IsKnownRole(role) {
			return ErrBadRequest("Unknown role " + role)
		}
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound("User not found")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, role := range roles {
		if err := assignRole(ctx, tx, userID, role); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func assignRole(ctx context.Context, tx *sqlx.Tx, userID, role string) error {
	var roleID string
	if err := tx.GetContext(ctx, &roleID, `SELECT id FROM roles WHERE code = $1`, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBadRequest("Unknown role " + role)
		}
		return err
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO user_roles (id, user_id, role_id, assigned_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, role_id) DO NOTHING
`, uuid.NewString(), userID, roleID, time.Now().UTC())
	return err
}

// BootstrapAdmin creates the first ADMIN account when the users table is
// empty and credentials are configured. It reports whether a user was made.
func BootstrapAdmin(ctx context.Context, db *sqlx.DB, tokens TokenService, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if _, err := CreateUser(ctx, db, tokens, email, password, nil, []string{RoleAdmin}); err != nil {
		return false, err
	}
	return true, nil
}
