package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// UserRepository defines the interface for user account persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetDeviceToken(ctx context.Context, email, deviceToken string) error
	ListDeviceTokens(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = "id, email, name, password_hash, role, device_token, created_at, updated_at"

// Create inserts a new account and fills in its generated ID and timestamps.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = RoleUser
	}

	now := time.Now().UTC().Truncate(time.Second)
	stamp := now.Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, name, password_hash, role, device_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Email, user.Name, user.PasswordHash, string(user.Role),
		nullString(user.DeviceToken), stamp, stamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return scanUserFrom(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUserFrom(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", NormalizeEmail(email)))
}

// UpdatePassword replaces a user's password hash.
func (r *SQLiteUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireRow(result)
}

// SetDeviceToken registers the push token for the account with the given email.
// An empty token clears the registration.
func (r *SQLiteUserRepository) SetDeviceToken(ctx context.Context, email, deviceToken string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET device_token = ?, updated_at = ? WHERE email = ?`,
		nullString(deviceToken), time.Now().UTC().Format(time.RFC3339), NormalizeEmail(email),
	)
	if err != nil {
		return fmt.Errorf("updating device token: %w", err)
	}
	return requireRow(result)
}

// ListDeviceTokens returns every distinct registered device token.
func (r *SQLiteUserRepository) ListDeviceTokens(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT device_token FROM users WHERE device_token IS NOT NULL AND device_token != '' ORDER BY device_token`)
	if err != nil {
		return nil, fmt.Errorf("listing device tokens: %w", err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scanning device token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device tokens: %w", err)
	}
	return tokens, nil
}

// Count returns the total number of accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// scanner is satisfied by *sql.Row.
type scanner interface {
	Scan(dest ...any) error
}

func scanUserFrom(s scanner) (*User, error) {
	var u User
	var role string
	var deviceToken sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &deviceToken, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Role = ParseRole(role)
	u.DeviceToken = deviceToken.String
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &u, nil
}

func requireRow(result sql.Result) error {
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
