package door

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// doorID is the primary key of the only door row.
const doorID = 1

// Repository persists the door state.
type Repository interface {
	// Get returns the current state. Returns ErrNotFound if the row is missing.
	Get(ctx context.Context) (State, error)

	// CompareAndSwap writes next only if the stored state is still prev.
	// Returns ErrConflict if it is not.
	CompareAndSwap(ctx context.Context, prev, next State) error

	// Ensure creates the row in the open state if it does not exist and
	// reports whether it did so.
	Ensure(ctx context.Context) (bool, error)
}

// SQLiteRepository implements Repository on the doors table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed door repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns the stored state.
func (r *SQLiteRepository) Get(ctx context.Context) (State, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT state FROM doors WHERE id = ?`, doorID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading door state: %w", err)
	}
	return ParseState(raw)
}

// CompareAndSwap performs a conditional single-row update.
func (r *SQLiteRepository) CompareAndSwap(ctx context.Context, prev, next State) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE doors SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		string(next), time.Now().UTC().Format(time.RFC3339), doorID, string(prev),
	)
	if err != nil {
		return fmt.Errorf("updating door state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking door update: %w", err)
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}

// Ensure inserts the open door row when missing.
func (r *SQLiteRepository) Ensure(ctx context.Context) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO doors (id, state, updated_at) VALUES (?, ?, ?)`,
		doorID, string(Open), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("creating door: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking door insert: %w", err)
	}
	return rows == 1, nil
}
