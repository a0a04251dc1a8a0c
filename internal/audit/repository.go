// Package audit keeps the append-only trail of door toggles.
//
// Each toggle is one plaintext CSV line:
//
//	email,timestamp,previous_state
//
// The timestamp is RFC 3339 in UTC and previous_state is the door state
// before the toggle ("open" or "close").
package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultLimit is the number of entries List returns when no limit is given.
	DefaultLimit = 50
	// MaxLimit caps a single List call.
	MaxLimit = 500

	fieldsPerLine = 3

	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Entry is a single audit trail line.
type Entry struct {
	Email         string    `json:"email"`
	Timestamp     time.Time `json:"timestamp"`
	PreviousState string    `json:"previous_state"`
}

// Repository defines the interface for audit trail operations.
type Repository interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
}

// FileLog appends audit entries to a plaintext file.
// Appends are serialised in-process; the file is opened per write so
// external rotation is picked up without a restart.
type FileLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileLog creates a FileLog writing to path. The file is created on first append.
func NewFileLog(path string) *FileLog {
	return &FileLog{path: path, now: time.Now}
}

// Path returns the audit file location.
func (l *FileLog) Path() string {
	return l.path
}

// Append writes one entry. A zero Timestamp is replaced with the current time.
func (l *FileLog) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), dirPermissions); err != nil {
		return fmt.Errorf("creating audit directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePermissions)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}

	w := csv.NewWriter(f)
	w.Write([]string{ //nolint:errcheck // surfaced by w.Error below
		entry.Email,
		entry.Timestamp.UTC().Format(time.RFC3339),
		entry.PreviousState,
	})
	w.Flush()

	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing audit entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing audit log: %w", err)
	}
	return nil
}

// List returns the most recent entries, oldest first.
// A missing file yields an empty list. Malformed lines are skipped.
func (l *FileLog) List(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	// Keep only the newest `limit` entries.
	entries := make([]Entry, 0, limit)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, fmt.Errorf("reading audit log: %w", err)
		}

		entry, ok := parseRecord(record)
		if !ok {
			continue
		}
		if len(entries) == limit {
			copy(entries, entries[1:])
			entries = entries[:limit-1]
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func parseRecord(record []string) (Entry, bool) {
	if len(record) != fieldsPerLine {
		return Entry{}, false
	}
	ts, err := time.Parse(time.RFC3339, record[1])
	if err != nil {
		return Entry{}, false
	}
	return Entry{Email: record[0], Timestamp: ts, PreviousState: record[2]}, true
}
