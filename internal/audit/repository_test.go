package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestLog(t *testing.T) *FileLog {
	t.Helper()
	return NewFileLog(filepath.Join(t.TempDir(), "logs", "door-audit.log"))
}

func TestFileLog_AppendFormat(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 7, 45, 0, 0, time.UTC)

	if err := log.Append(ctx, Entry{Email: "ada@example.com", Timestamp: at, PreviousState: "open"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := log.Append(ctx, Entry{Email: "bob@example.com", Timestamp: at.Add(time.Minute), PreviousState: "close"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	data, err := os.ReadFile(log.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	want := "ada@example.com,2026-03-01T07:45:00Z,open\nbob@example.com,2026-03-01T07:46:00Z,close\n"
	if string(data) != want {
		t.Errorf("file contents = %q, want %q", data, want)
	}
}

func TestFileLog_AppendDefaultsTimestamp(t *testing.T) {
	log := newTestLog(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	if err := log.Append(context.Background(), Entry{Email: "ada@example.com", PreviousState: "open"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries, err := log.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || !entries[0].Timestamp.Equal(fixed) {
		t.Errorf("List() = %+v, want one entry at %v", entries, fixed)
	}
}

func TestFileLog_ListMissingFile(t *testing.T) {
	entries, err := newTestLog(t).List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List() = %v, want empty", entries)
	}
}

func TestFileLog_ListLimit(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := range 10 {
		entry := Entry{
			Email:         fmt.Sprintf("user%d@example.com", i),
			Timestamp:     start.Add(time.Duration(i) * time.Minute),
			PreviousState: "open",
		}
		if err := log.Append(ctx, entry); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		limit     int
		wantLen   int
		wantFirst string
	}{
		{"default", 0, 10, "user0@example.com"},
		{"last three", 3, 3, "user7@example.com"},
		{"more than available", 50, 10, "user0@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := log.List(ctx, tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(entries) != tt.wantLen {
				t.Fatalf("len(List()) = %d, want %d", len(entries), tt.wantLen)
			}
			if entries[0].Email != tt.wantFirst {
				t.Errorf("first entry = %q, want %q", entries[0].Email, tt.wantFirst)
			}
			if entries[len(entries)-1].Email != "user9@example.com" {
				t.Errorf("last entry = %q, want newest", entries[len(entries)-1].Email)
			}
		})
	}
}

func TestFileLog_SkipsMalformedLines(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	if err := log.Append(ctx, Entry{Email: "ada@example.com", PreviousState: "open"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	f, err := os.OpenFile(log.Path(), os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	f.WriteString("garbage line\nx,not-a-time,open\n")
	f.Close()

	if err := log.Append(ctx, Entry{Email: "bob@example.com", PreviousState: "close"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries, err := log.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(List()) = %d, want 2 valid entries", len(entries))
	}
}

func TestFileLog_ConcurrentAppends(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Append(ctx, Entry{Email: fmt.Sprintf("u%d@example.com", i), PreviousState: "open"}) //nolint:errcheck // checked via List
		}()
	}
	wg.Wait()

	entries, err := log.List(ctx, MaxLimit)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 20 {
		t.Errorf("len(List()) = %d, want 20", len(entries))
	}
}

func TestFileLog_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := newTestLog(t).Append(ctx, Entry{Email: "a@example.com"}); err == nil {
		t.Error("Append() should fail with a cancelled context")
	}
}
