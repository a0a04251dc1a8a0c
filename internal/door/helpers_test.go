package door

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nerrad567/doorkeeper-core/internal/audit"
	"github.com/nerrad567/doorkeeper-core/internal/auth"
	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/database"
	"github.com/nerrad567/doorkeeper-core/migrations"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "door-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(t.Context(), migrations.FS, nil); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db.DB
}

func seedUser(t *testing.T, db *sql.DB, email, name string) *auth.User {
	t.Helper()

	user := &auth.User{Email: email, Name: name, PasswordHash: "x", Role: auth.RoleUser}
	if err := auth.NewUserRepository(db).Create(t.Context(), user); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return user
}

func claimsFor(u *auth.User) *auth.Claims {
	return &auth.Claims{Email: u.Email, Role: u.Role, Purpose: auth.PurposeSession}
}

// recordingActuator records every target and can be told to fail.
type recordingActuator struct {
	mu      sync.Mutex
	targets []State
	fail    error
}

func (a *recordingActuator) Drive(_ context.Context, target State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	a.targets = append(a.targets, target)
	return nil
}

func (a *recordingActuator) Targets() []State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]State(nil), a.targets...)
}

// recordingNotifier collects scheduled messages.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Go(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// failingRepo wraps a repository and fails CompareAndSwap.
type failingRepo struct {
	Repository
	err error
}

func (r failingRepo) CompareAndSwap(context.Context, State, State) error {
	return r.err
}

type failingAudit struct{}

func (failingAudit) Append(context.Context, audit.Entry) error {
	return errors.New("disk full")
}

func (failingAudit) List(context.Context, int) ([]audit.Entry, error) {
	return nil, nil
}

// fixture wires a service against a migrated database.
type fixture struct {
	db       *sql.DB
	repo     *SQLiteRepository
	actuator *recordingActuator
	notifier *recordingNotifier
	audit    *audit.FileLog
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testDB(t)
	f := &fixture{
		db:       db,
		repo:     NewSQLiteRepository(db),
		actuator: &recordingActuator{},
		notifier: &recordingNotifier{},
		audit:    audit.NewFileLog(filepath.Join(t.TempDir(), "audit.log")),
	}
	f.service = NewService(Deps{
		Repo:     f.repo,
		Users:    auth.NewUserRepository(db),
		Actuator: f.actuator,
		Audit:    f.audit,
		Notifier: f.notifier,
	})
	if err := f.service.Ensure(t.Context()); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	return f
}
