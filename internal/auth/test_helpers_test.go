package auth

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/database"
	"github.com/nerrad567/doorkeeper-core/migrations"
)

const testSecret = "test-secret-key-for-jwt-signing-0123456789"

// cheapParams keeps Argon2 fast enough for unit tests.
var cheapParams = Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32}

// testDB creates a temporary SQLite database with all migrations applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
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

// testHasher returns a Hasher with a fixed salt and cheap parameters.
func testHasher(t testing.TB) *Hasher {
	t.Helper()

	h, err := NewHasherWithParams([]byte("0123456789abcdef"), cheapParams)
	if err != nil {
		t.Fatalf("NewHasherWithParams() error = %v", err)
	}
	return h
}

// seedTestUser inserts a test user with password "test-password" and returns it.
func seedTestUser(t *testing.T, db *sql.DB, email string, role Role) *User {
	t.Helper()

	repo := NewUserRepository(db)
	user := &User{
		Email:        email,
		Name:         "Test " + string(role),
		PasswordHash: testHasher(t).Hash("test-password"),
		Role:         role,
	}
	if err := repo.Create(t.Context(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}
