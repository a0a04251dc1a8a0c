package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/config"
)

// writeConfig writes a minimal config with MQTT and InfluxDB disabled.
func writeConfig(t *testing.T, dbPath string, port int) string {
	t.Helper()

	dir := t.TempDir()
	content := fmt.Sprintf(`
site:
  id: test-site

database:
  path: %q
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr

api:
  host: "127.0.0.1"
  port: %d

security:
  jwt:
    secret: "test-secret-key-at-least-32-characters-long"
    token_ttl: 30
  password:
    salt: "MDEyMzQ1Njc4OWFiY2RlZg=="

audit:
  path: %q

users:
  - email: ann@example.com
    name: Ann
    role: admin
    password: ann-password
`, dbPath, port, filepath.Join(dir, "audit.log"))

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("DOORKEEPER_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_MissingSecret(t *testing.T) {
	path := writeConfig(t, filepath.Join(t.TempDir(), "test.db"), freePort(t))
	t.Setenv("DOORKEEPER_CONFIG", path)
	t.Setenv("DOORKEEPER_JWT_SECRET", "short")

	err := run(t.Context())
	if err == nil || !strings.Contains(err.Error(), "jwt.secret") {
		t.Fatalf("run() error = %v, want jwt secret validation error", err)
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("DOORKEEPER_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("DOORKEEPER_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestSeedUsers_ParsesRoles(t *testing.T) {
	seeds := seedUsers([]config.SeedUserConfig{
		{Email: "a@example.com", Name: "A", Role: "admin", Password: "x"},
		{Email: "b@example.com", Name: "B", Role: "guest", Password: "y"},
	})

	if len(seeds) != 2 {
		t.Fatalf("len(seeds) = %d, want 2", len(seeds))
	}
	if seeds[0].Role != "admin" || seeds[1].Role != "user" {
		t.Errorf("roles = %q, %q; want admin, user", seeds[0].Role, seeds[1].Role)
	}
}

// TestRun_StartupAndShutdown boots the whole service without a broker,
// logs in through the API and shuts down cleanly.
func TestRun_StartupAndShutdown(t *testing.T) {
	port := freePort(t)
	t.Setenv("DOORKEEPER_CONFIG", writeConfig(t, filepath.Join(t.TempDir(), "test.db"), port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(base + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		select {
		case err := <-done:
			t.Fatalf("run() exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not become healthy")
		}
		time.Sleep(50 * time.Millisecond)
	}

	resp, err := http.Post(base+"/login", "application/json",
		strings.NewReader(`{"email":"ann@example.com","pw":"ann-password"}`))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("login status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}
