package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	testJWTSecret = "test-secret-key-at-least-32-chars!"
	// testSalt is base64 for "0123456789abcdef".
	testSalt = "MDEyMzQ1Njc4OWFiY2RlZg=="
)

// validConfig returns a defaulted config that passes validation.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = testJWTSecret
	cfg.Security.Password.Salt = testSalt
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-home"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  port: 3001
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
  password:
    salt: "MDEyMzQ1Njc4OWFiY2RlZg=="
door:
  device_id: "garden-gate"
users:
  - email: "ada@example.com"
    name: "ada"
    role: "admin"
    password: "Password@123"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-home" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-home")
	}
	if cfg.API.Port != 3001 {
		t.Errorf("API.Port = %d, want 3001", cfg.API.Port)
	}
	if cfg.Door.DeviceID != "garden-gate" {
		t.Errorf("Door.DeviceID = %q, want %q", cfg.Door.DeviceID, "garden-gate")
	}
	if len(cfg.Users) != 1 || cfg.Users[0].Role != "admin" {
		t.Errorf("Users = %+v, want one admin seed", cfg.Users)
	}
	// Defaults survive a partial file.
	if cfg.Security.JWT.TokenTTL != 30 {
		t.Errorf("Security.JWT.TokenTTL = %d, want 30", cfg.Security.JWT.TokenTTL)
	}
	if cfg.Notifications.Provider != ProviderLog {
		t.Errorf("Notifications.Provider = %q, want %q", cfg.Notifications.Provider, ProviderLog)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvSuppliesSecrets(t *testing.T) {
	t.Setenv("DOORKEEPER_JWT_SECRET", testJWTSecret)
	t.Setenv("DOORKEEPER_PASSWORD_SALT", testSalt)

	path := writeConfig(t, "site:\n  id: from-env\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Security.JWT.Secret != testJWTSecret {
		t.Errorf("Security.JWT.Secret not taken from environment")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
site:
  id: ""
security:
  jwt:
    secret: "short"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"site.id", "security.jwt.secret", "security.password.salt"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Load() error = %v, want mention of %s", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: true},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
		{name: "zero token TTL", mutate: func(c *Config) { c.Security.JWT.TokenTTL = 0 }, wantErr: true},
		{name: "missing salt", mutate: func(c *Config) { c.Security.Password.Salt = "" }, wantErr: true},
		{name: "salt not base64", mutate: func(c *Config) { c.Security.Password.Salt = "%%%" }, wantErr: true},
		{name: "salt too short", mutate: func(c *Config) { c.Security.Password.Salt = "c2hvcnQ=" }, wantErr: true},
		{name: "missing audit path", mutate: func(c *Config) { c.Audit.Path = "" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Notifications.Provider = "pigeon" }, wantErr: true},
		{
			name:    "apns without key",
			mutate:  func(c *Config) { c.Notifications.Provider = ProviderAPNs },
			wantErr: true,
		},
		{
			name: "apns complete",
			mutate: func(c *Config) {
				c.Notifications.Provider = ProviderAPNs
				c.Notifications.APNs = APNsConfig{KeyFile: "AuthKey.p8", KeyID: "KEY123", TeamID: "TEAM123", Topic: "com.example.door"}
			},
		},
		{
			name:    "webpush without vapid keys",
			mutate:  func(c *Config) { c.Notifications.Provider = ProviderWebPush },
			wantErr: true,
		},
		{
			name: "mail enabled without credentials",
			mutate: func(c *Config) {
				c.Mail.Enabled = true
				c.Mail.ResetBaseURL = "http://door.local:3000"
			},
			wantErr: true,
		},
		{
			name: "mail enabled with relative reset URL",
			mutate: func(c *Config) {
				c.Mail = MailConfig{Enabled: true, Domain: "mg.example.com", APIKey: "key", From: "door@example.com", ResetBaseURL: "door.local"}
			},
			wantErr: true,
		},
		{
			name:    "seed user without password",
			mutate:  func(c *Config) { c.Users = []SeedUserConfig{{Email: "a@example.com", Name: "a"}} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
		Security:      SecurityConfig{JWT: JWTConfig{TokenTTL: 30}},
		Notifications: NotificationsConfig{Timeout: 7},
	}

	if got := cfg.API.Timeouts.ReadDuration().Seconds(); got != 30 {
		t.Errorf("ReadDuration() = %v, want 30", got)
	}
	if got := cfg.API.Timeouts.WriteDuration().Seconds(); got != 45 {
		t.Errorf("WriteDuration() = %v, want 45", got)
	}
	if got := cfg.API.Timeouts.IdleDuration().Seconds(); got != 60 {
		t.Errorf("IdleDuration() = %v, want 60", got)
	}
	if got := cfg.Security.JWT.TokenTTLDuration(); got != 30*time.Minute {
		t.Errorf("TokenTTLDuration() = %v, want 30m", got)
	}
	if got := cfg.Notifications.TimeoutDuration(); got != 7*time.Second {
		t.Errorf("TimeoutDuration() = %v, want 7s", got)
	}
}

func TestSaltBytes(t *testing.T) {
	salt, err := PasswordConfig{Salt: testSalt}.SaltBytes()
	if err != nil {
		t.Fatalf("SaltBytes() error = %v", err)
	}
	if string(salt) != "0123456789abcdef" {
		t.Errorf("SaltBytes() = %q, want %q", salt, "0123456789abcdef")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()
	cfg.Users = []SeedUserConfig{
		{Email: "a@example.com", Name: "a"},
		{Email: "b@example.com", Name: "b", Password: "own-password"},
	}

	t.Setenv("DOORKEEPER_DATABASE_PATH", "/custom/path.db")
	t.Setenv("DOORKEEPER_MQTT_HOST", "mqtt.example.com")
	t.Setenv("DOORKEEPER_MQTT_USERNAME", "testuser")
	t.Setenv("DOORKEEPER_MQTT_PASSWORD", "testpass")
	t.Setenv("DOORKEEPER_API_HOST", "192.168.1.1")
	t.Setenv("DOORKEEPER_API_PORT", "8443")
	t.Setenv("DOORKEEPER_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("DOORKEEPER_JWT_SECRET", "jwt-secret")
	t.Setenv("DOORKEEPER_PASSWORD_SALT", testSalt)
	t.Setenv("DOORKEEPER_NOTIFICATIONS_PROVIDER", ProviderAPNs)
	t.Setenv("DOORKEEPER_MAIL_API_KEY", "mail-key")
	t.Setenv("DOORKEEPER_SEED_PASSWORD", "seed-password")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
		{"Security.Password.Salt", cfg.Security.Password.Salt, testSalt},
		{"Notifications.Provider", cfg.Notifications.Provider, ProviderAPNs},
		{"Mail.APIKey", cfg.Mail.APIKey, "mail-key"},
		{"Users[0].Password", cfg.Users[0].Password, "seed-password"},
		{"Users[1].Password", cfg.Users[1].Password, "own-password"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if cfg.API.Port != 8443 {
		t.Errorf("API.Port = %d, want 8443", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 3000 {
		t.Errorf("defaultConfig API.Port = %d, want 3000", cfg.API.Port)
	}
	if cfg.Security.JWT.TokenTTL != 30 {
		t.Errorf("defaultConfig Security.JWT.TokenTTL = %d, want 30", cfg.Security.JWT.TokenTTL)
	}
	if cfg.Security.JWT.Secret != "" {
		t.Error("defaultConfig must not ship a JWT secret")
	}
}
