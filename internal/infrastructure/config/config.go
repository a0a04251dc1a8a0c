package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Doorkeeper Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site          SiteConfig          `yaml:"site"`
	Database      DatabaseConfig      `yaml:"database"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Logging       LoggingConfig       `yaml:"logging"`
	Security      SecurityConfig      `yaml:"security"`
	Door          DoorConfig          `yaml:"door"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Mail          MailConfig          `yaml:"mail"`
	Audit         AuditConfig         `yaml:"audit"`
	Users         []SeedUserConfig    `yaml:"users"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker carries servo commands, door state and doorbell button events.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for door telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains token and password hashing settings.
type SecurityConfig struct {
	JWT      JWTConfig      `yaml:"jwt"`
	Password PasswordConfig `yaml:"password"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	// TokenTTL is the session and reset token lifetime in minutes.
	TokenTTL int `yaml:"token_ttl"`
}

// PasswordConfig contains the process-wide Argon2id salt.
type PasswordConfig struct {
	// Salt is base64 (standard encoding) and must decode to at least 16 bytes.
	Salt string `yaml:"salt"`
}

// DoorConfig describes the single door and its servo actuator.
type DoorConfig struct {
	// DeviceID names the door in MQTT topics and telemetry.
	DeviceID string `yaml:"device_id"`
	// DoorbellID names the doorbell button in MQTT topics.
	DoorbellID string `yaml:"doorbell_id"`
	// VideoURL is appended to doorbell notifications when set.
	VideoURL string `yaml:"video_url"`
}

// NotificationsConfig selects and configures the push notification backend.
type NotificationsConfig struct {
	// Provider is one of "apns", "webpush" or "log".
	Provider string `yaml:"provider"`
	// Timeout bounds a whole notification batch, in seconds.
	Timeout int `yaml:"timeout"`
	// Concurrency caps in-flight deliveries per batch.
	Concurrency int           `yaml:"concurrency"`
	APNs        APNsConfig    `yaml:"apns"`
	WebPush     WebPushConfig `yaml:"webpush"`
}

// APNsConfig contains Apple Push Notification service token-auth settings.
type APNsConfig struct {
	KeyFile string `yaml:"key_file"`
	KeyID   string `yaml:"key_id"`
	TeamID  string `yaml:"team_id"`
	Topic   string `yaml:"topic"`
	Sandbox bool   `yaml:"sandbox"`
}

// WebPushConfig contains VAPID settings for browser push.
type WebPushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
	TTL             int    `yaml:"ttl"`
}

// MailConfig contains the Mailgun settings used for password reset links.
type MailConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Domain  string `yaml:"domain"`
	APIKey  string `yaml:"api_key"`
	From    string `yaml:"from"`
	// ResetBaseURL is the front-end origin that serves the /email reset page.
	ResetBaseURL string `yaml:"reset_base_url"`
}

// AuditConfig contains the door audit log settings.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// SeedUserConfig provisions a household account on first boot.
type SeedUserConfig struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
	Password string `yaml:"password"`
}

// Notification providers.
const (
	ProviderAPNs    = "apns"
	ProviderWebPush = "webpush"
	ProviderLog     = "log"
)

const (
	minJWTSecretLength = 32
	minSaltBytes       = 16
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. A .env file in the working directory, if present
//  3. YAML file values (override defaults)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: DOORKEEPER_SECTION_KEY
// For example: DOORKEEPER_DATABASE_PATH, DOORKEEPER_JWT_SECRET
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads variables from a dotenv file without overriding the real
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "home",
			Name: "Doorkeeper",
		},
		Database: DatabaseConfig{
			Path:        "./data/doorkeeper.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "doorkeeper-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 30,
			},
		},
		Door: DoorConfig{
			DeviceID:   "front-door",
			DoorbellID: "front-door",
		},
		Notifications: NotificationsConfig{
			Provider:    ProviderLog,
			Timeout:     10,
			Concurrency: 4,
			WebPush: WebPushConfig{
				TTL: 86400,
			},
		},
		Mail: MailConfig{
			BaseURL: "https://api.mailgun.net",
		},
		Audit: AuditConfig{
			Path: "./data/door-audit.log",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOORKEEPER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("DOORKEEPER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DOORKEEPER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DOORKEEPER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DOORKEEPER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("DOORKEEPER_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("DOORKEEPER_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("DOORKEEPER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security (always override in production)
	if v := os.Getenv("DOORKEEPER_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("DOORKEEPER_PASSWORD_SALT"); v != "" {
		cfg.Security.Password.Salt = v
	}

	// Notifications
	if v := os.Getenv("DOORKEEPER_NOTIFICATIONS_PROVIDER"); v != "" {
		cfg.Notifications.Provider = v
	}
	if v := os.Getenv("DOORKEEPER_APNS_KEY_FILE"); v != "" {
		cfg.Notifications.APNs.KeyFile = v
	}
	if v := os.Getenv("DOORKEEPER_VAPID_PRIVATE_KEY"); v != "" {
		cfg.Notifications.WebPush.VAPIDPrivateKey = v
	}

	// Mail
	if v := os.Getenv("DOORKEEPER_MAIL_API_KEY"); v != "" {
		cfg.Mail.APIKey = v
	}

	// Seed user passwords: DOORKEEPER_SEED_PASSWORD applies to every seed
	// entry that does not carry its own password.
	if v := os.Getenv("DOORKEEPER_SEED_PASSWORD"); v != "" {
		for i := range cfg.Users {
			if cfg.Users[i].Password == "" {
				cfg.Users[i].Password = v
			}
		}
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// A forged token opens the front door, so the secret is mandatory.
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set DOORKEEPER_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if c.Security.JWT.TokenTTL <= 0 {
		errs = append(errs, "security.jwt.token_ttl must be positive")
	}

	if c.Security.Password.Salt == "" {
		errs = append(errs, "security.password.salt is required (set DOORKEEPER_PASSWORD_SALT environment variable)")
	} else if _, err := c.Security.Password.SaltBytes(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Audit.Path == "" {
		errs = append(errs, "audit.path is required")
	}

	errs = append(errs, c.Notifications.validate()...)
	errs = append(errs, c.Mail.validate()...)

	for i, u := range c.Users {
		if u.Email == "" || u.Name == "" {
			errs = append(errs, fmt.Sprintf("users[%d]: email and name are required", i))
		}
		if u.Password == "" {
			errs = append(errs, fmt.Sprintf("users[%d]: password is required (or set DOORKEEPER_SEED_PASSWORD)", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (n NotificationsConfig) validate() []string {
	var errs []string

	switch n.Provider {
	case ProviderLog:
	case ProviderAPNs:
		if n.APNs.KeyFile == "" || n.APNs.KeyID == "" || n.APNs.TeamID == "" || n.APNs.Topic == "" {
			errs = append(errs, "notifications.apns requires key_file, key_id, team_id and topic")
		}
	case ProviderWebPush:
		if n.WebPush.VAPIDPublicKey == "" || n.WebPush.VAPIDPrivateKey == "" {
			errs = append(errs, "notifications.webpush requires vapid_public_key and vapid_private_key")
		}
	default:
		errs = append(errs, fmt.Sprintf("notifications.provider %q is not one of apns, webpush, log", n.Provider))
	}

	if n.Timeout <= 0 {
		errs = append(errs, "notifications.timeout must be positive")
	}
	if n.Concurrency <= 0 {
		errs = append(errs, "notifications.concurrency must be positive")
	}

	return errs
}

func (m MailConfig) validate() []string {
	if !m.Enabled {
		return nil
	}

	var errs []string
	if m.Domain == "" || m.APIKey == "" || m.From == "" {
		errs = append(errs, "mail requires domain, api_key and from when enabled")
	}
	if _, err := url.ParseRequestURI(m.ResetBaseURL); err != nil {
		errs = append(errs, "mail.reset_base_url must be an absolute URL")
	}
	return errs
}

// SaltBytes decodes the configured password salt.
func (p PasswordConfig) SaltBytes() ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(p.Salt)
	if err != nil {
		return nil, fmt.Errorf("security.password.salt is not valid base64: %w", err)
	}
	if len(salt) < minSaltBytes {
		return nil, fmt.Errorf("security.password.salt must decode to at least %d bytes", minSaltBytes)
	}
	return salt, nil
}

// TokenTTLDuration returns the token lifetime as a Duration.
func (j JWTConfig) TokenTTLDuration() time.Duration {
	return time.Duration(j.TokenTTL) * time.Minute
}

// TimeoutDuration returns the notification batch timeout as a Duration.
func (n NotificationsConfig) TimeoutDuration() time.Duration {
	return time.Duration(n.Timeout) * time.Second
}

// ReadDuration returns the API read timeout as a Duration.
func (t APITimeoutConfig) ReadDuration() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteDuration returns the API write timeout as a Duration.
func (t APITimeoutConfig) WriteDuration() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleDuration returns the API keep-alive idle timeout as a Duration.
func (t APITimeoutConfig) IdleDuration() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
