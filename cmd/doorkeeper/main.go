// Doorkeeper Core - home door backend
//
// This is the main entry point for Doorkeeper Core. It authenticates the
// household, drives the door servo over MQTT, keeps the door state in
// SQLite and pushes notifications when the door moves or the bell rings.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/doorkeeper-core/internal/api"
	"github.com/nerrad567/doorkeeper-core/internal/audit"
	"github.com/nerrad567/doorkeeper-core/internal/auth"
	"github.com/nerrad567/doorkeeper-core/internal/door"
	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/config"
	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/database"
	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/logging"
	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/doorkeeper-core/internal/mail"
	"github.com/nerrad567/doorkeeper-core/internal/notify"
	"github.com/nerrad567/doorkeeper-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, serves until ctx is cancelled and then shuts
// down in reverse order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Doorkeeper Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", db.Path())

	if migrateErr := db.Migrate(ctx, migrations.FS, log); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schemaVersion, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	log.Info("database schema ready", "version", schemaVersion)

	// Accounts
	salt, err := cfg.Security.Password.SaltBytes()
	if err != nil {
		return fmt.Errorf("reading password salt: %w", err)
	}
	hasher, err := auth.NewHasher(salt)
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}
	tokens := auth.NewTokenService(cfg.Security.JWT.Secret, cfg.Security.JWT.TokenTTLDuration())
	users := auth.NewUserRepository(db.DB)

	created, err := auth.SeedUsers(ctx, users, hasher, seedUsers(cfg.Users), log.With("component", "seed").Logger)
	if err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}
	total, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if total == 0 {
		log.Warn("no user accounts configured, nobody can log in")
	}
	log.Info("user directory ready", "seeded", created, "users", total)

	// MQTT (optional): servo commands, door state, doorbell events
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Warn("MQTT disabled, door servo will not move")
	}

	// InfluxDB (optional): door telemetry
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Notifications
	sender, err := newSender(cfg, log)
	if err != nil {
		return fmt.Errorf("creating notification sender: %w", err)
	}
	dispatcher := notify.NewDispatcher(sender, users, log.With("component", "notify").Logger, notify.Options{
		Timeout:     cfg.Notifications.TimeoutDuration(),
		Concurrency: cfg.Notifications.Concurrency,
	})
	defer func() {
		log.Info("stopping notification dispatcher")
		//nolint:errcheck // Close always returns nil
		dispatcher.Close()
	}()

	var mailer mail.Mailer = mail.NewLogMailer(log.With("component", "mail").Logger)
	if cfg.Mail.Enabled {
		mailer = mail.NewClient(cfg.Mail)
	}

	auditLog := audit.NewFileLog(cfg.Audit.Path)
	log.Info("audit log ready", "path", auditLog.Path())

	// Door
	var actuator door.Actuator = door.NopActuator{}
	if mqttClient != nil {
		actuator = door.NewServoActuator(mqttClient, cfg.Door.DeviceID)
	}
	doorService := door.NewService(door.Deps{
		Repo:     door.NewSQLiteRepository(db.DB),
		Users:    users,
		Actuator: actuator,
		Audit:    auditLog,
		Notifier: dispatcher,
		Logger:   log.With("component", "door").Logger,
	})
	if err := doorService.Ensure(ctx); err != nil {
		return fmt.Errorf("creating door: %w", err)
	}

	doorbell := door.NewDoorbell(dispatcher, cfg.Door.VideoURL, log.With("component", "doorbell").Logger)
	wireTelemetry(cfg, doorService, doorbell, mqttClient, influxClient, log)

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Guard:    auth.NewGuard(tokens),
		Accounts: auth.NewAccounts(users, hasher, tokens),
		Door:     doorService,
		Doorbell: doorbell,
		Audit:    auditLog,
		Mailer:   mailer,
		Checks:   healthChecks(db, mqttClient, influxClient),
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Subscribe only once every press listener is registered.
	if mqttClient != nil {
		doorbellTopic := mqtt.Topics{}.AllDoorbellEvents()
		if err := mqttClient.Subscribe(doorbellTopic, byte(cfg.MQTT.QoS), doorbell.HandleMQTT); err != nil {
			return fmt.Errorf("subscribing to doorbell events: %w", err)
		}
		// Stop presses before the dispatcher they notify through is closed.
		defer func() {
			if unsubErr := mqttClient.Unsubscribe(doorbellTopic); unsubErr != nil {
				log.Warn("unsubscribing from doorbell events failed", "error", unsubErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// getConfigPath returns the config file path from DOORKEEPER_CONFIG or the default.
func getConfigPath() string {
	if path := os.Getenv("DOORKEEPER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func seedUsers(entries []config.SeedUserConfig) []auth.SeedUser {
	seeds := make([]auth.SeedUser, 0, len(entries))
	for _, u := range entries {
		seeds = append(seeds, auth.SeedUser{
			Email:    u.Email,
			Name:     u.Name,
			Role:     auth.ParseRole(u.Role),
			Password: u.Password,
		})
	}
	return seeds
}

// newSender picks the push transport named by notifications.provider.
func newSender(cfg *config.Config, log *logging.Logger) (notify.Sender, error) {
	switch cfg.Notifications.Provider {
	case config.ProviderAPNs:
		return notify.NewAPNsSender(cfg.Notifications.APNs)
	case config.ProviderWebPush:
		return notify.NewWebPushSender(cfg.Notifications.WebPush, cfg.Site.Name), nil
	default:
		return notify.NewLogSender(log.With("component", "push").Logger), nil
	}
}

// doorStateMessage is the retained payload on the door state topic.
type doorStateMessage struct {
	State    door.State `json:"state"`
	Previous door.State `json:"previous"`
	Actor    string     `json:"actor"`
	At       string     `json:"at"`
}

// wireTelemetry mirrors door and doorbell activity to MQTT and InfluxDB.
// Both clients may be nil.
func wireTelemetry(cfg *config.Config, svc *door.Service, bell *door.Doorbell, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) {
	stateTopic := mqtt.Topics{}.DoorState(cfg.Door.DeviceID)

	svc.OnChange(func(t door.Transition) {
		if mqttClient != nil {
			payload, err := json.Marshal(doorStateMessage{
				State:    t.State,
				Previous: t.Previous,
				Actor:    t.Actor,
				At:       t.At.Format(time.RFC3339),
			})
			if err == nil {
				err = mqttClient.PublishRetained(stateTopic, payload)
			}
			if err != nil {
				log.Warn("publishing door state failed", "topic", stateTopic, "error", err)
			}
		}
		if influxClient != nil {
			influxClient.WriteDoorEvent(cfg.Door.DeviceID, string(t.State), t.Actor)
		}
	})

	if influxClient != nil {
		bell.OnPress(func(p door.Press) {
			influxClient.WriteDoorbellPress(p.ButtonID, p.Source)
		})
	}
}

// healthChecks exposes dependency checks to GET /health.
func healthChecks(db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{"database": db.HealthCheck}
	if mqttClient != nil {
		checks["mqtt"] = mqttClient.HealthCheck
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient.HealthCheck
	}
	return checks
}

// healthCheck verifies every configured dependency before serving.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	for name, check := range healthChecks(db, mqttClient, influxClient) {
		if err := check(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
