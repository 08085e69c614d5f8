// AVnet Core - room and source routing engine
//
// This is the main entry point for the AVnet Core service. It loads the
// room/source catalog from SQLite, drives hardware bridges over MQTT,
// records events and serves the panel API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uxav/AVnetCore-sub001/internal/api"
	"github.com/uxav/AVnetCore-sub001/internal/auth"
	"github.com/uxav/AVnetCore-sub001/internal/av"
	"github.com/uxav/AVnetCore-sub001/internal/catalog"
	"github.com/uxav/AVnetCore-sub001/internal/driver"
	"github.com/uxav/AVnetCore-sub001/internal/eventlog"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/config"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/database"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/influxdb"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/logging"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/mqtt"
	"github.com/uxav/AVnetCore-sub001/internal/notify"
	"github.com/uxav/AVnetCore-sub001/migrations"
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

// shutdownTimeout bounds powering rooms off when the service stops.
const shutdownTimeout = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting AVnet Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS, migrations.Dir); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	repo := catalog.NewSQLiteRepository(db.DB)
	seeded, err := catalog.Seed(ctx, repo, cfg.Catalog)
	if err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	log.Info("catalog seeded",
		"rooms", seeded.Rooms,
		"sources", seeded.Sources,
		"assignments", seeded.Assignments,
	)

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated to 0..2

	// InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Event fan-out
	hub := api.NewHub(cfg.WebSocket, log)
	events := eventlog.NewSQLiteRepository(db.DB)
	notifier := notify.NewService(log)
	notifier.Register("eventlog", events)
	notifier.Register("mqtt", notify.NewMQTTSink(mqttClient, qos))
	notifier.Register("websocket", notify.NewHubSink(hub))

	factory := driver.Factory{}
	if influxClient != nil {
		notifier.Register("metrics", notify.NewMetricsSink(influxClient))
		factory.Metrics = influxClient
	}
	log.Info("event sinks registered", "sinks", notifier.Sinks())

	// Rooms and sources
	drv := driver.New(mqttClient, driver.Options{
		QoS:            qos,
		CommandTimeout: cfg.Rooms.CommandTimeout(),
		Logger:         log,
	})
	if startErr := drv.Start(); startErr != nil {
		return fmt.Errorf("starting driver: %w", startErr)
	}
	defer func() {
		if stopErr := drv.Stop(); stopErr != nil {
			log.Error("error stopping driver", "error", stopErr)
		}
	}()
	factory.Driver = drv

	env := av.NewEnvironment(
		av.WithLogger(log),
		av.WithNotifier(notifier),
		av.WithTiming(timingFromConfig(cfg.Rooms)),
	)
	if bootErr := catalog.Bootstrap(ctx, repo, env, factory); bootErr != nil {
		return fmt.Errorf("bootstrapping rooms: %w", bootErr)
	}
	log.Info("rooms loaded", "rooms", env.RoomCount(), "sources", env.SourceCount())

	if subErr := driver.SubscribeVideoStatus(mqttClient, qos, env); subErr != nil {
		return fmt.Errorf("subscribing to video status: %w", subErr)
	}

	// Auth
	panels := auth.NewPanelRepository(db.DB)
	authSvc, err := auth.NewService(panels, auth.ServiceOptions{
		JWTSecret: cfg.Security.JWT.Secret,
		TokenTTL:  time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}
	if _, _, seedErr := auth.SeedAdmin(ctx, authSvc); seedErr != nil {
		return fmt.Errorf("seeding admin panel: %w", seedErr)
	}

	// API
	health := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}
	if influxClient != nil {
		health["influxdb"] = influxClient
	}
	if err := healthCheck(ctx, health); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	srv, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Env:     env,
		Auth:    authSvc,
		Panels:  panels,
		Events:  events,
		DB:      db,
		MQTT:    mqttClient,
		Health:  health,
		Hub:     hub,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := srv.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}

	// Rooms power off through the driver, so this runs before the MQTT
	// client and driver are torn down by the deferred calls.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := env.Shutdown(shutdownCtx); err != nil {
		log.Error("rooms did not power off cleanly", "error", err)
	}

	log.Info("AVnet Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AVNET_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AVNET_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// timingFromConfig maps the rooms config section onto the room state
// machine timing.
func timingFromConfig(rc config.RoomsConfig) av.Timing {
	return av.Timing{
		SourceSettle:  rc.SourceSettle(),
		PowerOnSettle: rc.PowerOnSettle(),
		DrainInterval: rc.DrainInterval(),
		DrainAttempts: rc.DrainAttempts,
		HookTimeout:   rc.HookTimeout(),
	}
}

// healthCheck verifies the infrastructure connections in start-up order and
// returns the first failure.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for _, name := range []string{"database", "mqtt", "influxdb"} {
		c, ok := checks[name]
		if !ok {
			continue
		}
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
