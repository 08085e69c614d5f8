package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the core's YAML configuration. Selected keys can be
// overridden from AVNET_* environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Rooms     RoomsConfig     `yaml:"rooms"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// SiteConfig identifies the installation. ID tags every telemetry point.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig locates the SQLite catalog and event log.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig configures the bridge bus connection.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig configures the panel HTTP API.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig configures panel event streaming. Intervals are seconds.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig configures optional usage telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig signs panel access tokens.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// RoomsConfig holds the room state machine timing and the hardware driver
// settings. All durations are in milliseconds.
type RoomsConfig struct {
	SourceSettleMS   int `yaml:"source_settle_ms"`
	PowerOnSettleMS  int `yaml:"power_on_settle_ms"`
	DrainIntervalMS  int `yaml:"drain_interval_ms"`
	DrainAttempts    int `yaml:"drain_attempts"`
	HookTimeoutMS    int `yaml:"hook_timeout_ms"`
	CommandTimeoutMS int `yaml:"command_timeout_ms"`
}

// SourceSettle returns the delay between a successful source load and Complete.
func (r RoomsConfig) SourceSettle() time.Duration {
	return time.Duration(r.SourceSettleMS) * time.Millisecond
}

// PowerOnSettle returns the delay after a forced power on.
func (r RoomsConfig) PowerOnSettle() time.Duration {
	return time.Duration(r.PowerOnSettleMS) * time.Millisecond
}

// DrainInterval returns the power-off busy poll interval.
func (r RoomsConfig) DrainInterval() time.Duration {
	return time.Duration(r.DrainIntervalMS) * time.Millisecond
}

// HookTimeout returns the deadline applied to each hook call.
func (r RoomsConfig) HookTimeout() time.Duration {
	return time.Duration(r.HookTimeoutMS) * time.Millisecond
}

// CommandTimeout returns how long the driver waits for a hardware ack.
func (r RoomsConfig) CommandTimeout() time.Duration {
	return time.Duration(r.CommandTimeoutMS) * time.Millisecond
}

// CatalogConfig seeds the room/source catalog on first start. Entries that
// already exist in the database are left alone.
type CatalogConfig struct {
	Rooms   []RoomSeed   `yaml:"rooms"`
	Sources []SourceSeed `yaml:"sources"`
}

// RoomSeed describes a room to create.
type RoomSeed struct {
	ID            uint   `yaml:"id"`
	Name          string `yaml:"name"`
	ScreenName    string `yaml:"screen_name"`
	ParentID      uint   `yaml:"parent_id"`
	DefaultSource uint   `yaml:"default_source"`
}

// SourceSeed describes a source to create and the rooms it is assigned to.
type SourceSeed struct {
	ID        uint   `yaml:"id"`
	Type      string `yaml:"type"`
	Name      string `yaml:"name"`
	GroupName string `yaml:"group"`
	IconName  string `yaml:"icon"`
	Priority  uint   `yaml:"priority"`
	DisplayID uint   `yaml:"display_id"`
	Rooms     []uint `yaml:"rooms"`
}

// Load reads the YAML file at path over the built-in defaults, applies
// environment overrides such as AVNET_API_PORT and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "AVnet",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/avnet.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "avnet-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "avnet",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 720,
			},
		},
		Rooms: RoomsConfig{
			SourceSettleMS:   500,
			PowerOnSettleMS:  1000,
			DrainIntervalMS:  100,
			DrainAttempts:    100,
			HookTimeoutMS:    30000,
			CommandTimeoutMS: 10000,
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"AVNET_SITE_ID":        &cfg.Site.ID,
		"AVNET_DATABASE_PATH":  &cfg.Database.Path,
		"AVNET_MQTT_HOST":      &cfg.MQTT.Broker.Host,
		"AVNET_MQTT_USERNAME":  &cfg.MQTT.Auth.Username,
		"AVNET_MQTT_PASSWORD":  &cfg.MQTT.Auth.Password,
		"AVNET_API_HOST":       &cfg.API.Host,
		"AVNET_INFLUXDB_URL":   &cfg.InfluxDB.URL,
		"AVNET_INFLUXDB_TOKEN": &cfg.InfluxDB.Token,
		"AVNET_LOG_LEVEL":      &cfg.Logging.Level,
		"AVNET_JWT_SECRET":     &cfg.Security.JWT.Secret,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"AVNET_MQTT_PORT":                &cfg.MQTT.Broker.Port,
		"AVNET_API_PORT":                 &cfg.API.Port,
		"AVNET_ROOMS_SOURCE_SETTLE_MS":   &cfg.Rooms.SourceSettleMS,
		"AVNET_ROOMS_DRAIN_ATTEMPTS":     &cfg.Rooms.DrainAttempts,
		"AVNET_ROOMS_HOOK_TIMEOUT_MS":    &cfg.Rooms.HookTimeoutMS,
		"AVNET_ROOMS_COMMAND_TIMEOUT_MS": &cfg.Rooms.CommandTimeoutMS,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v := os.Getenv("AVNET_INFLUXDB_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AVNET_INFLUXDB_ENABLED: %w", err)
		}
		cfg.InfluxDB.Enabled = enabled
	}

	return nil
}

// Validate reports every problem at once, joined into a single error.
func (c *Config) Validate() error {
	var errs []string
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	check(c.Site.ID != "", "site.id is required")
	check(c.Database.Path != "", "database.path is required")
	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	check(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")

	// Panels toggle projectors and lifts; a forged token is physical access.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set AVNET_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	check(c.Rooms.SourceSettleMS >= 0 && c.Rooms.PowerOnSettleMS >= 0, "rooms settle delays must not be negative")
	check(c.Rooms.DrainIntervalMS > 0 && c.Rooms.DrainAttempts > 0,
		"rooms.drain_interval_ms and rooms.drain_attempts must be positive")
	check(c.Rooms.HookTimeoutMS > 0, "rooms.hook_timeout_ms must be positive")

	errs = append(errs, c.Catalog.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c CatalogConfig) validate() []string {
	var errs []string
	rooms := make(map[uint]bool, len(c.Rooms))
	for _, r := range c.Rooms {
		if r.ID == 0 {
			errs = append(errs, "catalog.rooms: id must be non-zero")
			continue
		}
		if rooms[r.ID] {
			errs = append(errs, fmt.Sprintf("catalog.rooms: duplicate id %d", r.ID))
		}
		rooms[r.ID] = true
	}
	sources := make(map[uint]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.ID == 0 {
			errs = append(errs, "catalog.sources: id must be non-zero")
			continue
		}
		if sources[s.ID] {
			errs = append(errs, fmt.Sprintf("catalog.sources: duplicate id %d", s.ID))
		}
		sources[s.ID] = true
	}
	return errs
}

// GetReadTimeout returns api.timeouts.read.
func (c *Config) GetReadTimeout() time.Duration { return seconds(c.API.Timeouts.Read) }

// GetWriteTimeout returns api.timeouts.write.
func (c *Config) GetWriteTimeout() time.Duration { return seconds(c.API.Timeouts.Write) }

// GetIdleTimeout returns api.timeouts.idle.
func (c *Config) GetIdleTimeout() time.Duration { return seconds(c.API.Timeouts.Idle) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
