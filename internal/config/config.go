package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Events    EventsConfig    `mapstructure:"events"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         string   `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout_seconds"`
	WriteTimeout int      `mapstructure:"write_timeout_seconds"`
	IdleTimeout  int      `mapstructure:"idle_timeout_seconds"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

// Database drivers understood by db.Open.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverPq       = "pq"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time_seconds"`
}

// PostgresDSN builds a postgres:// URL from the discrete fields unless DSN is set.
func (c DatabaseConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
		sslMode,
	)
}

type AuthConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
}

func (c AuthConfig) TokenTTL() time.Duration {
	if c.TokenTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// Event publisher drivers.
const (
	EventsNone  = "none"
	EventsNATS  = "nats"
	EventsKafka = "kafka"
)

type EventsConfig struct {
	Driver string      `mapstructure:"driver"`
	NATS   NATSConfig  `mapstructure:"nats"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TelemetryConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
}

// RegisterFlags declares the command-line overrides. Call before pflag.Parse.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("env", "", "configuration environment (local, dev, prod)")
	fs.String("port", "", "HTTP listen port")
}

// Load reads config.<env>.yaml, then environment variables, then any flags in fs.
// fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if fs != nil {
		if f := fs.Lookup("env"); f != nil {
			_ = v.BindPFlag("env", f)
		}
		if f := fs.Lookup("port"); f != nil {
			_ = v.BindPFlag("server.port", f)
		}
	}
	_ = v.BindEnv("env", "ENV")

	env := v.GetString("env")
	if env == "" {
		env = "local"
	}

	setDefaults(v, env)

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	v.AddConfigPath("/configs")   // Kubernetes mount
	v.AddConfigPath("./configs")  // repo root
	v.AddConfigPath("../configs") // from cmd/
	v.AddConfigPath("../../configs")

	// Config file is optional - continue with ENV variables
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("No config file found (will use ENV variables): %v\n", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.driver", "DATABASE_DRIVER")
	_ = v.BindEnv("database.dsn", "DATABASE_DSN")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Env = env

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("server.idle_timeout_seconds", 60)
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("auth.token_ttl_minutes", 30)
	v.SetDefault("events.driver", EventsNone)
	v.SetDefault("events.nats.subject", "exam.events")
	v.SetDefault("events.kafka.topic", "exam.events")
	v.SetDefault("telemetry.interval_seconds", 10)

	if env == "local" {
		v.SetDefault("auth.jwt_secret", "local-dev-secret")
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverPgx, DriverPq, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Events.Driver {
	case EventsNone, EventsNATS, EventsKafka:
	default:
		return fmt.Errorf("unsupported events driver %q", c.Events.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required outside local env")
	}

	return nil
}
