package connector

import (
	"time"

	"github.com/Konsultn-Engineering/silence/dberr"
)

// Config represents database connection configuration. Fields load from
// YAML with environment overrides; the password only comes from the
// environment.
type Config struct {
	Driver         string            `yaml:"driver" env:"SILENCE_DB_DRIVER" env-default:"postgres"`
	Host           string            `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int               `yaml:"port" env:"PGPORT" env-default:"5432"`
	Database       string            `yaml:"database" env:"PGDATABASE"`
	Username       string            `yaml:"username" env:"PGUSER"`
	Password       string            `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	SSLMode        string            `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"prefer"`
	Params         map[string]string `yaml:"params" env:"SILENCE_DB_PARAMS"`
	Pool           PoolConfig        `yaml:"pool"`
	ConnectTimeout time.Duration     `yaml:"connect_timeout" env:"SILENCE_DB_CONNECT_TIMEOUT" env-default:"10s"`
	QueryTimeout   time.Duration     `yaml:"query_timeout" env:"SILENCE_DB_QUERY_TIMEOUT" env-default:"0s"`
	Retry          RetryConfig       `yaml:"retry"`
}

// PoolConfig defines connection pool settings.
type PoolConfig struct {
	MaxOpen         int           `yaml:"max_open" env:"SILENCE_DB_POOL_MAX_OPEN" env-default:"10"`
	MaxIdle         int           `yaml:"max_idle" env:"SILENCE_DB_POOL_MAX_IDLE" env-default:"2"`
	MaxLifetime     time.Duration `yaml:"max_lifetime" env:"SILENCE_DB_POOL_MAX_LIFETIME" env-default:"1h"`
	MaxIdleTime     time.Duration `yaml:"max_idle_time" env:"SILENCE_DB_POOL_MAX_IDLE_TIME" env-default:"30m"`
	HealthCheckFreq time.Duration `yaml:"health_check_freq" env:"SILENCE_DB_POOL_HEALTH_CHECK_FREQ" env-default:"1m"`
}

// RetryConfig defines connection retry behavior. MaxRetries of zero means
// a single attempt.
type RetryConfig struct {
	MaxRetries uint64        `yaml:"max_retries" env:"SILENCE_DB_RETRY_MAX" env-default:"0"`
	BaseDelay  time.Duration `yaml:"base_delay" env:"SILENCE_DB_RETRY_BASE_DELAY" env-default:"500ms"`
	MaxDelay   time.Duration `yaml:"max_delay" env:"SILENCE_DB_RETRY_MAX_DELAY" env-default:"10s"`
}

// Validate checks the fields a connection cannot be opened without.
func (c *Config) Validate() error {
	switch c.Driver {
	case "postgres", "pgx":
	default:
		return dberr.New(dberr.KindDataAccess, "config", "unsupported driver %q", c.Driver)
	}
	if c.Host == "" {
		return dberr.New(dberr.KindDataAccess, "config", "host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return dberr.New(dberr.KindDataAccess, "config", "invalid port: %d", c.Port)
	}
	if c.Pool.MaxOpen < 0 || c.Pool.MaxIdle < 0 {
		return dberr.New(dberr.KindDataAccess, "config", "pool sizes must not be negative")
	}
	if c.Pool.MaxOpen > 0 && c.Pool.MaxIdle > c.Pool.MaxOpen {
		return dberr.New(dberr.KindDataAccess, "config", "max_idle %d exceeds max_open %d", c.Pool.MaxIdle, c.Pool.MaxOpen)
	}
	return nil
}

// DSN builds the connection URL for c.
func (c *Config) DSN() string {
	return NewDSNBuilder("postgres").
		Auth(c.Username, c.Password).
		Host(c.Host, c.Port).
		Database(c.Database).
		Param("sslmode", c.SSLMode).
		Params(c.Params).
		Build()
}
