package config

import (
	"fmt"
	"time"

	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/service"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/utils"
)

// Config holds the application's configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Quota      QuotaConfig      `mapstructure:"quota"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gt=0,max=65535"`
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnablePprof     bool          `mapstructure:"enable_pprof"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig selects and tunes the counter store.
type StoreConfig struct {
	Driver      string        `mapstructure:"driver" validate:"required,oneof=postgres gorm-postgres sqlite redis memory"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	AutoMigrate bool          `mapstructure:"auto_migrate"`
	// Retention is the default age cutoff for the admin prune command and the
	// Redis counter expiry measured from window start. It must cover the longest policy window.
	Retention time.Duration `mapstructure:"retention"`
}

type DatabaseConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConns          int    `mapstructure:"max_conns"`
	MinConns          int    `mapstructure:"min_conns"`
	MaxConnLifetime   int    `mapstructure:"max_conn_lifetime"`   // in seconds
	MaxConnIdleTime   int    `mapstructure:"max_conn_idle_time"`  // in seconds
	HealthCheckPeriod int    `mapstructure:"health_check_period"` // in seconds
	ConnTimeout       int    `mapstructure:"conn_timeout"`        // in seconds
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Mode           string   `mapstructure:"mode"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Password       string   `mapstructure:"password"`
	DB             int      `mapstructure:"db"`
	PoolSize       int      `mapstructure:"pool_size"`
	MinIdleConns   int      `mapstructure:"min_idle_conns"`
	ClusterAddrs   []string `mapstructure:"cluster_addrs"`
	SentinelAddrs  []string `mapstructure:"sentinel_addrs"`
	SentinelMaster string   `mapstructure:"sentinel_master"`
	KeyPrefix      string   `mapstructure:"key_prefix"`
}

// PolicyConfig is one row of the quota table.
type PolicyConfig struct {
	Action        string `mapstructure:"action" validate:"required,action"`
	Limit         int64  `mapstructure:"limit" validate:"gt=0"`
	WindowSeconds int64  `mapstructure:"window_seconds" validate:"gt=0"`
}

// TestModeConfig is the single-category override for verification environments.
type TestModeConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Action  string `mapstructure:"action"`
	Limit   int64  `mapstructure:"limit"`
}

type QuotaConfig struct {
	Policies []PolicyConfig `mapstructure:"policies" validate:"required,min=1,dive"`
	TestMode TestModeConfig `mapstructure:"test_mode"`
}

type IdentityConfig struct {
	// SaltSource is "config" to use Salt directly or "vault" to read it at startup.
	SaltSource       string `mapstructure:"salt_source" validate:"oneof=config vault"`
	Salt             string `mapstructure:"salt"`
	TrustedProxyHops int    `mapstructure:"trusted_proxy_hops" validate:"min=0"`
}

type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	MountPath  string `mapstructure:"mount_path"`
	SecretPath string `mapstructure:"secret_path"`
	SaltField  string `mapstructure:"salt_field"`
}

type AuditConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	Environment    string  `mapstructure:"environment"`
	SamplingRate   float64 `mapstructure:"sampling_rate" validate:"min=0,max=1"`
}

type MonitoringConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsPath    string `mapstructure:"metrics_path"`
}

// Validate checks struct tags and the cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Quota.Policies))
	var longest int64
	for _, p := range c.Quota.Policies {
		if _, dup := seen[p.Action]; dup {
			return errors.ErrInvalidConfig(fmt.Sprintf("duplicate quota policy for action %q", p.Action))
		}
		seen[p.Action] = struct{}{}
		if p.WindowSeconds > longest {
			longest = p.WindowSeconds
		}
	}

	if window := time.Duration(longest) * time.Second; c.Store.Retention > 0 && c.Store.Retention < window {
		return errors.ErrInvalidConfig(fmt.Sprintf("store.retention %s is shorter than the longest policy window %s", c.Store.Retention, window))
	}

	if tm := c.Quota.TestMode; tm.Enabled {
		if _, ok := seen[tm.Action]; !ok {
			return errors.ErrInvalidConfig(fmt.Sprintf("test mode override names unregistered action %q", tm.Action))
		}
		if tm.Limit <= 0 {
			return errors.ErrInvalidConfig("test mode override requires a positive limit")
		}
	}

	switch c.Identity.SaltSource {
	case "config":
		if c.Identity.Salt == "" {
			return errors.ErrInvalidConfig("identity.salt is required when salt_source is config")
		}
	case "vault":
		if c.Vault.Address == "" || c.Vault.SecretPath == "" {
			return errors.ErrInvalidConfig("vault.address and vault.secret_path are required when salt_source is vault")
		}
	}

	switch constants.StoreDriver(c.Store.Driver) {
	case constants.StoreDriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.ErrInvalidConfig("store.sqlite_path is required for the sqlite driver")
		}
	case constants.StoreDriverPostgres, constants.StoreDriverGormPostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			return errors.ErrInvalidConfig("database.host and database.database are required for postgres drivers")
		}
	}

	if c.Audit.Enabled && (len(c.Audit.Brokers) == 0 || c.Audit.Topic == "") {
		return errors.ErrInvalidConfig("audit.brokers and audit.topic are required when audit is enabled")
	}

	return nil
}

// QuotaPolicies converts the configured table into domain policies.
func (c *Config) QuotaPolicies() []models.QuotaPolicy {
	out := make([]models.QuotaPolicy, 0, len(c.Quota.Policies))
	for _, p := range c.Quota.Policies {
		out = append(out, models.QuotaPolicy{
			Action:        constants.ActionCategory(p.Action),
			Limit:         p.Limit,
			WindowSeconds: p.WindowSeconds,
		})
	}
	return out
}

// TestOverride returns the registry override built from quota.test_mode.
func (c *Config) TestOverride() service.TestOverride {
	return service.TestOverride{
		Enabled: c.Quota.TestMode.Enabled,
		Action:  constants.ActionCategory(c.Quota.TestMode.Action),
		Limit:   c.Quota.TestMode.Limit,
	}
}

//Personal.AI order the ending
