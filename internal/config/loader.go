package config

import (
	"strings"

	"github.com/spf13/viper"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
)

// LoadConfig loads the configuration from defaults, an optional YAML file and
// QUOTAGATE_* environment variables, in increasing order of precedence.
// An empty configPath searches /etc/quotagate/ and the working directory for config.yaml.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Load from config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/quotagate/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.ErrInvalidConfig("failed to read config file").WithCause(err)
		}
	}

	// Load from environment variables
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ErrInvalidConfig("failed to unmarshal config").WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.enable_pprof", false)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("store.driver", string(constants.StoreDriverPostgres))
	v.SetDefault("store.timeout", constants.DefaultStoreTimeout.String())
	v.SetDefault("store.sqlite_path", "quotagate.db")
	v.SetDefault("store.auto_migrate", true)
	v.SetDefault("store.retention", constants.DefaultCounterRetention.String())

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "quotagate")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "quotagate")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", 3600)
	v.SetDefault("database.max_conn_idle_time", 600)
	v.SetDefault("database.health_check_period", 60)
	v.SetDefault("database.conn_timeout", 5)

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.key_prefix", "quotagate:usage:")

	v.SetDefault("quota.policies", []map[string]interface{}{
		{"action": string(constants.ActionAIGrounded), "limit": 5, "window_seconds": constants.DefaultWindowSeconds},
		{"action": string(constants.ActionAIQuery), "limit": 20, "window_seconds": constants.DefaultWindowSeconds},
		{"action": string(constants.ActionImageUpload), "limit": 30, "window_seconds": constants.DefaultWindowSeconds},
		{"action": string(constants.ActionDocumentWrite), "limit": 50, "window_seconds": constants.DefaultWindowSeconds},
		{"action": string(constants.ActionFlyerRender), "limit": 40, "window_seconds": constants.DefaultWindowSeconds},
	})
	v.SetDefault("quota.test_mode.enabled", false)
	v.SetDefault("quota.test_mode.action", "")
	v.SetDefault("quota.test_mode.limit", 0)

	v.SetDefault("identity.salt_source", "config")
	v.SetDefault("identity.salt", "")
	v.SetDefault("identity.trusted_proxy_hops", 0)

	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.secret_path", "quotagate/identity")
	v.SetDefault("vault.salt_field", "salt")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.brokers", []string{})
	v.SetDefault("audit.topic", "quotagate.denials")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sampling_rate", 0.1)

	v.SetDefault("monitoring.metrics_enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
}

//Personal.AI order the ending
