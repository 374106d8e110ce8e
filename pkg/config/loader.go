package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/app/configs")

	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	viper.BindEnv("ocpp.port", "OCPP_PORT", "APP_OCPP_PORT")
	viper.BindEnv("database.path", "DATABASE_PATH", "APP_DATABASE_PATH")
	viper.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	viper.BindEnv("nats.url", "NATS_URL", "APP_NATS_URL")
	viper.BindEnv("admin.token", "ADMIN_TOKEN", "APP_ADMIN_TOKEN")
	viper.BindEnv("ocpp.auth_token", "OCPP_AUTH_TOKEN")
	viper.BindEnv("app.environment", "APP_ENVIRONMENT")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file on disk: defaults + env vars carry the process
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "ocpp-cs")
	viper.SetDefault("app.environment", "development")

	viper.SetDefault("http.port", 8080)
	viper.SetDefault("http.allowed_origins", []string{"*"})
	viper.SetDefault("http.read_timeout", 15*time.Second)
	viper.SetDefault("http.write_timeout", 15*time.Second)
	viper.SetDefault("http.idle_timeout", 60*time.Second)

	viper.SetDefault("ocpp.port", 9000)
	viper.SetDefault("ocpp.heartbeat_interval", 10)
	viper.SetDefault("ocpp.call_timeout", 10*time.Second)

	viper.SetDefault("database.path", "./ocpp-cs.db")

	viper.SetDefault("admin.token", "dev-admin-token")

	viper.SetDefault("prometheus.enabled", true)
	viper.SetDefault("prometheus.path", "/metrics")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("rate_limiting.enabled", true)
	viper.SetDefault("rate_limiting.max_requests", 100)
	viper.SetDefault("rate_limiting.window", time.Minute)

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", time.Minute)
	viper.SetDefault("circuit_breaker.timeout", 30*time.Second)
	viper.SetDefault("circuit_breaker.failure_threshold", 0.6)

	viper.SetDefault("cors.enabled", true)
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization"})

	viper.SetDefault("region.timezone", "Asia/Taipei")
	viper.SetDefault("region.default_price", 6.0)

	viper.SetDefault("tariff.refresh_interval", 5*time.Minute)

	viper.SetDefault("community.contract_kw", 6.6)
	viper.SetDefault("community.voltage_v", 220)
	viper.SetDefault("community.min_current_a", 6)
	viper.SetDefault("community.max_current_a", 32)
}
