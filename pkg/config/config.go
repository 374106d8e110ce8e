package config

import "time"

type Config struct {
	App            AppConfig            `mapstructure:"app"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	OCPP           OCPPConfig           `mapstructure:"ocpp"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	NATS           NATSConfig           `mapstructure:"nats"`
	Admin          AdminConfig          `mapstructure:"admin"`
	OpenTelemetry  OpenTelemetryConfig  `mapstructure:"opentelemetry"`
	Prometheus     PrometheusConfig     `mapstructure:"prometheus"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	RateLimiting   RateLimitingConfig   `mapstructure:"rate_limiting"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	CORS           CORSConfig           `mapstructure:"cors"`
	Region         RegionConfig         `mapstructure:"region"`
	Tariff         TariffConfig         `mapstructure:"tariff"`
	Community      CommunityConfig      `mapstructure:"community"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

// OCPPConfig configures the 1.6J WebSocket listener.
type OCPPConfig struct {
	Port              int           `mapstructure:"port"`
	HeartbeatInterval int           `mapstructure:"heartbeat_interval"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"`
	Security          OCPPSecurity  `mapstructure:"security"`
	// AuthToken, when non-empty, is the shared `?token=` query parameter
	// every connecting charge point must present; empty disables the check.
	AuthToken string `mapstructure:"auth_token"`
}

type OCPPSecurity struct {
	Enabled bool   `mapstructure:"enabled"`
	TLSCert string `mapstructure:"tls_cert"`
	TLSKey  string `mapstructure:"tls_key"`
}

// DatabaseConfig points at the single SQLite file backing the store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// AdminConfig configures the shared bearer token guarding /api/* routes.
type AdminConfig struct {
	Token string `mapstructure:"token"`
}

type OpenTelemetryConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	Jaeger      JaegerConfig      `mapstructure:"jaeger"`
	ServiceName string            `mapstructure:"service_name"`
	Attributes  map[string]string `mapstructure:"attributes"`
}

type JaegerConfig struct {
	Endpoint     string  `mapstructure:"endpoint"`
	SamplerType  string  `mapstructure:"sampler_type"`
	SamplerParam float64 `mapstructure:"sampler_param"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type RateLimitingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      int           `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	ExposeHeaders  []string `mapstructure:"expose_headers"`
	MaxAge         int      `mapstructure:"max_age"`
	Credentials    bool     `mapstructure:"credentials"`
}

// RegionConfig carries the wall-clock timezone used to resolve tariff
// segments and the default unit price when no segment covers an instant.
type RegionConfig struct {
	Timezone     string  `mapstructure:"timezone"`
	DefaultPrice float64 `mapstructure:"default_price"`
}

// TariffConfig carries tariff settings. Nothing seeds the daily-pricing
// table from configuration; operators manage segments through the HTTP
// surface.
type TariffConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// CommunityConfig seeds the CommunitySettings singleton row on first boot.
type CommunityConfig struct {
	ContractKW  float64 `mapstructure:"contract_kw"`
	VoltageV    float64 `mapstructure:"voltage_v"`
	MinCurrentA float64 `mapstructure:"min_current_a"`
	MaxCurrentA float64 `mapstructure:"max_current_a"`
}
