package config

// Config is the registry server's full configuration surface. Every
// field can be set via its env tag; the SCOUTQUEST_ prefix keeps the
// namespace collision-free alongside unrelated process env vars.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	HealthCheck HealthCheckConfig `yaml:"health_check"`
	Network     NetworkConfig     `yaml:"network"`
	TLS         TLSConfig         `yaml:"tls"`
}

// ServerConfig controls the HTTP listener and CORS policy.
type ServerConfig struct {
	Host        string   `env:"SCOUTQUEST_SERVER_HOST" env-default:"0.0.0.0"`
	Port        int      `env:"SCOUTQUEST_SERVER_PORT" env-default:"8080"`
	EnableCORS  bool     `env:"SCOUTQUEST_SERVER_ENABLE_CORS" env-default:"true"`
	CORSOrigins []string `env:"SCOUTQUEST_SERVER_CORS_ORIGINS" env-separator:"," env-default:"*"`
	APIKey      string   `env:"SCOUTQUEST_SERVER_API_KEY"`
}

// LoggingConfig controls level and encoding of structured logs.
type LoggingConfig struct {
	Level  string `env:"SCOUTQUEST_LOGGING_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Format string `env:"SCOUTQUEST_LOGGING_FORMAT" env-default:"json" validate:"oneof=json pretty"`
}

// HealthCheckConfig drives the active prober and reaper cadences.
type HealthCheckConfig struct {
	IntervalSeconds     int `env:"SCOUTQUEST_HEALTH_CHECK_INTERVAL_SECONDS" env-default:"30"`
	TimeoutSeconds      int `env:"SCOUTQUEST_HEALTH_CHECK_TIMEOUT_SECONDS" env-default:"5"`
	MaxFailures         int `env:"SCOUTQUEST_HEALTH_CHECK_MAX_FAILURES" env-default:"3"`
	MaxConcurrentProbes int `env:"SCOUTQUEST_HEALTH_CHECK_MAX_CONCURRENT_PROBES" env-default:"16"`
}

// NetworkConfig is the optional CIDR allow/deny middleware.
type NetworkConfig struct {
	Enabled            bool     `env:"SCOUTQUEST_NETWORK_ENABLED" env-default:"false"`
	AllowedCIDRs       []string `env:"SCOUTQUEST_NETWORK_ALLOWED_CIDRS" env-separator:","`
	DeniedCIDRs        []string `env:"SCOUTQUEST_NETWORK_DENIED_CIDRS" env-separator:","`
	DenyAction         string   `env:"SCOUTQUEST_NETWORK_DENY_ACTION" env-default:"reject" validate:"oneof=reject log_only"`
	TrustProxyHeaders  bool     `env:"SCOUTQUEST_NETWORK_TRUST_PROXY_HEADERS" env-default:"false"`
}

// TLSConfig is the optional TLS termination layer.
type TLSConfig struct {
	Enabled       bool   `env:"SCOUTQUEST_TLS_ENABLED" env-default:"false"`
	CertDir       string `env:"SCOUTQUEST_TLS_CERT_DIR" env-default:"./certs"`
	AutoGenerate  bool   `env:"SCOUTQUEST_TLS_AUTO_GENERATE" env-default:"true"`
	CertPath      string `env:"SCOUTQUEST_TLS_CERT_PATH"`
	KeyPath       string `env:"SCOUTQUEST_TLS_KEY_PATH"`
	MinVersion    string `env:"SCOUTQUEST_TLS_MIN_VERSION" env-default:"1.2"`
	MaxVersion    string `env:"SCOUTQUEST_TLS_MAX_VERSION" env-default:"1.3"`
	RedirectHTTP  bool   `env:"SCOUTQUEST_TLS_REDIRECT_HTTP" env-default:"false"`
	HTTPPort      int    `env:"SCOUTQUEST_TLS_HTTP_PORT" env-default:"8081"`
}
