package config

import (
	"os"
	"regexp"
	"time"

	"github.com/relaychat/relay/internal/common/cnst"
	"github.com/relaychat/relay/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// Config is the full configuration for a relay instance.
	Config struct {
		Server    ServerConfig    `yaml:"server"`
		Logger    LoggerConfig    `yaml:"logger"`
		Database  DatabaseConfig  `yaml:"database"`
		Bus       BusConfig       `yaml:"bus"`
		Auth      AuthConfig      `yaml:"auth"`
		WebSocket WebSocketConfig `yaml:"websocket"`
		Metrics   MetricsConfig   `yaml:"metrics"`
		Trace     TraceConfig     `yaml:"trace"`
	}

	// ServerConfig represents the HTTP/TLS listener configuration
	ServerConfig struct {
		Port     int    `yaml:"port"`
		CertFile string `yaml:"cert_file"` // enables TLS when set together with key_file
		KeyFile  string `yaml:"key_file"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// DatabaseConfig represents the message store configuration
	DatabaseConfig struct {
		Driver   string `yaml:"driver"` // sqlite, mysql, postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
		SSLMode  string `yaml:"sslmode"` // postgres only
		Path     string `yaml:"path"`    // sqlite only
	}

	// BusConfig represents the shared fan-out bus configuration
	BusConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Channel  string `yaml:"channel"` // one shared channel for every instance
	}

	// AuthConfig represents the handshake token configuration
	AuthConfig struct {
		SecretKey  string        `yaml:"secret_key"`
		Duration   time.Duration `yaml:"duration"`
		CookieName string        `yaml:"cookie_name"`
	}

	// WebSocketConfig represents per-connection websocket tuning
	WebSocketConfig struct {
		AllowedOrigin  string        `yaml:"allowed_origin"`
		MaxMessageSize int64         `yaml:"max_message_size"` // bytes
		SendQueueSize  int           `yaml:"send_queue_size"`  // per-connection outbound buffer
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		PongTimeout    time.Duration `yaml:"pong_timeout"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	}

	// MetricsConfig represents the prometheus exposition configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Namespace string    `yaml:"namespace"`
		Path      string    `yaml:"path"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// TraceConfig represents OpenTelemetry tracing configuration
	TraceConfig struct {
		Enabled     bool              `yaml:"enabled"`
		ServiceName string            `yaml:"service_name"`
		Endpoint    string            `yaml:"endpoint"` // e.g. localhost:4317 or http://localhost:4318
		Protocol    string            `yaml:"protocol"` // grpc or http
		Insecure    bool              `yaml:"insecure"`
		SamplerRate float64           `yaml:"sampler_rate"` // 0.0~1.0
		Environment string            `yaml:"environment"`  // env tag: dev/staging/prod
		Headers     map[string]string `yaml:"headers"`
	}
)

// LoadConfig loads configuration from a YAML file with environment variable
// support. `${VAR}` and `${VAR:default}` placeholders are resolved against
// the process environment before unmarshalling.
func LoadConfig(filename string) (*Config, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	data = resolveEnv(data)
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	cfg.setDefaults()
	return &cfg, cfgPath, nil
}

// setDefaults fills zero values with usable defaults.
func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "relay.db"
	}
	if c.Bus.Addr == "" {
		c.Bus.Addr = "localhost:6379"
	}
	if c.Bus.Channel == "" {
		c.Bus.Channel = cnst.DefaultBusChannel
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = cnst.DefaultTokenCookie
	}
	if c.Auth.Duration == 0 {
		c.Auth.Duration = 24 * time.Hour
	}
	if c.WebSocket.AllowedOrigin == "" {
		c.WebSocket.AllowedOrigin = cnst.DefaultAllowedOrigin
	}
	if c.WebSocket.MaxMessageSize == 0 {
		c.WebSocket.MaxMessageSize = 4096
	}
	if c.WebSocket.SendQueueSize == 0 {
		c.WebSocket.SendQueueSize = 256
	}
	if c.WebSocket.WriteTimeout == 0 {
		c.WebSocket.WriteTimeout = 10 * time.Second
	}
	if c.WebSocket.PongTimeout == 0 {
		c.WebSocket.PongTimeout = 60 * time.Second
	}
	if c.WebSocket.PingInterval == 0 {
		c.WebSocket.PingInterval = 54 * time.Second
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = cnst.AppName
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Trace.ServiceName == "" {
		c.Trace.ServiceName = cnst.AppName
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
