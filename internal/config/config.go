package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. ROSTERLINK_CANVAS_TOKEN.
const EnvPrefix = "ROSTERLINK"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Canvas    CanvasConfig    `yaml:"canvas" envconfig:"CANVAS"`
	Sheets    SheetsConfig    `yaml:"sheets" envconfig:"SHEETS"`
	Matching  MatchingConfig  `yaml:"matching" envconfig:"MATCHING"`
	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// CanvasConfig points at the Canvas instance used for users, posts and grades.
type CanvasConfig struct {
	BaseURL            string        `yaml:"base_url" envconfig:"BASE_URL"`
	Token              string        `yaml:"token" envconfig:"TOKEN"`
	RequestsPerSecond  float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst              int           `yaml:"burst" envconfig:"BURST"`
	Timeout            time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	MaxSubmissionPages int           `yaml:"max_submission_pages" envconfig:"MAX_SUBMISSION_PAGES"`
}

// Enabled reports whether a Canvas instance is configured.
func (c CanvasConfig) Enabled() bool { return c.BaseURL != "" }

// SheetsConfig optionally reads registrations from a Google Sheet.
type SheetsConfig struct {
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	Range           string `yaml:"range" envconfig:"RANGE"`
}

// Enabled reports whether a registration sheet is configured.
func (c SheetsConfig) Enabled() bool { return c.SpreadsheetID != "" }

// MatchingConfig tunes identity matching and discrepancy rules.
type MatchingConfig struct {
	Threshold           float64 `yaml:"threshold" envconfig:"THRESHOLD"`
	ShortSessionMinutes int     `yaml:"short_session_minutes" envconfig:"SHORT_SESSION_MINUTES"`
	MaxNameLength       int     `yaml:"max_name_length" envconfig:"MAX_NAME_LENGTH"`
}

// CacheConfig bounds the in-memory result cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl" envconfig:"TTL"`
	MaxEntries int           `yaml:"max_entries" envconfig:"MAX_ENTRIES"`
}

// TelemetryConfig controls tracing and metrics.
type TelemetryConfig struct {
	Environment   string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	EnableMetrics bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	EnableTracing bool    `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	TraceExporter string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	SampleRatio   float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// Load builds the configuration from defaults, then the first config file
// found, then environment variables. Later sources win field by field.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields without a matching variable keep their current value.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Matching.Threshold <= 0 || c.Matching.Threshold > 1 {
		return fmt.Errorf("matching threshold must be in (0, 1], got %v", c.Matching.Threshold)
	}
	if c.Matching.ShortSessionMinutes < 0 {
		return fmt.Errorf("short session minutes must not be negative")
	}
	if c.Matching.MaxNameLength <= 0 {
		return fmt.Errorf("max name length must be positive")
	}

	if c.Canvas.BaseURL != "" && !strings.HasPrefix(c.Canvas.BaseURL, "http") {
		return fmt.Errorf("canvas base url must be absolute: %q", c.Canvas.BaseURL)
	}
	if c.Canvas.RequestsPerSecond < 0 {
		return fmt.Errorf("canvas requests per second must not be negative")
	}

	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache max entries must not be negative")
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", c.Telemetry.TraceExporter)
	}

	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/rosterlink.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			MaxBodyBytes:    20 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  90 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/rosterlink.log",
		},
		Canvas: CanvasConfig{
			RequestsPerSecond:  10,
			Burst:              5,
			Timeout:            30 * time.Second,
			MaxSubmissionPages: 500,
		},
		Sheets: SheetsConfig{
			Range: "A:Z",
		},
		Matching: MatchingConfig{
			Threshold:           0.6,
			ShortSessionMinutes: 30,
			MaxNameLength:       100,
		},
		Cache: CacheConfig{
			TTL:        15 * time.Minute,
			MaxEntries: 256,
		},
		Telemetry: TelemetryConfig{
			Environment:   "development",
			EnableMetrics: true,
			EnableTracing: false,
			TraceExporter: "none",
			SampleRatio:   1.0,
		},
	}
}
