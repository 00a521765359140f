package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. FRED_FETCH_TIMEOUT=30s
const EnvPrefix = "FRED"

// Config represents the complete application configuration
type Config struct {
	Fetch     FetchConfig     `yaml:"fetch" envconfig:"FETCH"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Archive   ArchiveConfig   `yaml:"archive" envconfig:"ARCHIVE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`

	// Series extends or overrides the built-in series definitions by name
	Series []SeriesConfig `yaml:"series" ignored:"true"`
}

// FetchConfig controls the outbound request to FRED
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	UserAgent    string        `yaml:"user_agent" envconfig:"USER_AGENT"`
	RateLimit    float64       `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Burst        int           `yaml:"burst" envconfig:"BURST"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PipelineConfig controls how series runs are scheduled and which optional outputs are produced
type PipelineConfig struct {
	Concurrency   int    `yaml:"concurrency" envconfig:"CONCURRENCY"`
	Workbook      bool   `yaml:"workbook" envconfig:"WORKBOOK"`
	DefaultSeries string `yaml:"default_series" envconfig:"DEFAULT_SERIES"`
	PreviewLength int    `yaml:"preview_length" envconfig:"PREVIEW_LENGTH"`
}

// ArchiveConfig controls the optional sqlite observation archive
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	Path    string `yaml:"path" envconfig:"DB_PATH"`
}

// TelemetryConfig selects OpenTelemetry exporters
type TelemetryConfig struct {
	Metrics     string  `yaml:"metrics" envconfig:"METRICS"` // "prometheus" or "none"
	Tracing     string  `yaml:"tracing" envconfig:"TRACING"` // "stdout" or "none"
	SampleRatio float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
	Environment string  `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// ServerConfig contains HTTP server configuration for fredweb
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Fetch: FetchConfig{
			Timeout:      60 * time.Second,
			UserAgent:    "Mozilla/5.0 (compatible; FREDPull/1.0)",
			RateLimit:    2,
			Burst:        1,
			MaxBodyBytes: 32 << 20,
		},
		Paths: PathsConfig{
			OutputDir: "data",
			LogsDir:   "logs",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/fredpull.log",
		},
		Pipeline: PipelineConfig{
			Concurrency:   2,
			DefaultSeries: "jtsjol",
			PreviewLength: 500,
		},
		Archive: ArchiveConfig{
			Path: "data/observations.db",
		},
		Telemetry: TelemetryConfig{
			Metrics:     "none",
			Tracing:     "none",
			SampleRatio: 1.0,
			Environment: "development",
		},
		Server: ServerConfig{
			Port:            8090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitRPS:    5,
			RateLimitBurst:  10,
		},
	}
}

// Load builds the configuration from defaults, then the YAML config file if one exists,
// then FRED_* environment variables. Later sources win.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile is like Load but reads the given YAML file instead of searching for one
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from file %s: %w", path, err)
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML document onto cfg; keys absent from the file keep their value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.Fetch.RateLimit <= 0 {
		return fmt.Errorf("fetch rate limit must be positive")
	}
	if c.Fetch.Burst < 1 {
		c.Fetch.Burst = 1
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch max body bytes must be positive")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	if c.Pipeline.Concurrency < 1 {
		c.Pipeline.Concurrency = 1
	}
	if c.Pipeline.PreviewLength < 0 {
		c.Pipeline.PreviewLength = 0
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		c.Logging.Format = "json"
	}
	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/fredpull.log"
	}

	switch c.Telemetry.Metrics {
	case "prometheus", "none":
	default:
		return fmt.Errorf("unsupported metrics exporter: %s", c.Telemetry.Metrics)
	}
	switch c.Telemetry.Tracing {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", c.Telemetry.Tracing)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive path must be set when the archive is enabled")
	}

	for i := range c.Series {
		if err := c.Series[i].Validate(); err != nil {
			return fmt.Errorf("series[%d]: %w", i, err)
		}
	}

	return nil
}

// Registry returns the built-in series with the configured series merged over them
func (c *Config) Registry() (*SeriesRegistry, error) {
	reg := NewSeriesRegistry(BuiltinSeries()...)
	for _, s := range c.Series {
		if err := reg.Put(s); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
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
