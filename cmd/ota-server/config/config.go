package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "config/server.toml"

var (
	// ErrConfigNotFound is returned when the config file cannot be read.
	ErrConfigNotFound = errors.New("config file not readable")

	// ErrInvalidConfig is returned for an unparsable or out-of-range config.
	ErrInvalidConfig = errors.New("invalid config")
)

type Config struct {
	Server    Server    `toml:"server"`
	Paths     Paths     `toml:"paths"`
	Discovery Discovery `toml:"discovery"`
	Checksum  Checksum  `toml:"checksum"`
	Log       Log       `toml:"log"`
	Otel      Otel      `toml:"otel"`
}

type Server struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type Paths struct {
	KernelsDir  string `toml:"kernels_dir"`
	MetadataDir string `toml:"metadata_dir"`
}

type Discovery struct {
	Enabled     bool   `toml:"enabled"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

type Checksum struct {
	// Cache enables the stat-validated digest cache on the download path.
	Cache bool `toml:"cache"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Otel struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	ServiceName string `toml:"service_name"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Paths: Paths{
			KernelsDir:  "./kernels",
			MetadataDir: "./metadata",
		},
		Discovery: Discovery{
			Enabled:     true,
			Name:        "OTA Server",
			Description: "OTA Update Server",
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Otel: Otel{
			Endpoint:    "localhost:4317",
			ServiceName: "ota-server",
		},
	}
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides. A .env file is loaded if present.
func Load(path string) (*Config, error) {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigNotFound, path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a file which cannot be loaded, whether
// absent, unreadable or malformed, yields the defaults with environment
// overrides applied. loadErr reports why the file was not used. err is set
// only when the defaults themselves are rejected, e.g. by a bad OTA_PORT.
func LoadOrDefault(path string) (cfg *Config, loadErr error, err error) {
	cfg, loadErr = Load(path)
	if loadErr == nil {
		return cfg, nil, nil
	}

	cfg = Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, loadErr, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, loadErr, err
	}
	return cfg, loadErr, nil
}

func (c *Config) applyEnv() error {
	c.Server.Host = getEnv("OTA_HOST", c.Server.Host)
	c.Paths.KernelsDir = getEnv("OTA_KERNELS_DIR", c.Paths.KernelsDir)
	c.Paths.MetadataDir = getEnv("OTA_METADATA_DIR", c.Paths.MetadataDir)
	c.Log.Level = getEnv("OTA_LOG_LEVEL", c.Log.Level)
	c.Otel.Endpoint = getEnv("OTA_OTEL_ENDPOINT", c.Otel.Endpoint)

	if port := os.Getenv("OTA_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%w: OTA_PORT %q", ErrInvalidConfig, port)
		}
		c.Server.Port = p
	}
	return nil
}

// Validate checks the port range and that both directories are set.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if strings.TrimSpace(c.Paths.KernelsDir) == "" {
		return fmt.Errorf("%w: paths.kernels_dir is empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Paths.MetadataDir) == "" {
		return fmt.Errorf("%w: paths.metadata_dir is empty", ErrInvalidConfig)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// EnsureDirectories creates the image and metadata directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.KernelsDir, c.Paths.MetadataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
