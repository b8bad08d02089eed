package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the environment variable holding the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are tried in order when no path is given explicitly.
var DefaultConfigPaths = []string{
	"config.json",
	"config.yaml",
	"config.yml",
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Storage  StorageConfig  `koanf:"storage"`
	Logging  LoggingConfig  `koanf:"logging"`
	Feed     FeedConfig     `koanf:"feed"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	IPv4            bool          `koanf:"ipv4"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes" validate:"min=1"`
	UploadRateLimit int           `koanf:"upload_rate_limit" validate:"min=0"` // per IP per minute, 0 disables
	CORSOrigins     []string      `koanf:"cors_origins"`
	DemoDir         string        `koanf:"demo_dir"`
}

type DatabaseConfig struct {
	Path         string `koanf:"path" validate:"required"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"min=1"`
}

type StorageConfig struct {
	UploadDir     string        `koanf:"upload_dir" validate:"required"`
	StagingMaxAge time.Duration `koanf:"staging_max_age" validate:"min=0"`
	SweepSchedule string        `koanf:"sweep_schedule"` // cron expression, empty disables the sweep
}

type LoggingConfig struct {
	Level     string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Format    string `koanf:"format" validate:"oneof=json console"`
	Directory string `koanf:"directory"` // empty logs to the console only
}

type FeedConfig struct {
	Buffer int `koanf:"buffer" validate:"min=1"`
}

// Overrides carries command line values. Nil fields leave the loaded value
// untouched.
type Overrides struct {
	ConfigPath string
	UploadDir  *string
	IPv4       *bool
	Port       *int
	DBPath     *string
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			IPv4:            false,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  32 << 20,
			UploadRateLimit: 60,
			CORSOrigins:     []string{"*"},
			DemoDir:         filepath.Join(".", "demo"),
		},
		Database: DatabaseConfig{
			Path:         filepath.Join(".", "water_level.db"),
			MaxOpenConns: 4,
		},
		Storage: StorageConfig{
			UploadDir:     filepath.Join(".", "uploads"),
			StagingMaxAge: time.Hour,
			SweepSchedule: "@every 15m",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "console",
			Directory: filepath.Join(".", "logs"),
		},
		Feed: FeedConfig{
			Buffer: 64,
		},
	}
}

var envMappings = map[string]string{
	"listen_host":       "server.host",
	"port":              "server.port",
	"ipv4":              "server.ipv4",
	"read_timeout":      "server.read_timeout",
	"write_timeout":     "server.write_timeout",
	"shutdown_timeout":  "server.shutdown_timeout",
	"max_upload_bytes":  "server.max_upload_bytes",
	"upload_rate_limit": "server.upload_rate_limit",
	"cors_origins":      "server.cors_origins",
	"demo_dir":          "server.demo_dir",
	"db_path":           "database.path",
	"db_max_open_conns": "database.max_open_conns",
	"upload_dir":        "storage.upload_dir",
	"staging_max_age":   "storage.staging_max_age",
	"sweep_schedule":    "storage.sweep_schedule",
	"log_level":         "logging.level",
	"log_format":        "logging.format",
	"log_dir":           "logging.directory",
	"feed_buffer":       "feed.buffer",
}

// envTransformFunc maps UPLOAD_DIR to storage.upload_dir and so on. Unknown
// variables map to "" so they are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

var sliceConfigPaths = []string{"server.cors_origins"}

// Load builds the configuration from defaults, an optional config file, the
// environment (after .env) and finally the command line overrides.
func Load(o Overrides) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := o.ConfigPath
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	if err := applyOverrides(k, o); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	}
	return json.Parser()
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func applyOverrides(k *koanf.Koanf, o Overrides) error {
	set := map[string]any{}
	if o.UploadDir != nil {
		set["storage.upload_dir"] = *o.UploadDir
	}
	if o.IPv4 != nil {
		set["server.ipv4"] = *o.IPv4
	}
	if o.Port != nil {
		set["server.port"] = *o.Port
	}
	if o.DBPath != nil {
		set["database.path"] = *o.DBPath
	}
	for key, val := range set {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// ListenAddr returns the address the HTTP server binds to. Without an explicit
// host the loopback address of the selected IP family is used.
func (c *Config) ListenAddr() string {
	host := c.Server.Host
	if host == "" {
		host = "::1"
		if c.Server.IPv4 {
			host = "127.0.0.1"
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
}
