package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Config holds all application configuration.
type Config struct {
	Ingest IngestConfig `toml:"ingest" yaml:"ingest"`
	HTTP   HTTPConfig   `toml:"http" yaml:"http"`
	Hub    HubConfig    `toml:"hub" yaml:"hub"`
	State  StateConfig  `toml:"state" yaml:"state"`
	MCP    MCPConfig    `toml:"mcp" yaml:"mcp"`
	Log    LogConfig    `toml:"log" yaml:"log"`
}

// IngestConfig holds the UDP telemetry link settings.
type IngestConfig struct {
	Host          string   `toml:"host" yaml:"host"`
	Port          int      `toml:"port" yaml:"port"`
	ReadBuffer    int      `toml:"read_buffer" yaml:"read_buffer"`
	StatsInterval Duration `toml:"stats_interval" yaml:"stats_interval"`
}

// HTTPConfig holds dashboard server settings.
type HTTPConfig struct {
	Port      int    `toml:"port" yaml:"port"`
	StaticDir string `toml:"static_dir" yaml:"static_dir"`
}

// HubConfig holds subscriber fan-out settings.
type HubConfig struct {
	QueueSize     int    `toml:"queue_size" yaml:"queue_size"`
	StatusMessage string `toml:"status_message" yaml:"status_message"`
}

// StateConfig holds telemetry state settings.
type StateConfig struct {
	StaleThreshold Duration `toml:"stale_threshold" yaml:"stale_threshold"`
}

// MCPConfig holds MCP server settings. The MCP endpoint is always mounted
// on the HTTP server; Stdio additionally serves it over stdin/stdout.
type MCPConfig struct {
	Stdio bool `toml:"stdio" yaml:"stdio"`
}

// LogConfig holds logging settings. An empty File logs to stderr.
type LogConfig struct {
	Level      string `toml:"level" yaml:"level"`
	Format     string `toml:"format" yaml:"format"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
}

// Duration is a time.Duration that decodes from strings such as "5s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", string(text))
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Ingest: IngestConfig{
			Host:          "0.0.0.0",
			Port:          14551,
			ReadBuffer:    65536,
			StatsInterval: Duration(time.Minute),
		},
		HTTP: HTTPConfig{
			Port:      3000,
			StaticDir: "public",
		},
		Hub: HubConfig{
			QueueSize:     64,
			StatusMessage: "Connected to server.",
		},
		State: StateConfig{
			StaleThreshold: Duration(5 * time.Second),
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// Load builds the configuration from defaults, the optional file named by
// RELAY_CONFIG, and environment variables, in that order of precedence.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("RELAY_CONFIG"); path != "" {
		if err := loadFromFile(&cfg, path); err != nil {
			return Config{}, errors.Wrapf(err, "load config file %s", path)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFromFile decodes a TOML or YAML file into cfg, chosen by extension.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return errors.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Ingest.Host = getEnvString("UDP_HOST", cfg.Ingest.Host)
	cfg.Ingest.Port = getEnvInt("UDP_PORT", cfg.Ingest.Port)
	cfg.Ingest.ReadBuffer = getEnvInt("UDP_READ_BUFFER", cfg.Ingest.ReadBuffer)
	cfg.Ingest.StatsInterval = Duration(getEnvDuration("STATS_INTERVAL", cfg.Ingest.StatsInterval.Std()))

	cfg.HTTP.Port = getEnvInt("HTTP_PORT", cfg.HTTP.Port)
	cfg.HTTP.StaticDir = getEnvString("STATIC_DIR", cfg.HTTP.StaticDir)

	cfg.Hub.QueueSize = getEnvInt("SUBSCRIBER_QUEUE", cfg.Hub.QueueSize)
	cfg.Hub.StatusMessage = getEnvString("STATUS_MESSAGE", cfg.Hub.StatusMessage)

	cfg.State.StaleThreshold = Duration(getEnvDuration("STALE_THRESHOLD", cfg.State.StaleThreshold.Std()))

	cfg.MCP.Stdio = getEnvBool("MCP_STDIO", cfg.MCP.Stdio)

	cfg.Log.Level = getEnvString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvString("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getEnvString("LOG_FILE", cfg.Log.File)
	cfg.Log.MaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", cfg.Log.MaxSizeMB)
	cfg.Log.MaxBackups = getEnvInt("LOG_MAX_BACKUPS", cfg.Log.MaxBackups)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if !validPort(c.Ingest.Port) {
		return errors.Wrapf(ErrInvalid, "ingest port %d outside 1-65535", c.Ingest.Port)
	}
	if !validPort(c.HTTP.Port) {
		return errors.Wrapf(ErrInvalid, "http port %d outside 1-65535", c.HTTP.Port)
	}
	if c.Hub.QueueSize < 2 {
		return errors.Wrapf(ErrInvalid, "subscriber queue size %d must be at least 2", c.Hub.QueueSize)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrapf(ErrInvalid, "log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Wrapf(ErrInvalid, "log format %q must be text or json", c.Log.Format)
	}
	return nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		warnBadEnv(key, v, err)
		return defaultVal
	}
	return n
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		warnBadEnv(key, v, err)
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		warnBadEnv(key, v, err)
		return defaultVal
	}
	return d
}

func warnBadEnv(key, value string, err error) {
	log.WithFields(log.Fields{"key": key, "value": value}).WithError(err).
		Warn("config: ignoring malformed environment value, using default")
}
