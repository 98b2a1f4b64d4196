package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hugr-lab/manageql/discovery"
	"github.com/hugr-lab/manageql/source"
)

// EnvLogLevel names the environment variable seeding the log level.
const EnvLogLevel = "MANAGEQL_LOG_LEVEL"

// Config is the YAML configuration file. Every field can be overridden by
// the matching command line flag.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Flight struct {
		Address        string `yaml:"address"`
		Catalog        string `yaml:"catalog"`
		Schema         string `yaml:"schema"`
		MaxMessageSize int    `yaml:"max_message_size"`
		BatchSize      int    `yaml:"batch_size"`
		Token          string `yaml:"token"`
	} `yaml:"flight"`

	Discovery struct {
		StringColumns bool `yaml:"string_columns"`
		Skip          bool `yaml:"skip"`
	} `yaml:"discovery"`

	Agent struct {
		Address string `yaml:"address"`
		Token   string `yaml:"token"`
	} `yaml:"agent"`

	Remote struct {
		URL        string `yaml:"url"`
		Token      string `yaml:"token"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"remote"`

	Engine struct {
		DSN string `yaml:"dsn"`
	} `yaml:"engine"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{LogLevel: "info"}
	cfg.Flight.Address = "localhost:50051"
	cfg.Flight.Schema = source.DefaultName
	return cfg
}

// LoadConfig reads a YAML file over the defaults. An empty path returns
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Typing returns the discovery typing selected by the configuration.
func (c *Config) Typing() discovery.Typing {
	if c.Discovery.StringColumns {
		return discovery.TypingString
	}
	return discovery.TypingMapped
}

// ParseLevel parses a slog level name.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, errors.New("invalid log level " + s + ": must be one of debug, info, warn, error")
	}
	return level, nil
}
