// Package config loads bughunter configuration.
//
// Values are resolved in order: built-in defaults, an optional YAML file
// (with ${VAR} expansion), a .env file, then BUGHUNTER_* environment variables:
//   - BUGHUNTER_API_BASE_URL, BUGHUNTER_AUTH_TOKEN, BUGHUNTER_TIMEOUT
//   - BUGHUNTER_LISTEN, BUGHUNTER_DEBUG, BUGHUNTER_SESSION_SECRET, BUGHUNTER_SESSION_TTL
//   - BUGHUNTER_LOG_LEVEL, BUGHUNTER_LOG_FORMAT, BUGHUNTER_LOG_FILE
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bughunter/apperr"
	"bughunter/logger"
)

// DefaultBaseURL is where the bug injection service listens in a local setup.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Config is the root configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Server  ServerConfig  `yaml:"server"`
	Logging logger.Config `yaml:"logging"`
}

// ServiceConfig describes the remote bug injection / testing service.
type ServiceConfig struct {
	BaseURL   string `yaml:"base_url"`
	AuthToken string `yaml:"auth_token"`
	// Timeout bounds each outbound call; 0 disables it.
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures the web UI.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	Debug  bool   `yaml:"debug"`
	// SessionSecret signs session cookies. A random one is generated when empty,
	// which invalidates sessions on restart.
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL: DefaultBaseURL,
			Timeout: 120 * time.Second,
		},
		Server: ServerConfig{
			Listen:     "127.0.0.1:3000",
			SessionTTL: 30 * time.Minute,
		},
		Logging: logger.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load resolves the configuration. path may be empty, in which case only
// defaults, .env and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeConfigParse, fmt.Sprintf("read config %q", path), err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeConfigParse, fmt.Sprintf("parse config %q", path), err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads variables from file without overriding ones already set.
// A missing file is not an error.
func loadDotEnv(file string) error {
	err := godotenv.Load(file)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return apperr.Wrap(apperr.ErrCodeConfigParse, fmt.Sprintf("load %s", file), err)
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("BUGHUNTER_API_BASE_URL"); v != "" {
		cfg.Service.BaseURL = v
	}
	if v := os.Getenv("BUGHUNTER_AUTH_TOKEN"); v != "" {
		cfg.Service.AuthToken = v
	}
	if v := os.Getenv("BUGHUNTER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return apperr.Wrap(apperr.ErrCodeConfigInvalid, "BUGHUNTER_TIMEOUT", err)
		}
		cfg.Service.Timeout = d
	}

	if v := os.Getenv("BUGHUNTER_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("BUGHUNTER_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apperr.Wrap(apperr.ErrCodeConfigInvalid, "BUGHUNTER_DEBUG", err)
		}
		cfg.Server.Debug = b
	}
	if v := os.Getenv("BUGHUNTER_SESSION_SECRET"); v != "" {
		cfg.Server.SessionSecret = v
	}
	if v := os.Getenv("BUGHUNTER_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return apperr.Wrap(apperr.ErrCodeConfigInvalid, "BUGHUNTER_SESSION_TTL", err)
		}
		cfg.Server.SessionTTL = d
	}

	if v := os.Getenv("BUGHUNTER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BUGHUNTER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("BUGHUNTER_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	return nil
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Service.BaseURL) == "" {
		return apperr.New(apperr.ErrCodeConfigInvalid, "service.base_url is empty")
	}
	if !isAbsoluteURL(c.Service.BaseURL) {
		return apperr.New(apperr.ErrCodeConfigInvalid,
			fmt.Sprintf("service.base_url must be an absolute URL, got=%q", c.Service.BaseURL))
	}
	if c.Service.Timeout < 0 {
		return apperr.New(apperr.ErrCodeConfigInvalid, "service.timeout must not be negative")
	}
	if c.Server.SessionTTL <= 0 {
		return apperr.New(apperr.ErrCodeConfigInvalid, "server.session_ttl must be positive")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return apperr.New(apperr.ErrCodeConfigInvalid,
			fmt.Sprintf("logging.format must be text or json, got=%q", c.Logging.Format))
	}
	return nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
