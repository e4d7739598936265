package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envConfigPath = "IPCAM_CONFIG"
	envToken      = "IPCAM_TOKEN"

	// DefaultSweepInterval is how often pending requests are checked for timeouts.
	DefaultSweepInterval = 10 * time.Second
)

// Config is the per-service configuration loaded from app.yml.
type Config struct {
	// Token identifies this service to peers. Defaults to the service name.
	Token string `yaml:"token"`
	// SweepInterval is in whole seconds.
	SweepInterval int `yaml:"sweep_interval,omitempty"`

	Bind      map[string]string `yaml:"bind,omitempty"`
	Connect   map[string]string `yaml:"connect,omitempty"`
	Publish   map[string]string `yaml:"publish,omitempty"`
	Subscribe map[string]string `yaml:"subscribe,omitempty"`

	Logging LoggingConfig `yaml:"logging,omitempty"`
	Status  StatusConfig  `yaml:"status,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `yaml:"format,omitempty"`
	Level     string `yaml:"level,omitempty"`
	AddSource bool   `yaml:"add_source,omitempty"`
}

// StatusConfig configures the optional HTTP status server. A zero port disables it.
type StatusConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// LoadConfig resolves app.yml, parses it and applies environment overrides.
func LoadConfig() (*Config, error) {
	path, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadFile(path)
}

// LoadFile parses the config at path and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Parse decodes YAML content without consulting the environment.
func Parse(content []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if cfg.SweepInterval < 0 {
		return nil, fmt.Errorf("sweep_interval must not be negative, got %d", cfg.SweepInterval)
	}

	return &cfg, nil
}

// MergeDefault sets key to value when the config does not define it.
func (c *Config) MergeDefault(key, value string) {
	switch key {
	case "token":
		if strings.TrimSpace(c.Token) == "" {
			c.Token = value
		}
	case "sweep_interval":
		if c.SweepInterval == 0 {
			if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
				c.SweepInterval = seconds
			}
		}
	}
}

// Get returns the scalar setting named key, or "" when unknown.
func (c *Config) Get(key string) string {
	switch key {
	case "token":
		return c.Token
	case "sweep_interval":
		if c.SweepInterval == 0 {
			return ""
		}
		return strconv.Itoa(c.SweepInterval)
	case "logging.format":
		return c.Logging.Format
	case "logging.level":
		return c.Logging.Level
	default:
		return ""
	}
}

// Collection returns a copy of the endpoint table named key
// (bind, connect, publish or subscribe).
func (c *Config) Collection(key string) map[string]string {
	var src map[string]string
	switch key {
	case "bind":
		src = c.Bind
	case "connect":
		src = c.Connect
	case "publish":
		src = c.Publish
	case "subscribe":
		src = c.Subscribe
	}

	out := make(map[string]string, len(src))
	maps.Copy(out, src)
	return out
}

// Sweep returns the sweep cadence, falling back to DefaultSweepInterval.
func (c *Config) Sweep() time.Duration {
	if c.SweepInterval <= 0 {
		return DefaultSweepInterval
	}
	return time.Duration(c.SweepInterval) * time.Second
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envToken)); token != "" {
		cfg.Token = token
	}
}

// findConfigPath resolves the active config file location.
//
// Precedence is IPCAM_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config", "app.yml"),
		filepath.Join(cwd, "app.yml"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("app.yml not found (checked %s and %s)", candidates[0], candidates[1])
}
