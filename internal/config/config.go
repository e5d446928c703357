package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks fatal configuration problems. The daemon
// terminates at startup when it is returned.
var ErrConfiguration = errors.New("configuration error")

// Config represents the application configuration
type Config struct {
	Bridge       BridgeConfig   `yaml:"bridge"`
	Sync         SyncConfig     `yaml:"sync"`
	Naming       string         `yaml:"naming"` // "append" or "prepend"
	PollInterval Duration       `yaml:"poll_interval"`
	Queue        QueueConfig    `yaml:"queue"`
	Policy       PolicyConfig   `yaml:"policy"`
	Pruner       PrunerConfig   `yaml:"pruner"`
	Database     DatabaseConfig `yaml:"database"`
	Log          LogConfig      `yaml:"log"`
}

// BridgeConfig contains Hue bridge connection settings
type BridgeConfig struct {
	IP      string   `yaml:"ip"`
	Port    int      `yaml:"port"`
	User    string   `yaml:"user"`
	Secure  bool     `yaml:"secure"`
	Timeout Duration `yaml:"timeout"` // HTTP timeout for bridge requests
}

// SyncConfig toggles mirroring per bridge namespace
type SyncConfig struct {
	Lights        bool `yaml:"lights"`
	Groups        bool `yaml:"groups"`
	Sensors       bool `yaml:"sensors"`
	Scenes        bool `yaml:"scenes"`
	Schedules     bool `yaml:"schedules"`
	Rules         bool `yaml:"rules"`
	Resourcelinks bool `yaml:"resourcelinks"`
	Config        bool `yaml:"config"`
	Recycled      bool `yaml:"recycled"` // include auto-recycled resources
}

// Enabled reports whether a namespace is mirrored.
func (s *SyncConfig) Enabled(namespace string) bool {
	switch namespace {
	case "lights":
		return s.Lights
	case "groups":
		return s.Groups
	case "sensors":
		return s.Sensors
	case "scenes":
		return s.Scenes
	case "schedules":
		return s.Schedules
	case "rules":
		return s.Rules
	case "resourcelinks":
		return s.Resourcelinks
	case "config":
		return s.Config
	default:
		return false
	}
}

// QueueConfig contains command queue and dispatcher settings
type QueueConfig struct {
	FlushInterval Duration `yaml:"flush_interval"` // queue drain interval
	MaxAttempts   int      `yaml:"max_attempts"`   // transport retry bound
	RetryDelay    Duration `yaml:"retry_delay"`    // fixed delay between retries
	RateLimitRPS  float64  `yaml:"rate_limit_rps"` // bridge request rate limit
}

// PolicyConfig contains the cross-field business rule flags
type PolicyConfig struct {
	BriWhenOff bool `yaml:"bri_when_off"` // force brightness/level to 0 while off
	HueToXY    bool `yaml:"hue_to_xy"`    // convert hue/sat to xy for non-Philips lights
}

// PrunerConfig contains staleness pruner settings
type PrunerConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
	MaxAge   Duration `yaml:"max_age"`
}

// DatabaseConfig contains database settings. An empty path selects the
// in-memory store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// GetLevel returns the configured level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Naming == "" {
		cfg.Naming = "append"
	}

	// Polling faster than 2s overloads the bridge
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(30 * time.Second)
	}
	if cfg.PollInterval.Duration() < 2*time.Second {
		cfg.PollInterval = Duration(2 * time.Second)
	}

	if cfg.Bridge.Timeout == 0 {
		cfg.Bridge.Timeout = Duration(30 * time.Second)
	}

	// Queue defaults
	if cfg.Queue.FlushInterval == 0 {
		cfg.Queue.FlushInterval = Duration(3 * time.Second)
	}
	if cfg.Queue.FlushInterval.Duration() < time.Second {
		cfg.Queue.FlushInterval = Duration(time.Second)
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Queue.RetryDelay == 0 {
		cfg.Queue.RetryDelay = Duration(3 * time.Second)
	}
	if cfg.Queue.RateLimitRPS == 0 {
		cfg.Queue.RateLimitRPS = 10.0
	}

	// Pruner defaults
	if cfg.Pruner.Interval == 0 {
		cfg.Pruner.Interval = Duration(time.Hour)
	}
	if cfg.Pruner.MaxAge == 0 {
		cfg.Pruner.MaxAge = Duration(24 * time.Hour)
	}
}

// Validate checks the settings without which the daemon cannot run.
func (cfg *Config) Validate() error {
	if cfg.Bridge.IP == "" {
		return fmt.Errorf("%w: bridge.ip is required", ErrConfiguration)
	}
	if cfg.Bridge.User == "" {
		return fmt.Errorf("%w: bridge.user is required", ErrConfiguration)
	}
	if cfg.Naming != "append" && cfg.Naming != "prepend" {
		return fmt.Errorf("%w: naming must be \"append\" or \"prepend\", got %q", ErrConfiguration, cfg.Naming)
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
