// Package config loads and validates the agent configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"genflow-agent/internal/domain/model"
)

const (
	// DefaultBasePath is where generation state, session archive and build
	// logs live unless overridden.
	DefaultBasePath = "/var/lib/genflow-agent"
	// DefaultSourceURL is the default configuration source API address.
	DefaultSourceURL = "http://localhost:8080"
	// DefaultRegistryURL is the default issue registry API address.
	DefaultRegistryURL = "http://localhost:8081"
	// DefaultUpdateInterval is how often the daemon starts an update cycle
	// per target.
	DefaultUpdateInterval = time.Hour
)

// Duration is a time.Duration that unmarshals from YAML strings like "30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (d *Duration) UnmarshalYAML(b []byte) error {
	var raw string
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.BytesMarshaler.
func (d Duration) MarshalYAML() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// BuilderConfig describes the external build command.
type BuilderConfig struct {
	// Command is the build executable and its fixed leading arguments. The
	// revision payload reference and any remediation directives are appended
	// per invocation.
	Command []string `yaml:"command"`
	WorkDir string   `yaml:"work_dir,omitempty"`
	// EnvFile is an optional dotenv file merged into the build environment.
	EnvFile string `yaml:"env_file,omitempty"`
	// LogsPath overrides where raw build logs are persisted. Defaults to
	// <base_path>/logs.
	LogsPath string `yaml:"logs_path,omitempty"`
}

// TargetConfig is one managed target system and its update policy.
type TargetConfig struct {
	ID                     string   `yaml:"id"`
	MaxRemediationAttempts int      `yaml:"max_remediation_attempts,omitempty"`
	AutoProceedOnCritical  bool     `yaml:"auto_proceed_on_critical,omitempty"`
	Timeout                Duration `yaml:"timeout,omitempty"`
}

// Policy converts the per-target settings into a domain policy. Zero values
// fall through to the policy defaults.
func (t TargetConfig) Policy() model.Policy {
	return model.Policy{
		MaxRemediationAttempts: t.MaxRemediationAttempts,
		AutoProceedOnCritical:  t.AutoProceedOnCritical,
		Timeout:                time.Duration(t.Timeout),
	}.Normalized()
}

// Config holds the application configuration.
type Config struct {
	LogLevel string `yaml:"log_level,omitempty"`
	// BasePath is the agent state directory.
	BasePath string `yaml:"base_path,omitempty"`
	// SourceURL is the configuration source API base URL.
	SourceURL string `yaml:"source_url,omitempty"`
	// RegistryURL is the issue registry API base URL. Empty disables the
	// risk check entirely.
	RegistryURL string `yaml:"registry_url,omitempty"`
	// WebhookURL receives session reports. Empty falls back to log-only
	// notifications.
	WebhookURL string `yaml:"webhook_url,omitempty"`

	Builder BuilderConfig  `yaml:"builder"`
	Targets []TargetConfig `yaml:"targets"`

	// UpdateInterval is the daemon's per-target cycle interval.
	UpdateInterval Duration `yaml:"update_interval,omitempty"`
}

// StatePath returns the directory holding per-target generation state.
func (c *Config) StatePath() string {
	return filepath.Join(c.BasePath, "generations")
}

// ArchivePath returns the session archive database directory.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.BasePath, "sessions")
}

// BuildLogsPath returns where raw build logs are stored.
func (c *Config) BuildLogsPath() string {
	if c.Builder.LogsPath != "" {
		return c.Builder.LogsPath
	}
	return filepath.Join(c.BasePath, "logs")
}

// Target returns the configuration for the given target ID.
func (c *Config) Target(id string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.ID == id {
			return t, true
		}
	}
	return TargetConfig{}, false
}

func defaults() *Config {
	return &Config{
		LogLevel:       "info",
		BasePath:       DefaultBasePath,
		SourceURL:      DefaultSourceURL,
		RegistryURL:    DefaultRegistryURL,
		UpdateInterval: Duration(DefaultUpdateInterval),
	}
}

// LoadConfig loads the configuration from a YAML file, applying defaults
// for anything the file omits.
func LoadConfig(configPath string) (*Config, error) {
	config := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	applyDefaults(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyDefaults(c *Config) {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	if c.SourceURL == "" {
		c.SourceURL = DefaultSourceURL
	}
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = Duration(DefaultUpdateInterval)
	}
}

// Validate checks the invariants a running agent depends on.
func (c *Config) Validate() error {
	if len(c.Builder.Command) == 0 {
		return fmt.Errorf("config: builder.command must not be empty")
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("config: at least one target is required")
	}
	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		if t.ID == "" {
			return fmt.Errorf("config: targets[%d] has no id", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("config: duplicate target id %q", t.ID)
		}
		seen[t.ID] = true
		if t.MaxRemediationAttempts < 0 {
			return fmt.Errorf("config: target %q has a negative remediation attempt bound", t.ID)
		}
	}
	return nil
}

// SaveConfig writes the configuration to a YAML file, creating the parent
// directory if needed.
func SaveConfig(config *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}
	return nil
}
