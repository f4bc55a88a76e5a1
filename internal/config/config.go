// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Tracker session settings
	Tracker TrackerConfig `mapstructure:"tracker"`

	// Daemon control socket
	Daemon DaemonConfig `mapstructure:"daemon"`

	// Remote event stream over SSH
	Stream StreamConfig `mapstructure:"stream"`

	// Local sample persistence
	SampleLog SampleLogConfig `mapstructure:"samplelog"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// TrackerConfig contains the construction-time settings of a tracker
type TrackerConfig struct {
	Simulated     bool          `mapstructure:"simulated"`
	IPAddress     string        `mapstructure:"ip_address"` // Empty means vendor default discovery
	DisplayWidth  int           `mapstructure:"display_width"`
	DisplayHeight int           `mapstructure:"display_height"`
	NumCalPoints  int           `mapstructure:"num_calpoints"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
}

// DaemonConfig contains daemon-specific settings
type DaemonConfig struct {
	SocketPath string `mapstructure:"socket_path"`
}

// StreamConfig contains the SSH event stream settings
type StreamConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Port          int      `mapstructure:"port"`
	HostKeyPath   string   `mapstructure:"host_key_path"`
	Whitelist     []string `mapstructure:"whitelist"`      // Allowed SSH key fingerprints
	WhitelistOnly bool     `mapstructure:"whitelist_only"` // Reject keys not in the whitelist
	Buffer        int      `mapstructure:"buffer"`         // Per-session event buffer
}

// SampleLogConfig contains the SQLite sample log settings
type SampleLogConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	BatchSize int    `mapstructure:"batch_size"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	FileLogging bool   `mapstructure:"file_logging"` // Enable/disable file logging for the TUI
	LogLevel    string `mapstructure:"log_level"`    // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Tracker: TrackerConfig{
			Simulated:    true,
			NumCalPoints: 9,
			PollInterval: time.Millisecond,
		},
		Daemon: DaemonConfig{
			SocketPath: defaultSocketPath(),
		},
		Stream: StreamConfig{
			Enabled:       false,
			Port:          52526,
			HostKeyPath:   filepath.Join(os.TempDir(), "geye_host_key"),
			Whitelist:     []string{},
			WhitelistOnly: false,
			Buffer:        256,
		},
		SampleLog: SampleLogConfig{
			Enabled:   false,
			Path:      "geye-samples.db",
			BatchSize: 250,
		},
		Logging: LoggingConfig{
			FileLogging: true,
			LogLevel:    "",
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("geye")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "geye"))
		}
		viper.AddConfigPath("/etc/geye")
		viper.AddConfigPath(".")
	}

	viper.SetDefault("tracker.simulated", DefaultConfig.Tracker.Simulated)
	viper.SetDefault("tracker.ip_address", DefaultConfig.Tracker.IPAddress)
	viper.SetDefault("tracker.display_width", DefaultConfig.Tracker.DisplayWidth)
	viper.SetDefault("tracker.display_height", DefaultConfig.Tracker.DisplayHeight)
	viper.SetDefault("tracker.num_calpoints", DefaultConfig.Tracker.NumCalPoints)
	viper.SetDefault("tracker.poll_interval", DefaultConfig.Tracker.PollInterval)

	viper.SetDefault("daemon.socket_path", DefaultConfig.Daemon.SocketPath)

	viper.SetDefault("stream.enabled", DefaultConfig.Stream.Enabled)
	viper.SetDefault("stream.port", DefaultConfig.Stream.Port)
	viper.SetDefault("stream.host_key_path", DefaultConfig.Stream.HostKeyPath)
	viper.SetDefault("stream.whitelist", DefaultConfig.Stream.Whitelist)
	viper.SetDefault("stream.whitelist_only", DefaultConfig.Stream.WhitelistOnly)
	viper.SetDefault("stream.buffer", DefaultConfig.Stream.Buffer)

	viper.SetDefault("samplelog.enabled", DefaultConfig.SampleLog.Enabled)
	viper.SetDefault("samplelog.path", DefaultConfig.SampleLog.Path)
	viper.SetDefault("samplelog.batch_size", DefaultConfig.SampleLog.BatchSize)

	viper.SetDefault("logging.file_logging", DefaultConfig.Logging.FileLogging)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		if os.IsPermission(err) && strings.Contains(configPath, "/etc/") {
			return fmt.Errorf("failed to create config directory %s: permission denied. Try running with sudo", dir)
		}
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/geye/geye.toml"
	}

	return filepath.Join(home, ".config", "geye", "geye.toml")
}

// UpdateTracker updates the tracker section and persists it
func UpdateTracker(trackerCfg TrackerConfig) error {
	viper.Set("tracker.simulated", trackerCfg.Simulated)
	viper.Set("tracker.ip_address", trackerCfg.IPAddress)
	viper.Set("tracker.display_width", trackerCfg.DisplayWidth)
	viper.Set("tracker.display_height", trackerCfg.DisplayHeight)
	viper.Set("tracker.num_calpoints", trackerCfg.NumCalPoints)
	Get().Tracker = trackerCfg
	return Save()
}

// AddStreamKey adds an SSH key fingerprint to the stream whitelist
func AddStreamKey(fingerprint string) error {
	c := Get()

	for _, fp := range c.Stream.Whitelist {
		if fp == fingerprint {
			return fmt.Errorf("key already whitelisted")
		}
	}

	c.Stream.Whitelist = append(c.Stream.Whitelist, fingerprint)
	viper.Set("stream.whitelist", c.Stream.Whitelist)
	return Save()
}

// RemoveStreamKey removes an SSH key fingerprint from the stream whitelist
func RemoveStreamKey(fingerprint string) error {
	c := Get()

	for i, fp := range c.Stream.Whitelist {
		if fp == fingerprint {
			c.Stream.Whitelist = append(c.Stream.Whitelist[:i], c.Stream.Whitelist[i+1:]...)
			viper.Set("stream.whitelist", c.Stream.Whitelist)
			return Save()
		}
	}

	return fmt.Errorf("key not found in whitelist")
}

// IsStreamKeyWhitelisted checks if an SSH key fingerprint is whitelisted
func IsStreamKeyWhitelisted(fingerprint string) bool {
	for _, fp := range Get().Stream.Whitelist {
		if fp == fingerprint {
			return true
		}
	}
	return false
}

func defaultSocketPath() string {
	name := "geye"
	if u, err := user.Current(); err == nil {
		name = fmt.Sprintf("geye-%s", u.Username)
	}
	return filepath.Join(os.TempDir(), name+".sock")
}
