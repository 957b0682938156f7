package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete spatialbridge configuration
type Config struct {
	Host     HostConfig     `mapstructure:"host"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Features FeaturesConfig `mapstructure:"features"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Scenario ScenarioConfig `mapstructure:"scenario"`
}

// HostConfig controls the frame loop
type HostConfig struct {
	// TickRate is the number of frames per second (default: 60)
	TickRate int `mapstructure:"tick_rate"`
	// Frames is how many frames a run lasts; 0 runs until interrupted
	Frames uint64 `mapstructure:"frames"`
}

// DispatchConfig controls background work
type DispatchConfig struct {
	// Workers bounds how many native calls run concurrently off the main context
	Workers int `mapstructure:"workers"`
}

// FeaturesConfig selects and configures device features
type FeaturesConfig struct {
	// Enabled holds glob patterns matched against feature names
	// (found_objects, barcode, imu). Default: all.
	Enabled []string      `mapstructure:"enabled"`
	Barcode BarcodeConfig `mapstructure:"barcode"`
}

// BarcodeConfig holds the scanner settings applied right after start
type BarcodeConfig struct {
	// Types lists the symbologies to scan for (qr, ean13, upca, code128, datamatrix, aztec)
	Types []string `mapstructure:"types"`
	// FullAnalysis trades latency for pose accuracy
	FullAnalysis bool `mapstructure:"full_analysis"`
}

// LoggingConfig controls the structured log file
type LoggingConfig struct {
	// Enabled writes logs to Dir; when false, logs go nowhere
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Dir is where bridge.log is written (default: <config dir>/logs)
	Dir string `mapstructure:"dir"`
	// MaxSizeMB rotates the log file at this size
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is how many rotated files are kept
	MaxBackups int `mapstructure:"max_backups"`
}

// ScenarioConfig points at the simulated session to run
type ScenarioConfig struct {
	// Path is the scenario YAML file used when none is given on the command line
	Path string `mapstructure:"path"`
	// Watch re-reads barcode settings from the scenario file when it changes
	Watch bool `mapstructure:"watch"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Host: HostConfig{
			TickRate: 60,
			Frames:   0,
		},
		Dispatch: DispatchConfig{
			Workers: 4,
		},
		Features: FeaturesConfig{
			Enabled: []string{"*"},
			Barcode: BarcodeConfig{
				Types:        []string{"qr", "ean13", "upca", "code128", "datamatrix", "aztec"},
				FullAnalysis: false,
			},
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Scenario: ScenarioConfig{
			Path:  "",
			Watch: false,
		},
	}
}

// FrameInterval returns the time between frames
func (c *HostConfig) FrameInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.TickRate)
}

// LogDir returns the configured log directory, or the default one
func (c *LoggingConfig) LogDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return filepath.Join(ConfigDir(), "logs")
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Host defaults
	viper.SetDefault("host.tick_rate", defaults.Host.TickRate)
	viper.SetDefault("host.frames", defaults.Host.Frames)

	// Dispatch defaults
	viper.SetDefault("dispatch.workers", defaults.Dispatch.Workers)

	// Feature defaults
	viper.SetDefault("features.enabled", defaults.Features.Enabled)
	viper.SetDefault("features.barcode.types", defaults.Features.Barcode.Types)
	viper.SetDefault("features.barcode.full_analysis", defaults.Features.Barcode.FullAnalysis)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Scenario defaults
	viper.SetDefault("scenario.path", defaults.Scenario.Path)
	viper.SetDefault("scenario.watch", defaults.Scenario.Watch)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "spatialbridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".spatialbridge"
	}
	return filepath.Join(home, ".config", "spatialbridge")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
