package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/spatialbridge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify spatialbridge configuration",
	Long: `View or modify spatialbridge configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  spatialbridge config set host.tick_rate 90
  spatialbridge config set features.enabled barcode,imu
  spatialbridge config set logging.level debug

Valid keys:
  host.tick_rate                - Frames per second
  host.frames                   - Frames per run (0 = play the plan out)
  dispatch.workers              - Background workers for native calls
  features.enabled              - Comma-separated glob patterns of features
  features.barcode.types        - Comma-separated barcode types applied at start
  features.barcode.full_analysis - Slower, more accurate barcode poses (true/false)
  logging.enabled               - Write the log file (true/false)
  logging.level                 - debug, info, warn, error
  logging.dir                   - Log directory
  scenario.path                 - Scenario played when none is given
  scenario.watch                - Push barcode settings when the scenario file changes (true/false)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/spatialbridge/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// configKeys maps settable keys to their value kind.
var configKeys = map[string]string{
	"host.tick_rate":                 "int",
	"host.frames":                    "int",
	"dispatch.workers":               "int",
	"features.enabled":               "list",
	"features.barcode.types":         "list",
	"features.barcode.full_analysis": "bool",
	"logging.enabled":                "bool",
	"logging.level":                  "string",
	"logging.dir":                    "string",
	"logging.max_size_mb":            "int",
	"logging.max_backups":            "int",
	"scenario.path":                  "string",
	"scenario.watch":                 "bool",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if viper.ConfigFileUsed() != "" {
		_, _ = fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		_, _ = fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(configDocument(cfg))
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// configDocument renders cfg with the same keys the config file uses.
func configDocument(cfg *config.Config) map[string]any {
	return map[string]any{
		"host": map[string]any{
			"tick_rate": cfg.Host.TickRate,
			"frames":    cfg.Host.Frames,
		},
		"dispatch": map[string]any{
			"workers": cfg.Dispatch.Workers,
		},
		"features": map[string]any{
			"enabled": cfg.Features.Features(),
			"barcode": map[string]any{
				"types":         cfg.Features.Barcode.Types,
				"full_analysis": cfg.Features.Barcode.FullAnalysis,
			},
		},
		"logging": map[string]any{
			"enabled":     cfg.Logging.Enabled,
			"level":       cfg.Logging.Level,
			"dir":         cfg.Logging.LogDir(),
			"max_size_mb": cfg.Logging.MaxSizeMB,
			"max_backups": cfg.Logging.MaxBackups,
		},
		"scenario": map[string]any{
			"path":  cfg.Scenario.Path,
			"watch": cfg.Scenario.Watch,
		},
	}
}

// parseConfigValue converts value to the kind key expects.
func parseConfigValue(key, value string) (any, error) {
	kind, ok := configKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'spatialbridge config set --help' to see valid keys", key)
	}

	switch kind {
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	case "list":
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	}
	return value, nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	typed, err := parseConfigValue(key, value)
	if err != nil {
		return err
	}

	viper.Set(key, typed)
	// Refuse to write a file that would not load.
	if _, err := config.Load(); err != nil {
		return err
	}

	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Set %s = %v\n", key, typed)
	_, _ = fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

const defaultConfigFile = `# spatialbridge configuration

# Frame loop
host:
  # Frames per second
  tick_rate: 60
  # Frames per run; 0 plays the scenario plan out
  frames: 0

# Background workers for blocking native calls
dispatch:
  workers: 4

features:
  # Glob patterns of features to start: found_objects, barcode, imu
  enabled: ["*"]
  # Scanner settings applied right after start
  barcode:
    types: [qr, ean13, upca, code128, datamatrix, aztec]
    full_analysis: false

logging:
  enabled: true
  # debug, info, warn, error
  level: info
  # Defaults to ~/.config/spatialbridge/logs
  dir: ""
  max_size_mb: 10
  max_backups: 3

scenario:
  # Played when no scenario file is given on the command line
  path: ""
  # Push barcode settings whenever the scenario file is saved
  watch: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'spatialbridge config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigFile), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		_, _ = fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		_, _ = fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	_, _ = fmt.Fprintln(out, "\nSearch paths:")
	_, _ = fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	_, _ = fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	_, _ = fmt.Fprintln(out, "\nEnvironment variables: SPATIALBRIDGE_* (e.g., SPATIALBRIDGE_HOST_TICK_RATE)")
	return nil
}
