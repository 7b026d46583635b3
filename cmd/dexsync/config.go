package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/jamesainslie/dexsync/pkg/dexsync/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage dexsync configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/dexsync/config.yaml (if set)
  2. ~/.config/dexsync/config.yaml

Environment variables can override config file settings using the DEXSYNC_ prefix:
  DEXSYNC_BASE_URL=http://localhost:8080/api/v2
  DEXSYNC_DATA_DIR=/srv/static
  DEXSYNC_MOVES_WORKERS=8
  DEXSYNC_HTTP_RATE_LIMIT=10`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Show config file being used
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("base_url:               %s\n", cfg.BaseURL)
	fmt.Printf("data_dir:               %s\n", cfg.DataDir)
	fmt.Printf("http.timeout:           %s\n", cfg.HTTP.Timeout)
	fmt.Printf("http.rate_limit:        %v\n", cfg.HTTP.RateLimit)
	fmt.Printf("http.page_size:         %d\n", cfg.HTTP.PageSize)
	fmt.Printf("http.user_agent:        %s\n", cfg.HTTP.UserAgent)
	fmt.Printf("locale.primary:         %s\n", cfg.Locale.Primary)
	fmt.Printf("locale.secondary:       %s\n", cfg.Locale.Secondary)
	for _, name := range config.Resources {
		fmt.Printf("%-24s%d\n", name+".workers:", cfg.Workers(name))
	}
	fmt.Printf("history.enabled:        %t\n", cfg.History.Enabled)
	fmt.Printf("history.path:           %s\n", cfg.History.Path)
	fmt.Printf("history.retention:      %d days\n", cfg.History.RetentionDays)
	fmt.Printf("logging.level:          %s\n", cfg.Logging.Level)
	fmt.Printf("logging.path:           %s\n", cfg.Logging.Path)
	fmt.Printf("logging.console:        %s\n", cfg.Logging.Console)

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	overrides := envOverrides(os.Environ())
	for _, kv := range overrides {
		fmt.Println(kv)
	}
	if len(overrides) == 0 {
		fmt.Println("(none)")
	}

	return nil
}

// envOverrides returns the DEXSYNC_ variables in env, sorted.
func envOverrides(env []string) []string {
	var out []string
	for _, kv := range env {
		if strings.HasPrefix(kv, "DEXSYNC_") {
			out = append(out, kv)
		}
	}
	sort.Strings(out)
	return out
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	// Ensure config file exists
	if _, err := config.WriteDefault(configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	// Determine editor
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	created, err := config.WriteDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if !created {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'dexsync config edit' to modify it.")
		return nil
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	fmt.Println(configPath)

	// Show if file exists
	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}

	return nil
}
