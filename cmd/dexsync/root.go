package main

import (
	"fmt"
	"os"

	"github.com/jamesainslie/dexsync/pkg/dexsync/config"
	"github.com/jamesainslie/dexsync/pkg/dexsync/logging"
	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "dexsync",
		Short: "Mirror catalog resources into dated local snapshots",
		Long: `Dexsync keeps local snapshots of remote catalog resources up to date.

Each resource (abilities, species, moves) has a manifest naming its current
dated snapshot file. A sync fetches only the entries the snapshot is missing,
publishes a new snapshot, then repoints the manifest.

Examples:
  dexsync init                 # Create data directories and empty manifests
  dexsync sync                 # Sync every resource
  dexsync sync moves           # Sync one resource
  dexsync sync -o json         # Machine-readable report
  dexsync status               # Show what each manifest points at
  dexsync prune --dry-run      # List orphaned snapshot files
  dexsync history              # View past sync runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/dexsync/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding manifests and snapshots")
	rootCmd.PersistentFlags().String("base-url", "", "catalog API root")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	// Bind flags to viper
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		if dir, err := config.ConfigDir(); err == nil {
			viper.AddConfigPath(dir)
		}
	}

	config.Bind(viper.GetViper())

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	_ = logging.Close()
	return err
}

// loadConfig decodes the global viper state and starts logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging applies the logging section, with -v and -q adjusting the
// console level.
func setupLogging(cfg *config.Config) error {
	path := cfg.Logging.Path
	if path == "" {
		path = logging.DefaultLogPath()
	}

	console := cfg.Logging.Console
	switch {
	case getQuiet():
		console = ""
	case getVerbose():
		console = "debug"
	}

	return logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Path:       path,
		Console:    console,
		Components: cfg.Logging.Components,
	})
}

// locales returns the display-name chain from cfg.
func locales(cfg *config.Config) resource.Locales {
	return resource.Locales{Primary: cfg.Locale.Primary, Secondary: cfg.Locale.Secondary}
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
