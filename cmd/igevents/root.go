package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"igevents/pkg/auth"
	"igevents/pkg/config"
	"igevents/pkg/logger"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igevents",
	Short: "Extract structured events from scraped Instagram posts",
	Long: `igevents turns scraped Instagram posts into structured calendar events.

It reads unprocessed posts from the local database, sends their captions,
bios, and images through a vision language model with strict quota tracking,
validates and normalizes the extracted events, and stores them with their
categories and tags.

API credentials are resolved from, in order:
  - IGEVENTS_API_KEY environment variable
  - System keychain (igevents auth set)
  - Encrypted credential file`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .igevents.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`igevents {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig resolves credentials into the environment, then loads and
// validates configuration from all sources.
func loadConfig() (*config.Config, error) {
	if os.Getenv("IGEVENTS_API_KEY") == "" {
		if manager, err := auth.NewManager(); err == nil {
			if cred, err := manager.Retrieve(auth.DefaultProvider); err == nil {
				os.Setenv("IGEVENTS_API_KEY", cred.APIKey)
			}
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// loadConfigLenient loads configuration without requiring credentials.
// Database-only commands use it.
func loadConfigLenient() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, err
	}
	cfg.LoadFromEnv()
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// initLogging sets up the global logger from config
func initLogging(cfg *config.Config) {
	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
}
