package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/tracker/internal/client"
	"github.com/joescharf/tracker/internal/logging"
	"github.com/joescharf/tracker/internal/output"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "In-memory issue tracker API",
	Long: `tracker serves a small JSON API for filing, filtering, updating and
deleting issues grouped by project. All state lives in process memory and is
discarded when the server stops.

Run 'tracker serve' to start the API, then use 'tracker issue' to talk to it.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/tracker/config.yaml)")
}

func initConfig() {
	// A .env in the working directory seeds the environment; real env vars win.
	_ = godotenv.Load()

	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TRACKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key's default value.
func setDefaults() {
	stateDir, _ := configDirFunc()

	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("env", "development")
	viper.SetDefault("host", "")
	viper.SetDefault("port", 3000)
	viper.SetDefault("store", "memory")
	viper.SetDefault("mcp.enabled", false)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("server.url", "http://localhost:3000")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	if err := logging.Setup(logging.Config{
		Level:  level,
		Format: viper.GetString("log.format"),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newClient returns an API client for the configured server.
func newClient() *client.Client {
	url := viper.GetString("server.url")
	ui.VerboseLog("Using server %s", url)
	return client.New(url)
}

// stateDir returns the directory holding the PID file.
func stateDir() string {
	dir := viper.GetString("state_dir")
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "tracker")
	}
	return dir
}
