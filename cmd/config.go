package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tracker"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage tracker configuration.

Values come from flags, TRACKER_* environment variables (a .env file in the
working directory is read first), the config file, then built-in defaults.
Running bare 'tracker config' is the same as 'tracker config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration and where each value comes from",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configKey is one setting as shown by 'config show'.
type configKey struct {
	Key    string
	EnvVar string
}

var configKeys = []configKey{
	{"state_dir", "TRACKER_STATE_DIR"},
	{"env", "TRACKER_ENV"},
	{"host", "TRACKER_HOST"},
	{"port", "TRACKER_PORT"},
	{"store", "TRACKER_STORE"},
	{"mcp.enabled", "TRACKER_MCP_ENABLED"},
	{"log.level", "TRACKER_LOG_LEVEL"},
	{"log.format", "TRACKER_LOG_FORMAT"},
	{"server.url", "TRACKER_SERVER_URL"},
}

// configTemplate renders config.yaml. It reads values straight from viper so
// the file reflects the effective configuration at init time.
var configTemplate = template.Must(template.New("config").Funcs(template.FuncMap{
	"str":  viper.GetString,
	"int":  viper.GetInt,
	"bool": viper.GetBool,
}).Parse(`# tracker configuration
# 'tracker config show' lists effective values and their sources.

# Directory holding the serve PID file
# state_dir: {{ str "state_dir" }}

# Environment name, logged at startup
env: "{{ str "env" }}"

# API server bind address
host: "{{ str "host" }}"
port: {{ int "port" }}

# Issue store: "memory" or "sqlite" (an in-memory SQLite database).
# Either way, issues are gone when the server stops.
store: "{{ str "store" }}"

# Mount the MCP streamable HTTP transport at /mcp
mcp:
  enabled: {{ bool "mcp.enabled" }}

log:
  level: "{{ str "log.level" }}"    # debug, info, warn, error
  format: "{{ str "log.format" }}"  # text or json

# Server used by the issue, status and export commands
server:
  url: "{{ str "server.url" }}"
`))

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	_, statErr := os.Stat(cfgPath)
	exists := statErr == nil
	if exists && !configForce {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
	}

	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, nil); err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would write config file: %s", cfgPath)
		fmt.Fprintf(ui.Out, "\n%s", buf.String())
		return nil
	}
	if exists {
		ui.Warning("Overwriting existing config file")
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintf(ui.Out, "\n%s", buf.String())
	return nil
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	inFile, err := fileKeys(cfgPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		ui.Info("Config file: (none)")
	case err != nil:
		ui.Warning("Config file %s is unreadable: %v", cfgPath, err)
	default:
		ui.Info("Config file: %s", cfgPath)
	}

	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, k := range configKeys {
		_ = table.Append([]string{k.Key, fmt.Sprint(viper.Get(k.Key)), detectSource(k, inFile)})
	}
	return table.Render()
}

// fileKeys returns the dotted keys set in the YAML file at path.
func fileKeys(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	keys := make(map[string]bool)
	for _, k := range flattenKeys("", parsed) {
		keys[k] = true
	}
	return keys, nil
}

// flattenKeys lists the leaf keys of a nested map in dot notation, sorted.
func flattenKeys(prefix string, m map[string]any) []string {
	var keys []string
	for key, val := range m {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			keys = append(keys, flattenKeys(full, nested)...)
			continue
		}
		keys = append(keys, full)
	}
	sort.Strings(keys)
	return keys
}

// detectSource reports where a key's effective value comes from.
func detectSource(k configKey, inFile map[string]bool) string {
	if _, ok := os.LookupEnv(k.EnvVar); ok {
		return "env: " + k.EnvVar
	}
	if inFile[k.Key] {
		return "file"
	}
	return "default"
}

func editorCommand() (string, error) {
	for _, env := range []string{"EDITOR", "VISUAL"} {
		if editor := os.Getenv(env); editor != "" {
			return editor, nil
		}
	}
	return "", fmt.Errorf("$EDITOR is not set, e.g. export EDITOR=vim")
}

func configEditRun() error {
	editor, err := editorCommand()
	if err != nil {
		return err
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config file not found: %s (run 'tracker config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	edit := exec.Command(editor, cfgPath)
	edit.Stdin, edit.Stdout, edit.Stderr = os.Stdin, os.Stdout, os.Stderr
	return edit.Run()
}
