package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/pagebook/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify Pagebook configuration",
	Long: `View or modify Pagebook configuration.

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
  pagebook config set store.backend sqlite
  pagebook config set journal.enabled true
  pagebook config set server.address 0.0.0.0:8420

Valid keys:
` + validKeysHelp(),
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/pagebook/config.yaml with all available options.`,
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

// settableKeys maps every key accepted by 'config set' to its value type.
var settableKeys = map[string]string{
	"store.backend":                "string",
	"store.data_dir":               "string",
	"store.sqlite_file":            "string",
	"auth.token":                   "string",
	"auth.max_attempts":            "int",
	"journal.enabled":              "bool",
	"journal.author_name":          "string",
	"journal.author_email":         "string",
	"watch.enabled":                "bool",
	"watch.debounce_ms":            "int",
	"server.address":               "string",
	"server.read_timeout_seconds":  "int",
	"server.write_timeout_seconds": "int",
	"server.max_body_bytes":        "int",
	"logging.enabled":              "bool",
	"logging.level":                "string",
	"logging.max_size_mb":          "int",
	"logging.max_backups":          "int",
	"logging.compress":             "bool",
}

func validKeysHelp() string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-30s (%s)\n", k, settableKeys[k])
	}
	return sb.String()
}

// redactedToken replaces the admission token when configuration is printed.
const redactedToken = "********"

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "%s %s\n", mutedStyle.Render("Config file:"), viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "%s (none - using defaults)\n", mutedStyle.Render("Config file:"))
	}
	fmt.Fprintln(out)

	settings := viper.AllSettings()
	delete(settings, "config")
	if section, ok := settings["auth"].(map[string]any); ok {
		if _, ok := section["token"]; ok {
			section["token"] = redactedToken
		}
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	fmt.Fprint(out, string(data))

	if _, err := config.Load(); err != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, warningStyle.Render("Configuration is invalid:"))
		fmt.Fprintln(out, err.Error())
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	keyType, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'pagebook config set --help' to see valid keys", key)
	}

	var typedValue any
	switch keyType {
	case "string":
		typedValue = value
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = b
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		typedValue = intVal
	}

	previous := viper.Get(key)
	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("refusing to save invalid configuration: %w", err)
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	shown := typedValue
	if key == "auth.token" {
		shown = redactedToken
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s = %v\n", successStyle.Render("Set"), key, shown)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

const configTemplate = `# Pagebook Configuration

# Where pages are kept
store:
  # Backend: memory (lost on exit), file (one markdown file per page), sqlite
  backend: file
  # Data directory for pages, the index, the lock file and logs.
  # Empty means ~/.local/share/pagebook
  data_dir: ""
  # SQLite database file, relative to data_dir unless absolute
  sqlite_file: pagebook.db

# Admission
auth:
  # Shared token a session must present before touching pages.
  # Can also be set with PAGEBOOK_AUTH_TOKEN.
  token: changeme
  # Token prompts before giving up (0 = unlimited)
  max_attempts: 3

# Git history of the data directory (file backend only)
journal:
  enabled: false
  author_name: pagebook
  author_email: pagebook@localhost

# Pick up edits made to page files by other programs while serving
watch:
  enabled: true
  debounce_ms: 100

# HTTP API ('pagebook serve')
server:
  address: 127.0.0.1:8420
  read_timeout_seconds: 15
  write_timeout_seconds: 15
  max_body_bytes: 8388608

# Structured logs, written to {data_dir}/pagebook.log
logging:
  enabled: true
  # debug, info, warn, error
  level: info
  max_size_mb: 10
  max_backups: 3
  compress: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'pagebook config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The token is a secret, so the file is private
	if err := os.WriteFile(configFile, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", successStyle.Render("Created config file at"), configFile)
	fmt.Fprintln(out, "Change auth.token before serving pages to anyone else.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/pagebook/config.yaml\n")
	fmt.Fprintln(out, "\nEnvironment variables: PAGEBOOK_* (e.g., PAGEBOOK_STORE_BACKEND)")
	return nil
}
