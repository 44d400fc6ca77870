package cmd

import (
	"strings"

	"github.com/Iron-Ham/pagebook/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "pagebook",
	Short: "Versioned page store with conditional writes",
	Long: `Pagebook keeps a set of titled text pages. Every page carries an opaque
version; writes name the version they were based on and are refused when
someone else got there first, so concurrent editors never silently
overwrite each other.

Pages live in a data directory (one markdown file per page by default) or
in SQLite, and can be served over HTTP with 'pagebook serve'.`,
	SilenceUsage: true,
}

// flagToken is the admission credential given on the command line.
var flagToken string

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/pagebook/config.yaml)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "data directory (overrides store.data_dir)")
	rootCmd.PersistentFlags().String("backend", "", "store backend: memory, file, sqlite (overrides store.backend)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "admission token (default: $PAGEBOOK_TOKEN, then prompt)")
	bindFlags()
}

// bindFlags lets the global flags override their configuration keys.
func bindFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("store.data_dir", flags.Lookup("data-dir"))
	_ = viper.BindPFlag("store.backend", flags.Lookup("backend"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/pagebook")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PAGEBOOK")
	// Replace dots with underscores for nested keys in env vars
	// e.g., PAGEBOOK_STORE_BACKEND for store.backend
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
