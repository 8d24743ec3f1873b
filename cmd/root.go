package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/pagegen/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagegen",
	Short: "Compile a pages directory into router modules",
	Long: `pagegen turns a pages and layouts directory into generated router modules
for a bundler, extracting page metadata declared with definePageMeta and
regenerating when pages or layouts are added or removed.

Quick Start:
  pagegen init                    Write a default .pagegen.yml
  pagegen generate                Generate modules into .pagegen/
  pagegen dev                     Generate and watch for changes
  pagegen routes                  Show the compiled routes`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .pagegen.yml, can also use PAGEGEN_CONFIG_FILE env var)")
	flags.String("root", ".", "project root directory")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("root_dir", flags.Lookup("root"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

// initConfig initializes the configuration system.
//
// Config file priority (highest to lowest):
//  1. --config flag
//  2. PAGEGEN_CONFIG_FILE environment variable
//  3. .pagegen.yml in the current directory
//
// Every key can be overridden with a PAGEGEN_ variable, dots replaced by
// underscores, e.g. PAGEGEN_DIR_PAGES=src/pages.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PAGEGEN_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pagegen")
	}

	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("PAGEGEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing or unreadable file falls back to defaults; validation in
	// config.Load reports bad values.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
