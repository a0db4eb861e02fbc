// Package commands implements the CLI commands for labpool.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "labpool",
	Short: "Pool labeled values from lab notebook sections into a spreadsheet",
	Long: `Labpool finds labeled values in HTML notebook sections and gathers them
into one table: a row per section, a column per label.

Sections can come from an eLabJournal experiment, local HTML files or URLs.
The table is written as an XLSX workbook (or JSON, JSONL, YAML) and can be
uploaded back to the experiment as a new section.

Examples:
  # Pool two labels across an experiment's procedure sections
  labpool pool -e 12345 -l "Actual PCV, Cell ID" -o pooled.xlsx

  # Upload the workbook to the experiment instead of saving it
  labpool pool -e 12345 -l "Actual PCV" --upload

  # Pool from saved HTML files as JSON
  labpool pool -f ./sections -l "Actual PCV" --format json`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.labpool.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
}

func initConfig() {
	// A local .env is optional.
	_ = godotenv.Load()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".labpool")
		viper.SetConfigType("yaml")
	}

	// Environment variables, e.g. LABPOOL_API_KEY
	viper.SetEnvPrefix("LABPOOL")
	viper.AutomaticEnv()
	_ = viper.BindEnv("api_key", "LABPOOL_API_KEY", "ELAB_API_KEY")
	_ = viper.BindEnv("base_url", "LABPOOL_BASE_URL", "ELAB_BASE_URL")

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logError("%v", err)
	}
	return err
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
