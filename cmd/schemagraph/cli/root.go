package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemagraph",
		Short: "Reverse engineer database schemas into a navigable graph",
		Long: `schemagraph reads catalog metadata from live databases (PostgreSQL, MySQL,
SQL Server, SQLite, Snowflake, Oracle) and loads it lazily into a graph of
catalogs, schemas, tables, columns, indexes and foreign key relationships.

Inspect a source from the terminal, or serve the graphs read-only over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./schemagraph.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for saved sources (default: ~/.schemagraph)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	viper.BindPFlag("logging.level", cmd.PersistentFlags().Lookup("log-level"))

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd(version))
	cmd.AddCommand(newSourcesCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("schemagraph")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.schemagraph")
	}

	viper.SetEnvPrefix("SCHEMAGRAPH")
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
