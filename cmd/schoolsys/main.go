package main

import (
	"github.com/loykin/schoolsys/cmd/schoolsys/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "schoolsys",
	Short:         "School management backend: schema migrations and HTTP API",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return migrateCmd.RunE(cmd, args)
	},
}

func init() {
	v := viper.GetViper()
	// Environment variables support: SCHOOLSYS_CONFIG, SCHOOLSYS_DATABASE_*, legacy DB_* and PORT
	v.SetEnvPrefix("SCHOOLSYS")
	_ = v.BindEnv("config")
	config.BindEnv(v)

	rootCmd.PersistentFlags().String("config", config.DefaultPath, "path to the config yaml")
	rootCmd.PersistentFlags().String("log-level", "", "log level (error, warn, info, debug)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json, color)")
	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthcheckCmd)
	rootCmd.AddCommand(createCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
