// Package app provides the reposcribed server's cobra commands.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reposcribe/reposcribe/internal/config"
)

var (
	cfgFile string

	// RootCmd is the base command run when reposcribed is invoked with
	// no subcommand.
	RootCmd = &cobra.Command{
		Use:   "reposcribed",
		Short: "reposcribed serves repository ingestion and diffs over HTTP and WebSocket",
	}
)

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println("Error on execute:", err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $PWD/config.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
	}
	viper.SetConfigType("yaml")
	config.SetViperDefaults(viper.GetViper())
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Println("Error reading config file:", err)
		}
	}
}
