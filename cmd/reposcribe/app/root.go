// Package app provides the reposcribe CLI's cobra commands.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// RootCmd is reposcribe itself: a single command taking one optional
// positional source argument plus the flag surface of spec.md §6.
// There are no subcommands — cache-stats/clear-cache are flags on the
// same invocation, not separate verbs, mirroring a single-purpose CLI
// rather than the multi-resource teacher CLI this project started from.
var RootCmd = &cobra.Command{
	Use:   "reposcribe [source]",
	Short: "Flatten a git repository, subtree, or gist into a single text artifact",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIngest,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $PWD/config.yaml)")

	flags := RootCmd.Flags()
	flags.StringSlice("include", nil, "glob pattern to include (repeatable, comma-separated)")
	flags.StringSlice("exclude", nil, "glob pattern to exclude (repeatable, comma-separated)")
	flags.Int64("max-size", 0, "skip files larger than this many bytes (0 = 10 MiB default)")
	flags.String("branch", "", "branch or ref to ingest (default: remote HEAD)")
	flags.String("path", "", "ingest only this sub-path of the repository")
	flags.String("preset", "standard", "filter preset: raw, standard, code-only, minimal")
	flags.Bool("raw", false, "shorthand for --preset=raw")
	flags.Bool("stats-only", false, "print file count/size/token estimate instead of the artifact body")
	flags.StringP("output", "o", "", "write the artifact to this path instead of stdout")
	flags.BoolP("quiet", "q", false, "suppress progress output on stderr")
	flags.Bool("no-cache", false, "bypass the artifact cache for this request")
	flags.Bool("force-refresh", false, "ignore cached commit metadata and re-fetch the remote HEAD")
	flags.Bool("clear-cache", false, "remove all cached working copies and index entries, then exit")
	flags.Bool("cache-stats", false, "print index cache entry count and disk usage, then exit")

	for _, name := range []string{
		"include", "exclude", "max-size", "branch", "path", "preset", "raw",
		"stats-only", "output", "quiet", "no-cache", "force-refresh",
		"clear-cache", "cache-stats",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
	}
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Println("Error reading config file:", err)
		}
	}
}
