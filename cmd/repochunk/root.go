package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/repochunk/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "repochunk",
	Short: "Split repositories into token-bounded chunks",
	Long: `repochunk packs the files of a repository into an ordered sequence of
chunks that each fit a model's token budget, with summaries, a navigation
index and cross-chunk dependency references.

Run it from the command line or as an MCP server over stdio.`,
	Version:      version,
	SilenceUsage: true,
}

// rootFlags holds the persistent flags
type rootFlags struct {
	config  string
	verbose bool
}

var rootOpts rootFlags

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootOpts.config, "config", "c", "",
		"config file (default is $HOME/.repochunk/config.yaml and ./"+config.ProjectConfigFile+")")
	rootCmd.PersistentFlags().BoolVarP(&rootOpts.verbose, "verbose", "v", false, "log progress to stderr")
}

// loadConfig loads the configuration file named by --config, or the layered
// global and project configuration.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if rootOpts.config != "" {
		return loader.LoadFromPath(rootOpts.config)
	}
	if wd, err := os.Getwd(); err == nil {
		loader = loader.WithProjectRoot(wd)
	}
	return loader.Load()
}

// newLogger writes to stderr when verbose, since stdout carries results.
func newLogger() *log.Logger {
	if !rootOpts.verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "repochunk: ", log.LstdFlags)
}
