// Package commands provides the CLI commands for the sgraph tool.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-stmt-graph/internal/config"
	"github.com/l3aro/go-stmt-graph/internal/log"
)

var (
	cfgFile string
	verbose bool

	appConfig *config.Config = config.DefaultConfig()
	logger    log.Logger     = log.Default()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "sgraph",
	Short: "sgraph - Statement graphs and def-use dataflow for C functions",
	Long: `sgraph flattens C functions into statement graphs annotated with
def-use edges, guard evidence and buffer/call features.

Inputs are upstream JSON syntax trees (.json) or C source files (.c).

Commands:
  analyze     Build the graph of every function in one input
  batch       Analyze every input under a directory in parallel
  slice       Backward or forward slice from one statement
  init        Create a configuration file interactively

Use "sgraph [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" {
			return nil
		}
		return setup()
	},
}

// setup loads configuration and builds the logger shared by all commands.
func setup() error {
	var err error
	if cfgFile != "" {
		appConfig, err = config.LoadFromFile(cfgFile)
	} else {
		appConfig, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		appConfig.Verbose = true
	}

	logger = log.New(log.LoggerConfig{
		Level:      appConfig.Level(),
		JSONOutput: appConfig.LogJSON,
	})
	logger.Debug("config loaded", "format", appConfig.Format, "workers", appConfig.Workers)
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.sgraph/config.yaml, ./.sgraph/config.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Debug logging")

	RootCmd.AddCommand(analyzeCmd)
	RootCmd.AddCommand(batchCmd)
	RootCmd.AddCommand(sliceCmd)
	RootCmd.AddCommand(initCmd)
}
