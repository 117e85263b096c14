package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-stmt-graph/pkg/analysis"
	"github.com/l3aro/go-stmt-graph/pkg/output"
)

type analyzeOptions struct {
	path     string
	function string
	out      string
	format   output.Format
	analysis analysis.Options
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Build the statement graph of every function in a file",
	Long: `Reads an upstream JSON syntax tree (.json) or a C source file (.c) and
writes one graph per function definition: statement nodes with features,
def-use edges and structural edges.

A single function is written as an object, several as an array.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := analyzeFlags(cmd, args[0])
		if err != nil {
			return err
		}
		return runAnalyze(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func analyzeFlags(cmd *cobra.Command, path string) (analyzeOptions, error) {
	opts := analyzeOptions{path: path, analysis: appConfig.AnalysisOptions()}
	opts.function, _ = cmd.Flags().GetString("function")
	opts.out, _ = cmd.Flags().GetString("output")

	formatName := appConfig.Format
	if cmd.Flags().Changed("format") {
		formatName, _ = cmd.Flags().GetString("format")
	}
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return opts, err
	}
	opts.format = format

	if noDebug, _ := cmd.Flags().GetBool("no-debug"); noDebug {
		opts.analysis.Debug = false
	}
	return opts, nil
}

func runAnalyze(ctx context.Context, opts analyzeOptions, stdout io.Writer) error {
	fns, err := analyzeFile(ctx, opts.path, opts.function, opts.analysis)
	if err != nil {
		return err
	}
	logger.Debug("analyzed", "file", opts.path, "functions", len(fns))

	w := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return output.Encode(w, opts.format, analysis.Graphs(fns))
}

func init() {
	analyzeCmd.Flags().StringP("function", "f", "", "Only emit the function with this name")
	analyzeCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	analyzeCmd.Flags().String("format", "", "Output format: json or msgpack (default from config)")
	analyzeCmd.Flags().Bool("no-debug", false, "Omit code and variable names from the output")
}
