package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-stmt-graph/internal/log"
	"github.com/l3aro/go-stmt-graph/internal/scanner"
	"github.com/l3aro/go-stmt-graph/pkg/analysis"
	"github.com/l3aro/go-stmt-graph/pkg/dirty"
	"github.com/l3aro/go-stmt-graph/pkg/output"
)

type batchOptions struct {
	root        string
	outDir      string
	workers     int
	failFast    bool
	incremental bool
	format      output.Format
	analysis    analysis.Options
	scan        scanner.Options
}

// batchSummary counts what a batch run produced.
type batchSummary struct {
	Files     int
	Functions int
	Failed    int
	Skipped   int
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Analyze every input under a directory in parallel",
	Long: `Walks a directory for upstream JSON trees and C sources and writes one
output file per input, mirroring the directory layout under --out.

Paths matched by .sgraphignore files are skipped. A failing input is logged
and counted; --fail-fast stops the batch at the first failure instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := batchFlags(cmd, args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sum, err := runBatch(ctx, opts)
		fmt.Fprintf(cmd.OutOrStdout(), "Analyzed %d files (%d functions), %d unchanged, %d failed\n",
			sum.Files-sum.Skipped, sum.Functions, sum.Skipped, sum.Failed)
		if err != nil {
			return err
		}
		if sum.Failed > 0 {
			return fmt.Errorf("%d of %d files failed", sum.Failed, sum.Files)
		}
		return nil
	},
}

func batchFlags(cmd *cobra.Command, root string) (batchOptions, error) {
	opts := batchOptions{
		root:     root,
		outDir:   appConfig.OutputDir,
		workers:  appConfig.Workers,
		analysis: appConfig.AnalysisOptions(),
		scan:     scanner.DefaultOptions(),
	}
	opts.scan.Extensions = appConfig.Extensions

	if cmd.Flags().Changed("out") {
		opts.outDir, _ = cmd.Flags().GetString("out")
	}
	if cmd.Flags().Changed("workers") {
		opts.workers, _ = cmd.Flags().GetInt("workers")
	}
	if opts.workers <= 0 {
		return opts, fmt.Errorf("workers must be positive: %d", opts.workers)
	}
	opts.failFast, _ = cmd.Flags().GetBool("fail-fast")
	opts.incremental, _ = cmd.Flags().GetBool("incremental")

	formatName := appConfig.Format
	if cmd.Flags().Changed("format") {
		formatName, _ = cmd.Flags().GetString("format")
	}
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return opts, err
	}
	opts.format = format
	return opts, nil
}

func runBatch(ctx context.Context, opts batchOptions) (batchSummary, error) {
	files, err := scanner.New(opts.scan).Scan(opts.root)
	if err != nil {
		return batchSummary{}, fmt.Errorf("scanning %s: %w", opts.root, err)
	}
	logger.Info("batch started", "root", opts.root, "files", len(files), "workers", opts.workers)

	var tracker *dirty.Tracker
	if opts.incremental {
		tracker = dirty.New(opts.outDir)
		if err := tracker.Load(); err != nil {
			logger.Warn("ignoring batch state", "err", err)
			tracker = dirty.New(opts.outDir)
		}
	}
	signature := opts.signature()

	var functions, failed, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers)

	scheduled := 0
	for _, file := range files {
		if gctx.Err() != nil {
			break
		}
		scheduled++
		file := file
		g.Go(func() error {
			flog := log.With(logger, "file", file.Path)
			var hash string
			if tracker != nil {
				changed, h, err := tracker.Check(gctx, file.Path, file.FullPath, signature)
				if err == nil && !changed && exists(outputPath(opts.outDir, file.Path, opts.format)) {
					skipped.Add(1)
					flog.Debug("unchanged")
					return nil
				}
				hash = h
			}

			n, err := batchFile(gctx, file, opts)
			if err != nil {
				failed.Add(1)
				if tracker != nil {
					tracker.Forget(file.Path)
				}
				flog.Error("analysis failed", "err", err)
				if opts.failFast {
					return fmt.Errorf("%s: %w", file.Path, err)
				}
				return nil
			}
			functions.Add(int64(n))
			if tracker != nil && hash != "" {
				tracker.Record(file.Path, hash, signature)
			}
			flog.Debug("written", "functions", n)
			return nil
		})
	}

	err = g.Wait()
	sum := batchSummary{
		Files:     scheduled,
		Functions: int(functions.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}
	if tracker != nil {
		if serr := tracker.Save(); serr != nil {
			logger.Warn("saving batch state", "err", serr)
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("batch interrupted", "scheduled", scheduled, "total", len(files))
		}
		return sum, err
	}
	logger.Info("batch finished", "files", sum.Files, "functions", sum.Functions, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

// batchFile analyses one input and writes its graphs, returning the number
// of functions written.
func batchFile(ctx context.Context, file scanner.FileInfo, opts batchOptions) (int, error) {
	fns, err := analyzeFile(ctx, file.FullPath, "", opts.analysis)
	if err != nil {
		return 0, err
	}

	dst := outputPath(opts.outDir, file.Path, opts.format)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("creating output file: %w", err)
	}
	if err := output.Encode(f, opts.format, analysis.Graphs(fns)); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("closing %s: %w", dst, err)
	}
	return len(fns), nil
}

// signature identifies the options that shape a written graph.
func (o batchOptions) signature() string {
	return fmt.Sprintf("%s/debug=%t/cap=%d", o.format, o.analysis.Debug, o.analysis.UpperBoundCap)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// outputPath maps a slash-separated input path relative to the batch root to
// its output file under outDir.
func outputPath(outDir, rel string, format output.Format) string {
	rel = filepath.FromSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(outDir, rel+format.Extension())
}

func init() {
	batchCmd.Flags().StringP("out", "o", "", "Output directory (default from config)")
	batchCmd.Flags().IntP("workers", "w", 0, "Parallel workers (default from config)")
	batchCmd.Flags().String("format", "", "Output format: json or msgpack (default from config)")
	batchCmd.Flags().Bool("fail-fast", false, "Stop at the first failing input")
	batchCmd.Flags().Bool("incremental", false, "Skip inputs unchanged since the last run into --out")
}
