package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-stmt-graph/pkg/pdg"
)

type sliceOptions struct {
	path     string
	function string
	sid      int
	forward  bool
	variable string
	json     bool
}

type sliceResult struct {
	Function  string   `json:"function"`
	SID       int      `json:"sid"`
	Direction string   `json:"direction"`
	Variable  string   `json:"variable,omitempty"`
	SIDs      []int    `json:"sids"`
	Variables []string `json:"variables,omitempty"`
}

var sliceCmd = &cobra.Command{
	Use:   "slice <file> --sid N [--forward] [--var KEY] [--function NAME] [--json]",
	Short: "Backward or forward slice from one statement",
	Long: `Follows def-use edges and statement containment from one statement.

Backward slice: every statement that may affect the statement.
Forward slice: every statement the statement may affect.

With --var only def-use edges carrying that variable key are followed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := sliceOptions{path: args[0]}
		opts.sid, _ = cmd.Flags().GetInt("sid")
		opts.forward, _ = cmd.Flags().GetBool("forward")
		opts.variable, _ = cmd.Flags().GetString("var")
		opts.function, _ = cmd.Flags().GetString("function")
		opts.json, _ = cmd.Flags().GetBool("json")
		if opts.sid < 0 {
			return fmt.Errorf("statement id must not be negative: %d", opts.sid)
		}
		return runSlice(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func runSlice(ctx context.Context, opts sliceOptions, w io.Writer) error {
	analysisOpts := appConfig.AnalysisOptions()
	analysisOpts.Debug = true

	fns, err := analyzeFile(ctx, opts.path, opts.function, analysisOpts)
	if err != nil {
		return err
	}
	if len(fns) > 1 {
		return fmt.Errorf("%s defines %d functions, select one with --function", opts.path, len(fns))
	}
	g := fns[0].Graph

	res := sliceResult{
		Function:  g.Function,
		SID:       opts.sid,
		Direction: "backward",
		Variable:  opts.variable,
		Variables: pdg.VariableKeys(g),
	}
	if opts.forward {
		res.Direction = "forward"
		res.SIDs = pdg.ForwardSlice(g, opts.sid, opts.variable)
	} else {
		res.SIDs = pdg.BackwardSlice(g, opts.sid, opts.variable)
	}
	if res.SIDs == nil {
		res.SIDs = []int{}
	}

	if opts.json {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}
	printSlice(w, res, g)
	return nil
}

func printSlice(w io.Writer, res sliceResult, g *pdg.Graph) {
	fmt.Fprintf(w, "=== Slice for function: %s (sid %d, %s) ===\n", res.Function, res.SID, res.Direction)
	if res.Variable != "" {
		fmt.Fprintf(w, "Variable filter: %s\n", res.Variable)
	}

	fmt.Fprintf(w, "\nStatements (%d): %s\n", len(res.SIDs), formatRanges(res.SIDs))
	if len(res.SIDs) == 0 {
		return
	}

	in := make(map[int]bool, len(res.SIDs))
	for _, sid := range res.SIDs {
		in[sid] = true
	}
	fmt.Fprintln(w, "\n--- Statements in slice ---")
	for _, n := range g.Nodes {
		if !in[n.SID] {
			continue
		}
		marker := "  "
		if n.SID == res.SID {
			marker = "> "
		}
		code := ""
		if n.Debug != nil {
			code = n.Debug.Code
		}
		fmt.Fprintf(w, "%s%4d  %-22s %s\n", marker, n.SID, n.Feat.NodeTypeID, oneLine(code))
	}
}

// formatRanges renders sorted ids as "1-3, 5, 7-8".
func formatRanges(sids []int) string {
	if len(sids) == 0 {
		return "none"
	}

	var ranges []string
	start, end := sids[0], sids[0]
	flush := func() {
		if start == end {
			ranges = append(ranges, strconv.Itoa(start))
		} else {
			ranges = append(ranges, fmt.Sprintf("%d-%d", start, end))
		}
	}
	for _, sid := range sids[1:] {
		if sid == end+1 {
			end = sid
			continue
		}
		flush()
		start, end = sid, sid
	}
	flush()
	return strings.Join(ranges, ", ")
}

func oneLine(code string) string {
	code = strings.Join(strings.Fields(code), " ")
	if len(code) > 60 {
		code = code[:57] + "..."
	}
	return code
}

func init() {
	sliceCmd.Flags().Int("sid", 0, "Statement id to slice from")
	sliceCmd.Flags().Bool("forward", false, "Forward slice (default backward)")
	sliceCmd.Flags().String("var", "", "Only follow def-use edges for this variable key")
	sliceCmd.Flags().StringP("function", "f", "", "Function to slice when the file defines several")
	sliceCmd.Flags().Bool("json", false, "Output as JSON")
	_ = sliceCmd.MarkFlagRequired("sid")
}
