// Package analysis runs the full pipeline for C functions: statement
// flattening, def-use resolution and graph assembly.
package analysis

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-stmt-graph/pkg/ast"
	"github.com/l3aro/go-stmt-graph/pkg/cfg"
	"github.com/l3aro/go-stmt-graph/pkg/dfg"
	"github.com/l3aro/go-stmt-graph/pkg/guard"
	"github.com/l3aro/go-stmt-graph/pkg/pdg"
)

// ErrNoFunctions is returned when a tree holds no function definition.
var ErrNoFunctions = errors.New("no function definitions")

// Options is passed explicitly into every analysis. The zero value uses the
// default bound cap and omits the debug companion.
type Options struct {
	UpperBoundCap int  // Normalization cap for upper guard bounds and buffer sizes
	Debug         bool // Attach code and variable names to the output graph
}

// DefaultOptions returns the options used by the CLI when nothing is
// configured.
func DefaultOptions() Options {
	return Options{UpperBoundCap: guard.DefaultCap, Debug: true}
}

// Function is the complete analysis of one function definition.
type Function struct {
	Name       string
	Flat       *cfg.Result
	Resolution *dfg.Result
	Graph      *pdg.Graph
}

// AnalyzeFunction analyses a single FunctionDefinition node.
func AnalyzeFunction(fn *ast.Node, opts Options) (*Function, error) {
	flat, err := cfg.Flatten(fn, cfg.Options{UpperBoundCap: opts.UpperBoundCap})
	if err != nil {
		return nil, err
	}
	res := dfg.Resolve(ast.NewTree(fn), flat)
	return &Function{
		Name:       flat.Function,
		Flat:       flat,
		Resolution: res,
		Graph:      pdg.Build(flat, res, pdg.Options{Debug: opts.Debug}),
	}, nil
}

// AnalyzeTree analyses every function definition under root in source
// order. In a tree with several definitions, bodiless ones are skipped.
func AnalyzeTree(root *ast.Node, opts Options) ([]*Function, error) {
	fns := ast.Functions(root)
	if len(fns) == 0 {
		return nil, ErrNoFunctions
	}

	out := make([]*Function, 0, len(fns))
	for _, fn := range fns {
		f, err := AnalyzeFunction(fn, opts)
		if err != nil {
			if len(fns) > 1 && errors.Is(err, cfg.ErrNoFunctionBody) {
				continue
			}
			return nil, fmt.Errorf("analyze: %w", err)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, ErrNoFunctions
	}
	return out, nil
}

// Graphs returns the output graph of each analysed function.
func Graphs(fns []*Function) []*pdg.Graph {
	graphs := make([]*pdg.Graph, 0, len(fns))
	for _, f := range fns {
		graphs = append(graphs, f.Graph)
	}
	return graphs
}
