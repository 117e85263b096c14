package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/l3aro/go-stmt-graph/internal/scanner"
	"github.com/l3aro/go-stmt-graph/pkg/analysis"
	"github.com/l3aro/go-stmt-graph/pkg/ast"
	"github.com/l3aro/go-stmt-graph/pkg/cparse"
)

// errUnsupportedInput is returned for files that are neither JSON trees nor
// C source.
var errUnsupportedInput = errors.New("unsupported input")

// loadTree reads one input file into a syntax tree according to its
// extension.
func loadTree(ctx context.Context, path string) (*ast.Node, error) {
	switch scanner.DetectInput(path) {
	case scanner.InputAST:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		root, err := ast.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		return root, nil
	case scanner.InputSource:
		return cparse.ParseFile(ctx, path)
	}
	return nil, fmt.Errorf("%w: %s (expected .json or .c)", errUnsupportedInput, path)
}

// analyzeFile runs the pipeline over every function in path. A non-empty
// name keeps only the function with that name.
func analyzeFile(ctx context.Context, path, name string, opts analysis.Options) ([]*analysis.Function, error) {
	root, err := loadTree(ctx, path)
	if err != nil {
		return nil, err
	}
	fns, err := analysis.AnalyzeTree(root, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if name == "" {
		return fns, nil
	}
	for _, f := range fns {
		if f.Name == name {
			return []*analysis.Function{f}, nil
		}
	}
	return nil, fmt.Errorf("function %q not found in %s", name, path)
}
