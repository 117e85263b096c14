// Package cfg flattens a function body into statement-level nodes linked by
// containment, sequential-sibling and guard-dependency edges.
package cfg

import (
	"github.com/l3aro/go-stmt-graph/pkg/ast"
	"github.com/l3aro/go-stmt-graph/pkg/callsig"
	"github.com/l3aro/go-stmt-graph/pkg/guard"
)

// EntrySID is the sid of the synthetic function-entry statement.
const EntrySID = 0

// GuardKind tags what kind of control construct a guard edge leaves.
type GuardKind int

const (
	GuardNone GuardKind = 0
	GuardIf   GuardKind = 1
	GuardLoop GuardKind = 2
)

// Branch selects which dependent region a guard edge enters.
type Branch int

const (
	BranchThen Branch = 0
	BranchElse Branch = 1
	BranchBody Branch = 2
)

// BufferSizeState classifies an array declaration's dimensions.
type BufferSizeState int

const (
	BufferSizeNA       BufferSizeState = 0 // Not an array, or no dimension
	BufferSizeConst    BufferSizeState = 1 // Every dimension is a compile-time constant
	BufferSizeNonConst BufferSizeState = 2 // Some dimension depends on a runtime value
)

// Features is the per-statement feature bag produced by flattening.
type Features struct {
	InLoop bool // Nested inside a loop body
	IsLoop bool // Statement is a loop header

	GuardStrength  guard.Strength
	UpperBoundNorm float64

	IsBufferDecl    bool
	BufferSizeState BufferSizeState
	BufferSizeNorm  float64

	CallCategory callsig.Category
	callsig.Flags
}

// Statement is one flattened statement.
type Statement struct {
	SID      int
	Kind     ast.Kind
	Code     string
	OrigID   int  // Id of the tree node the statement came from
	HasOrig  bool // Whether OrigID is set
	Features Features
}

// Edge is a directed structural edge between two sids.
type Edge struct {
	From int
	To   int
}

// GuardEdge links a control statement to the first statement of a region it
// guards.
type GuardEdge struct {
	From   int
	To     int
	Kind   GuardKind
	Branch Branch
}

// Result is the flattened form of one function.
type Result struct {
	Function    string
	Statements  []Statement
	ParentChild []Edge
	Siblings    []Edge
	Guards      []GuardEdge
}

// Statement returns the statement with the given sid.
func (r *Result) Statement(sid int) (Statement, bool) {
	if sid < 0 || sid >= len(r.Statements) {
		return Statement{}, false
	}
	return r.Statements[sid], true
}

// Options tunes flattening.
type Options struct {
	// UpperBoundCap is the value that normalizes to 1.0 for guard bounds
	// and buffer sizes. Non-positive means guard.DefaultCap.
	UpperBoundCap int
}

func (o Options) boundCap() int {
	if o.UpperBoundCap <= 0 {
		return guard.DefaultCap
	}
	return o.UpperBoundCap
}
