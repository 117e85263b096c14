package cfg

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-stmt-graph/pkg/ast"
	"github.com/l3aro/go-stmt-graph/pkg/callsig"
	"github.com/l3aro/go-stmt-graph/pkg/guard"
)

// ErrNoFunctionBody is returned when a function node has no compound body.
var ErrNoFunctionBody = errors.New("function has no body")

type flattener struct {
	tree   *ast.Tree
	bound  int
	result *Result
}

// chain tracks the first and most recent sid produced within one block.
type chain struct {
	first int
	last  int
}

func newChain() chain { return chain{first: -1, last: -1} }

// Flatten walks the body of fn and returns its statement-level structure.
func Flatten(fn *ast.Node, opts Options) (*Result, error) {
	if fn == nil {
		return nil, fmt.Errorf("flatten: %w", ErrNoFunctionBody)
	}
	name := fn.Name
	if name == "" {
		name = "<func>"
	}

	body := ast.Body(fn)
	if body == nil {
		return nil, fmt.Errorf("flatten %s: %w", name, ErrNoFunctionBody)
	}

	f := &flattener{
		tree:  ast.NewTree(fn),
		bound: opts.boundCap(),
		result: &Result{
			Function: name,
		},
	}

	entry := Statement{
		SID:  EntrySID,
		Kind: ast.KindFunctionEntry,
		Code: "<entry:" + name + ">",
	}
	if fn.HasID {
		entry.OrigID, entry.HasOrig = fn.ID, true
	}
	f.result.Statements = append(f.result.Statements, entry)

	f.block(body, EntrySID, guard.Evidence{}, false)
	f.postProcessControlCalls()
	return f.result, nil
}

// block flattens a compound statement and returns its first and last sid,
// or -1 for both when it produced nothing.
func (f *flattener) block(n *ast.Node, parent int, ev guard.Evidence, inLoop bool) (int, int) {
	c := newChain()
	f.items(n.Children, parent, ev, inLoop, &c)
	return c.first, c.last
}

// region flattens a branch or loop body, accepting either a block or a
// single statement.
func (f *flattener) region(n *ast.Node, parent int, ev guard.Evidence, inLoop bool) int {
	if n == nil {
		return -1
	}
	if n.Kind == ast.KindCompoundStatement {
		first, _ := f.block(n, parent, ev, inLoop)
		return first
	}
	c := newChain()
	f.items([]*ast.Node{n}, parent, ev, inLoop, &c)
	return c.first
}

func (f *flattener) items(nodes []*ast.Node, parent int, ev guard.Evidence, inLoop bool, c *chain) {
	for _, n := range nodes {
		switch n.Kind {
		case ast.KindCompoundStatement:
			first, last := f.block(n, parent, ev.Clone(), inLoop)
			f.link(c, first, last)

		case ast.KindSwitchCase, ast.KindLabel:
			f.items(n.Children, parent, ev, inLoop, c)

		case ast.KindIfStatement:
			f.ifStatement(n, parent, ev, inLoop, c)

		case ast.KindForStatement:
			f.loop(n, n.Child(0), n.Child(1), n.Child(3), parent, ev, inLoop, c)

		case ast.KindWhileStatement:
			f.loop(n, nil, n.Child(0), n.Child(1), parent, ev, inLoop, c)

		case ast.KindDoWhileStatement:
			body := n.FirstChild(ast.KindCompoundStatement)
			f.loop(n, nil, Condition(n), body, parent, ev, inLoop, c)

		case ast.KindSwitchStatement:
			sid := f.emit(n, n.TrimmedCode(), parent, ev, inLoop, c)
			if body := n.Child(1); body != nil && body.Kind == ast.KindCompoundStatement {
				f.block(body, sid, ev.Clone(), inLoop)
			}

		case ast.KindStandardLibCall, ast.KindUserDefinedCall, ast.KindCallExpression:
			sid := f.emit(n, n.TrimmedCode(), parent, ev, inLoop, c)
			f.callFeatures(sid, n)

		case ast.KindVariableDeclaration, ast.KindPointerDeclaration, ast.KindAssignment,
			ast.KindReturnStatement:
			sid := f.emit(n, n.TrimmedCode(), parent, ev, inLoop, c)
			if n.Kind == ast.KindAssignment {
				f.allocCorrection(sid, n)
			}

		case ast.KindArrayDeclaration, ast.KindArraySizeAlloc:
			sid := f.emit(n, n.TrimmedCode(), parent, ev, inLoop, c)
			feat := &f.result.Statements[sid].Features
			feat.IsBufferDecl = true
			feat.BufferSizeState, feat.BufferSizeNorm = BufferShape(n.Code, f.bound)

		case ast.KindUnaryExpression, ast.KindUnaryOperator:
			if IsUpdate(n) {
				f.emit(n, n.TrimmedCode(), parent, ev, inLoop, c)
			}
		}
	}
}

func (f *flattener) ifStatement(n *ast.Node, parent int, ev guard.Evidence, inLoop bool, c *chain) {
	cond := n.Child(0)
	code := cond.TrimmedCode()
	if cond == nil {
		code = n.TrimmedCode()
	}
	sid := f.emit(n, code, parent, ev, inLoop, c)

	condEv := guard.FromCondition(cond, f.bound)
	if first := f.region(n.Child(1), sid, ev.Merge(condEv), inLoop); first >= 0 {
		f.guardEdge(sid, first, GuardIf, BranchThen)
	}
	if first := f.region(n.Child(2), sid, ev.Clone(), inLoop); first >= 0 {
		f.guardEdge(sid, first, GuardIf, BranchElse)
	}
}

func (f *flattener) loop(n, init, cond, body *ast.Node, parent int, ev guard.Evidence, inLoop bool, c *chain) {
	header := guard.FromCondition(cond, f.bound)
	if init != nil {
		header = header.Merge(guard.FromForInit(init))
	}
	scoped := ev.Merge(header)

	sid := f.emit(n, n.TrimmedCode(), parent, scoped, inLoop, c)
	f.result.Statements[sid].Features.IsLoop = true

	if first := f.region(body, sid, scoped, true); first >= 0 {
		f.guardEdge(sid, first, GuardLoop, BranchBody)
	}
}

// emit appends a statement for n, wires its parent and sibling edges, and
// fills the guard and loop features from ev.
func (f *flattener) emit(n *ast.Node, code string, parent int, ev guard.Evidence, inLoop bool, c *chain) int {
	sid := len(f.result.Statements)
	st := Statement{
		SID:  sid,
		Kind: n.Kind,
		Code: code,
	}
	if n.HasID {
		st.OrigID, st.HasOrig = n.ID, true
	}
	st.Features.InLoop = inLoop
	st.Features.GuardStrength, st.Features.UpperBoundNorm = ev.Aggregate()
	f.result.Statements = append(f.result.Statements, st)

	f.result.ParentChild = append(f.result.ParentChild, Edge{From: parent, To: sid})
	f.link(c, sid, sid)
	return sid
}

// link appends a produced [first, last] range to the block chain.
func (f *flattener) link(c *chain, first, last int) {
	if first < 0 {
		return
	}
	if c.last >= 0 {
		f.result.Siblings = append(f.result.Siblings, Edge{From: c.last, To: first})
	}
	if c.first < 0 {
		c.first = first
	}
	c.last = last
}

func (f *flattener) guardEdge(from, to int, kind GuardKind, branch Branch) {
	f.result.Guards = append(f.result.Guards, GuardEdge{From: from, To: to, Kind: kind, Branch: branch})
}

func (f *flattener) callFeatures(sid int, n *ast.Node) {
	feat := &f.result.Statements[sid].Features
	name := n.CallName()
	if name != "" {
		feat.CallCategory = callsig.CategoryOf(name)
	} else {
		feat.CallCategory = callsig.CategoryFromCode(n.Code)
		name = callsig.FirstCalledName(n.Code)
	}
	feat.Flags = callsig.ComputeFlags(n.Code, name)
}

// Condition returns the condition subtree of a control statement.
func Condition(n *ast.Node) *ast.Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case ast.KindIfStatement, ast.KindWhileStatement, ast.KindSwitchStatement:
		return n.Child(0)
	case ast.KindForStatement:
		return n.Child(1)
	case ast.KindDoWhileStatement:
		for _, c := range n.Children {
			if c.Kind != ast.KindCompoundStatement {
				return c
			}
		}
	}
	return nil
}

// IsUpdate reports whether n is a ++ or -- expression.
func IsUpdate(n *ast.Node) bool {
	if n == nil || !n.Kind.IsUnary() {
		return false
	}
	switch n.Operator {
	case "++", "--", "p++", "p--", "++p", "--p":
		return true
	}
	return false
}
