package cfg

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/l3aro/go-stmt-graph/pkg/ast"
	"github.com/l3aro/go-stmt-graph/pkg/callsig"
	"github.com/l3aro/go-stmt-graph/pkg/guard"
	"github.com/l3aro/go-stmt-graph/pkg/refs"
)

var (
	dimensionPattern = regexp.MustCompile(`\[[^\]]+\]`)
	integerPattern   = regexp.MustCompile(`^\d+$`)
)

// BufferShape classifies the dimensions of an array declaration's source
// text and, for all-literal dimensions, returns their normalized product.
func BufferShape(code string, bound int) (BufferSizeState, float64) {
	dims := dimensionPattern.FindAllString(code, -1)
	if len(dims) == 0 {
		return BufferSizeNA, 0
	}

	product := 1.0
	evaluable := true
	for _, d := range dims {
		expr := strings.TrimSpace(d[1 : len(d)-1])
		if callsig.HasIdentifier(callsig.StripSizeof(expr)) {
			return BufferSizeNonConst, 0
		}
		if !integerPattern.MatchString(expr) {
			evaluable = false
			continue
		}
		v, err := strconv.ParseFloat(expr, 64)
		if err != nil {
			evaluable = false
			continue
		}
		product *= v
	}

	if !evaluable {
		return BufferSizeConst, 0
	}
	return BufferSizeConst, guard.Normalize(product, bound)
}

// allocCorrection marks an assignment whose right-hand side is an
// allocation call.
func (f *flattener) allocCorrection(sid int, n *ast.Node) {
	rhs := unwrap(n.Child(1))
	if rhs == nil {
		return
	}
	call := rhs.Find(func(c *ast.Node) bool { return c.Kind.IsCall() })
	if call == nil {
		return
	}
	name := call.CallName()
	if name == "" {
		name = callsig.FirstCalledName(call.Code)
	}
	if !callsig.IsAlloc(name) {
		return
	}

	feat := &f.result.Statements[sid].Features
	feat.CallCategory = callsig.CategoryAlloc
	if containsSizeof(call) {
		feat.AllocSizeof = callsig.AllocHasSizeof
	} else {
		feat.AllocSizeof = callsig.AllocNoSizeof
	}
}

func unwrap(n *ast.Node) *ast.Node {
	for n != nil && n.Kind.IsWrapper() {
		inner := refs.Operand(n)
		if inner == nil {
			return n
		}
		n = inner
	}
	return n
}

func containsSizeof(n *ast.Node) bool {
	if strings.Contains(n.Code, "sizeof") {
		return true
	}
	return n.Find(func(c *ast.Node) bool { return c.Kind == ast.KindSizeOf }) != nil
}

// postProcessControlCalls re-derives the call features of if/while/for
// statements from the first call in their condition.
func (f *flattener) postProcessControlCalls() {
	for i := range f.result.Statements {
		st := &f.result.Statements[i]
		switch st.Kind {
		case ast.KindIfStatement, ast.KindWhileStatement, ast.KindForStatement, ast.KindDoWhileStatement:
		default:
			continue
		}
		if !st.HasOrig {
			continue
		}
		orig, ok := f.tree.Lookup(st.OrigID)
		if !ok {
			continue
		}
		cond := Condition(orig)
		if cond == nil {
			continue
		}
		call := cond.Find(func(c *ast.Node) bool { return c.Kind.IsCall() })
		if call == nil {
			continue
		}

		name := call.CallName()
		st.Features.CallCategory = callsig.CategoryOf(name)
		st.Features.Flags = callsig.ComputeFlags(call.Code, name)
		if f.lengthMatchesDeclaration(call, name) {
			st.Features.LenLinkedToDst = true
			st.Features.SizeofNonDst = false
		}
	}
}

// lengthMatchesDeclaration reports whether the size argument of a bounded
// call is textually the declared length of its destination array.
func (f *flattener) lengthMatchesDeclaration(call *ast.Node, name string) bool {
	sig, ok := callsig.Lookup(name)
	if !ok || !sig.Bounded || !sig.HasDst() || !sig.HasSize() {
		return false
	}
	args := call.CallArgs()
	if sig.Dst >= len(args) || sig.Size >= len(args) {
		return false
	}
	dstName := refs.First(args[sig.Dst])
	if dstName == "" {
		dstName = callsig.FirstIdent(args[sig.Dst].Code)
	}
	declLen, ok := f.tree.ArrayLength(dstName)
	if !ok {
		return false
	}
	return callsig.NormalizeExpr(args[sig.Size].Text()) == callsig.NormalizeExpr(declLen)
}
