package dfg

import (
	"strings"

	"github.com/l3aro/go-stmt-graph/pkg/ast"
	"github.com/l3aro/go-stmt-graph/pkg/callsig"
	"github.com/l3aro/go-stmt-graph/pkg/cfg"
	"github.com/l3aro/go-stmt-graph/pkg/refs"
)

type edgeKey struct {
	def, use int
	key      string
	role     FlowRole
}

type resolver struct {
	tree *ast.Tree
	flat *cfg.Result
	last LastDefinitions
	seen map[edgeKey]struct{}
	out  *Result
}

// stmt is the per-statement working state.
type stmt struct {
	sid        int
	feat       cfg.Features
	facts      *Facts
	defs       []string
	classified map[string]struct{}
	uses       map[Use]struct{}
	linked     map[Use]struct{}
}

// Resolve links every variable use in flat to its last definition. It never
// fails: statements whose tree node cannot be found keep default facts.
func Resolve(tree *ast.Tree, flat *cfg.Result) *Result {
	r := &resolver{
		tree: tree,
		flat: flat,
		last: make(LastDefinitions),
		seen: make(map[edgeKey]struct{}),
		out: &Result{
			Facts: make([]Facts, len(flat.Statements)),
		},
	}

	for _, p := range tree.Params() {
		if refs.Valid(p) {
			r.last.Define(p, cfg.EntrySID)
			r.out.Facts[cfg.EntrySID].Defs = append(r.out.Facts[cfg.EntrySID].Defs, p)
		}
	}

	for i, st := range flat.Statements {
		r.out.Facts[i].SID = st.SID
		if st.Kind == ast.KindFunctionEntry || !st.HasOrig {
			continue
		}
		orig, ok := tree.Lookup(st.OrigID)
		if !ok {
			continue
		}
		r.statement(st, orig)
	}
	return r.out
}

func (r *resolver) statement(st cfg.Statement, orig *ast.Node) {
	s := &stmt{
		sid:        st.SID,
		feat:       st.Features,
		facts:      &r.out.Facts[st.SID],
		classified: make(map[string]struct{}),
		uses:       make(map[Use]struct{}),
		linked:     make(map[Use]struct{}),
	}

	switch {
	case st.Kind.IsControl():
		r.control(s, orig)
	case st.Kind.IsDeclaration():
		r.declaration(s, orig)
	case st.Kind == ast.KindAssignment:
		r.assignment(s, orig)
	case cfg.IsUpdate(orig):
		if key := refs.Key(refs.Operand(orig)); key != "" {
			r.use(s, key, RoleValue)
			r.define(s, key)
		}
	default:
		r.calls(s, orig)
		r.values(s, orig, "")
	}

	for _, key := range s.defs {
		r.last.Define(key, s.sid)
	}
	s.facts.Defs = append(s.facts.Defs, s.defs...)
}

func (r *resolver) control(s *stmt, orig *ast.Node) {
	if cond := cfg.Condition(orig); cond != nil {
		r.calls(s, cond)
		r.values(s, cond, "")
	}
	if orig.Kind != ast.KindForStatement {
		return
	}
	for _, clause := range []*ast.Node{orig.Child(0), orig.Child(2)} {
		r.forClause(s, clause)
	}
}

// forClause records the induction updates of a for initializer or increment.
func (r *resolver) forClause(s *stmt, n *ast.Node) {
	n.Walk(func(c *ast.Node) bool {
		switch {
		case c.Kind == ast.KindAssignment:
			key := refs.Key(c.Child(0))
			if isCompound(c.Operator) && key != "" {
				r.use(s, key, RoleValue)
			}
			for _, id := range refs.Identifiers(c.Child(1), refs.Values) {
				r.use(s, id, RoleValue)
			}
			r.define(s, key)
			return false
		case cfg.IsUpdate(c):
			key := refs.Key(refs.Operand(c))
			r.use(s, key, RoleValue)
			r.define(s, key)
			return false
		case c.Kind == ast.KindVariableDeclaration:
			r.declaration(s, c)
			return false
		}
		return true
	})
}

// declaration defines the declared name. Only array declarations record
// uses: the identifiers of their length, with the size role. Scalar and
// pointer initializers contribute nothing.
func (r *resolver) declaration(s *stmt, orig *ast.Node) {
	name := declName(orig)
	if orig.Kind == ast.KindArrayDeclaration || orig.Kind == ast.KindArraySizeAlloc {
		for _, c := range orig.Children {
			if c.Kind == ast.KindIdentifier && c.Name == name {
				continue
			}
			r.calls(s, c)
			for _, id := range refs.Identifiers(c, refs.Values) {
				if id == name || s.isClassified(id) {
					continue
				}
				r.use(s, id, RoleSize)
			}
		}
	}
	r.define(s, name)
}

func declName(n *ast.Node) string {
	if n.Name != "" {
		return n.Name
	}
	if id := n.FirstChild(ast.KindIdentifier); id != nil {
		return id.Name
	}
	return ""
}

func (r *resolver) assignment(s *stmt, orig *ast.Node) {
	lhs, rhs := orig.Child(0), orig.Child(1)
	baseName := ""

	if sub := stripWrappers(lhs); sub != nil && sub.Kind == ast.KindArraySubscript {
		base := sub.Child(0)
		baseName = refs.Resolve(base).Root()
		r.use(s, refs.Key(base), RoleBase)
		idx := sub.Child(1)
		for _, id := range refs.Identifiers(idx, refs.Full) {
			r.use(s, id, RoleIndex)
			s.classify(id)
		}
		s.facts.BufferAccess = true
		if len(refs.Identifiers(idx, refs.Generic)) > 0 {
			s.facts.SinkAssign = true
		}
	} else if ref := refs.Resolve(lhs); ref.Kind != refs.Unresolved {
		key := ref.Key()
		baseName = ref.Root()
		if isCompound(orig.Operator) {
			r.use(s, key, RoleValue)
		}
		r.define(s, key)
		if index, ok := textualIndex(orig.Code, baseName); ok && !r.declInitIdiom(s.sid, baseName, orig.Code) {
			s.facts.BufferAccess = true
			if callsig.HasRuntimeIdentifier(index) {
				s.facts.SinkAssign = true
			}
		}
	} else if first := refs.First(lhs); first != "" {
		baseName = first
		r.define(s, first)
	}

	r.calls(s, rhs)
	if sub := stripWrappers(rhs); sub != nil && sub.Kind == ast.KindArraySubscript {
		r.use(s, refs.Key(sub.Child(0)), RoleBase)
		for _, id := range refs.Identifiers(sub.Child(1), refs.Full) {
			r.use(s, id, RoleIndex)
			s.classify(id)
		}
		s.classifyAll(sub.Child(0))
	}
	r.values(s, rhs, baseName)
	if refs.HasIndexing(rhs, true) {
		s.facts.BufferAccess = true
	}
}

func isCompound(op string) bool {
	return op != "" && op != "="
}

func stripWrappers(n *ast.Node) *ast.Node {
	for n != nil && n.Kind.IsWrapper() {
		n = refs.Operand(n)
	}
	return n
}

// textualIndex finds `name[...]` left of the first '=' in code and returns
// the bracketed index text.
func textualIndex(code, name string) (string, bool) {
	if name == "" || code == "" {
		return "", false
	}
	left, _, _ := strings.Cut(code, "=")
	for i := 0; ; {
		j := strings.Index(left[i:], name)
		if j < 0 {
			return "", false
		}
		start := i + j
		i = start + len(name)
		if start > 0 && wordByte(left[start-1]) {
			continue
		}
		if idx, _, ok := bracketed(left[i:]); ok {
			return idx, true
		}
	}
}

// bracketed matches optional space then a non-empty `[...]` at the start of
// s, returning the inner text and what follows the closing bracket.
func bracketed(s string) (inner, rest string, ok bool) {
	s, ok = strings.CutPrefix(strings.TrimLeft(s, spaces), "[")
	if !ok {
		return "", "", false
	}
	inner, rest, ok = strings.Cut(s, "]")
	if !ok || inner == "" {
		return "", "", false
	}
	return inner, rest, true
}

const spaces = " \t\n\f\r"

func wordByte(c byte) bool {
	return c == '_' || '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

// declInitIdiom reports whether an assignment to name[...] is really the
// initializer of an array declaration.
func (r *resolver) declInitIdiom(sid int, name, code string) bool {
	if initializerIdiom(code, name) {
		return true
	}
	for _, prev := range []int{sid - 1, sid - 2} {
		st, ok := r.flat.Statement(prev)
		if !ok || (st.Kind != ast.KindArrayDeclaration && st.Kind != ast.KindArraySizeAlloc) || !st.HasOrig {
			continue
		}
		if n, ok := r.tree.Lookup(st.OrigID); ok && declName(n) == name {
			return true
		}
	}
	return false
}

// initializerIdiom reports whether code reads `name[...] = {` or
// `name[...] = "`.
func initializerIdiom(code, name string) bool {
	rest, ok := strings.CutPrefix(strings.TrimLeft(code, spaces), name)
	if !ok || name == "" {
		return false
	}
	if _, rest, ok = bracketed(rest); !ok {
		return false
	}
	rest, ok = strings.CutPrefix(strings.TrimLeft(rest, spaces), "=")
	if !ok {
		return false
	}
	rest = strings.TrimLeft(rest, spaces)
	return strings.HasPrefix(rest, "{") || strings.HasPrefix(rest, `"`)
}

// calls analyses every call under n, outer calls first.
func (r *resolver) calls(s *stmt, n *ast.Node) {
	for _, call := range collectCalls(n) {
		r.call(s, call)
	}
}

func collectCalls(n *ast.Node) []*ast.Node {
	var out []*ast.Node
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		if n.Kind.IsCall() {
			out = append(out, n)
			for _, a := range n.CallArgs() {
				walk(a)
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

func (r *resolver) call(s *stmt, call *ast.Node) {
	name := call.CallName()
	args := call.CallArgs()
	sig, known := callsig.Lookup(name)

	handled := make(map[int]bool)
	var dst, size *ast.Node

	if known && sig.HasDst() && sig.Dst < len(args) {
		dst = args[sig.Dst]
		handled[sig.Dst] = true
		if sub := subscript(dst); sub != nil {
			for _, id := range refs.Identifiers(sub.Child(1), refs.Full) {
				r.use(s, id, RoleIndex)
				s.classify(id)
			}
		}
		if key := refs.Key(dst); key != "" {
			r.use(s, key, RoleBase)
			r.define(s, key)
		}
		s.classifyAll(dst)
	}

	if known && sig.HasSize() && sig.Size < len(args) {
		size = args[sig.Size]
		handled[sig.Size] = true
		for _, id := range refs.Identifiers(size, refs.Full) {
			r.use(s, id, RoleSize)
		}
		s.classifyAll(size)
	}

	if known && sig.AddressOfDefines() {
		for i := sig.Format + 1; i < len(args); i++ {
			target, ok := refs.AddressOfTarget(args[i])
			if !ok {
				continue
			}
			handled[i] = true
			r.define(s, target.Key())
			s.classifyAll(args[i])
		}
	}

	for i, a := range args {
		if handled[i] {
			continue
		}
		for _, id := range refs.Identifiers(a, refs.Values) {
			if s.isClassified(id) {
				continue
			}
			r.use(s, id, RoleValue)
		}
		s.classifyAll(a)
	}

	if !known || (!sig.Bounded && !sig.Unbounded) {
		return
	}
	sinks := &s.facts.Calls
	if dst != nil && refs.HasIndexing(dst, true) {
		sinks.DstIndexed = true
	}
	if sig.Unbounded {
		sinks.Unbounded = true
		sinks.DangerUnbounded = true
		return
	}
	sinks.Bounded = true
	if size == nil {
		return
	}
	sizeText := size.Text()
	if r.lenLinked(dst, sizeText) {
		sinks.LenLinkedToDst = true
	}
	if callsig.HasRuntimeIdentifier(sizeText) {
		sinks.SizeNonConst = true
	}
}

// subscript returns the subscript expression a destination argument writes
// through, looking past address-of and wrappers.
func subscript(n *ast.Node) *ast.Node {
	for n != nil {
		switch {
		case n.Kind == ast.KindArraySubscript:
			return n
		case n.Kind.IsWrapper() || refs.IsAddressOf(n):
			n = refs.Operand(n)
		default:
			return nil
		}
	}
	return nil
}

func (r *resolver) lenLinked(dst *ast.Node, sizeText string) bool {
	if dst == nil || sizeText == "" {
		return false
	}
	compact := strings.Join(strings.Fields(sizeText), "")
	for _, name := range refs.Identifiers(dst, refs.Generic) {
		if strings.Contains(compact, "sizeof("+name) || strings.Contains(compact, "sizeof(*"+name) {
			return true
		}
	}
	declLen, ok := r.tree.ArrayLength(refs.First(dst))
	return ok && callsig.NormalizeExpr(sizeText) == callsig.NormalizeExpr(declLen)
}

// values emits value uses for the remaining identifiers in n.
func (r *resolver) values(s *stmt, n *ast.Node, exclude string) {
	for _, id := range refs.Identifiers(n, refs.Values) {
		if id == exclude || s.isClassified(id) {
			continue
		}
		r.use(s, id, RoleValue)
	}
}

func (r *resolver) use(s *stmt, key string, role FlowRole) {
	if !refs.Valid(key) {
		return
	}
	u := Use{Key: key, Role: role}
	if _, dup := s.uses[u]; !dup {
		s.uses[u] = struct{}{}
		s.facts.Uses = append(s.facts.Uses, u)
	}

	def, ok := r.last.Lookup(key)
	if !ok {
		return
	}
	if _, dup := s.linked[u]; !dup {
		s.linked[u] = struct{}{}
		s.facts.Linked = append(s.facts.Linked, u)
	}

	ek := edgeKey{def: def, use: s.sid, key: key, role: role}
	if _, dup := r.seen[ek]; dup {
		return
	}
	r.seen[ek] = struct{}{}

	e := Edge{Def: def, Use: s.sid, Key: key, Role: role}
	switch {
	case s.feat.InLoop:
		e.GuardKind = cfg.GuardLoop
	case s.feat.GuardStrength != 0:
		e.GuardKind = cfg.GuardIf
	}
	e.HasLower = s.feat.GuardStrength.HasLower()
	e.HasUpper = s.feat.GuardStrength.HasUpper()
	e.UpperNorm = s.feat.UpperBoundNorm
	r.out.Edges = append(r.out.Edges, e)
}

func (r *resolver) define(s *stmt, key string) {
	if !refs.Valid(key) {
		return
	}
	for _, d := range s.defs {
		if d == key {
			return
		}
	}
	s.defs = append(s.defs, key)
}

func (s *stmt) classify(name string) {
	s.classified[name] = struct{}{}
}

// classifyAll marks every name and key under n as consumed.
func (s *stmt) classifyAll(n *ast.Node) {
	for _, opts := range []refs.Options{refs.Full, refs.Values} {
		for _, id := range refs.Identifiers(n, opts) {
			s.classify(id)
		}
	}
	if key := refs.Key(n); key != "" {
		s.classify(key)
	}
}

func (s *stmt) isClassified(name string) bool {
	_, ok := s.classified[name]
	return ok
}
