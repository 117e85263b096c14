package pdg

import (
	"fmt"
	"sort"

	"github.com/l3aro/go-stmt-graph/pkg/ast"
	"github.com/l3aro/go-stmt-graph/pkg/cfg"
	"github.com/l3aro/go-stmt-graph/pkg/dfg"
	"github.com/l3aro/go-stmt-graph/pkg/refs"
)

// Builder assembles a Graph from a flattening and its def-use resolution.
type Builder struct {
	flat *cfg.Result
	res  *dfg.Result
	opts Options
}

// NewBuilder creates a Builder. A nil res is treated as an empty resolution.
func NewBuilder(flat *cfg.Result, res *dfg.Result, opts Options) *Builder {
	if res == nil {
		res = &dfg.Result{}
	}
	return &Builder{flat: flat, res: res, opts: opts}
}

// Build is shorthand for NewBuilder(flat, res, opts).Build().
func Build(flat *cfg.Result, res *dfg.Result, opts Options) *Graph {
	return NewBuilder(flat, res, opts).Build()
}

// Build aggregates per-statement features, converts def-use edges and copies
// the structural edges.
func (b *Builder) Build() *Graph {
	if b.flat == nil {
		return &Graph{Nodes: []Node{}, Edges: []Edge{}, ASTEdges: emptyASTEdges()}
	}

	g := &Graph{
		Function:    b.flat.Function,
		Fingerprint: Fingerprint(b.flat.Statements),
		Nodes:       make([]Node, 0, len(b.flat.Statements)),
		Edges:       make([]Edge, 0, len(b.res.Edges)),
		ASTEdges:    b.astEdges(),
	}

	in := make(map[int]int)
	out := make(map[int]int)
	for _, e := range b.res.Edges {
		out[e.Def]++
		in[e.Use]++
		g.Edges = append(g.Edges, b.edge(e))
	}

	for _, st := range b.flat.Statements {
		var facts dfg.Facts
		if st.SID < len(b.res.Facts) {
			facts = b.res.Facts[st.SID]
		}
		defs := names(facts.Defs)
		uses := linkedNames(facts.Linked)

		feat := features(st, facts)
		feat.InDegreeDFG = in[st.SID]
		feat.OutDegreeDFG = out[st.SID]
		feat.DefCount = len(defs)
		feat.UseCount = useCount(facts.Linked)

		n := Node{SID: st.SID, Feat: feat}
		if b.opts.Debug {
			n.Debug = &NodeDebug{Code: st.Code, DefVars: defs, UseVars: uses}
		}
		g.Nodes = append(g.Nodes, n)
	}
	return g
}

func (b *Builder) edge(e dfg.Edge) Edge {
	out := Edge{
		SrcSID:         e.Def,
		DstSID:         e.Use,
		FlowRole:       int(e.Role),
		GuardKind:      int(e.GuardKind),
		HasLowerGuard:  bit(e.HasLower),
		HasUpperGuard:  bit(e.HasUpper),
		UpperGuardNorm: e.UpperNorm,
		Key:            e.Key,
	}
	if b.opts.Debug {
		out.Debug = &EdgeDebug{VarKey: fmt.Sprintf("%s@%d", e.Key, e.Def)}
	}
	return out
}

func (b *Builder) astEdges() ASTEdges {
	edges := emptyASTEdges()
	for _, e := range b.flat.ParentChild {
		edges.ParentChild = append(edges.ParentChild, [2]int{e.From, e.To})
	}
	for _, e := range b.flat.Siblings {
		edges.Sibling = append(edges.Sibling, [2]int{e.From, e.To})
	}
	for _, e := range b.flat.Guards {
		edges.Guard = append(edges.Guard, GuardEdge{
			Src:         e.From,
			Dst:         e.To,
			GuardKind:   int(e.Kind),
			GuardBranch: int(e.Branch),
		})
	}
	return edges
}

func emptyASTEdges() ASTEdges {
	return ASTEdges{ParentChild: [][2]int{}, Sibling: [][2]int{}, Guard: []GuardEdge{}}
}

func features(st cfg.Statement, facts dfg.Facts) Feat {
	f := st.Features
	return Feat{
		NodeTypeID: string(st.Kind),

		InLoop:            bit(f.InLoop),
		IsLoop:            bit(f.IsLoop),
		CtxGuardStrength:  int(f.GuardStrength),
		CtxUpperBoundNorm: f.UpperBoundNorm,
		IsBufferDecl:      bit(f.IsBufferDecl),
		BufferSizeState:   int(f.BufferSizeState),
		BufferSizeNorm:    f.BufferSizeNorm,

		CallSemCatID:               int(f.CallCategory),
		CallFlagDangerUnbounded:    bit(f.DangerUnbounded),
		CallFlagLenLinkedToDst:     bit(f.LenLinkedToDst),
		CallFlagSizeofNonDst:       bit(f.SizeofNonDst),
		CallFlagHasVarargs:         bit(f.HasVarargs),
		CallDstIsField:             bit(f.DstIsField),
		CallSizeKind:               int(f.SizeKind),
		CallLenLinkedToDstExtended: bit(f.LenLinkedExtended),
		CallSizeIsSizeofBaseStruct: bit(f.SizeIsSizeofBaseStruct),
		CallSizeMismatchField:      bit(f.SizeMismatchField),
		AllocSizeofState:           int(f.AllocSizeof),

		IsBufferAccess:      bit(facts.BufferAccess),
		IsSinkAssign:        bit(facts.SinkAssign),
		IsSinkCallUnbounded: bit(facts.Calls.Unbounded),
		IsSinkCallBounded:   bit(facts.Calls.Bounded),
		CallDstIndexed:      bit(facts.Calls.DstIndexed),
		CallLenLinkedToDst:  bit(facts.Calls.LenLinkedToDst),
		CallSizeNonConst:    bit(facts.Calls.SizeNonConst),
		CallDangerUnbounded: bit(facts.Calls.DangerUnbounded),
	}
}

// names returns the sorted distinct valid keys.
func names(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == ast.EmptyName || !refs.Valid(k) {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func linkedNames(uses []dfg.Use) []string {
	keys := make([]string, 0, len(uses))
	for _, u := range uses {
		keys = append(keys, u.Key)
	}
	return names(keys)
}

// useCount counts distinct linked keys with at least one non-base use.
func useCount(uses []dfg.Use) int {
	keys := make([]string, 0, len(uses))
	for _, u := range uses {
		if u.Role != dfg.RoleBase {
			keys = append(keys, u.Key)
		}
	}
	return len(names(keys))
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
