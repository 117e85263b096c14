package analysis

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-stmt-graph/pkg/ast"
	"github.com/l3aro/go-stmt-graph/pkg/cfg"
	"github.com/l3aro/go-stmt-graph/pkg/pdg"
)

func load(t *testing.T, name string) *ast.Node {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	root, err := ast.Decode(strings.NewReader(string(data)))
	require.NoError(t, err)
	return root
}

func analyze(t *testing.T, name string) *pdg.Graph {
	t.Helper()
	fns, err := AnalyzeTree(load(t, name), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, fns, 1)
	return fns[0].Graph
}

// edgesInto returns the edges whose destination is sid and whose debug key
// starts with key@.
func edgesInto(g *pdg.Graph, sid int, key string) []pdg.Edge {
	var out []pdg.Edge
	for _, e := range g.Edges {
		if e.DstSID == sid && pdg.EdgeKey(e) == key {
			out = append(out, e)
		}
	}
	return out
}

func kinds(g *pdg.Graph) []string {
	var out []string
	for _, n := range g.Nodes[1:] {
		out = append(out, n.Feat.NodeTypeID)
	}
	return out
}

func TestScenarioLoopInductionVariable(t *testing.T) {
	g := analyze(t, "scenario1_loop.json")

	require.Len(t, g.Nodes, 5)
	assert.Equal(t, "loop_print", g.Function)

	header := edgesInto(g, 3, "i")
	require.Len(t, header, 1)
	assert.Equal(t, 2, header[0].SrcSID)
	assert.Equal(t, 1, header[0].HasLowerGuard)

	body := edgesInto(g, 4, "i")
	require.Len(t, body, 1)
	assert.Equal(t, 3, body[0].SrcSID, "the for header redefines i")
	assert.Equal(t, "i@3", body[0].Debug.VarKey)
	assert.Equal(t, int(cfg.GuardLoop), body[0].GuardKind)

	assert.Equal(t, 1, g.Nodes[4].Feat.InLoop)
	assert.Equal(t, 1, g.Nodes[3].Feat.IsLoop)
}

func TestScenarioDeclaredLengthMatchesSize(t *testing.T) {
	g := analyze(t, "scenario2_fgets.json")

	cond := g.Nodes[3].Feat
	assert.Equal(t, "IfStatement", cond.NodeTypeID)
	assert.Equal(t, 1, cond.CallLenLinkedToDst)
	assert.Equal(t, 1, cond.CallFlagLenLinkedToDst)
	assert.Equal(t, 0, cond.CallFlagSizeofNonDst)
	assert.Equal(t, 1, cond.IsSinkCallBounded)
	assert.Equal(t, 0, cond.CallSizeNonConst)
	assert.Equal(t, 3, cond.CallSemCatID)

	require.Len(t, edgesInto(g, 4, "inputBuffer"), 1)
	assert.Equal(t, 3, edgesInto(g, 4, "inputBuffer")[0].SrcSID, "fgets writes inputBuffer")
}

func TestScenarioSizeofDestination(t *testing.T) {
	g := analyze(t, "scenario3_memcpy.json")

	call := g.Nodes[1].Feat
	assert.Equal(t, 1, call.CallLenLinkedToDst)
	assert.Equal(t, 1, call.IsSinkCallBounded)
	assert.Equal(t, 0, call.IsSinkCallUnbounded)
	assert.Equal(t, 0, call.CallSizeNonConst)
}

func TestScenarioBraceInitializerIsNotAccess(t *testing.T) {
	g := analyze(t, "scenario4_brace_init.json")

	require.Len(t, g.Nodes, 3)
	for _, n := range g.Nodes {
		assert.Equal(t, 0, n.Feat.IsBufferAccess, "sid %d", n.SID)
		assert.Equal(t, 0, n.Feat.IsSinkAssign, "sid %d", n.SID)
	}
	assert.Equal(t, 1, g.Nodes[1].Feat.IsBufferDecl)
}

func TestScenarioScanfDefines(t *testing.T) {
	g := analyze(t, "scenario5_scanf.json")

	require.Len(t, g.Nodes, 3)
	assert.Equal(t, []string{"x"}, g.Nodes[2].Debug.DefVars)
	assert.Equal(t, 1, g.Nodes[2].Feat.DefCount)
	assert.Empty(t, g.Edges)
}

func TestGuardScopingIsolation(t *testing.T) {
	g := analyze(t, "guard_isolation.json")

	then := edgesInto(g, 4, "x")
	require.Len(t, then, 1)
	assert.Equal(t, int(cfg.GuardIf), then[0].GuardKind)
	assert.Equal(t, 1, then[0].HasLowerGuard)

	for _, e := range g.Edges {
		if e.DstSID == 5 {
			assert.Equal(t, 0, e.HasLowerGuard, "else branch sees then evidence: %+v", e)
			assert.Equal(t, 0, e.GuardKind)
		}
	}
}

func TestFieldSensitiveBase(t *testing.T) {
	g := analyze(t, "field_write.json")

	base := edgesInto(g, 3, "s.buf")
	require.Len(t, base, 1)
	assert.Equal(t, 4, base[0].FlowRole)
	assert.Equal(t, 2, base[0].SrcSID)

	assert.Empty(t, edgesInto(g, 3, "s"))
	assert.Empty(t, edgesInto(g, 3, "buf"))
	assert.Equal(t, 1, g.Nodes[3].Feat.IsSinkAssign)
	assert.Equal(t, 1, g.Nodes[2].Feat.CallSemCatID, "malloc under a cast")
}

func TestRetainedStatementKinds(t *testing.T) {
	tests := []struct {
		fixture string
		want    []string
	}{
		{"scenario1_loop.json", []string{"ArrayDeclaration", "VariableDeclaration", "ForStatement", "UserDefinedCall"}},
		{"guard_isolation.json", []string{"VariableDeclaration", "VariableDeclaration", "IfStatement", "AssignmentExpression", "AssignmentExpression"}},
		{"scenario4_brace_init.json", []string{"ArrayDeclaration", "AssignmentExpression"}},
	}
	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			assert.Equal(t, tt.want, kinds(analyze(t, tt.fixture)))
		})
	}
}

func fixtures(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("testdata", "*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	return names
}

func TestDeterminism(t *testing.T) {
	for _, name := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			first, err := AnalyzeTree(load(t, name), DefaultOptions())
			require.NoError(t, err)
			second, err := AnalyzeTree(load(t, name), DefaultOptions())
			require.NoError(t, err)

			a, err := json.Marshal(Graphs(first))
			require.NoError(t, err)
			b, err := json.Marshal(Graphs(second))
			require.NoError(t, err)
			assert.Equal(t, string(a), string(b))
		})
	}
}

func TestEdgeInvariants(t *testing.T) {
	type key struct {
		src, dst int
		varKey   string
		role     int
	}
	for _, name := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			fns, err := AnalyzeTree(load(t, name), DefaultOptions())
			require.NoError(t, err)
			for _, f := range fns {
				seen := make(map[key]bool)
				for _, e := range f.Graph.Edges {
					assert.NotEqual(t, e.SrcSID, e.DstSID, "self edge in %s", f.Name)
					k := key{e.SrcSID, e.DstSID, pdg.EdgeKey(e), e.FlowRole}
					assert.False(t, seen[k], "duplicate edge %+v in %s", k, f.Name)
					seen[k] = true
				}
			}
		})
	}
}

func TestAnalyzeTranslationUnit(t *testing.T) {
	fns, err := AnalyzeTree(load(t, "translation_unit.json"), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, fns, 2)
	assert.Equal(t, "first", fns[0].Name)
	assert.Equal(t, "second", fns[1].Name)

	ret := edgesInto(fns[0].Graph, 1, "n")
	require.Len(t, ret, 1)
	assert.Equal(t, 0, ret[0].SrcSID)
}

func TestAnalyzeErrors(t *testing.T) {
	t.Run("no functions", func(t *testing.T) {
		root := &ast.Node{Kind: ast.KindTranslationUnit}
		_, err := AnalyzeTree(root, Options{})
		assert.True(t, errors.Is(err, ErrNoFunctions))
	})

	t.Run("missing body", func(t *testing.T) {
		fn := &ast.Node{Kind: ast.KindFunctionDefinition, Name: "f"}
		_, err := AnalyzeTree(fn, Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, cfg.ErrNoFunctionBody))
		assert.Contains(t, err.Error(), "f")
	})
}

func TestDebugCompanionOff(t *testing.T) {
	fns, err := AnalyzeTree(load(t, "scenario1_loop.json"), Options{})
	require.NoError(t, err)
	for _, n := range fns[0].Graph.Nodes {
		assert.Nil(t, n.Debug)
	}
	for _, e := range fns[0].Graph.Edges {
		assert.Nil(t, e.Debug)
	}
}
