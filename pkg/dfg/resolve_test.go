package dfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-stmt-graph/pkg/ast"
	"github.com/l3aro/go-stmt-graph/pkg/cfg"
)

type link struct {
	def, use int
	key      string
	role     FlowRole
}

func links(edges []Edge) []link {
	out := make([]link, 0, len(edges))
	for _, e := range edges {
		out = append(out, link{e.Def, e.Use, e.Key, e.Role})
	}
	return out
}

func resolve(t *testing.T, src string) (*cfg.Result, *Result) {
	t.Helper()
	fn, err := ast.Decode(strings.NewReader(src))
	require.NoError(t, err)
	flat, err := cfg.Flatten(fn, cfg.Options{})
	require.NoError(t, err)
	return flat, Resolve(ast.NewTree(fn), flat)
}

// function wraps body statements in a definition taking params.
func function(params, body string) string {
	return `{"nodeType": "FunctionDefinition", "id": 1, "name": "f", "children": [
  {"nodeType": "ParameterList", "id": 2, "children": [` + params + `]},
  {"nodeType": "CompoundStatement", "id": 3, "children": [` + body + `]}
]}`
}

const loopAndBranch = `{
  "nodeType": "FunctionDefinition", "id": 1, "name": "f",
  "children": [
    {"nodeType": "ParameterList", "id": 2, "children": [
      {"nodeType": "ParameterDeclaration", "id": 3, "name": "n", "code": "int n"}
    ]},
    {"nodeType": "CompoundStatement", "id": 4, "children": [
      {"nodeType": "ArrayDeclaration", "id": 5, "name": "buffer", "code": "int buffer[10];", "length": 10},
      {"nodeType": "VariableDeclaration", "id": 6, "name": "i", "code": "int i;"},
      {"nodeType": "ForStatement", "id": 7, "code": "for (i = 0; i < 10; i++) { printIntLine(buffer[i]); }", "children": [
        {"nodeType": "AssignmentExpression", "id": 8, "operator": "=", "code": "i = 0", "children": [
          {"nodeType": "Identifier", "id": 9, "name": "i"},
          {"nodeType": "Literal", "id": 10, "value": 0}
        ]},
        {"nodeType": "BinaryExpression", "id": 11, "operator": "<", "code": "i < 10", "children": [
          {"nodeType": "Identifier", "id": 12, "name": "i"},
          {"nodeType": "Literal", "id": 13, "value": 10}
        ]},
        {"nodeType": "UnaryOperator", "id": 14, "operator": "++", "code": "i++", "children": [
          {"nodeType": "Identifier", "id": 15, "name": "i"}
        ]},
        {"nodeType": "CompoundStatement", "id": 16, "children": [
          {"nodeType": "UserDefinedCall", "id": 17, "name": "printIntLine", "code": "printIntLine(buffer[i])", "children": [
            {"nodeType": "ParameterList", "id": 18, "children": [
              {"nodeType": "ArraySubscriptExpression", "id": 19, "code": "buffer[i]", "children": [
                {"nodeType": "Identifier", "id": 20, "name": "buffer"},
                {"nodeType": "Identifier", "id": 21, "name": "i"}
              ]}
            ]}
          ]}
        ]}
      ]},
      {"nodeType": "IfStatement", "id": 22, "code": "if (n > 0) { buffer[0] = n; } else { i = 1; }", "children": [
        {"nodeType": "BinaryExpression", "id": 23, "operator": ">", "code": "n > 0", "children": [
          {"nodeType": "Identifier", "id": 24, "name": "n"},
          {"nodeType": "Literal", "id": 25, "value": 0}
        ]},
        {"nodeType": "CompoundStatement", "id": 26, "children": [
          {"nodeType": "AssignmentExpression", "id": 27, "operator": "=", "code": "buffer[0] = n", "children": [
            {"nodeType": "ArraySubscriptExpression", "id": 28, "children": [
              {"nodeType": "Identifier", "id": 29, "name": "buffer"},
              {"nodeType": "Literal", "id": 30, "value": 0}
            ]},
            {"nodeType": "Identifier", "id": 31, "name": "n"}
          ]}
        ]},
        {"nodeType": "CompoundStatement", "id": 32, "children": [
          {"nodeType": "AssignmentExpression", "id": 33, "operator": "=", "code": "i = 1", "children": [
            {"nodeType": "Identifier", "id": 34, "name": "i"},
            {"nodeType": "Literal", "id": 35, "value": 1}
          ]}
        ]}
      ]}
    ]}
  ]
}`

func TestResolveLoopAndBranch(t *testing.T) {
	_, res := resolve(t, loopAndBranch)

	assert.Equal(t, []link{
		{2, 3, "i", RoleValue},
		{1, 4, "buffer", RoleValue},
		{3, 4, "i", RoleValue},
		{0, 5, "n", RoleValue},
		{1, 6, "buffer", RoleBase},
		{0, 6, "n", RoleValue},
	}, links(res.Edges))

	assert.Equal(t, []string{"n"}, res.Facts[0].Defs)
	assert.Equal(t, []string{"i"}, res.Facts[3].Defs)
	assert.Equal(t, []string{"i"}, res.Facts[7].Defs)

	t.Run("loop body edges carry loop guard", func(t *testing.T) {
		e := res.Edges[2]
		assert.Equal(t, cfg.GuardLoop, e.GuardKind)
		assert.True(t, e.HasLower)
		assert.True(t, e.HasUpper)
		assert.InDelta(t, 0.1, e.UpperNorm, 1e-9)
	})

	t.Run("then branch edges carry if guard", func(t *testing.T) {
		e := res.Edges[5]
		assert.Equal(t, cfg.GuardIf, e.GuardKind)
		assert.True(t, e.HasLower)
		assert.False(t, e.HasUpper)
	})

	t.Run("constant subscript write is access but not sink", func(t *testing.T) {
		assert.True(t, res.Facts[6].BufferAccess)
		assert.False(t, res.Facts[6].SinkAssign)
	})
}

func TestResolveFieldSensitiveKeys(t *testing.T) {
	src := function(
		`{"nodeType": "ParameterDeclaration", "id": 4, "name": "src", "code": "char *src"}`,
		`{"nodeType": "VariableDeclaration", "id": 10, "name": "s", "code": "struct S s;"},
		{"nodeType": "StandardLibCall", "id": 11, "name": "strcpy", "code": "strcpy(s.buf, src)", "children": [
		  {"nodeType": "ParameterList", "id": 12, "children": [
		    {"nodeType": "MemberAccess", "id": 13, "code": "s.buf", "children": [
		      {"nodeType": "Identifier", "id": 14, "name": "s"},
		      {"nodeType": "Identifier", "id": 15, "name": "buf"}
		    ]},
		    {"nodeType": "Identifier", "id": 16, "name": "src"}
		  ]}
		]},
		{"nodeType": "AssignmentExpression", "id": 20, "operator": "=", "code": "s.buf[0] = 'a'", "children": [
		  {"nodeType": "ArraySubscriptExpression", "id": 21, "children": [
		    {"nodeType": "MemberAccess", "id": 22, "code": "s.buf", "children": [
		      {"nodeType": "Identifier", "id": 23, "name": "s"},
		      {"nodeType": "Identifier", "id": 24, "name": "buf"}
		    ]},
		    {"nodeType": "Literal", "id": 25, "value": 0}
		  ]},
		  {"nodeType": "Literal", "id": 26, "value": "'a'"}
		]},
		{"nodeType": "UserDefinedCall", "id": 30, "name": "printLine", "code": "printLine(s.buf)", "children": [
		  {"nodeType": "ParameterList", "id": 31, "children": [
		    {"nodeType": "MemberAccess", "id": 32, "code": "s.buf", "children": [
		      {"nodeType": "Identifier", "id": 33, "name": "s"},
		      {"nodeType": "Identifier", "id": 34, "name": "buf"}
		    ]}
		  ]}
		]}`)

	_, res := resolve(t, src)

	assert.Equal(t, []link{
		{0, 2, "src", RoleValue},
		{2, 3, "s.buf", RoleBase},
		{2, 4, "s.buf", RoleValue},
	}, links(res.Edges))
	assert.Equal(t, []string{"s.buf"}, res.Facts[2].Defs)
	assert.Contains(t, res.Facts[2].Uses, Use{Key: "s.buf", Role: RoleBase})

	calls := res.Facts[2].Calls
	assert.True(t, calls.Unbounded)
	assert.True(t, calls.DangerUnbounded)
	assert.False(t, calls.Bounded)
	assert.False(t, calls.DstIndexed)
}

func TestResolveBoundedCalls(t *testing.T) {
	tests := []struct {
		name       string
		params     string
		body       string
		edges      []link
		lenLinked  bool
		sizeNonCon bool
	}{
		{
			name: "fgets with sizeof destination",
			body: `{"nodeType": "ArrayDeclaration", "id": 10, "name": "buf", "code": "char buf[10];", "length": 10},
			{"nodeType": "StandardLibCall", "id": 11, "name": "fgets", "code": "fgets(buf, sizeof(buf), stdin)", "children": [
			  {"nodeType": "ParameterList", "id": 12, "children": [
			    {"nodeType": "Identifier", "id": 13, "name": "buf"},
			    {"nodeType": "SizeOfExpression", "id": 14, "code": "sizeof(buf)", "children": [
			      {"nodeType": "Identifier", "id": 15, "name": "buf"}
			    ]},
			    {"nodeType": "Identifier", "id": 16, "name": "stdin"}
			  ]}
			]}`,
			edges:     []link{{1, 2, "buf", RoleBase}, {1, 2, "buf", RoleSize}},
			lenLinked: true,
		},
		{
			name: "fgets with declared length literal",
			body: `{"nodeType": "ArrayDeclaration", "id": 10, "name": "buf", "code": "char buf[10];", "length": 10},
			{"nodeType": "StandardLibCall", "id": 11, "name": "fgets", "code": "fgets(buf, 10, stdin)", "children": [
			  {"nodeType": "ParameterList", "id": 12, "children": [
			    {"nodeType": "Identifier", "id": 13, "name": "buf"},
			    {"nodeType": "Literal", "id": 14, "value": 10, "code": "10"},
			    {"nodeType": "Identifier", "id": 16, "name": "stdin"}
			  ]}
			]}`,
			edges:     []link{{1, 2, "buf", RoleBase}},
			lenLinked: true,
		},
		{
			name:   "memcpy with runtime size",
			params: `{"nodeType": "ParameterDeclaration", "id": 4, "name": "n", "code": "size_t n"}`,
			body: `{"nodeType": "PointerDeclaration", "id": 10, "name": "dst", "code": "char *dst;"},
			{"nodeType": "PointerDeclaration", "id": 11, "name": "src", "code": "char *src;"},
			{"nodeType": "StandardLibCall", "id": 12, "name": "memcpy", "code": "memcpy(dst, src, n)", "children": [
			  {"nodeType": "ParameterList", "id": 13, "children": [
			    {"nodeType": "Identifier", "id": 14, "name": "dst"},
			    {"nodeType": "Identifier", "id": 15, "name": "src"},
			    {"nodeType": "Identifier", "id": 16, "name": "n"}
			  ]}
			]}`,
			edges:      []link{{1, 3, "dst", RoleBase}, {0, 3, "n", RoleSize}, {2, 3, "src", RoleValue}},
			sizeNonCon: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flat, res := resolve(t, function(tt.params, tt.body))
			last := len(flat.Statements) - 1

			assert.Equal(t, tt.edges, links(res.Edges))
			calls := res.Facts[last].Calls
			assert.True(t, calls.Bounded)
			assert.False(t, calls.Unbounded)
			assert.Equal(t, tt.lenLinked, calls.LenLinkedToDst)
			assert.Equal(t, tt.sizeNonCon, calls.SizeNonConst)
		})
	}
}

func TestResolveScanfDefinesAddressedArguments(t *testing.T) {
	src := function("",
		`{"nodeType": "VariableDeclaration", "id": 10, "name": "x", "code": "int x;"},
		{"nodeType": "StandardLibCall", "id": 11, "name": "scanf", "code": "scanf(\"%d\", &x)", "children": [
		  {"nodeType": "ParameterList", "id": 12, "children": [
		    {"nodeType": "Literal", "id": 13, "value": "\"%d\""},
		    {"nodeType": "AddressOfExpression", "id": 14, "code": "&x", "children": [
		      {"nodeType": "Identifier", "id": 15, "name": "x"}
		    ]}
		  ]}
		]},
		{"nodeType": "UserDefinedCall", "id": 20, "name": "printIntLine", "code": "printIntLine(x)", "children": [
		  {"nodeType": "ParameterList", "id": 21, "children": [
		    {"nodeType": "Identifier", "id": 22, "name": "x"}
		  ]}
		]}`)

	_, res := resolve(t, src)

	assert.Equal(t, []string{"x"}, res.Facts[2].Defs)
	assert.Empty(t, res.Facts[2].Uses)
	assert.Equal(t, []link{{2, 3, "x", RoleValue}}, links(res.Edges))
}

func TestResolveDeclarationsOnlyDefine(t *testing.T) {
	src := function(
		`{"nodeType": "ParameterDeclaration", "id": 4, "name": "x", "code": "int x"}`,
		`{"nodeType": "VariableDeclaration", "id": 10, "name": "y", "code": "int y = x;", "children": [
		  {"nodeType": "Identifier", "id": 11, "name": "x"}
		]},
		{"nodeType": "PointerDeclaration", "id": 12, "name": "p", "code": "char *p = malloc(x);", "children": [
		  {"nodeType": "StandardLibCall", "id": 13, "name": "malloc", "code": "malloc(x)", "children": [
		    {"nodeType": "ParameterList", "id": 14, "children": [
		      {"nodeType": "Identifier", "id": 15, "name": "x"}
		    ]}
		  ]}
		]},
		{"nodeType": "ArraySizeAllocation", "id": 16, "name": "buf", "code": "char buf[x];", "length": "x", "children": [
		  {"nodeType": "Identifier", "id": 17, "name": "x"}
		]}`)

	_, res := resolve(t, src)

	for sid, name := range map[int]string{1: "y", 2: "p"} {
		assert.Equal(t, []string{name}, res.Facts[sid].Defs)
		assert.Empty(t, res.Facts[sid].Uses, "sid %d", sid)
	}
	assert.Equal(t, []string{"buf"}, res.Facts[3].Defs)
	assert.Equal(t, []link{{0, 3, "x", RoleSize}}, links(res.Edges), "array length keeps its size use")
}

func TestResolveDegradedCalls(t *testing.T) {
	tests := []struct {
		name    string
		params  string
		body    string
		edges   []link
		defs    []string
		bounded bool
	}{
		{
			name:   "unknown callee reads every argument",
			params: `{"nodeType": "ParameterDeclaration", "id": 4, "name": "n", "code": "size_t n"}`,
			body: `{"nodeType": "PointerDeclaration", "id": 10, "name": "dst", "code": "char *dst;"},
			{"nodeType": "PointerDeclaration", "id": 11, "name": "src", "code": "char *src;"},
			{"nodeType": "UserDefinedCall", "id": 12, "name": "mycopy", "code": "mycopy(dst, src, n)", "children": [
			  {"nodeType": "ParameterList", "id": 13, "children": [
			    {"nodeType": "Identifier", "id": 14, "name": "dst"},
			    {"nodeType": "Identifier", "id": 15, "name": "src"},
			    {"nodeType": "Identifier", "id": 16, "name": "n"}
			  ]}
			]}`,
			edges: []link{{1, 3, "dst", RoleValue}, {2, 3, "src", RoleValue}, {0, 3, "n", RoleValue}},
		},
		{
			name: "missing size argument",
			body: `{"nodeType": "PointerDeclaration", "id": 10, "name": "dst", "code": "char *dst;"},
			{"nodeType": "StandardLibCall", "id": 11, "name": "memcpy", "code": "memcpy(dst)", "children": [
			  {"nodeType": "ParameterList", "id": 12, "children": [
			    {"nodeType": "Identifier", "id": 13, "name": "dst"}
			  ]}
			]}`,
			edges:   []link{{1, 2, "dst", RoleBase}},
			defs:    []string{"dst"},
			bounded: true,
		},
		{
			name:   "missing destination and size",
			params: `{"nodeType": "ParameterDeclaration", "id": 4, "name": "fd", "code": "int fd"}`,
			body: `{"nodeType": "StandardLibCall", "id": 10, "name": "read", "code": "read(fd)", "children": [
			  {"nodeType": "ParameterList", "id": 11, "children": [
			    {"nodeType": "Identifier", "id": 12, "name": "fd"}
			  ]}
			]}`,
			edges:   []link{{0, 1, "fd", RoleValue}},
			bounded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				flat *cfg.Result
				res  *Result
			)
			require.NotPanics(t, func() { flat, res = resolve(t, function(tt.params, tt.body)) })
			last := len(flat.Statements) - 1

			assert.Equal(t, tt.edges, links(res.Edges))
			assert.Equal(t, tt.defs, res.Facts[last].Defs)
			for _, u := range res.Facts[last].Uses {
				assert.NotEqual(t, RoleSize, u.Role)
			}
			calls := res.Facts[last].Calls
			assert.Equal(t, tt.bounded, calls.Bounded)
			assert.False(t, calls.LenLinkedToDst)
			assert.False(t, calls.SizeNonConst)
		})
	}
}

func TestResolveAssignmentShapes(t *testing.T) {
	t.Run("declaration initializer idiom is not an access", func(t *testing.T) {
		src := function("",
			`{"nodeType": "ArrayDeclaration", "id": 10, "name": "buf", "code": "char buf[10] = {0};", "length": 10},
			{"nodeType": "AssignmentExpression", "id": 11, "operator": "=", "code": "buf[10] = {0}", "children": [
			  {"nodeType": "Identifier", "id": 12, "name": "buf"},
			  {"nodeType": "Literal", "id": 13, "value": 0}
			]}`)
		_, res := resolve(t, src)
		assert.False(t, res.Facts[2].BufferAccess)
		assert.False(t, res.Facts[2].SinkAssign)
		assert.Equal(t, []string{"buf"}, res.Facts[2].Defs)
	})

	t.Run("textual runtime index is a sink", func(t *testing.T) {
		src := function("",
			`{"nodeType": "ArrayDeclaration", "id": 10, "name": "buf", "code": "char buf[10];", "length": 10},
			{"nodeType": "VariableDeclaration", "id": 11, "name": "i", "code": "int i;"},
			{"nodeType": "VariableDeclaration", "id": 12, "name": "b", "code": "int b;"},
			{"nodeType": "AssignmentExpression", "id": 13, "operator": "=", "code": "buf[i] = b", "children": [
			  {"nodeType": "Identifier", "id": 14, "name": "buf"},
			  {"nodeType": "Identifier", "id": 15, "name": "b"}
			]}`)
		_, res := resolve(t, src)
		assert.True(t, res.Facts[4].BufferAccess)
		assert.True(t, res.Facts[4].SinkAssign)
		assert.Equal(t, []link{{3, 4, "b", RoleValue}}, links(res.Edges))
	})

	t.Run("subscript write records index and base", func(t *testing.T) {
		src := function(
			`{"nodeType": "ParameterDeclaration", "id": 4, "name": "i", "code": "int i"}`,
			`{"nodeType": "ArrayDeclaration", "id": 10, "name": "buf", "code": "char buf[10];", "length": 10},
			{"nodeType": "AssignmentExpression", "id": 11, "operator": "=", "code": "buf[i] = 0", "children": [
			  {"nodeType": "ArraySubscriptExpression", "id": 12, "children": [
			    {"nodeType": "Identifier", "id": 13, "name": "buf"},
			    {"nodeType": "Identifier", "id": 14, "name": "i"}
			  ]},
			  {"nodeType": "Literal", "id": 15, "value": 0}
			]}`)
		_, res := resolve(t, src)
		assert.Equal(t, []link{{1, 2, "buf", RoleBase}, {0, 2, "i", RoleIndex}}, links(res.Edges))
		assert.Empty(t, res.Facts[2].Defs)
		assert.True(t, res.Facts[2].SinkAssign)
	})

	t.Run("compound assignment reads its target", func(t *testing.T) {
		src := function(
			`{"nodeType": "ParameterDeclaration", "id": 4, "name": "n", "code": "int n"}`,
			`{"nodeType": "AssignmentExpression", "id": 10, "operator": "+=", "code": "n += 2", "children": [
			  {"nodeType": "Identifier", "id": 11, "name": "n"},
			  {"nodeType": "Literal", "id": 12, "value": 2}
			]}`)
		_, res := resolve(t, src)
		assert.Equal(t, []link{{0, 1, "n", RoleValue}}, links(res.Edges))
		assert.Equal(t, []string{"n"}, res.Facts[1].Defs)
	})
}

func TestResolveEdgesAreUniqueAndNeverSelfLoops(t *testing.T) {
	_, res := resolve(t, loopAndBranch)

	seen := make(map[link]bool)
	for _, l := range links(res.Edges) {
		assert.NotEqual(t, l.def, l.use, "self edge %+v", l)
		assert.False(t, seen[l], "duplicate edge %+v", l)
		seen[l] = true
	}
}

func TestResolveUnresolvableStatementKeepsDefaults(t *testing.T) {
	fn := &ast.Node{Kind: ast.KindFunctionDefinition, Name: "f", ID: 1, HasID: true}
	flat := &cfg.Result{
		Function: "f",
		Statements: []cfg.Statement{
			{SID: 0, Kind: ast.KindFunctionEntry},
			{SID: 1, Kind: ast.KindAssignment, OrigID: 99, HasOrig: true},
		},
	}

	res := Resolve(ast.NewTree(fn), flat)

	require.Len(t, res.Facts, 2)
	assert.Equal(t, Facts{SID: 1}, res.Facts[1])
	assert.Empty(t, res.Edges)
}

func TestTextualIndex(t *testing.T) {
	tests := []struct {
		code, name string
		want       string
		ok         bool
	}{
		{"buf[i] = 0;", "buf", "i", true},
		{"buf [ n+1 ] = c;", "buf", " n+1 ", true},
		{"mybuf[i] = 0;", "buf", "", false},
		{"buffer[i] = 0;", "buf", "", false},
		{"x = buf[i];", "buf", "", false},
		{"buf[] = 0;", "buf", "", false},
		{"mybuf[0] = buf[j];", "buf", "", false},
		{"p->buf[k] = 1;", "buf", "k", true},
		{"a[1] = b; buf[2]", "buf", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := textualIndex(tt.code, tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitializerIdiom(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{`buf[10] = {0};`, true},
		{`  buf [ 4 ] =  "abc";`, true},
		{`buf[i] = c;`, false},
		{`buf[] = {0};`, false},
		{`buffer[10] = {0};`, false},
		{`buf[10] == {`, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, initializerIdiom(tt.code, "buf"))
		})
	}
}

func TestFlowRoleString(t *testing.T) {
	assert.Equal(t, "value", RoleValue.String())
	assert.Equal(t, "index", RoleIndex.String())
	assert.Equal(t, "size", RoleSize.String())
	assert.Equal(t, "base", RoleBase.String())
	assert.Equal(t, "unknown", FlowRole(0).String())
}
