package refs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/l3aro/go-stmt-graph/pkg/ast"
)

func ident(name string) *ast.Node {
	return &ast.Node{Kind: ast.KindIdentifier, Name: name}
}

func lit(v string) *ast.Node {
	return &ast.Node{Kind: ast.KindLiteral, Value: v}
}

func node(k ast.Kind, op string, children ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: k, Operator: op, Children: children}
}

func member(base *ast.Node, field string) *ast.Node {
	return node(ast.KindMemberAccess, ".", base, ident(field))
}

func TestIdentifiers(t *testing.T) {
	// n + sizeof(buf) - len(k) + s.cap
	expr := node(ast.KindBinaryExpression, "+",
		node(ast.KindBinaryExpression, "-",
			node(ast.KindBinaryExpression, "+", ident("n"), node(ast.KindSizeOf, "", ident("buf"))),
			node(ast.KindCallExpression, "", ident("len"), ident("k")),
		),
		member(ident("s"), "cap"),
	)

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"generic", Generic, []string{"n", "k", "s"}},
		{"keep sizeof", Full, []string{"n", "buf", "k", "s"}},
		{"keep callee", Options{SkipSizeof: true}, []string{"n", "len", "k", "s"}},
		{"field keys", Values, []string{"n", "k", "s.cap"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identifiers(expr, tt.opts))
		})
	}
}

func TestIdentifiersFieldKeysKeepSubscriptIndexes(t *testing.T) {
	// a[i].len
	expr := member(node(ast.KindArraySubscript, "", ident("a"), ident("i")), "len")
	assert.Equal(t, []string{"a.len", "i"}, Identifiers(expr, Values))
	assert.Equal(t, []string{"a", "i"}, Identifiers(expr, Generic))
}

func TestIdentifiersDedupAndKeywords(t *testing.T) {
	expr := node(ast.KindBinaryExpression, "!=",
		node(ast.KindBinaryExpression, "+", ident("i"), ident("i")),
		ident("NULL"),
	)
	assert.Equal(t, []string{"i"}, Identifiers(expr, Generic))
	assert.Empty(t, Identifiers(ident("stdin"), Generic))
	assert.Empty(t, Identifiers(ident(ast.EmptyName), Generic))
	assert.Empty(t, Identifiers(nil, Generic))
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		expr *ast.Node
		kind RefKind
		key  string
	}{
		{"identifier", ident("buf"), Identifier, "buf"},
		{"field", member(ident("s"), "buf"), Field, "s.buf"},
		{"nested field", member(member(ident("a"), "b"), "c"), Field, "a.b.c"},
		{"arrow", node(ast.KindMemberAccess, "->", ident("p"), ident("data")), Field, "p.data"},
		{"cast", node(ast.KindCastExpression, "", ident("dst")), Identifier, "dst"},
		{"paren deref", node(ast.KindParenExpression, "", node(ast.KindUnaryOperator, "*", ident("p"))), Identifier, "p"},
		{"address of", node(ast.KindAddressOf, "", member(ident("s"), "n")), Field, "s.n"},
		{"subscript base", node(ast.KindArraySubscript, "", ident("buf"), ident("i")), Identifier, "buf"},
		{"keyword", ident("NULL"), Unresolved, ""},
		{"literal", lit("3"), Unresolved, ""},
		{"arithmetic", node(ast.KindBinaryExpression, "+", ident("p"), lit("1")), Unresolved, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Resolve(tt.expr)
			assert.Equal(t, tt.kind, r.Kind)
			assert.Equal(t, tt.key, r.Key())
		})
	}
}

func TestKeyFallsBackToFirstIdentifier(t *testing.T) {
	expr := node(ast.KindBinaryExpression, "+", ident("p"), ident("off"))
	assert.Equal(t, "p", Key(expr))
	assert.Equal(t, "s.buf", Key(member(ident("s"), "buf")))
}

func TestRefRoot(t *testing.T) {
	r := Resolve(member(member(ident("a"), "b"), "c"))
	assert.Equal(t, "a", r.Root())
	assert.Equal(t, "x", Ref{Kind: Identifier, Base: "x"}.Root())
}

func TestAddressOfTarget(t *testing.T) {
	r, ok := AddressOfTarget(node(ast.KindUnaryOperator, "&", ident("n")))
	assert.True(t, ok)
	assert.Equal(t, "n", r.Key())

	_, ok = AddressOfTarget(ident("n"))
	assert.False(t, ok)

	_, ok = AddressOfTarget(node(ast.KindUnaryOperator, "-", ident("n")))
	assert.False(t, ok)
}

func TestHasIndexing(t *testing.T) {
	tests := []struct {
		name       string
		expr       *ast.Node
		skipSizeof bool
		want       bool
	}{
		{"subscript", node(ast.KindArraySubscript, "", ident("buf"), ident("i")), true, true},
		{"pointer arithmetic", node(ast.KindUnaryOperator, "*", node(ast.KindBinaryExpression, "+", ident("p"), ident("i"))), true, true},
		{"plain deref", node(ast.KindPointerDeref, "", ident("p")), true, false},
		{"inside sizeof skipped", node(ast.KindSizeOf, "", node(ast.KindArraySubscript, "", ident("buf"), lit("0"))), true, false},
		{"inside sizeof kept", node(ast.KindSizeOf, "", node(ast.KindArraySubscript, "", ident("buf"), lit("0"))), false, true},
		{"identifier", ident("x"), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasIndexing(tt.expr, tt.skipSizeof))
		})
	}
}
