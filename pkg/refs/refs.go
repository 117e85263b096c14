// Package refs extracts variable references from expression subtrees:
// plain identifier sets, a canonical field-sensitive reference for lvalue-like
// expressions, and indexing patterns.
package refs

import (
	"strings"

	"github.com/l3aro/go-stmt-graph/pkg/ast"
)

var keywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "case": true,
	"return": true, "int": true, "char": true, "void": true, "NULL": true,
	"sizeof": true, "stdin": true, "else": true,
}

// Valid reports whether name can be tracked as a variable key.
func Valid(name string) bool {
	return name != "" && name != ast.EmptyName && !keywords[name]
}

// Options controls which identifiers Identifiers reports.
type Options struct {
	SkipSizeof bool // Ignore identifiers inside sizeof(...)
	SkipCallee bool // Ignore the callee identifier of a CallExpression
	Fields     bool // Report resolvable member access as its field key
}

// Generic is the option set used for ordinary value reads.
var Generic = Options{SkipSizeof: true, SkipCallee: true}

// Full keeps sizeof internals; used for size and index expressions.
var Full = Options{SkipSizeof: false, SkipCallee: true}

// Values is Generic with member reads reported as "base.field" keys.
var Values = Options{SkipSizeof: true, SkipCallee: true, Fields: true}

// Identifiers returns the distinct variable names referenced in n, in
// pre-order of first appearance. Member names on the right of '.' or '->'
// are not variables and are never reported.
func Identifiers(n *ast.Node, opts Options) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if Valid(name) && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case ast.KindSizeOf:
			if opts.SkipSizeof {
				return
			}
		case ast.KindCallExpression:
			for i, c := range n.Children {
				if i == 0 && opts.SkipCallee && c.Kind == ast.KindIdentifier {
					continue
				}
				walk(c)
			}
			return
		case ast.KindMemberAccess:
			if r := Resolve(n); opts.Fields && r.Kind == Field {
				add(r.Key())
				for _, id := range Identifiers(n.Child(0), Options{SkipSizeof: opts.SkipSizeof, SkipCallee: opts.SkipCallee}) {
					if id != r.Root() {
						add(id)
					}
				}
				return
			}
			walk(n.Child(0))
			return
		case ast.KindIdentifier:
			add(n.Name)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return names
}

// First returns the first generic identifier in n, or "".
func First(n *ast.Node) string {
	if ids := Identifiers(n, Generic); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// RefKind tags the result of Resolve.
type RefKind int

const (
	Unresolved RefKind = iota
	Identifier
	Field
)

// Ref is a canonical reference to a storage location.
type Ref struct {
	Kind  RefKind
	Base  string // Identifier name, or the base key of a field access
	Field string // Member name for Field refs
}

// Key returns the variable key: "name" or "base.field".
func (r Ref) Key() string {
	switch r.Kind {
	case Identifier:
		return r.Base
	case Field:
		return r.Base + "." + r.Field
	}
	return ""
}

// Root returns the outermost identifier the reference is rooted at.
func (r Ref) Root() string {
	if i := strings.IndexByte(r.Base, '.'); i >= 0 {
		return r.Base[:i]
	}
	return r.Base
}

// Resolve reduces an lvalue-like expression to a canonical reference. It
// unwraps casts, parentheses, pointer dereference and address-of, descends
// to the array of a subscript, and turns member access into Field refs.
// Anything else is Unresolved.
func Resolve(n *ast.Node) Ref {
	if n == nil {
		return Ref{}
	}
	switch n.Kind {
	case ast.KindIdentifier:
		if Valid(n.Name) {
			return Ref{Kind: Identifier, Base: n.Name}
		}
	case ast.KindMemberAccess:
		base := Resolve(n.Child(0))
		field := memberName(n)
		if base.Kind == Unresolved || field == "" {
			return Ref{}
		}
		return Ref{Kind: Field, Base: base.Key(), Field: field}
	case ast.KindCastExpression, ast.KindParenExpression:
		return Resolve(Operand(n))
	case ast.KindPointerDeref, ast.KindAddressOf:
		return Resolve(Operand(n))
	case ast.KindUnaryExpression, ast.KindUnaryOperator:
		if n.Operator == "*" || n.Operator == "&" {
			return Resolve(Operand(n))
		}
	case ast.KindArraySubscript:
		return Resolve(n.Child(0))
	}
	return Ref{}
}

// Key resolves n and falls back to its first identifier when the shape is
// not a recognised reference.
func Key(n *ast.Node) string {
	if r := Resolve(n); r.Kind != Unresolved {
		return r.Key()
	}
	return First(n)
}

func memberName(n *ast.Node) string {
	if f := n.Child(1); f != nil && f.Kind == ast.KindIdentifier {
		return f.Name
	}
	if n.Name != "" {
		return n.Name
	}
	return ""
}

// Operand returns the expression operand of a wrapper or unary node: its
// first child of an expression kind, else its first child.
func Operand(n *ast.Node) *ast.Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Kind != ast.KindUnknown && c.Kind != ast.KindTypeDefinition {
			return c
		}
	}
	return n.Child(0)
}

// IsAddressOf reports whether n takes the address of its operand.
func IsAddressOf(n *ast.Node) bool {
	if n == nil {
		return false
	}
	return n.Kind == ast.KindAddressOf || (n.Kind.IsUnary() && n.Operator == "&")
}

// AddressOfTarget returns the reference whose address n takes.
func AddressOfTarget(n *ast.Node) (Ref, bool) {
	if !IsAddressOf(n) {
		return Ref{}, false
	}
	r := Resolve(Operand(n))
	return r, r.Kind != Unresolved
}

// HasIndexing reports whether n contains an array subscript or a pointer
// arithmetic dereference such as *(p + i).
func HasIndexing(n *ast.Node, skipSizeof bool) bool {
	found := false
	n.Walk(func(c *ast.Node) bool {
		if found {
			return false
		}
		switch {
		case c.Kind == ast.KindSizeOf && skipSizeof:
			return false
		case c.Kind == ast.KindArraySubscript:
			found = true
			return false
		case isDeref(c):
			for _, g := range c.Children {
				if g.Kind == ast.KindBinaryExpression && (g.Operator == "+" || g.Operator == "-") {
					found = true
					return false
				}
			}
		}
		return true
	})
	return found
}

func isDeref(n *ast.Node) bool {
	return n.Kind == ast.KindPointerDeref || (n.Kind.IsUnary() && n.Operator == "*")
}
