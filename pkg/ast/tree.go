package ast

import (
	"regexp"
	"strings"
)

// EmptyName is the placeholder some front-ends emit for unnamed declarations.
const EmptyName = "<empty>"

// Tree indexes one function (or translation unit) by original node id.
type Tree struct {
	root *Node
	byID map[int]*Node
}

// NewTree builds the id index for root. When ids repeat, the first node in
// pre-order wins.
func NewTree(root *Node) *Tree {
	t := &Tree{root: root, byID: make(map[int]*Node)}
	root.Walk(func(n *Node) bool {
		if n.HasID {
			if _, exists := t.byID[n.ID]; !exists {
				t.byID[n.ID] = n
			}
		}
		return true
	})
	return t
}

// Root returns the indexed root node.
func (t *Tree) Root() *Node {
	return t.root
}

// Lookup resolves an original node id.
func (t *Tree) Lookup(id int) (*Node, bool) {
	n, ok := t.byID[id]
	return n, ok
}

// Params returns the distinct parameter names declared anywhere under the
// root, in first-seen order.
func (t *Tree) Params() []string {
	var names []string
	seen := make(map[string]bool)
	t.root.Walk(func(n *Node) bool {
		if n.Kind == KindParameterDeclaration && n.Name != "" && n.Name != EmptyName && !seen[n.Name] {
			seen[n.Name] = true
			names = append(names, n.Name)
		}
		return true
	})
	return names
}

var firstDimension = regexp.MustCompile(`\[\s*(.*?)\s*\]`)

// ArrayLength returns the declared length expression of the array named
// name. The length attribute wins; otherwise the first bracketed dimension of
// the declaration's code is used.
func (t *Tree) ArrayLength(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	decl := t.root.Find(func(n *Node) bool {
		return (n.Kind == KindArrayDeclaration || n.Kind == KindArraySizeAlloc) && n.Name == name
	})
	if decl == nil {
		return "", false
	}
	if l := strings.TrimSpace(decl.Length); l != "" && l != "0" {
		return l, true
	}
	if m := firstDimension.FindStringSubmatch(decl.Code); m != nil {
		return m[1], true
	}
	return "", false
}

// Functions returns the function definitions under root in source order.
// A FunctionDefinition root is returned as the only element.
func Functions(root *Node) []*Node {
	var fns []*Node
	root.Walk(func(n *Node) bool {
		if n.Kind == KindFunctionDefinition {
			fns = append(fns, n)
			return false
		}
		return true
	})
	return fns
}

// Body returns the first CompoundStatement child of a function node.
func Body(fn *Node) *Node {
	return fn.FirstChild(KindCompoundStatement)
}
