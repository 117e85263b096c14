// Package guard derives per-variable bounds-check evidence from conditions
// and loop initializers.
package guard

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/l3aro/go-stmt-graph/pkg/ast"
)

// DefaultCap is the upper-bound normalization cap used when none is given.
const DefaultCap = 100

// Bound is the evidence known about one variable.
type Bound struct {
	Lower     bool
	Upper     bool
	UpperNorm float64
}

// Evidence maps variable names to bounds. Values are scoped to one branch;
// use Clone before handing evidence to a sibling.
type Evidence map[string]Bound

// Strength is the aggregated guard strength of a statement.
type Strength int

const (
	StrengthNone  Strength = 0
	StrengthLower Strength = 1
	StrengthUpper Strength = 2
	StrengthBoth  Strength = 3
)

// HasLower reports whether the lower bit is set.
func (s Strength) HasLower() bool { return s&StrengthLower != 0 }

// HasUpper reports whether the upper bit is set.
func (s Strength) HasUpper() bool { return s&StrengthUpper != 0 }

var digits = regexp.MustCompile(`^\d+$`)

// Normalize clamps n to [0, bound] and scales it to [0, 1].
func Normalize(n float64, bound int) float64 {
	if bound <= 0 {
		bound = DefaultCap
	}
	c := float64(bound)
	if n < 0 {
		n = 0
	}
	if n > c {
		n = c
	}
	return n / c
}

// FromCondition collects evidence from every `identifier OP literal`
// comparison under cond. `literal OP identifier` is not recognised.
func FromCondition(cond *ast.Node, bound int) Evidence {
	ev := make(Evidence)
	cond.Walk(func(n *ast.Node) bool {
		if n.Kind != ast.KindBinaryExpression || len(n.Children) < 2 {
			return true
		}
		lhs, rhs := n.Children[0], n.Children[1]
		if lhs.Kind != ast.KindIdentifier || lhs.Name == "" || rhs.Kind != ast.KindLiteral {
			return true
		}
		v, ok := literalInt(rhs)
		if !ok {
			return true
		}
		switch n.Operator {
		case ">=", ">":
			ev.add(lhs.Name, Bound{Lower: true})
		case "<=", "<":
			ev.add(lhs.Name, Bound{Upper: true, UpperNorm: Normalize(float64(v), bound)})
		}
		return true
	})
	return ev
}

// FromForInit collects lower-bound evidence from `identifier = literal`
// assignments and literal-initialized declarations in a for initializer.
func FromForInit(init *ast.Node) Evidence {
	ev := make(Evidence)
	init.Walk(func(n *ast.Node) bool {
		switch n.Kind {
		case ast.KindAssignment:
			if n.Operator != "" && n.Operator != "=" {
				return true
			}
			lhs, rhs := n.Child(0), n.Child(1)
			if lhs == nil || lhs.Kind != ast.KindIdentifier || rhs == nil || rhs.Kind != ast.KindLiteral {
				return true
			}
			if _, ok := literalInt(rhs); ok {
				ev.add(lhs.Name, Bound{Lower: true})
			}
		case ast.KindVariableDeclaration:
			if n.Name == "" {
				return true
			}
			for _, c := range n.Children {
				if c.Kind == ast.KindLiteral {
					if _, ok := literalInt(c); ok {
						ev.add(n.Name, Bound{Lower: true})
					}
				}
			}
		}
		return true
	})
	return ev
}

func literalInt(n *ast.Node) (int64, bool) {
	s := strings.TrimSpace(n.Value)
	if s == "" {
		s = n.TrimmedCode()
	}
	if !digits.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (e Evidence) add(name string, b Bound) {
	cur := e[name]
	e[name] = mergeBound(cur, b)
}

func mergeBound(a, b Bound) Bound {
	out := Bound{Lower: a.Lower || b.Lower, Upper: a.Upper || b.Upper}
	switch {
	case a.Upper && b.Upper:
		out.UpperNorm = max(a.UpperNorm, b.UpperNorm)
	case a.Upper:
		out.UpperNorm = a.UpperNorm
	case b.Upper:
		out.UpperNorm = b.UpperNorm
	}
	return out
}

// Clone returns an independent copy of e. A nil receiver yields an empty map.
func (e Evidence) Clone() Evidence {
	out := make(Evidence, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Merge returns a new map holding e combined with other.
func (e Evidence) Merge(other Evidence) Evidence {
	out := e.Clone()
	for k, v := range other {
		out.add(k, v)
	}
	return out
}

// Aggregate folds all entries into a statement-level strength and the
// largest normalized upper bound.
func (e Evidence) Aggregate() (Strength, float64) {
	var s Strength
	var norm float64
	for _, b := range e {
		if b.Lower {
			s |= StrengthLower
		}
		if b.Upper {
			s |= StrengthUpper
			norm = max(norm, b.UpperNorm)
		}
	}
	return s, norm
}
