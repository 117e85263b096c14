package ast

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrEmptyInput is returned by Decode when the input holds no node.
var ErrEmptyInput = errors.New("empty AST input")

// Node is one syntax tree node.
type Node struct {
	Kind       Kind    // Closed syntactic kind
	Tag        string  // nodeType as sent upstream
	ID         int     // Original node id (valid when HasID)
	HasID      bool    // Whether the upstream node carried an integer id
	Name       string  // Declared or referenced name
	Code       string  // Source text of the subtree
	Operator   string  // Binary, unary and assignment operator
	Value      string  // Literal value
	Length     string  // Declared array length
	TargetType string  // Cast target type
	Children   []*Node // Ordered children
}

type wireNode struct {
	NodeType   string          `json:"nodeType"`
	ID         json.RawMessage `json:"id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Code       string          `json:"code,omitempty"`
	Operator   string          `json:"operator,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
	Length     json.RawMessage `json:"length,omitempty"`
	TargetType string          `json:"targetType,omitempty"`
	Children   []*Node         `json:"children,omitempty"`
}

// UnmarshalJSON decodes the upstream node shape. Scalar attributes that some
// front-ends send as numbers (value, length) are kept as their literal text.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	n.Tag = w.NodeType
	n.Kind = ParseKind(w.NodeType)
	n.Name = w.Name
	n.Code = w.Code
	n.Operator = w.Operator
	n.TargetType = w.TargetType
	n.Value = scalarText(w.Value)
	n.Length = scalarText(w.Length)
	if id, err := strconv.Atoi(scalarText(w.ID)); err == nil {
		n.ID = id
		n.HasID = true
	}

	n.Children = n.Children[:0]
	for _, c := range w.Children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return nil
}

// MarshalJSON encodes the node in the same shape UnmarshalJSON accepts.
func (n *Node) MarshalJSON() ([]byte, error) {
	tag := n.Tag
	if tag == "" {
		tag = string(n.Kind)
	}
	w := wireNode{
		NodeType:   tag,
		Name:       n.Name,
		Code:       n.Code,
		Operator:   n.Operator,
		TargetType: n.TargetType,
		Children:   n.Children,
	}
	if n.HasID {
		w.ID = json.RawMessage(strconv.Itoa(n.ID))
	}
	if n.Value != "" {
		w.Value, _ = json.Marshal(n.Value)
	}
	if n.Length != "" {
		w.Length, _ = json.Marshal(n.Length)
	}
	return json.Marshal(w)
}

func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	if raw[0] == '{' || raw[0] == '[' {
		return ""
	}
	// Numbers and booleans keep their literal spelling; 10.0 from a float
	// encoder still reads as 10.
	s := string(raw)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// Decode reads one tree. A JSON array root is wrapped in a synthetic
// TranslationUnit so callers always get a single root.
func Decode(r io.Reader) (*Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading AST: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	if data[0] == '[' {
		var nodes []*Node
		if err := json.Unmarshal(data, &nodes); err != nil {
			return nil, fmt.Errorf("decoding AST list: %w", err)
		}
		root := &Node{Kind: KindTranslationUnit, Tag: string(KindTranslationUnit)}
		for _, c := range nodes {
			if c != nil {
				root.Children = append(root.Children, c)
			}
		}
		return root, nil
	}

	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding AST: %w", err)
	}
	return &root, nil
}

// Child returns the i-th child or nil when out of range.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// FirstChild returns the first child of kind k.
func (n *Node) FirstChild(k Kind) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Kind == k {
			return c
		}
	}
	return nil
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find returns the first node in pre-order for which match is true.
func (n *Node) Find(match func(*Node) bool) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// TrimmedCode returns Code without surrounding whitespace.
func (n *Node) TrimmedCode() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Code)
}

// Text returns the trimmed source text of n, falling back to the spelling
// of a bare identifier or literal.
func (n *Node) Text() string {
	if c := n.TrimmedCode(); c != "" {
		return c
	}
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindIdentifier:
		return n.Name
	case KindLiteral:
		return n.Value
	}
	return ""
}

// CallName returns the callee name of a call node. StandardLibCall and
// UserDefinedCall carry it in Name; CallExpression in its leading Identifier.
func (n *Node) CallName() string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindStandardLibCall, KindUserDefinedCall:
		return n.Name
	case KindCallExpression:
		if callee := n.Child(0); callee != nil && callee.Kind == KindIdentifier {
			return callee.Name
		}
		return n.Name
	}
	return ""
}

// CallArgs returns the argument nodes of a call node.
func (n *Node) CallArgs() []*Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindStandardLibCall, KindUserDefinedCall:
		for _, c := range n.Children {
			if c.Kind == KindParameterList || c.Kind == KindArgumentList {
				return c.Children
			}
		}
	case KindCallExpression:
		if len(n.Children) > 1 {
			return n.Children[1:]
		}
	}
	return nil
}
