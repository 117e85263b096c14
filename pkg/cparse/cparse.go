// Package cparse builds ast trees directly from C source with tree-sitter,
// so functions can be analysed without an upstream JSON front-end.
package cparse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"github.com/l3aro/go-stmt-graph/pkg/ast"
	"github.com/l3aro/go-stmt-graph/pkg/callsig"
)

// ErrParse is returned when tree-sitter produces no tree.
var ErrParse = errors.New("failed to parse C source")

var parserPool = sync.Pool{
	New: func() any {
		p := sitter.NewParser()
		p.SetLanguage(c.GetLanguage())
		return p
	},
}

// ParseFile reads and parses a C source file.
func ParseFile(ctx context.Context, path string) (*ast.Node, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	root, err := Parse(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

// Parse converts C source into a TranslationUnit node. Every node gets a
// pre-order id and its source slice as code. Syntax errors do not fail the
// parse; erroneous regions become Unknown nodes.
func Parse(ctx context.Context, src []byte) (*ast.Node, error) {
	parser := parserPool.Get().(*sitter.Parser)
	defer parserPool.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if tree == nil {
		return nil, ErrParse
	}
	defer tree.Close()

	cv := &converter{src: src}
	root := cv.node(ast.KindTranslationUnit, tree.RootNode())
	for _, child := range cv.named(tree.RootNode()) {
		root.Children = append(root.Children, cv.topLevel(child)...)
	}
	cv.number(root)
	return root, nil
}

type converter struct {
	src []byte
}

func (cv *converter) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(cv.src)
}

func (cv *converter) node(kind ast.Kind, n *sitter.Node) *ast.Node {
	return &ast.Node{Kind: kind, Tag: n.Type(), Code: cv.text(n)}
}

func (cv *converter) named(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// number assigns pre-order ids.
func (cv *converter) number(root *ast.Node) {
	next := 0
	root.Walk(func(n *ast.Node) bool {
		n.ID, n.HasID = next, true
		next++
		return true
	})
}

func (cv *converter) topLevel(n *sitter.Node) []*ast.Node {
	switch n.Type() {
	case "function_definition":
		return []*ast.Node{cv.function(n)}
	case "preproc_include":
		return []*ast.Node{cv.node(ast.KindIncludeDirective, n)}
	case "preproc_def", "preproc_function_def":
		return []*ast.Node{cv.node(ast.KindMacroDefinition, n)}
	case "type_definition":
		return []*ast.Node{cv.node(ast.KindTypeDefinition, n)}
	case "declaration":
		if isFunctionDeclaration(n) {
			decl := cv.node(ast.KindFunctionDeclaration, n)
			decl.Name = declaratorName(n.ChildByFieldName("declarator"), cv.src)
			return []*ast.Node{decl}
		}
		return cv.declaration(n)
	case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif":
		var out []*ast.Node
		for _, child := range cv.named(n) {
			out = append(out, cv.topLevel(child)...)
		}
		return out
	}
	return []*ast.Node{cv.node(ast.KindUnknown, n)}
}

func isFunctionDeclaration(n *sitter.Node) bool {
	d := n.ChildByFieldName("declarator")
	for d != nil {
		switch d.Type() {
		case "function_declarator":
			return true
		case "pointer_declarator":
			d = d.ChildByFieldName("declarator")
		default:
			return false
		}
	}
	return false
}

func (cv *converter) function(n *sitter.Node) *ast.Node {
	fn := cv.node(ast.KindFunctionDefinition, n)
	decl := n.ChildByFieldName("declarator")
	fn.Name = declaratorName(decl, cv.src)

	for decl != nil && decl.Type() == "pointer_declarator" {
		decl = decl.ChildByFieldName("declarator")
	}
	if decl != nil && decl.Type() == "function_declarator" {
		if params := decl.ChildByFieldName("parameters"); params != nil {
			fn.Children = append(fn.Children, cv.parameters(params))
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		fn.Children = append(fn.Children, cv.block(body))
	}
	return fn
}

func (cv *converter) parameters(n *sitter.Node) *ast.Node {
	list := cv.node(ast.KindParameterList, n)
	for _, p := range cv.named(n) {
		if p.Type() != "parameter_declaration" {
			continue
		}
		param := cv.node(ast.KindParameterDeclaration, p)
		param.Name = declaratorName(p.ChildByFieldName("declarator"), cv.src)
		if param.Name == "" {
			param.Name = ast.EmptyName
		}
		list.Children = append(list.Children, param)
	}
	return list
}

// declaratorName digs the declared identifier out of nested declarators.
func declaratorName(d *sitter.Node, src []byte) string {
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier":
			return d.Content(src)
		case "parenthesized_declarator":
			d = d.NamedChild(0)
		default:
			d = d.ChildByFieldName("declarator")
		}
	}
	return ""
}

func (cv *converter) block(n *sitter.Node) *ast.Node {
	b := cv.node(ast.KindCompoundStatement, n)
	for _, child := range cv.named(n) {
		b.Children = append(b.Children, cv.statement(child)...)
	}
	return b
}

// statement converts one statement. A declaration with several declarators
// becomes one node per declarator.
func (cv *converter) statement(n *sitter.Node) []*ast.Node {
	switch n.Type() {
	case "compound_statement":
		return []*ast.Node{cv.block(n)}
	case "declaration":
		return cv.declaration(n)
	case "expression_statement":
		inner := cv.named(n)
		if len(inner) == 0 {
			return nil
		}
		return []*ast.Node{cv.expr(inner[0])}
	case "if_statement":
		return []*ast.Node{cv.ifStatement(n)}
	case "for_statement":
		return []*ast.Node{cv.forStatement(n)}
	case "while_statement":
		w := cv.node(ast.KindWhileStatement, n)
		w.Children = []*ast.Node{cv.condition(n), cv.loopBody(n)}
		return []*ast.Node{w}
	case "do_statement":
		d := cv.node(ast.KindDoWhileStatement, n)
		d.Children = []*ast.Node{cv.loopBody(n), cv.condition(n)}
		return []*ast.Node{d}
	case "switch_statement":
		s := cv.node(ast.KindSwitchStatement, n)
		s.Children = []*ast.Node{cv.condition(n), cv.loopBody(n)}
		return []*ast.Node{s}
	case "case_statement":
		sc := cv.node(ast.KindSwitchCase, n)
		value := n.ChildByFieldName("value")
		for _, child := range cv.named(n) {
			if value != nil && sameSpan(child, value) {
				sc.Children = append(sc.Children, cv.expr(child))
				continue
			}
			sc.Children = append(sc.Children, cv.statement(child)...)
		}
		return []*ast.Node{sc}
	case "labeled_statement":
		l := cv.node(ast.KindLabel, n)
		l.Name = cv.text(n.ChildByFieldName("label"))
		for _, child := range cv.named(n) {
			if child.Type() == "statement_identifier" {
				continue
			}
			l.Children = append(l.Children, cv.statement(child)...)
		}
		return []*ast.Node{l}
	case "return_statement":
		r := cv.node(ast.KindReturnStatement, n)
		for _, child := range cv.named(n) {
			r.Children = append(r.Children, cv.expr(child))
		}
		return []*ast.Node{r}
	case "break_statement":
		return []*ast.Node{cv.node(ast.KindBreakStatement, n)}
	case "continue_statement":
		return []*ast.Node{cv.node(ast.KindContinueStatement, n)}
	case "goto_statement":
		g := cv.node(ast.KindGotoStatement, n)
		g.Name = cv.text(n.ChildByFieldName("label"))
		return []*ast.Node{g}
	}
	return []*ast.Node{cv.expr(n)}
}

func sameSpan(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// body converts a branch or loop body, which may be a single statement.
func (cv *converter) body(n *sitter.Node) *ast.Node {
	if n == nil {
		return nil
	}
	if n.Type() == "else_clause" {
		inner := cv.named(n)
		if len(inner) == 0 {
			return nil
		}
		n = inner[0]
	}
	stmts := cv.statement(n)
	switch len(stmts) {
	case 0:
		return nil
	case 1:
		return stmts[0]
	}
	b := cv.node(ast.KindCompoundStatement, n)
	b.Children = stmts
	return b
}

func (cv *converter) loopBody(n *sitter.Node) *ast.Node {
	if body := cv.body(n.ChildByFieldName("body")); body != nil {
		return body
	}
	return cv.placeholder(n)
}

func (cv *converter) condition(n *sitter.Node) *ast.Node {
	cond := n.ChildByFieldName("condition")
	for cond != nil && cond.Type() == "parenthesized_expression" && cond.NamedChildCount() == 1 {
		cond = cond.NamedChild(0)
	}
	if cond == nil {
		return cv.placeholder(n)
	}
	return cv.expr(cond)
}

func (cv *converter) placeholder(*sitter.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindUnknown, Tag: "Empty"}
}

func (cv *converter) ifStatement(n *sitter.Node) *ast.Node {
	s := cv.node(ast.KindIfStatement, n)
	s.Children = []*ast.Node{cv.condition(n)}
	if then := cv.body(n.ChildByFieldName("consequence")); then != nil {
		s.Children = append(s.Children, then)
	} else {
		s.Children = append(s.Children, cv.placeholder(n))
	}
	if alt := cv.body(n.ChildByFieldName("alternative")); alt != nil {
		s.Children = append(s.Children, alt)
	}
	return s
}

// forStatement always yields four children: init, condition, update, body.
func (cv *converter) forStatement(n *sitter.Node) *ast.Node {
	s := cv.node(ast.KindForStatement, n)
	part := func(field string) *ast.Node {
		child := n.ChildByFieldName(field)
		if child == nil {
			return cv.placeholder(n)
		}
		if child.Type() == "declaration" {
			if decls := cv.declaration(child); len(decls) > 0 {
				return decls[0]
			}
			return cv.placeholder(n)
		}
		return cv.expr(child)
	}
	s.Children = []*ast.Node{part("initializer"), part("condition"), part("update")}
	if body := cv.body(n.ChildByFieldName("body")); body != nil {
		s.Children = append(s.Children, body)
	} else {
		s.Children = append(s.Children, cv.placeholder(n))
	}
	return s
}

func (cv *converter) declaration(n *sitter.Node) []*ast.Node {
	var decls []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == "declarator" {
			decls = append(decls, n.Child(i))
		}
	}
	typ := cv.text(n.ChildByFieldName("type"))
	out := make([]*ast.Node, 0, len(decls))
	for _, d := range decls {
		code := cv.text(n)
		if len(decls) > 1 {
			code = typ + " " + cv.text(d) + ";"
		}
		out = append(out, cv.declarator(n, d, code))
	}
	return out
}

func (cv *converter) declarator(decl, d *sitter.Node, code string) *ast.Node {
	var value *sitter.Node
	target := d
	if d.Type() == "init_declarator" {
		value = d.ChildByFieldName("value")
		target = d.ChildByFieldName("declarator")
	}

	kind := ast.KindVariableDeclaration
	var length string
	switch declaratorShape(target) {
	case "array_declarator":
		kind = ast.KindArrayDeclaration
		length = cv.text(firstArraySize(target))
		if length != "" && !isNumber(length) {
			kind = ast.KindArraySizeAlloc
		}
	case "pointer_declarator":
		kind = ast.KindPointerDeclaration
	}

	out := &ast.Node{
		Kind:   kind,
		Tag:    decl.Type(),
		Name:   declaratorName(target, cv.src),
		Code:   code,
		Length: length,
	}
	if value != nil {
		out.Children = append(out.Children, cv.expr(value))
	}
	return out
}

// declaratorShape reports the outermost non-parenthesized declarator type.
func declaratorShape(d *sitter.Node) string {
	for d != nil && d.Type() == "parenthesized_declarator" {
		d = d.NamedChild(0)
	}
	if d == nil {
		return ""
	}
	return d.Type()
}

// firstArraySize returns the size of the outermost array dimension, which
// tree-sitter nests innermost.
func firstArraySize(d *sitter.Node) *sitter.Node {
	var size *sitter.Node
	for d != nil && d.Type() == "array_declarator" {
		size = d.ChildByFieldName("size")
		d = d.ChildByFieldName("declarator")
	}
	return size
}

func isNumber(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), "uUlL")
	if s == "" || s[0] < '0' || s[0] > '9' {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') && r != 'x' && r != 'X' {
			return false
		}
	}
	return true
}

func (cv *converter) expr(n *sitter.Node) *ast.Node {
	switch n.Type() {
	case "identifier", "field_identifier":
		id := cv.node(ast.KindIdentifier, n)
		id.Name = id.Code
		return id

	case "number_literal", "string_literal", "char_literal", "concatenated_string",
		"true", "false", "null":
		lit := cv.node(ast.KindLiteral, n)
		lit.Value = lit.Code
		return lit

	case "assignment_expression":
		a := cv.node(ast.KindAssignment, n)
		a.Operator = cv.text(n.ChildByFieldName("operator"))
		a.Children = cv.exprs(n.ChildByFieldName("left"), n.ChildByFieldName("right"))
		return a

	case "binary_expression":
		b := cv.node(ast.KindBinaryExpression, n)
		b.Operator = cv.text(n.ChildByFieldName("operator"))
		b.Children = cv.exprs(n.ChildByFieldName("left"), n.ChildByFieldName("right"))
		return b

	case "update_expression":
		u := cv.node(ast.KindUnaryOperator, n)
		u.Operator = cv.text(n.ChildByFieldName("operator"))
		u.Children = cv.exprs(n.ChildByFieldName("argument"))
		return u

	case "unary_expression":
		u := cv.node(ast.KindUnaryExpression, n)
		u.Operator = cv.text(n.ChildByFieldName("operator"))
		u.Children = cv.exprs(n.ChildByFieldName("argument"))
		return u

	case "pointer_expression":
		kind := ast.KindPointerDeref
		op := cv.text(n.ChildByFieldName("operator"))
		if op == "&" {
			kind = ast.KindAddressOf
		}
		p := cv.node(kind, n)
		p.Operator = op
		p.Children = cv.exprs(n.ChildByFieldName("argument"))
		return p

	case "field_expression":
		m := cv.node(ast.KindMemberAccess, n)
		arg, field := n.ChildByFieldName("argument"), n.ChildByFieldName("field")
		m.Operator = "."
		if arg != nil && field != nil && strings.Contains(string(cv.src[arg.EndByte():field.StartByte()]), "->") {
			m.Operator = "->"
		}
		m.Children = cv.exprs(arg, field)
		return m

	case "subscript_expression":
		s := cv.node(ast.KindArraySubscript, n)
		s.Children = cv.exprs(n.ChildByFieldName("argument"), n.ChildByFieldName("index"))
		return s

	case "sizeof_expression":
		s := cv.node(ast.KindSizeOf, n)
		if v := n.ChildByFieldName("value"); v != nil {
			s.Children = cv.exprs(v)
		} else if t := n.ChildByFieldName("type"); t != nil {
			// sizeof(name) is ambiguous and often parses as a type.
			if isIdentifier(cv.text(t)) {
				id := cv.node(ast.KindIdentifier, t)
				id.Name = strings.TrimSpace(id.Code)
				s.Children = []*ast.Node{id}
			} else {
				s.Children = []*ast.Node{cv.node(ast.KindTypeDefinition, t)}
			}
		}
		return s

	case "cast_expression":
		cast := cv.node(ast.KindCastExpression, n)
		cast.TargetType = cv.text(n.ChildByFieldName("type"))
		cast.Children = cv.exprs(n.ChildByFieldName("value"))
		return cast

	case "parenthesized_expression":
		p := cv.node(ast.KindParenExpression, n)
		for _, child := range cv.named(n) {
			p.Children = append(p.Children, cv.expr(child))
		}
		return p

	case "call_expression":
		return cv.call(n)

	case "declaration":
		if decls := cv.declaration(n); len(decls) > 0 {
			return decls[0]
		}
	}

	u := cv.node(ast.KindUnknown, n)
	for _, child := range cv.named(n) {
		u.Children = append(u.Children, cv.expr(child))
	}
	return u
}

var cTypeNames = map[string]bool{
	"char": true, "short": true, "int": true, "long": true, "float": true,
	"double": true, "void": true, "signed": true, "unsigned": true, "_Bool": true,
	"size_t": true, "wchar_t": true,
}

func isIdentifier(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || cTypeNames[s] {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func (cv *converter) exprs(nodes ...*sitter.Node) []*ast.Node {
	out := make([]*ast.Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, cv.expr(n))
		}
	}
	return out
}

// call maps a call to StandardLibCall or UserDefinedCall when the callee is
// a plain identifier, and to a generic CallExpression otherwise.
func (cv *converter) call(n *sitter.Node) *ast.Node {
	callee := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")

	var list []*ast.Node
	if args != nil {
		for _, a := range cv.named(args) {
			list = append(list, cv.expr(a))
		}
	}

	if callee != nil && callee.Type() == "identifier" {
		name := cv.text(callee)
		kind := ast.KindUserDefinedCall
		if callsig.IsStandard(name) {
			kind = ast.KindStandardLibCall
		}
		call := cv.node(kind, n)
		call.Name = name
		params := &ast.Node{Kind: ast.KindParameterList, Tag: "argument_list", Code: cv.text(args), Children: list}
		call.Children = []*ast.Node{params}
		return call
	}

	call := cv.node(ast.KindCallExpression, n)
	if callee != nil {
		call.Children = append(call.Children, cv.expr(callee))
	}
	call.Children = append(call.Children, list...)
	return call
}
