// Package ast defines the per-function C syntax tree consumed by the
// statement flattener and the def-use resolver.
// Trees arrive as JSON from an upstream front-end (or from pkg/cparse) and are
// treated as read-only once decoded.
package ast

// Kind is the syntactic kind of a node. The set is closed: ParseKind maps
// every upstream tag to one of the constants below, or to KindUnknown.
type Kind string

const (
	KindUnknown Kind = "Unknown"

	// Program structure
	KindTranslationUnit      Kind = "TranslationUnit"
	KindFunctionDefinition   Kind = "FunctionDefinition"
	KindFunctionDeclaration  Kind = "FunctionDeclaration"
	KindParameterList        Kind = "ParameterList"
	KindParameterDeclaration Kind = "ParameterDeclaration"
	KindArgumentList         Kind = "ArgumentList"
	KindIncludeDirective     Kind = "IncludeDirective"
	KindMacroDefinition      Kind = "MacroDefinition"
	KindTypeDefinition       Kind = "TypeDefinition"
	KindStructType           Kind = "StructType"
	KindUnionType            Kind = "UnionType"
	KindEnumType             Kind = "EnumType"

	// Declarations
	KindVariableDeclaration Kind = "VariableDeclaration"
	KindArrayDeclaration    Kind = "ArrayDeclaration"
	KindArraySizeAlloc      Kind = "ArraySizeAllocation"
	KindPointerDeclaration  Kind = "PointerDeclaration"

	// Statements
	KindCompoundStatement Kind = "CompoundStatement"
	KindIfStatement       Kind = "IfStatement"
	KindForStatement      Kind = "ForStatement"
	KindWhileStatement    Kind = "WhileStatement"
	KindDoWhileStatement  Kind = "DoWhileStatement"
	KindSwitchStatement   Kind = "SwitchStatement"
	KindSwitchCase        Kind = "SwitchCase"
	KindReturnStatement   Kind = "ReturnStatement"
	KindBreakStatement    Kind = "BreakStatement"
	KindContinueStatement Kind = "ContinueStatement"
	KindGotoStatement     Kind = "GotoStatement"
	KindLabel             Kind = "Label"

	// Calls
	KindStandardLibCall Kind = "StandardLibCall"
	KindUserDefinedCall Kind = "UserDefinedCall"
	KindCallExpression  Kind = "CallExpression"

	// Expressions
	KindAssignment       Kind = "AssignmentExpression"
	KindIdentifier       Kind = "Identifier"
	KindLiteral          Kind = "Literal"
	KindBinaryExpression Kind = "BinaryExpression"
	KindUnaryExpression  Kind = "UnaryExpression"
	KindUnaryOperator    Kind = "UnaryOperator"
	KindAddressOf        Kind = "AddressOfExpression"
	KindPointerDeref     Kind = "PointerDereference"
	KindMemberAccess     Kind = "MemberAccess"
	KindArraySubscript   Kind = "ArraySubscriptExpression"
	KindSizeOf           Kind = "SizeOfExpression"
	KindCastExpression   Kind = "CastExpression"
	KindParenExpression  Kind = "ParenExpression"

	// KindFunctionEntry marks the synthetic entry statement of a flattened
	// function. It never appears in input trees.
	KindFunctionEntry Kind = "FunctionEntry"
)

var kindByTag = map[string]Kind{}

// aliases covers the spellings different front-ends use for the same node.
var aliases = map[string]Kind{
	"ArraySubscriptionExpression": KindArraySubscript,
	"CStyleCastExpr":              KindCastExpression,
	"ParenExpr":                   KindParenExpression,
}

func init() {
	for _, k := range []Kind{
		KindTranslationUnit, KindFunctionDefinition, KindFunctionDeclaration,
		KindParameterList, KindParameterDeclaration, KindArgumentList,
		KindIncludeDirective, KindMacroDefinition, KindTypeDefinition,
		KindStructType, KindUnionType, KindEnumType,
		KindVariableDeclaration, KindArrayDeclaration, KindArraySizeAlloc,
		KindPointerDeclaration,
		KindCompoundStatement, KindIfStatement, KindForStatement,
		KindWhileStatement, KindDoWhileStatement, KindSwitchStatement,
		KindSwitchCase, KindReturnStatement, KindBreakStatement,
		KindContinueStatement, KindGotoStatement, KindLabel,
		KindStandardLibCall, KindUserDefinedCall, KindCallExpression,
		KindAssignment, KindIdentifier, KindLiteral, KindBinaryExpression,
		KindUnaryExpression, KindUnaryOperator, KindAddressOf, KindPointerDeref,
		KindMemberAccess, KindArraySubscript, KindSizeOf, KindCastExpression,
		KindParenExpression,
	} {
		kindByTag[string(k)] = k
	}
	for tag, k := range aliases {
		kindByTag[tag] = k
	}
}

// ParseKind maps an upstream nodeType tag to a Kind.
func ParseKind(tag string) Kind {
	if k, ok := kindByTag[tag]; ok {
		return k
	}
	return KindUnknown
}

// IsCall reports whether k is one of the call node kinds.
func (k Kind) IsCall() bool {
	switch k {
	case KindStandardLibCall, KindUserDefinedCall, KindCallExpression:
		return true
	}
	return false
}

// IsControl reports whether k is a condition-bearing control statement.
func (k Kind) IsControl() bool {
	switch k {
	case KindIfStatement, KindForStatement, KindWhileStatement,
		KindDoWhileStatement, KindSwitchStatement:
		return true
	}
	return false
}

// IsLoop reports whether k introduces a loop body.
func (k Kind) IsLoop() bool {
	switch k {
	case KindForStatement, KindWhileStatement, KindDoWhileStatement:
		return true
	}
	return false
}

// IsDeclaration reports whether k declares a single named object.
func (k Kind) IsDeclaration() bool {
	switch k {
	case KindVariableDeclaration, KindArrayDeclaration, KindArraySizeAlloc,
		KindPointerDeclaration, KindParameterDeclaration:
		return true
	}
	return false
}

// IsWrapper reports whether k is a cast or parenthesis around a single
// operand.
func (k Kind) IsWrapper() bool {
	switch k {
	case KindCastExpression, KindParenExpression:
		return true
	}
	return false
}

// IsUnary reports whether k carries a prefix operator over one operand.
func (k Kind) IsUnary() bool {
	switch k {
	case KindUnaryExpression, KindUnaryOperator:
		return true
	}
	return false
}
