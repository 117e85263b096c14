package scanner

import (
	"path/filepath"
	"strings"
)

// InputKind says how an input file is turned into a syntax tree.
type InputKind string

const (
	InputUnknown InputKind = ""
	InputAST     InputKind = "ast"    // Upstream JSON tree
	InputSource  InputKind = "source" // C source parsed in-process
)

var inputByExt = map[string]InputKind{
	".json": InputAST,
	".ast":  InputAST,
	".c":    InputSource,
	".h":    InputSource,
	".i":    InputSource,
}

// DetectInput returns the input kind for path based on its extension.
func DetectInput(path string) InputKind {
	return inputByExt[strings.ToLower(filepath.Ext(path))]
}
