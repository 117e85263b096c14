package callsig

import (
	"regexp"
	"strings"
	"sync"
)

// SizeKind classifies the shape of a size argument.
type SizeKind int

const (
	SizeNone    SizeKind = 0
	SizeLiteral SizeKind = 1
	SizeIdent   SizeKind = 2
	SizeSizeof  SizeKind = 3
	SizeArith   SizeKind = 4
)

// AllocSizeof records whether an allocation call's size uses sizeof.
type AllocSizeof int

const (
	AllocNotApplicable AllocSizeof = 0
	AllocNoSizeof      AllocSizeof = 1
	AllocHasSizeof     AllocSizeof = 2
)

// Flags are the call-risk annotations derived from a call's source text.
type Flags struct {
	DangerUnbounded        bool
	LenLinkedToDst         bool
	SizeofNonDst           bool
	HasVarargs             bool
	DstIsField             bool
	SizeKind               SizeKind
	LenLinkedExtended      bool
	SizeIsSizeofBaseStruct bool
	SizeMismatchField      bool
	AllocSizeof            AllocSizeof
}

var (
	fieldDst   = regexp.MustCompile(`^([A-Za-z_]\w*)\s*\.\s*([A-Za-z_]\w*)$`)
	indexedDst = regexp.MustCompile(`^[A-Za-z_]\w*\s*\[`)
	plainIdent = regexp.MustCompile(`^[A-Za-z_]\w*$`)
	digitsOnly = regexp.MustCompile(`^\d+$`)
	arithOp    = regexp.MustCompile(`[+\-*/]`)
	sizeofCall = regexp.MustCompile(`\bsizeof\s*\(`)
)

// maxPatterns bounds the per-name pattern cache; past it patterns are
// compiled on demand and not kept.
const maxPatterns = 4096

var patterns struct {
	sync.RWMutex
	m map[string]*regexp.Regexp
}

// pattern returns the compiled form of expr, reusing an earlier compilation.
// expr must be valid; callers build it from QuoteMeta'd names.
func pattern(expr string) *regexp.Regexp {
	patterns.RLock()
	re, ok := patterns.m[expr]
	patterns.RUnlock()
	if ok {
		return re
	}

	re = regexp.MustCompile(expr)
	patterns.Lock()
	if patterns.m == nil {
		patterns.m = make(map[string]*regexp.Regexp)
	}
	if len(patterns.m) < maxPatterns {
		patterns.m[expr] = re
	}
	patterns.Unlock()
	return re
}

type dstShape int

const (
	shapeIdent dstShape = iota
	shapeField
	shapeIndexed
	shapeDeref
)

func classifyDst(dst string) (shape dstShape, base, field string) {
	s := strings.TrimSpace(dst)
	if m := fieldDst.FindStringSubmatch(s); m != nil {
		return shapeField, m[1], m[2]
	}
	if indexedDst.MatchString(s) {
		return shapeIndexed, "", ""
	}
	if strings.HasPrefix(s, "*") {
		return shapeDeref, "", ""
	}
	if plainIdent.MatchString(s) {
		return shapeIdent, s, ""
	}
	return shapeIdent, FirstIdent(s), ""
}

func classifySize(size string) SizeKind {
	s := strings.TrimSpace(size)
	switch {
	case s == "":
		return SizeNone
	case strings.Contains(s, "sizeof"):
		return SizeSizeof
	case digitsOnly.MatchString(s):
		return SizeLiteral
	case arithOp.MatchString(s):
		return SizeArith
	case HasIdentifier(s):
		return SizeIdent
	}
	return SizeNone
}

// ComputeFlags derives the textual call-risk flags for a call to name whose
// source appears in code.
func ComputeFlags(code, name string) Flags {
	var f Flags
	low := strings.ToLower(name)

	f.HasVarargs = HasVarargs(low)

	sig, known := Lookup(low)
	if known && sig.Unbounded {
		f.DangerUnbounded = true
	}

	if IsAlloc(name) {
		if sizeofCall.MatchString(strings.Join(SplitArgs(code, name), ",")) {
			f.AllocSizeof = AllocHasSizeof
		} else {
			f.AllocSizeof = AllocNoSizeof
		}
	}

	if !known || !sig.Bounded {
		return f
	}

	args := SplitArgs(code, name)
	var dst, size string
	if sig.Dst < len(args) && sig.Size < len(args) {
		dst, size = args[sig.Dst], args[sig.Size]
	}

	shape, base, field := classifyDst(dst)
	f.DstIsField = shape == shapeField
	f.SizeKind = classifySize(size)
	if size == "" {
		return f
	}

	dstName := FirstIdent(dst)
	if dstName != "" && linkedToName(size, dstName) {
		f.LenLinkedToDst = true
	}

	if f.DstIsField {
		if sizeofOfField(base, field).MatchString(size) {
			f.LenLinkedExtended = true
			f.LenLinkedToDst = true
		}
		if sizeofOfName(base).MatchString(size) {
			f.SizeIsSizeofBaseStruct = true
		}
	}

	if strings.Contains(size, "sizeof") {
		related := dstName != "" && sizeofMentions(dstName).MatchString(size)
		if f.DstIsField && sizeofOfField(base, field).MatchString(size) {
			related = true
		}
		f.SizeofNonDst = !related
	}

	if f.DstIsField {
		switch {
		case f.SizeIsSizeofBaseStruct:
			f.SizeMismatchField = true
		case strings.Contains(size, "sizeof") && !f.LenLinkedToDst:
			f.SizeMismatchField = true
		}
	}
	return f
}

// linkedToName reports whether size is sizeof(name), sizeof(*name) or
// sizeof(name[0]).
func linkedToName(size, name string) bool {
	q := regexp.QuoteMeta(name)
	return pattern(`\bsizeof\s*\(\s*(\*` + q + `|` + q + `\s*(?:\[\s*0\s*\])?)\s*\)`).MatchString(size)
}

func sizeofOfField(base, field string) *regexp.Regexp {
	return pattern(`\bsizeof\s*\(\s*` + regexp.QuoteMeta(base) + `\s*\.\s*` + regexp.QuoteMeta(field) + `\s*\)`)
}

func sizeofOfName(name string) *regexp.Regexp {
	return pattern(`\bsizeof\s*\(\s*` + regexp.QuoteMeta(name) + `\s*\)`)
}

func sizeofMentions(name string) *regexp.Regexp {
	return pattern(`\bsizeof\s*\(\s*\*?` + regexp.QuoteMeta(name) + `\b`)
}
