// Package callsig is the static knowledge base of well-known C library calls:
// their semantic category and which argument positions carry the written
// destination and the length bound.
package callsig

import "strings"

// Category is the semantic class of a call.
type Category int

const (
	CategoryNone        Category = 0
	CategoryAlloc       Category = 1 // mem_alloc
	CategoryCopy        Category = 2 // mem_copy
	CategoryInput       Category = 3 // ext_input
	CategoryFormatPrint Category = 4 // format_print
)

func (c Category) String() string {
	switch c {
	case CategoryAlloc:
		return "mem_alloc"
	case CategoryCopy:
		return "mem_copy"
	case CategoryInput:
		return "ext_input"
	case CategoryFormatPrint:
		return "format_print"
	default:
		return "none"
	}
}

// Priority orders categories for textual tie-breaking, strongest first.
var Priority = []Category{CategoryCopy, CategoryInput, CategoryAlloc, CategoryFormatPrint}

var members = map[Category][]string{
	CategoryAlloc:       {"malloc", "calloc", "realloc", "alloca", "_alloca"},
	CategoryCopy:        {"memcpy", "memmove", "strcpy", "strcat", "snprintf", "sprintf", "vsprintf", "vsnprintf"},
	CategoryInput:       {"fgets", "gets", "scanf", "fscanf", "getline", "read", "recv"},
	CategoryFormatPrint: {"printf", "puts", "printIntLine", "printLine"},
}

var categoryOf = func() map[string]Category {
	m := make(map[string]Category)
	// Walk in priority order so a name listed twice keeps its strongest class.
	for i := len(Priority) - 1; i >= 0; i-- {
		for _, name := range members[Priority[i]] {
			m[strings.ToLower(name)] = Priority[i]
		}
	}
	return m
}()

// Signature describes the argument roles of a known call.
type Signature struct {
	Name      string
	Dst       int  // Destination argument position, -1 when none
	Size      int  // Size argument position, -1 when none
	Format    int  // Format string position for scanf-style calls, -1 otherwise
	Bounded   bool // Copy/read with an explicit length bound
	Unbounded bool // Copy/read that trusts the destination to be large enough
}

// HasDst reports whether the signature names a destination argument.
func (s Signature) HasDst() bool { return s.Dst >= 0 }

// HasSize reports whether the signature names a size argument.
func (s Signature) HasSize() bool { return s.Size >= 0 }

// AddressOfDefines reports whether address-of arguments after the format
// string are written by the call.
func (s Signature) AddressOfDefines() bool { return s.Format >= 0 }

var signatures = map[string]Signature{
	"fgets":     {Dst: 0, Size: 1, Format: -1, Bounded: true},
	"gets":      {Dst: 0, Size: -1, Format: -1, Unbounded: true},
	"memcpy":    {Dst: 0, Size: 2, Format: -1, Bounded: true},
	"memmove":   {Dst: 0, Size: 2, Format: -1, Bounded: true},
	"strncpy":   {Dst: 0, Size: 2, Format: -1, Bounded: true},
	"snprintf":  {Dst: 0, Size: 1, Format: -1, Bounded: true},
	"vsnprintf": {Dst: 0, Size: 1, Format: -1, Bounded: true},
	"strcpy":    {Dst: 0, Size: -1, Format: -1, Unbounded: true},
	"strcat":    {Dst: 0, Size: -1, Format: -1, Unbounded: true},
	"sprintf":   {Dst: 0, Size: -1, Format: -1, Unbounded: true},
	"vsprintf":  {Dst: 0, Size: -1, Format: -1, Unbounded: true},
	"read":      {Dst: 1, Size: 2, Format: -1, Bounded: true},
	"recv":      {Dst: 1, Size: 2, Format: -1, Bounded: true},
	"getline":   {Dst: 0, Size: 1, Format: -1, Bounded: true},
	"scanf":     {Dst: -1, Size: -1, Format: 0},
	"fscanf":    {Dst: -1, Size: -1, Format: 1},
}

func init() {
	for name, sig := range signatures {
		sig.Name = name
		signatures[name] = sig
	}
}

// Lookup returns the argument signature of name. Matching is
// case-insensitive.
func Lookup(name string) (Signature, bool) {
	sig, ok := signatures[strings.ToLower(strings.TrimSpace(name))]
	return sig, ok
}

// CategoryOf returns the semantic category of a callee name. Matching is
// case-insensitive, like Lookup.
func CategoryOf(name string) Category {
	return categoryOf[strings.ToLower(strings.TrimSpace(name))]
}

// IsStandard reports whether name is a library call the table knows about.
// Front-ends use it to pick StandardLibCall over UserDefinedCall.
func IsStandard(name string) bool {
	low := strings.ToLower(name)
	if _, ok := categoryOf[low]; ok {
		return true
	}
	_, ok := signatures[low]
	return ok
}

var allocNames = map[string]bool{
	"malloc": true, "calloc": true, "realloc": true, "alloca": true, "_alloca": true,
}

// IsAlloc reports whether name is a heap or stack allocation routine.
func IsAlloc(name string) bool {
	n := strings.TrimSpace(name)
	return allocNames[strings.ToLower(n)] || n == "ALLOCA" || n == "new[]"
}

var varargsNames = map[string]bool{
	"printf": true, "sprintf": true, "snprintf": true,
	"vprintf": true, "vsprintf": true, "vsnprintf": true,
}

// HasVarargs reports whether name is a printf-family routine.
func HasVarargs(name string) bool {
	return varargsNames[strings.ToLower(name)]
}
