// Package dfg resolves def-use relations over a flattened function. Each
// consumption of a variable is linked to the statement that most recently
// defined it and classified by the role it plays at the consumer.
package dfg

import (
	"github.com/l3aro/go-stmt-graph/pkg/cfg"
)

// FlowRole is the way a statement consumes a variable.
type FlowRole int

const (
	RoleValue FlowRole = 1 // Read as an ordinary value
	RoleIndex FlowRole = 2 // Used to compute a subscript
	RoleSize  FlowRole = 3 // Used as a length bound
	RoleBase  FlowRole = 4 // Base address of an indexed or written object
)

func (r FlowRole) String() string {
	switch r {
	case RoleValue:
		return "value"
	case RoleIndex:
		return "index"
	case RoleSize:
		return "size"
	case RoleBase:
		return "base"
	default:
		return "unknown"
	}
}

// Use is one consumption of a variable key.
type Use struct {
	Key  string
	Role FlowRole
}

// Edge links the defining statement of Key to a statement that consumes it.
type Edge struct {
	Def  int
	Use  int
	Key  string
	Role FlowRole

	GuardKind cfg.GuardKind
	HasLower  bool
	HasUpper  bool
	UpperNorm float64
}

// CallSinks are the call-derived risk bits of a statement, OR-aggregated over
// every call it contains.
type CallSinks struct {
	Unbounded       bool // is_sink_call_unbounded
	Bounded         bool // is_sink_call_bounded
	DstIndexed      bool // call_dst_indexed
	LenLinkedToDst  bool // call_len_linked_to_dst
	SizeNonConst    bool // call_size_nonconst
	DangerUnbounded bool // call_danger_unbounded
}

// Facts is what resolution learned about one statement.
type Facts struct {
	SID          int
	Defs         []string // Keys defined, in emission order
	Uses         []Use    // Every use emitted, linked or not
	Linked       []Use    // Uses that found a prior definition
	BufferAccess bool
	SinkAssign   bool
	Calls        CallSinks
}

// Result is the output of Resolve.
type Result struct {
	Edges []Edge
	Facts []Facts // Indexed by sid
}

// LastDefinitions maps a variable key to the sid of its most recent
// definition.
type LastDefinitions map[string]int

// Define records sid as the latest definition of key.
func (l LastDefinitions) Define(key string, sid int) {
	l[key] = sid
}

// Lookup returns the latest definition of key.
func (l LastDefinitions) Lookup(key string) (int, bool) {
	sid, ok := l[key]
	return sid, ok
}
